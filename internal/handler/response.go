package handler

import (
	"github.com/labstack/echo/v4"
)

// Envelope JSON standar untuk semua endpoint.
//
//	{"success": true,  "message": "...", "data": {...}}
//	{"success": false, "message": "...", "error": {"code": "...", "details": "..."}}
func SuccessResponse(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func ErrorResponse(c echo.Context, status int, message, code, details string) error {
	errBody := map[string]string{"code": code}
	if details != "" {
		errBody["details"] = details
	}
	return c.JSON(status, map[string]interface{}{
		"success": false,
		"message": message,
		"error":   errBody,
	})
}
