package handler

import (
	"strings"

	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// POST /login
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "BAD_REQUEST", err.Error())
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return ErrorResponse(c, 400, "Username and password are required", "CREDENTIALS_REQUIRED", "")
	}

	token, err := h.Auth.Login(req.Username, req.Password)
	if err != nil {
		return ErrorResponse(c, 401, "Invalid username or password", "INVALID_CREDENTIALS", "")
	}

	return SuccessResponse(c, 200, "Login successful", map[string]interface{}{
		"token":     token,
		"tokenType": "Bearer",
	})
}
