package handler

import (
	"time"

	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
)

type InfoHandler struct {
	Registry *service.Registry
}

func NewInfoHandler(registry *service.Registry) *InfoHandler {
	return &InfoHandler{Registry: registry}
}

// GET /
func (h *InfoHandler) Health(c echo.Context) error {
	return SuccessResponse(c, 200, "Service is running", map[string]interface{}{
		"service": "gowa-gateway",
		"status":  h.Registry.Status(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
