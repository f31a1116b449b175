package handler

import (
	"errors"
	"strings"

	"gowa-gateway/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SessionHandler struct {
	Registry *service.Registry
}

func NewSessionHandler(registry *service.Registry) *SessionHandler {
	return &SessionHandler{Registry: registry}
}

// GET /api/sessions
func (h *SessionHandler) List(c echo.Context) error {
	views, err := h.Registry.ListSessions(c.Request().Context())
	if err != nil {
		return ErrorResponse(c, 500, "Failed to list sessions", "LIST_FAILED", err.Error())
	}
	return SuccessResponse(c, 200, "Sessions retrieved successfully", map[string]interface{}{
		"status":   h.Registry.Status(),
		"sessions": views,
	})
}

// POST /api/sessions
// sessionId opsional; kalau kosong di-generate.
func (h *SessionHandler) Create(c echo.Context) error {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "BAD_REQUEST", err.Error())
	}

	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = uuid.NewString()
	}

	if _, err := h.Registry.CreateSession(c.Request().Context(), id); err != nil {
		return mapRegistryError(c, err)
	}

	view, err := h.Registry.SessionView(id)
	if err != nil {
		return mapRegistryError(c, err)
	}
	return SuccessResponse(c, 201, "Session created successfully", view)
}

// GET /api/sessions/:sessionId
func (h *SessionHandler) Get(c echo.Context) error {
	view, err := h.Registry.SessionView(c.Param("sessionId"))
	if err != nil {
		return mapRegistryError(c, err)
	}
	return SuccessResponse(c, 200, "Session retrieved successfully", view)
}

// POST /api/sessions/:sessionId/connect
// Session dibuat dulu kalau belum ada, lalu mulai connect.
func (h *SessionHandler) Connect(c echo.Context) error {
	id := c.Param("sessionId")
	if err := h.Registry.ConnectSession(c.Request().Context(), id); err != nil {
		return mapRegistryError(c, err)
	}

	view, err := h.Registry.SessionView(id)
	if err != nil {
		return mapRegistryError(c, err)
	}
	return SuccessResponse(c, 200, "Session connecting", view)
}

// POST /api/sessions/:sessionId/disconnect
// Tutup koneksi, credentials dipertahankan.
func (h *SessionHandler) Disconnect(c echo.Context) error {
	id := c.Param("sessionId")
	if err := h.Registry.DisconnectSession(c.Request().Context(), id); err != nil {
		return mapRegistryError(c, err)
	}
	return SuccessResponse(c, 200, "Session disconnected", map[string]interface{}{
		"sessionId": id,
		"status":    "close",
	})
}

// DELETE /api/sessions/:sessionId
// Logout penuh: credentials dihapus, session keluar dari recovery list.
func (h *SessionHandler) Destroy(c echo.Context) error {
	id := c.Param("sessionId")
	if err := h.Registry.DestroySession(c.Request().Context(), id); err != nil {
		return mapRegistryError(c, err)
	}
	return SuccessResponse(c, 200, "Session destroyed", map[string]interface{}{
		"sessionId": id,
	})
}

// mapRegistryError translate error domain ke HTTP status + kode.
func mapRegistryError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return ErrorResponse(c, 400, "Invalid request", "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return ErrorResponse(c, 404, "Session not found", "SESSION_NOT_FOUND", "Create or connect the session first")
	case errors.Is(err, service.ErrSessionNotConnected):
		return ErrorResponse(c, 400, "Session is not connected", "NOT_CONNECTED", "Connect the session before sending")
	case errors.Is(err, service.ErrSendFailed):
		return ErrorResponse(c, 502, "Failed to send message", "SEND_FAILED", err.Error())
	default:
		return ErrorResponse(c, 500, "Internal server error", "INTERNAL_ERROR", err.Error())
	}
}
