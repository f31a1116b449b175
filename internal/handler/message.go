package handler

import (
	"encoding/base64"
	"strings"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
)

type MessageHandler struct {
	Registry *service.Registry
}

func NewMessageHandler(registry *service.Registry) *MessageHandler {
	return &MessageHandler{Registry: registry}
}

// GET /api/sessions/:sessionId/chats/:chatId/messages
// chatId boleh alias @lid maupun @pn; keduanya resolve ke log yang sama.
func (h *MessageHandler) List(c echo.Context) error {
	sess, err := h.Registry.Session(c.Param("sessionId"))
	if err != nil {
		return mapRegistryError(c, err)
	}

	chatID := c.Param("chatId")
	messages := sess.Messages(chatID)
	return SuccessResponse(c, 200, "Messages retrieved successfully", map[string]interface{}{
		"chatId":   chatID,
		"count":    len(messages),
		"messages": messages,
	})
}

// POST /api/sessions/:sessionId/chats/:chatId/messages
// Body: {"text": "...", "media": "<base64>", "mimetype": "image/png"}
// media opsional; image di-normalize (resize + JPEG) sebelum kirim.
func (h *MessageHandler) Send(c echo.Context) error {
	var req struct {
		Text     string `json:"text"`
		Media    string `json:"media"`
		Mimetype string `json:"mimetype"`
	}
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "BAD_REQUEST", err.Error())
	}

	var media []byte
	mimetype := req.Mimetype
	if req.Media != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Media)
		if err != nil {
			return ErrorResponse(c, 400, "Field 'media' is not valid base64", "INVALID_MEDIA", err.Error())
		}
		media = decoded

		if strings.HasPrefix(mimetype, "image/") {
			normalized, normalizedMime, err := helper.NormalizeImagePayload(media, mimetype)
			if err != nil {
				return ErrorResponse(c, 400, "Failed to process image", "INVALID_IMAGE", err.Error())
			}
			media = normalized
			mimetype = normalizedMime
		}
	}

	if strings.TrimSpace(req.Text) == "" && len(media) == 0 {
		return ErrorResponse(c, 400, "Either 'text' or 'media' is required", "EMPTY_MESSAGE", "")
	}

	// chatId boleh berupa nomor telepon polos; dinormalkan ke JID dulu
	chatID := helper.NormalizeRecipient(c.Param("chatId"))

	msg, err := h.Registry.SendMessage(
		c.Request().Context(),
		c.Param("sessionId"),
		chatID,
		req.Text,
		media,
		mimetype,
	)
	if err != nil {
		return mapRegistryError(c, err)
	}
	return SuccessResponse(c, 201, "Message sent successfully", msg)
}
