package handler

import (
	"net/http"

	"gowa-gateway/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin dicek CORS middleware
	},
}

type WSHandler struct {
	Hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{Hub: hub}
}

// GET /ws?sessionId=...
// Tanpa sessionId: terima semua event. Dengan sessionId: cuma event session
// itu plus event status registry-wide.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := ws.NewClient(h.Hub, conn)
	client.SessionID = c.QueryParam("sessionId")

	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}
