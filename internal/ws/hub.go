package ws

import (
	"encoding/json"
	"log"
	"time"

	"gowa-gateway/internal/service"

	"github.com/gorilla/websocket"
)

// Client merepresentasikan satu koneksi WebSocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Channel event ke client ini. Goroutine write membaca dari sini dan
	// mengirim ke conn — satu writer per client, jadi urutan emisi terjaga
	// (FIFO per publisher).
	send chan service.Event

	// SessionID opsional: kalau di-set, client cuma menerima event session
	// itu (plus event status registry-wide).
	SessionID string
}

// Hub menyimpan semua subscriber aktif dan fan-out domain event ke semuanya.
// Map clients hanya disentuh goroutine Run, jadi tidak butuh lock.
// Hub mengimplementasikan service.EventSink.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan service.Event
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan service.Event, 256), // buffer kecil untuk mencegah blocking publisher
	}
}

// Run harus dijalankan di goroutine terpisah.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case event := <-h.broadcast:
			for client := range h.clients {
				if client.SessionID != "" && event.SessionID != "" && client.SessionID != event.SessionID {
					continue
				}
				select {
				case client.send <- event:
					// masuk buffer client
				default:
					// buffer penuh: anggap client bermasalah, putuskan
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish mengimplementasikan service.EventSink: setiap event diterima
// semua subscriber terdaftar tepat satu kali per emisi.
func (h *Hub) Publish(event service.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.broadcast <- event
}

// NewClient membuat Client dari koneksi Gorilla. Read/write pump dijalankan
// oleh handler WS, bukan di sini.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan service.Event, 256),
	}
}

// WritePump loop pengirim: encode event ke JSON, tulis ke koneksi.
func (c *Client) WritePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for event := range c.send {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("ws: failed to marshal event: %v", err)
			continue
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("ws: failed to write message: %v", err)
			return
		}
	}
}

// ReadPump consume (dan buang) frame dari client; dipakai untuk deteksi
// disconnect dan keepalive saja.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)

	_ = c.conn.SetReadDeadline(time.Now().Add(15 * time.Minute))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(15 * time.Minute))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
