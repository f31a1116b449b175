package service

import (
	"time"

	"gowa-gateway/internal/model"
)

// EventType set tertutup jenis domain event.
type EventType string

const (
	EventQR         EventType = "qr"
	EventConnection EventType = "connection"
	EventMessage    EventType = "message"
	EventStatus     EventType = "status"
	EventError      EventType = "error"
)

// AggregateStatus status gabungan seluruh registry.
type AggregateStatus string

const (
	StatusOffline AggregateStatus = "offline"
	StatusIdle    AggregateStatus = "idle"
	StatusOnline  AggregateStatus = "online"
)

// EventData payload ber-type per jenis event. Marker method bikin set-nya
// tertutup: tidak ada payload duck-typed.
type EventData interface{ eventData() }

type QRData struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issuedAt"`
}

type ConnectionData struct {
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Insecure bool   `json:"insecure"`
}

type MessageData struct {
	Message model.Message `json:"message"`
}

type StatusData struct {
	Status AggregateStatus `json:"status"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (QRData) eventData()         {}
func (ConnectionData) eventData() {}
func (MessageData) eventData()    {}
func (StatusData) eventData()     {}
func (ErrorData) eventData()      {}

// Event adalah domain event yang di-broadcast ke subscriber.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventSink menerima event dari registry. Dipegang sebagai interface supaya
// core tidak tergantung langsung ke hub WebSocket.
type EventSink interface {
	Publish(event Event)
}

func newEvent(typ EventType, sessionID string, data EventData) Event {
	return Event{
		Type:      typ,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
