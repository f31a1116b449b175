package model

// Message adalah satu pesan di log per-chat.
// ChatID selalu canonical (sudah lewat identity unification),
// jadi semua lookup cukup pakai satu key.
type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chatId"`
	Text       string `json:"text"`
	FromMe     bool   `json:"fromMe"`
	SenderName string `json:"senderName"`
	Timestamp  int64  `json:"timestamp"` // unix seconds
	Media      []byte `json:"media,omitempty"`
	Mimetype   string `json:"mimetype,omitempty"`
}

// SessionView adalah bentuk response untuk list/get session.
type SessionView struct {
	ID             string               `json:"id"`
	Status         string               `json:"status"`
	QRCode         *string              `json:"qrCode"`
	MessagesByChat map[string][]Message `json:"messagesByChat"`
	DisplayNames   map[string]string    `json:"displayNames,omitempty"`
}
