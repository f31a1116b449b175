package service

import (
	"context"
	"strings"
	"time"
)

// DisconnectCode adalah kode numerik close event dari transport,
// setara DisconnectReason di protokolnya.
type DisconnectCode int

const (
	CodeLoggedOut        DisconnectCode = 401
	CodeForbidden        DisconnectCode = 403
	CodeConnectionLost   DisconnectCode = 408
	CodeConnectionClosed DisconnectCode = 428
	CodeStreamReplaced   DisconnectCode = 440
	CodeRestartRequired  DisconnectCode = 515
)

// CloseClass hasil klasifikasi sebuah close event.
type CloseClass int

const (
	// CloseTransient: gangguan jaringan biasa, reconnect dengan backoff.
	CloseTransient CloseClass = iota
	// CloseRestart: protokol minta restart, reconnect langsung tanpa hitung attempt.
	CloseRestart
	// CloseFatal: terminal, credentials dibiarkan utuh.
	CloseFatal
	// CloseInvalidCreds: terminal, credential store harus dihapus.
	CloseInvalidCreds
)

// CloseClassifier memetakan code close ke kelasnya. Set kode fatal/restart
// sebenarnya milik transport dan bisa berubah antar versi protokol,
// makanya ini value yang bisa dikonfigurasi, bukan tabel hardcoded.
type CloseClassifier struct {
	Restart      []DisconnectCode
	InvalidCreds []DisconnectCode
	Fatal        []DisconnectCode
}

func DefaultCloseClassifier() CloseClassifier {
	return CloseClassifier{
		Restart:      []DisconnectCode{CodeRestartRequired},
		InvalidCreds: []DisconnectCode{CodeLoggedOut},
		Fatal:        []DisconnectCode{CodeForbidden, CodeStreamReplaced},
	}
}

func (c CloseClassifier) Classify(code DisconnectCode, message string) CloseClass {
	for _, r := range c.Restart {
		if code == r {
			return CloseRestart
		}
	}
	for _, ic := range c.InvalidCreds {
		if code == ic {
			return CloseInvalidCreds
		}
	}
	// beberapa transport cuma kasih pesan teks, bukan kode
	if strings.Contains(strings.ToLower(message), "logged out") {
		return CloseInvalidCreds
	}
	for _, f := range c.Fatal {
		if code == f {
			return CloseFatal
		}
	}
	return CloseTransient
}

// IsCertIssuerError deteksi kegagalan validasi certificate lokal dari pesan
// error. Pattern-nya mengikuti apa yang dikeluarkan TLS stack, jadi substring
// match saja.
func IsCertIssuerError(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "unable to get local issuer certificate") ||
		strings.Contains(m, "unable_to_get_issuer_cert_locally") ||
		strings.Contains(m, "certificate signed by unknown authority")
}

// ---------------------------------------------------------------------------
// Boundary ke transport library. Core tidak pernah import whatsmeow langsung;
// adapter production ada di internal/facade.
// ---------------------------------------------------------------------------

// MessageKind jenis payload pesan masuk.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindText
	KindExtendedText
	KindImage
	KindVideo
	KindSticker
	KindAudio
	KindDocument
	KindReaction
	KindProtocol
)

// TransportEvent adalah event mentah dari transport, didispatch sekuensial
// per koneksi (satu logical thread per session).
type TransportEvent interface{ transportEvent() }

type QRIssued struct {
	Code string
}

type ConnectionOpen struct{}

type ConnectionClosed struct {
	Code    DisconnectCode
	Message string
}

// InboundMessage adalah pesan masuk sebelum normalisasi.
// Field teks dipisah per varian payload; Session yang menentukan precedence.
type InboundMessage struct {
	ID        string
	ChatJID   string
	SenderJID string
	// AltJID berisi identifier alternatif yang resolvable (mis. @s.whatsapp.net)
	// ketika ChatJID berjenis linked/opaque (@lid). Kosong kalau tidak ada.
	AltJID    string
	PushName  string
	FromMe    bool
	IsGroup   bool
	Timestamp time.Time
	Kind      MessageKind

	Conversation    string
	ExtendedText    string
	ImageCaption    string
	VideoCaption    string
	DocumentCaption string
	Reaction        string

	Mimetype string
	// Download di-set facade untuk payload bermedia; dipanggil lazily dan
	// hanya untuk kind image/sticker/audio.
	Download func(ctx context.Context) ([]byte, error)
}

func (QRIssued) transportEvent()         {}
func (ConnectionOpen) transportEvent()   {}
func (ConnectionClosed) transportEvent() {}
func (InboundMessage) transportEvent()   {}

// EventHandler menerima TransportEvent dari facade.
type EventHandler func(TransportEvent)

// DialOptions opsi per percobaan koneksi.
type DialOptions struct {
	// InsecureTLS minta verifikasi certificate yang dilonggarkan.
	// Hanya di-set state machine pada fallback satu kali setelah cert failure.
	InsecureTLS bool
}

// Conn adalah satu koneksi transport yang hidup.
type Conn interface {
	SendText(ctx context.Context, chatJID, text string) (string, time.Time, error)
	SendMedia(ctx context.Context, chatJID string, data []byte, mimetype, caption string) (string, time.Time, error)
	GroupName(ctx context.Context, groupJID string) (string, error)
	// Close menutup koneksi tanpa invalidate credentials.
	Close(ctx context.Context) error
	// Logout invalidate credentials di sisi protokol lalu menutup koneksi.
	Logout(ctx context.Context) error
}

// ConnectionFacade membuka koneksi terautentikasi dari credential tersimpan.
type ConnectionFacade interface {
	Dial(ctx context.Context, sessionID string, opts DialOptions, handler EventHandler) (Conn, error)
	// EraseCredentials hapus credential store session; connect berikutnya
	// harus pairing ulang.
	EraseCredentials(ctx context.Context, sessionID string) error
}
