package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/model"
)

// ConnState state koneksi satu session.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAwaitingQR
	StateOpen
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingQR:
		return "awaiting_qr"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// SessionConfig knob untuk reconnect policy dan log pesan.
type SessionConfig struct {
	// RestartDelay dipakai untuk close "restart requested": retry langsung.
	RestartDelay time.Duration
	// InsecureDelay jeda sebelum retry satu kali dengan TLS dilonggarkan.
	InsecureDelay time.Duration
	// ReconnectDelay backoff untuk gangguan transient biasa.
	ReconnectDelay time.Duration
	// ChatLogCap panjang maksimum log per chat, FIFO.
	ChatLogCap int
	// GroupCacheTTL umur cache nama group.
	GroupCacheTTL time.Duration
	Classifier    CloseClassifier
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		RestartDelay:   500 * time.Millisecond,
		InsecureDelay:  1 * time.Second,
		ReconnectDelay: 2500 * time.Millisecond,
		ChatLogCap:     50,
		GroupCacheTTL:  5 * time.Minute,
		Classifier:     DefaultCloseClassifier(),
	}
}

// Session adalah state machine satu koneksi protokol milik satu tenant,
// termasuk reconnect policy dan log pesan per-chat.
//
// Callback transport datang sekuensial per koneksi, tapi HTTP handler bisa
// baca kapan saja dari goroutine lain; semua field mutable di bawah mu.
// Flag manualDisconnect dan insecureMode hanya dimutasi logic transisi di
// sini, tidak pernah dari luar.
type Session struct {
	ID string

	mu                sync.Mutex
	state             ConnState
	conn              Conn
	reconnectAttempts int
	insecureMode      bool
	manualDisconnect  bool
	reconnectTimer    *time.Timer

	chats    map[string][]model.Message
	identity *identityBook
	groups   *GroupCache

	facade ConnectionFacade
	emit   func(Event)
	cfg    SessionConfig
}

func newSession(id string, facade ConnectionFacade, cfg SessionConfig, emit func(Event)) *Session {
	if emit == nil {
		emit = func(Event) {}
	}
	return &Session{
		ID:       id,
		state:    StateDisconnected,
		chats:    make(map[string][]model.Message),
		identity: newIdentityBook(),
		groups:   NewGroupCache(cfg.GroupCacheTTL),
		facade:   facade,
		emit:     emit,
		cfg:      cfg,
	}
}

// Connect mulai koneksi. Idempotent kalau sudah Connecting/AwaitingQR/Open.
// Selalu clear manualDisconnect supaya reconnect otomatis aktif lagi.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting, StateAwaitingQR, StateOpen:
		s.mu.Unlock()
		return nil
	}
	s.manualDisconnect = false
	s.insecureMode = false
	s.state = StateConnecting
	data := s.connectionDataLocked()
	s.mu.Unlock()

	s.emit(newEvent(EventConnection, s.ID, data))
	s.dial(ctx)
	return nil
}

// Disconnect tutup koneksi (best effort) dan matikan reconnect yang pending.
// logout=true juga invalidate credentials di sisi protokol.
// State lokal selalu berakhir Disconnected, apapun hasil network close-nya.
func (s *Session) Disconnect(ctx context.Context, logout bool) {
	s.mu.Lock()
	s.manualDisconnect = true
	s.cancelReconnectLocked()
	conn := s.conn
	s.conn = nil
	s.state = StateClosing
	s.mu.Unlock()

	if conn != nil {
		var err error
		if logout {
			err = conn.Logout(ctx)
		} else {
			err = conn.Close(ctx)
		}
		if err != nil {
			// best effort: gagal close di network tidak menahan state lokal
			log.Printf("⚠ disconnect %s: %v", s.ID, err)
		}
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.insecureMode = false
	data := s.connectionDataLocked()
	s.mu.Unlock()

	s.emit(newEvent(EventConnection, s.ID, data))
}

// dial buka transport dengan mode TLS sesuai flag saat ini.
// Kegagalan dial diperlakukan sebagai close transient (masuk decision table).
func (s *Session) dial(ctx context.Context) {
	s.mu.Lock()
	if s.manualDisconnect {
		s.mu.Unlock()
		return
	}
	insecure := s.insecureMode
	s.mu.Unlock()

	if insecure {
		log.Printf("⚠ [TLS] %s: reconnecting with relaxed certificate verification", s.ID)
	}

	conn, err := s.facade.Dial(ctx, s.ID, DialOptions{InsecureTLS: insecure}, s.handleTransportEvent)
	if err != nil {
		log.Printf("⚠ dial %s: %v", s.ID, err)
		s.handleClose(ConnectionClosed{Code: CodeConnectionLost, Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Session) handleTransportEvent(ev TransportEvent) {
	switch ev := ev.(type) {
	case QRIssued:
		s.handleQR(ev)
	case ConnectionOpen:
		s.handleOpen()
	case ConnectionClosed:
		s.handleClose(ev)
	case InboundMessage:
		s.handleMessage(ev)
	}
}

func (s *Session) handleQR(ev QRIssued) {
	s.mu.Lock()
	if s.state == StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateAwaitingQR
	s.mu.Unlock()

	log.Printf("QR tersedia untuk session %s", s.ID)
	s.emit(newEvent(EventQR, s.ID, QRData{Code: ev.Code, IssuedAt: time.Now().UTC()}))
	s.emit(newEvent(EventConnection, s.ID, ConnectionData{State: StateAwaitingQR.String()}))
}

func (s *Session) handleOpen() {
	s.mu.Lock()
	s.cancelReconnectLocked()
	s.state = StateOpen
	s.reconnectAttempts = 0
	// insecureMode dibiarkan: true hanya kalau koneksi ini memang di-dial
	// dengan verifikasi dilonggarkan; dial secure sudah meng-clear-nya.
	data := s.connectionDataLocked()
	s.mu.Unlock()

	fmt.Println("✓ Connected! Session:", s.ID)
	s.emit(newEvent(EventConnection, s.ID, data))
}

// handleClose adalah decision table reconnect, dievaluasi berurutan:
// manual/fatal dulu, lalu restart, lalu cert fallback, sisanya transient.
func (s *Session) handleClose(ev ConnectionClosed) {
	s.mu.Lock()
	s.conn = nil
	class := s.cfg.Classifier.Classify(ev.Code, ev.Message)

	var wipe bool
	switch {
	case s.manualDisconnect || class == CloseFatal || class == CloseInvalidCreds:
		// terminal: tidak ada auto-reconnect
		s.cancelReconnectLocked()
		s.state = StateDisconnected
		s.insecureMode = false
		wipe = class == CloseInvalidCreds

	case class == CloseRestart:
		// protokol minta restart: retry cepat, attempt counter tidak naik
		s.state = StateConnecting
		s.scheduleReconnectLocked(s.cfg.RestartDelay)

	case IsCertIssuerError(ev.Message) && !s.insecureMode:
		// fallback satu kali: retry dengan verifikasi cert dilonggarkan.
		// Kalau mode ini sendiri gagal lagi, jatuh ke branch transient —
		// tidak akan toggle bolak-balik.
		s.insecureMode = true
		s.state = StateConnecting
		s.scheduleReconnectLocked(s.cfg.InsecureDelay)

	default:
		s.reconnectAttempts++
		s.state = StateConnecting
		s.scheduleReconnectLocked(s.cfg.ReconnectDelay)
	}
	data := s.connectionDataLocked()
	s.mu.Unlock()

	log.Printf("✗ Connection closed, session %s: code=%d class=%d msg=%q", s.ID, ev.Code, class, ev.Message)

	if wipe {
		if err := s.facade.EraseCredentials(context.Background(), s.ID); err != nil {
			log.Printf("⚠ failed to erase credentials for %s: %v", s.ID, err)
		} else {
			fmt.Println("✓ Credential store wiped for:", s.ID)
		}
	}
	s.emit(newEvent(EventConnection, s.ID, data))
}

// scheduleReconnectLocked pasang timer reconnect yang bisa dibatalkan.
// Flag manualDisconnect dicek lagi saat timer fire, di bawah lock yang sama
// dengan cancel path — check-then-fire-nya atomic.
func (s *Session) scheduleReconnectLocked(delay time.Duration) {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.manualDisconnect || s.state != StateConnecting {
			s.mu.Unlock()
			return
		}
		s.reconnectTimer = nil
		s.mu.Unlock()
		s.dial(context.Background())
	})
}

func (s *Session) cancelReconnectLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// handleMessage normalisasi pesan masuk dan simpan ke log per-chat.
func (s *Session) handleMessage(ev InboundMessage) {
	// pesan protocol/control internal di-skip
	if ev.Kind == KindProtocol || ev.Kind == KindUnknown {
		return
	}

	text := extractText(ev)

	var media []byte
	var mimetype string
	if ev.Download != nil && downloadableKind(ev.Kind) {
		data, err := ev.Download(context.Background())
		if err != nil {
			log.Printf("⚠ %s: failed to download media %s: %v", s.ID, ev.ID, err)
			s.emit(newEvent(EventError, s.ID, ErrorData{Code: "MEDIA_DOWNLOAD_FAILED", Message: err.Error()}))
		} else {
			media, mimetype = data, ev.Mimetype
			if ev.Kind == KindImage || ev.Kind == KindSticker {
				if norm, normMime, err := helper.NormalizeImagePayload(data, ev.Mimetype); err == nil {
					media, mimetype = norm, normMime
				}
			}
		}
	}

	// nama group dari cache, fetch sekali kalau miss
	var groupName string
	if ev.IsGroup {
		if name, ok := s.groups.Get(ev.ChatJID); ok {
			groupName = name
		} else if conn := s.currentConn(); conn != nil {
			if name, err := conn.GroupName(context.Background(), ev.ChatJID); err == nil && name != "" {
				s.groups.Put(ev.ChatJID, name)
				groupName = name
			}
		}
	}

	senderName := ev.PushName
	if senderName == "" {
		senderName = helper.JIDLocalPart(ev.SenderJID)
	}

	s.mu.Lock()
	chatID := s.identity.Canonical(ev.ChatJID, ev.AltJID)
	if ev.ChatJID != chatID {
		s.adoptAliasLocked(ev.ChatJID, chatID)
	}
	candidate := ev.PushName
	if ev.IsGroup {
		candidate = groupName
	}
	s.identity.ObserveName(chatID, candidate, ev.FromMe)

	msg := model.Message{
		ID:         ev.ID,
		ChatID:     chatID,
		Text:       text,
		FromMe:     ev.FromMe,
		SenderName: senderName,
		Timestamp:  ev.Timestamp.Unix(),
		Media:      media,
		Mimetype:   mimetype,
	}
	stored := s.appendLocked(msg)
	s.mu.Unlock()

	if stored {
		s.emit(newEvent(EventMessage, s.ID, MessageData{Message: msg}))
	}
}

// Send kirim pesan via koneksi yang Open. Gagal kirim tidak menyentuh log.
func (s *Session) Send(ctx context.Context, chatID, text string, media []byte, mimetype string) (model.Message, error) {
	s.mu.Lock()
	if s.state != StateOpen || s.conn == nil {
		s.mu.Unlock()
		return model.Message{}, ErrSessionNotConnected
	}
	conn := s.conn
	canonical := s.identity.Canonical(chatID, "")
	s.mu.Unlock()

	var (
		id  string
		ts  time.Time
		err error
	)
	if len(media) > 0 {
		id, ts, err = conn.SendMedia(ctx, canonical, media, mimetype, text)
	} else {
		id, ts, err = conn.SendText(ctx, canonical, text)
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	msg := model.Message{
		ID:        id,
		ChatID:    canonical,
		Text:      text,
		FromMe:    true,
		Timestamp: ts.Unix(),
		Media:     media,
		Mimetype:  mimetype,
	}

	s.mu.Lock()
	stored := s.appendLocked(msg)
	s.mu.Unlock()

	if stored {
		s.emit(newEvent(EventMessage, s.ID, MessageData{Message: msg}))
	}
	return msg, nil
}

// adoptAliasLocked pindahkan log dan nama yang terlanjur tersimpan di bawah
// alias ke key canonical begitu mapping-nya diketahui; pesan lama dan baru
// konvergen di satu key.
func (s *Session) adoptAliasLocked(raw, canonical string) {
	if old, ok := s.chats[raw]; ok {
		merged := append(old, s.chats[canonical]...)
		if s.cfg.ChatLogCap > 0 && len(merged) > s.cfg.ChatLogCap {
			merged = merged[len(merged)-s.cfg.ChatLogCap:]
		}
		for i := range merged {
			merged[i].ChatID = canonical
		}
		s.chats[canonical] = merged
		delete(s.chats, raw)
	}
	s.identity.adoptName(raw, canonical)
}

// appendLocked simpan pesan ke log chat: dedup by id, cap FIFO.
func (s *Session) appendLocked(msg model.Message) bool {
	chatLog := s.chats[msg.ChatID]
	for _, existing := range chatLog {
		if existing.ID == msg.ID {
			return false
		}
	}
	chatLog = append(chatLog, msg)
	if s.cfg.ChatLogCap > 0 && len(chatLog) > s.cfg.ChatLogCap {
		chatLog = chatLog[len(chatLog)-s.cfg.ChatLogCap:]
	}
	s.chats[msg.ChatID] = chatLog
	return true
}

// --------------------------- accessors -----------------------------------

func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EffectiveStatus status untuk response HTTP: open/connecting/close.
// Kalau masih ada transport handle hidup padahal state sudah close,
// anggap connecting (status close-nya stale).
func (s *Session) EffectiveStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateOpen:
		return "open"
	case StateConnecting, StateAwaitingQR:
		return "connecting"
	default:
		if s.conn != nil {
			return "connecting"
		}
		return "close"
	}
}

func (s *Session) InsecureActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insecureMode
}

func (s *Session) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectAttempts
}

// Messages copy log satu chat (chatID boleh raw, di-resolve dulu).
func (s *Session) Messages(chatID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	canonical := s.identity.Canonical(chatID, "")
	chatLog := s.chats[canonical]
	out := make([]model.Message, len(chatLog))
	copy(out, chatLog)
	return out
}

// MessagesByChat copy seluruh log per-chat.
func (s *Session) MessagesByChat() map[string][]model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]model.Message, len(s.chats))
	for chatID, chatLog := range s.chats {
		cp := make([]model.Message, len(chatLog))
		copy(cp, chatLog)
		out[chatID] = cp
	}
	return out
}

func (s *Session) DisplayNames() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.snapshotNames()
}

func (s *Session) currentConn() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) connectionDataLocked() ConnectionData {
	return ConnectionData{
		State:    s.state.String(),
		Attempts: s.reconnectAttempts,
		Insecure: s.insecureMode,
	}
}

// extractText precedence tetap antar varian payload:
// plain text, extended text, caption image/video/document, reaction.
func extractText(ev InboundMessage) string {
	switch {
	case ev.Conversation != "":
		return ev.Conversation
	case ev.ExtendedText != "":
		return ev.ExtendedText
	case ev.ImageCaption != "":
		return ev.ImageCaption
	case ev.VideoCaption != "":
		return ev.VideoCaption
	case ev.DocumentCaption != "":
		return ev.DocumentCaption
	case ev.Reaction != "":
		return ev.Reaction
	default:
		return ""
	}
}

// downloadableKind: media di-download hanya untuk image/sticker/audio.
func downloadableKind(kind MessageKind) bool {
	switch kind {
	case KindImage, KindSticker, KindAudio:
		return true
	default:
		return false
	}
}
