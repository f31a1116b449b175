package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"gowa-gateway/internal/model"
)

// RecoveryStore adalah recovery list yang persisted: cuma dipakai untuk
// rebuild daftar session saat restart, bukan untuk restore koneksi live.
type RecoveryStore interface {
	List(ctx context.Context) ([]model.SessionRecord, error)
	Upsert(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Registry memiliki semua Session secara eksklusif. Dibuat eksplisit di
// composition root dan dioper by reference ke HTTP/event layer — tidak ada
// singleton process-wide.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	status      AggregateStatus
	qrBySession map[string]string

	facade ConnectionFacade
	store  RecoveryStore
	sink   EventSink
	cfg    SessionConfig
}

func NewRegistry(facade ConnectionFacade, store RecoveryStore, sink EventSink, cfg SessionConfig) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		status:      StatusOffline,
		qrBySession: make(map[string]string),
		facade:      facade,
		store:       store,
		sink:        sink,
		cfg:         cfg,
	}
}

// Restore recreate session set dari recovery list saat boot.
// Session hasil restore tidak auto-connect.
func (r *Registry) Restore(ctx context.Context) error {
	records, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}
	log.Printf("Found %d saved sessions in recovery list", len(records))
	for _, rec := range records {
		if _, err := r.CreateSession(ctx, rec.ID); err != nil {
			log.Printf("⚠ failed to restore session %s: %v", rec.ID, err)
		}
	}
	return nil
}

// CreateSession daftarkan session baru dalam state Disconnected.
// Idempotent: kalau sudah ada, return yang lama. Tidak auto-connect.
func (r *Registry) CreateSession(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrValidation
	}

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	sess := newSession(id, r.facade, r.cfg, r.onSessionEvent)
	r.sessions[id] = sess
	r.mu.Unlock()

	// persist ke recovery list; gagal persist tidak membatalkan session
	// (in-memory tetap jalan, restart berikutnya saja yang kehilangan id)
	if err := r.store.Upsert(ctx, id); err != nil {
		log.Printf("⚠ failed to persist session %s to recovery list: %v", id, err)
		r.sink.Publish(newEvent(EventError, id, ErrorData{Code: "PERSIST_FAILED", Message: err.Error()}))
	}

	log.Printf("✓ Session created: %s", id)
	r.sink.Publish(newEvent(EventConnection, id, ConnectionData{State: StateDisconnected.String()}))
	r.RecomputeStatus()
	return sess, nil
}

// ConnectSession create kalau belum ada, lalu mulai connect.
func (r *Registry) ConnectSession(ctx context.Context, id string) error {
	sess, err := r.CreateSession(ctx, id)
	if err != nil {
		return err
	}
	return sess.Connect(ctx)
}

// DisconnectSession tutup koneksi, credentials dipertahankan.
func (r *Registry) DisconnectSession(ctx context.Context, id string) error {
	sess, err := r.Session(id)
	if err != nil {
		return err
	}
	sess.Disconnect(ctx, false)
	return nil
}

// DestroySession logout penuh: credentials di-invalidate, session dihapus
// dari registry dan recovery list, cache QR-nya dibuang.
func (r *Registry) DestroySession(ctx context.Context, id string) error {
	sess, err := r.Session(id)
	if err != nil {
		return err
	}

	sess.Disconnect(ctx, true)

	if err := r.facade.EraseCredentials(ctx, id); err != nil {
		log.Printf("⚠ failed to erase credentials for %s: %v", id, err)
	}

	r.mu.Lock()
	delete(r.sessions, id)
	delete(r.qrBySession, id)
	r.mu.Unlock()

	if err := r.store.Delete(ctx, id); err != nil {
		log.Printf("⚠ failed to remove %s from recovery list: %v", id, err)
	}

	fmt.Println("✓ Session destroyed:", id)
	r.RecomputeStatus()
	return nil
}

// Session lookup by id.
func (r *Registry) Session(id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrValidation
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ListSessions rekonsiliasi dulu dengan recovery list (id yang ada di disk
// tapi hilang dari memory di-recreate, tanpa connect), baru return view-nya.
func (r *Registry) ListSessions(ctx context.Context) ([]model.SessionView, error) {
	records, err := r.store.List(ctx)
	if err != nil {
		log.Printf("⚠ failed to read recovery list: %v", err)
	}
	for _, rec := range records {
		r.mu.RLock()
		_, ok := r.sessions[rec.ID]
		r.mu.RUnlock()
		if !ok {
			if _, err := r.CreateSession(ctx, rec.ID); err != nil {
				log.Printf("⚠ failed to recreate session %s: %v", rec.ID, err)
			}
		}
	}

	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	views := make([]model.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, r.viewOf(sess))
	}
	return views, nil
}

// SessionView view lengkap satu session.
func (r *Registry) SessionView(id string) (model.SessionView, error) {
	sess, err := r.Session(id)
	if err != nil {
		return model.SessionView{}, err
	}
	return r.viewOf(sess), nil
}

func (r *Registry) viewOf(sess *Session) model.SessionView {
	var qr *string
	r.mu.RLock()
	if code, ok := r.qrBySession[sess.ID]; ok {
		qr = &code
	}
	r.mu.RUnlock()

	return model.SessionView{
		ID:             sess.ID,
		Status:         sess.EffectiveStatus(),
		QRCode:         qr,
		MessagesByChat: sess.MessagesByChat(),
		DisplayNames:   sess.DisplayNames(),
	}
}

// SendMessage kirim lewat session yang Open.
func (r *Registry) SendMessage(ctx context.Context, sessionID, chatID, text string, media []byte, mimetype string) (model.Message, error) {
	sess, err := r.Session(sessionID)
	if err != nil {
		return model.Message{}, err
	}
	return sess.Send(ctx, chatID, text, media, mimetype)
}

// Status status gabungan saat ini.
func (r *Registry) Status() AggregateStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// QRFor pairing payload terakhir session (kalau masih ada).
func (r *Registry) QRFor(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.qrBySession[id]
	return code, ok
}

// RecomputeStatus scan O(n) semua session; emit event status hanya kalau
// benar-benar berubah.
func (r *Registry) RecomputeStatus() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	next := StatusOffline
	if len(sessions) > 0 {
		next = StatusIdle
	}
	for _, sess := range sessions {
		if sess.State() == StateOpen {
			next = StatusOnline
			break
		}
	}

	r.mu.Lock()
	changed := r.status != next
	r.status = next
	r.mu.Unlock()

	if changed {
		log.Printf("Aggregate status -> %s", next)
		r.sink.Publish(newEvent(EventStatus, "", StatusData{Status: next}))
	}
}

// onSessionEvent: hook semua event dari session sebelum diteruskan ke sink.
// Di sini registry memelihara cache QR dan aggregate status.
func (r *Registry) onSessionEvent(ev Event) {
	switch data := ev.Data.(type) {
	case QRData:
		r.mu.Lock()
		r.qrBySession[ev.SessionID] = data.Code
		r.mu.Unlock()
	case ConnectionData:
		// pairing image basi begitu koneksi open ataupun tutup
		if data.State == StateOpen.String() || data.State == StateDisconnected.String() {
			r.mu.Lock()
			delete(r.qrBySession, ev.SessionID)
			r.mu.Unlock()
		}
	}

	r.sink.Publish(ev)

	if ev.Type == EventConnection {
		r.RecomputeStatus()
	}
}
