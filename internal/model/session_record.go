package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord adalah satu baris di recovery list.
// Dipakai hanya untuk rebuild session set di memory saat restart,
// bukan untuk restore koneksi live.
type SessionRecord struct {
	ID            string
	DeviceJID     string
	LastUpdatedAt time.Time
}

// SessionStore menyimpan recovery list di Postgres (table session_records).
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// EnsureSchema membuat table kalau belum ada.
func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	schema := `
        CREATE TABLE IF NOT EXISTS session_records (
            session_id      VARCHAR(255) PRIMARY KEY,
            device_jid      VARCHAR(255) NOT NULL DEFAULT '',
            last_updated_at TIMESTAMP NOT NULL DEFAULT NOW()
        );

        CREATE INDEX IF NOT EXISTS idx_session_records_updated ON session_records(last_updated_at);
    `
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure session_records schema: %w", err)
	}
	return nil
}

func (s *SessionStore) List(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, device_jid, last_updated_at FROM session_records ORDER BY last_updated_at`)
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.DeviceJID, &rec.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SessionStore) Upsert(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO session_records (session_id, last_updated_at)
        VALUES ($1, NOW())
        ON CONFLICT (session_id) DO UPDATE SET last_updated_at = NOW()`, id)
	if err != nil {
		return fmt.Errorf("upsert session record %s: %w", id, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_records WHERE session_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session record %s: %w", id, err)
	}
	return nil
}

// SetDeviceJID menyimpan JID device hasil pairing, supaya facade bisa
// menemukan kembali credential store milik session ini setelah restart.
func (s *SessionStore) SetDeviceJID(ctx context.Context, id, jid string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE session_records SET device_jid = $2, last_updated_at = NOW()
        WHERE session_id = $1`, id, jid)
	if err != nil {
		return fmt.Errorf("set device jid for %s: %w", id, err)
	}
	return nil
}

func (s *SessionStore) DeviceJID(ctx context.Context, id string) (string, error) {
	var jid string
	err := s.db.QueryRowContext(ctx,
		`SELECT device_jid FROM session_records WHERE session_id = $1`, id).Scan(&jid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get device jid for %s: %w", id, err)
	}
	return jid, nil
}
