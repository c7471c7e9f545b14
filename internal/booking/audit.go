package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit statuses.
const (
	AuditSubmitted = "submitted"
	AuditFailed    = "failed"
)

// AuditEvent is an immutable record of a submission attempt.
type AuditEvent struct {
	ID        string
	SessionID string
	Status    string
	Transport string
	Payload   json.RawMessage
	Error     string
	CreatedAt time.Time
}

// AuditLog writes submission attempts to booking_audit_events.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record stores event. A nil AuditLog drops it.
func (a *AuditLog) Record(ctx context.Context, event AuditEvent) error {
	if a == nil || a.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO booking_audit_events (
			id, session_id, status, transport, payload, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := a.db.ExecContext(ctx, query,
		event.ID,
		event.SessionID,
		event.Status,
		event.Transport,
		[]byte(event.Payload),
		nullString(event.Error),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("booking: failed to log audit event: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
