package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/booking-widget/pkg/logging"
)

// OutboxEntry is a submission waiting to be delivered.
type OutboxEntry struct {
	ID         uuid.UUID
	SessionID  string
	Submission Submission
	Attempts   int
	CreatedAt  time.Time
}

type outboxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists submissions in booking_outbox for reliable delivery.
type OutboxStore struct {
	db outboxDB
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &OutboxStore{db: pool}
}

func newOutboxStoreWithDB(d outboxDB) *OutboxStore {
	return &OutboxStore{db: d}
}

func (s *OutboxStore) Insert(ctx context.Context, sub Submission) (uuid.UUID, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("booking: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO booking_outbox (id, session_id, payload)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.Exec(ctx, query, id, sub.SessionID, data); err != nil {
		return uuid.Nil, fmt.Errorf("booking: insert outbox: %w", err)
	}
	return id, nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32, maxAttempts int) ([]OutboxEntry, error) {
	query := `
		SELECT id, session_id, payload, attempts, created_at
		FROM booking_outbox
		WHERE delivered_at IS NULL AND attempts < $2
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("booking: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.SessionID, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("booking: scan outbox: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Submission); err != nil {
			return nil, fmt.Errorf("booking: decode outbox %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE booking_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("booking: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkFailed counts a failed delivery attempt and keeps the last error.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	query := `
		UPDATE booking_outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, id, cause.Error()); err != nil {
		return fmt.Errorf("booking: mark failed: %w", err)
	}
	return nil
}

// OutboxSubmitter records submissions in the outbox; a Deliverer forwards them.
type OutboxSubmitter struct {
	store *OutboxStore
}

func NewOutboxSubmitter(store *OutboxStore) *OutboxSubmitter {
	return &OutboxSubmitter{store: store}
}

func (o *OutboxSubmitter) Name() string { return "outbox" }

func (o *OutboxSubmitter) Submit(ctx context.Context, sub Submission) error {
	_, err := o.store.Insert(ctx, sub)
	return err
}

// Deliverer polls the outbox and forwards entries to the downstream submitter.
type Deliverer struct {
	store       *OutboxStore
	next        Submitter
	logger      *logging.Logger
	batchSize   int32
	maxAttempts int
	interval    time.Duration
}

func NewDeliverer(store *OutboxStore, next Submitter, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:       store,
		next:        next,
		logger:      logger,
		batchSize:   25,
		maxAttempts: 10,
		interval:    5 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithMaxAttempts(n int) *Deliverer {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.next == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain delivers one batch and returns how many entries went through.
func (d *Deliverer) drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.next.Submit(ctx, entry.Submission); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "entry_id", entry.ID, "attempts", entry.Attempts+1, "transport", d.next.Name())
			if markErr := d.store.MarkFailed(ctx, entry.ID, err); markErr != nil {
				d.logger.Error("failed to record outbox failure", "error", markErr, "entry_id", entry.ID)
			}
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "entry_id", entry.ID)
		} else if ok {
			delivered++
			d.logger.Debug("outbox delivered", "entry_id", entry.ID, "session_id", entry.SessionID)
		}
	}
	return delivered
}

var _ Submitter = (*OutboxSubmitter)(nil)
