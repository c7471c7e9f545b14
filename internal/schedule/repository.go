package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/booking-widget/internal/availability"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository reads and writes schedules in the day_schedules and
// schedule_cells tables.
type Repository struct {
	db db
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithDB(d db) *Repository {
	return &Repository{db: d}
}

const dayScheduleQuery = `
	SELECT d.date, d.status, COALESCE(c.slot_time, ''), COALESCE(c.status, '')
	FROM day_schedules d
	LEFT JOIN schedule_cells c ON c.provider_id = d.provider_id AND c.date = d.date
	WHERE d.provider_id = $1 AND d.date BETWEEN $2::date AND $3::date
	ORDER BY d.date, c.slot_time
`

// DaySchedule implements Source.
func (r *Repository) DaySchedule(ctx context.Context, providerID, date string) (*availability.DaySchedule, error) {
	days, err := r.Range(ctx, providerID, date, date)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}
	return &days[0], nil
}

// Range returns the schedules between from and to inclusive, ordered by date.
// Dates without a schedule are omitted.
func (r *Repository) Range(ctx context.Context, providerID, from, to string) ([]availability.DaySchedule, error) {
	rows, err := r.db.Query(ctx, dayScheduleQuery, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("schedule: query %s %s..%s: %w", providerID, from, to, err)
	}
	defer rows.Close()

	var days []availability.DaySchedule
	for rows.Next() {
		var (
			date       time.Time
			status     string
			slotTime   string
			cellStatus string
		)
		if err := rows.Scan(&date, &status, &slotTime, &cellStatus); err != nil {
			return nil, fmt.Errorf("schedule: scan: %w", err)
		}
		key := date.Format("2006-01-02")
		if n := len(days); n == 0 || days[n-1].Date != key {
			days = append(days, availability.DaySchedule{
				Date:   key,
				Status: availability.DayStatus(status),
				Cells:  []availability.TimeCell{},
			})
		}
		if slotTime != "" {
			day := &days[len(days)-1]
			day.Cells = append(day.Cells, availability.TimeCell{
				Time:   slotTime,
				Status: availability.CellStatus(cellStatus),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: rows: %w", err)
	}
	return days, nil
}

// Upsert replaces a provider's schedule for one date.
func (r *Repository) Upsert(ctx context.Context, providerID string, day availability.DaySchedule) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("schedule: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO day_schedules (provider_id, date, status)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (provider_id, date) DO UPDATE SET status = EXCLUDED.status, updated_at = now()
	`, providerID, day.Date, string(day.Status)); err != nil {
		return fmt.Errorf("schedule: upsert day %s: %w", day.Date, err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM schedule_cells WHERE provider_id = $1 AND date = $2::date`, providerID, day.Date); err != nil {
		return fmt.Errorf("schedule: clear cells %s: %w", day.Date, err)
	}
	for _, cell := range day.Cells {
		if _, err = tx.Exec(ctx, `
			INSERT INTO schedule_cells (provider_id, date, slot_time, status)
			VALUES ($1, $2::date, $3, $4)
		`, providerID, day.Date, cell.Time, string(cell.Status)); err != nil {
			return fmt.Errorf("schedule: insert cell %s %s: %w", day.Date, cell.Time, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("schedule: commit: %w", err)
	}
	return nil
}
