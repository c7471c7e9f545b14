package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Repository reads the catalog from Postgres through database/sql.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetService(ctx context.Context, id string) (*Service, error) {
	var s Service
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, duration_minutes, unit_price, category, provider_id
		FROM services WHERE id = $1`, id).Scan(
		&s.ID, &s.Name, &s.DurationMinutes, &s.UnitPrice, &s.Category, &s.ProviderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: service %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get service %s: %w", id, err)
	}
	return &s, nil
}

// ListServices returns a provider's services ordered by category and name. An
// empty category lists all of them.
func (r *Repository) ListServices(ctx context.Context, providerID, category string) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, duration_minutes, unit_price, category, provider_id
		FROM services
		WHERE provider_id = $1 AND ($2 = '' OR category = $2)
		ORDER BY category, name`, providerID, category)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	out := []Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.UnitPrice, &s.Category, &s.ProviderID); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetProvider(ctx context.Context, id string) (*Provider, error) {
	var p Provider
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, category, venue_ids
		FROM providers WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.Category, pq.Array(&p.VenueIDs))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get provider %s: %w", id, err)
	}
	if p.VenueIDs == nil {
		p.VenueIDs = []string{}
	}
	return &p, nil
}

func (r *Repository) GetVenue(ctx context.Context, id string) (*Venue, error) {
	var v Venue
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, address FROM venues WHERE id = $1`, id).Scan(&v.ID, &v.Name, &v.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: venue %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get venue %s: %w", id, err)
	}
	return &v, nil
}

// ListVenues returns the venues with the given ids, ordered by name.
func (r *Repository) ListVenues(ctx context.Context, ids []string) ([]Venue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, address FROM venues
		WHERE id = ANY($1)
		ORDER BY name`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("catalog: list venues: %w", err)
	}
	defer rows.Close()

	out := []Venue{}
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Address); err != nil {
			return nil, fmt.Errorf("catalog: scan venue: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
