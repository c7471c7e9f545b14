// Package catalog serves the services, specialists and venues a client can book.
package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned for unknown ids.
var ErrNotFound = errors.New("catalog: not found")

// Service is a bookable procedure offered by a provider.
type Service struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Category        string          `json:"category"`
	ProviderID      string          `json:"provider_id"`
}

// Provider is a specialist and the venues they receive clients at.
type Provider struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	VenueIDs []string `json:"venue_ids"`
}

// Venue is a clinic location.
type Venue struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Catalog is implemented by Repository and MemoryCatalog.
type Catalog interface {
	GetService(ctx context.Context, id string) (*Service, error)
	ListServices(ctx context.Context, providerID, category string) ([]Service, error)
	GetProvider(ctx context.Context, id string) (*Provider, error)
	GetVenue(ctx context.Context, id string) (*Venue, error)
	ListVenues(ctx context.Context, ids []string) ([]Venue, error)
}

// ServesAt reports whether the provider receives clients at venueID.
func (p Provider) ServesAt(venueID string) bool {
	for _, id := range p.VenueIDs {
		if id == venueID {
			return true
		}
	}
	return false
}
