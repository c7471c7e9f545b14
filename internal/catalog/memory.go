package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// MemoryCatalog is a read-only catalog loaded from a seed document.
type MemoryCatalog struct {
	services  map[string]Service
	providers map[string]Provider
	venues    map[string]Venue
}

type seedDocument struct {
	Services  []Service  `json:"services"`
	Providers []Provider `json:"providers"`
	Venues    []Venue    `json:"venues"`
}

// NewMemoryCatalog indexes the given records by id.
func NewMemoryCatalog(services []Service, providers []Provider, venues []Venue) *MemoryCatalog {
	c := &MemoryCatalog{
		services:  make(map[string]Service, len(services)),
		providers: make(map[string]Provider, len(providers)),
		venues:    make(map[string]Venue, len(venues)),
	}
	for _, s := range services {
		c.services[s.ID] = s
	}
	for _, p := range providers {
		c.providers[p.ID] = p
	}
	for _, v := range venues {
		c.venues[v.ID] = v
	}
	return c
}

// LoadJSON reads {"services":[...],"providers":[...],"venues":[...]}.
func LoadJSON(r io.Reader) (*MemoryCatalog, error) {
	var doc seedDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode seed: %w", err)
	}
	return NewMemoryCatalog(doc.Services, doc.Providers, doc.Venues), nil
}

// LoadFile is LoadJSON over a file path.
func LoadFile(path string) (*MemoryCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open seed: %w", err)
	}
	defer f.Close()
	return LoadJSON(f)
}

func (c *MemoryCatalog) GetService(_ context.Context, id string) (*Service, error) {
	s, ok := c.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: service %s", ErrNotFound, id)
	}
	return &s, nil
}

func (c *MemoryCatalog) ListServices(_ context.Context, providerID, category string) ([]Service, error) {
	out := []Service{}
	for _, s := range c.services {
		if s.ProviderID != providerID || (category != "" && s.Category != category) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (c *MemoryCatalog) GetProvider(_ context.Context, id string) (*Provider, error) {
	p, ok := c.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}
	p.VenueIDs = append([]string{}, p.VenueIDs...)
	return &p, nil
}

func (c *MemoryCatalog) GetVenue(_ context.Context, id string) (*Venue, error) {
	v, ok := c.venues[id]
	if !ok {
		return nil, fmt.Errorf("%w: venue %s", ErrNotFound, id)
	}
	return &v, nil
}

func (c *MemoryCatalog) ListVenues(_ context.Context, ids []string) ([]Venue, error) {
	out := []Venue{}
	for _, id := range ids {
		if v, ok := c.venues[id]; ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
