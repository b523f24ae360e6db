// Package catalog keeps the dormitory buildings. Buildings are operator
// data: the allocation engine reads them but never changes them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a building does not exist.
	ErrNotFound = errors.New("building not found")

	// ErrInvalidBuilding is returned for negative totals or rates.
	ErrInvalidBuilding = errors.New("building totals and rate must be non-negative")
)

// BuildingParams describes a building to create or edit.
type BuildingParams struct {
	Name           string
	TotalRooms     int
	TotalRestrooms int
	TotalKitchens  int
	DailyRate      decimal.Decimal
}

func (p BuildingParams) validate() error {
	if p.TotalRooms < 0 || p.TotalRestrooms < 0 || p.TotalKitchens < 0 || p.DailyRate.IsNegative() {
		return ErrInvalidBuilding
	}
	return nil
}

// Store persists buildings.
type Store interface {
	InsertBuilding(ctx context.Context, b *model.Building) error
	UpdateBuilding(ctx context.Context, b *model.Building) error
	DeleteBuilding(ctx context.Context, id string) error
}

type nopStore struct{}

func (nopStore) InsertBuilding(context.Context, *model.Building) error { return nil }
func (nopStore) UpdateBuilding(context.Context, *model.Building) error { return nil }
func (nopStore) DeleteBuilding(context.Context, string) error          { return nil }

// Catalog is an in-memory building table with optional write-through.
type Catalog struct {
	store Store
	now   func() time.Time

	mu        sync.RWMutex
	buildings map[string]*model.Building
}

// New constructs a Catalog. A nil store keeps buildings in memory only.
func New(store Store) *Catalog {
	if store == nil {
		store = nopStore{}
	}
	return &Catalog{
		store:     store,
		now:       time.Now,
		buildings: make(map[string]*model.Building),
	}
}

// Create adds a building.
func (c *Catalog) Create(ctx context.Context, p BuildingParams) (*model.Building, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	b := &model.Building{
		ID:             uuid.New().String(),
		Name:           p.Name,
		TotalRooms:     p.TotalRooms,
		TotalRestrooms: p.TotalRestrooms,
		TotalKitchens:  p.TotalKitchens,
		DailyRate:      p.DailyRate,
		CreatedAt:      c.now().UTC(),
	}
	if err := c.store.InsertBuilding(ctx, b); err != nil {
		return nil, fmt.Errorf("persist building: %w", err)
	}

	c.mu.Lock()
	c.buildings[b.ID] = b
	c.mu.Unlock()

	cp := *b
	return &cp, nil
}

// Update replaces the editable fields of a building.
func (c *Catalog) Update(ctx context.Context, id string, p BuildingParams) (*model.Building, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.buildings[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *cur
	next.Name = p.Name
	next.TotalRooms = p.TotalRooms
	next.TotalRestrooms = p.TotalRestrooms
	next.TotalKitchens = p.TotalKitchens
	next.DailyRate = p.DailyRate

	if err := c.store.UpdateBuilding(ctx, &next); err != nil {
		return nil, fmt.Errorf("persist building: %w", err)
	}
	c.buildings[id] = &next

	cp := next
	return &cp, nil
}

// Delete removes a building. The caller guarantees it has no rooms.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buildings[id]; !ok {
		return ErrNotFound
	}
	if err := c.store.DeleteBuilding(ctx, id); err != nil {
		return fmt.Errorf("delete building: %w", err)
	}
	delete(c.buildings, id)
	return nil
}

// Get returns one building or ErrNotFound.
func (c *Catalog) Get(id string) (*model.Building, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buildings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// List returns every building ordered by name.
func (c *Catalog) List() []model.Building {
	c.mu.RLock()
	out := make([]model.Building, 0, len(c.buildings))
	for _, b := range c.buildings {
		out = append(out, *b)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Restore loads persisted buildings without writing to the store.
func (c *Catalog) Restore(bs []model.Building) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range bs {
		b := bs[i]
		c.buildings[b.ID] = &b
	}
}
