package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{ nopStore }

func (brokenStore) UpdateBuilding(context.Context, *model.Building) error {
	return errors.New("disk full")
}

func params(name string) BuildingParams {
	return BuildingParams{
		Name:           name,
		TotalRooms:     12,
		TotalRestrooms: 4,
		TotalKitchens:  1,
		DailyRate:      decimal.RequireFromString("150000.50"),
	}
}

func TestCatalogCRUD(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	north, err := c.Create(ctx, params("North"))
	require.NoError(t, err)
	_, err = c.Create(ctx, params("East"))
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "East", list[0].Name)
	assert.Equal(t, "North", list[1].Name)

	p := params("North Wing")
	p.TotalKitchens = 2
	updated, err := c.Update(ctx, north.ID, p)
	require.NoError(t, err)
	assert.Equal(t, "North Wing", updated.Name)
	assert.Equal(t, north.CreatedAt, updated.CreatedAt)

	got, err := c.Get(north.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalKitchens)
	assert.True(t, got.DailyRate.Equal(decimal.RequireFromString("150000.5")))

	require.NoError(t, c.Delete(ctx, north.ID))
	_, err = c.Get(north.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, north.ID), ErrNotFound)
	_, err = c.Update(ctx, north.ID, p)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogRejectsNegativeValues(t *testing.T) {
	c := New(nil)
	p := params("South")
	p.TotalRooms = -1
	_, err := c.Create(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidBuilding)

	p = params("South")
	p.DailyRate = decimal.NewFromInt(-5)
	_, err = c.Create(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidBuilding)
	assert.Empty(t, c.List())
}

func TestCatalogStoreFailureKeepsOldValue(t *testing.T) {
	c := New(brokenStore{})
	ctx := context.Background()
	b, err := c.Create(ctx, params("West"))
	require.NoError(t, err)

	_, err = c.Update(ctx, b.ID, params("Renamed"))
	assert.Error(t, err)

	got, err := c.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "West", got.Name)
}

func TestCatalogRestore(t *testing.T) {
	c := New(nil)
	c.Restore([]model.Building{{ID: "b1", Name: "Old"}, {ID: "b2", Name: "New"}})
	got, err := c.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Name)
	assert.Len(t, c.List(), 2)
}
