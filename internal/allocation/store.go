package allocation

import (
	"context"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
)

// Store persists rooms and assignments. The Allocator calls it while
// holding the room lock, after the ledger accepted the change and before
// the registry publishes it; a Store error undoes the ledger change.
type Store interface {
	InsertRoom(ctx context.Context, room *model.Room) error
	UpdateRoom(ctx context.Context, room *model.Room) error
	// DeleteRoom removes the room and every assignment that references it.
	DeleteRoom(ctx context.Context, id string) error

	InsertAssignment(ctx context.Context, a *model.Assignment) error
	UpdateAssignment(ctx context.Context, a *model.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
}

// NopStore keeps everything in memory only.
type NopStore struct{}

func (NopStore) InsertRoom(context.Context, *model.Room) error             { return nil }
func (NopStore) UpdateRoom(context.Context, *model.Room) error             { return nil }
func (NopStore) DeleteRoom(context.Context, string) error                  { return nil }
func (NopStore) InsertAssignment(context.Context, *model.Assignment) error { return nil }
func (NopStore) UpdateAssignment(context.Context, *model.Assignment) error { return nil }
func (NopStore) DeleteAssignment(context.Context, string) error            { return nil }
