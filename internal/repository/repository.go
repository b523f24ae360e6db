// Package repository persists the dormitory data in PostgreSQL.
// It uses pgx directly (no ORM) and implements the write-through store
// interfaces of the catalog, allocation and reservation packages.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a row to update or delete does not exist.
var ErrNotFound = errors.New("not found")

// ErrBuildingHasRooms is returned when deleting a building that still owns rooms.
var ErrBuildingHasRooms = errors.New("building still has rooms")

// Snapshot is everything needed to rebuild the in-memory state at startup.
type Snapshot struct {
	Buildings   []model.Building
	Rooms       []model.Room
	Assignments []model.Assignment
	Requests    []model.ReservationRequest
}

// Repositories bundles the per-table repositories over one pool.
type Repositories struct {
	Buildings   *BuildingRepository
	Rooms       *RoomRepository
	Assignments *AssignmentRepository
	Requests    *RequestRepository
}

// New constructs all repositories.
func New(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		Buildings:   NewBuildingRepository(db),
		Rooms:       NewRoomRepository(db),
		Assignments: NewAssignmentRepository(db),
		Requests:    NewRequestRepository(db),
	}
}

// AllocationStore returns the store the allocator writes rooms and assignments through.
func (r *Repositories) AllocationStore() *AllocationStore {
	return &AllocationStore{RoomRepository: r.Rooms, AssignmentRepository: r.Assignments}
}

// Load reads every table.
func (r *Repositories) Load(ctx context.Context) (*Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.Buildings, err = r.Buildings.List(ctx); err != nil {
		return nil, err
	}
	if s.Rooms, err = r.Rooms.List(ctx); err != nil {
		return nil, err
	}
	if s.Assignments, err = r.Assignments.List(ctx); err != nil {
		return nil, err
	}
	if s.Requests, err = r.Requests.List(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

// AllocationStore joins the room and assignment repositories into the
// single store the allocator expects.
type AllocationStore struct {
	*RoomRepository
	*AssignmentRepository
}

// inTx runs fn inside a transaction, committing only if fn succeeds.
func inTx(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func dateOrNil(d *model.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}

func dateFromNullable(t *time.Time) *model.Date {
	if t == nil {
		return nil
	}
	d := model.DateOf(*t)
	return &d
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
