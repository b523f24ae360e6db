// Package allocation implements the dormitory allocation core: a per-day
// capacity ledger, the registry of admitted stays, and the allocator that
// is the only path allowed to change either of them.
//
// Stays are half-open date ranges [check-in, check-out). Admission, update
// and removal are serialised per room; different rooms proceed in parallel.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/lock"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdmitParams describes a stay to admit.
type AdmitParams struct {
	PersonID      string
	PersonType    model.PersonType
	RoomID        string
	CheckIn       model.Date
	CheckOut      model.Date
	PaymentStatus model.PaymentStatus
}

// UpdateParams lists the fields of an assignment to change. Zero values
// keep the current value.
type UpdateParams struct {
	RoomID        string
	CheckIn       *model.Date
	CheckOut      *model.Date
	PaymentStatus model.PaymentStatus
}

// RoomParams describes a room to create or edit. BuildingID is ignored on edit.
type RoomParams struct {
	BuildingID string
	Name       string
	Capacity   int
	CostPerDay decimal.Decimal
}

// Allocator is the sole gatekeeper for assignments.
type Allocator struct {
	ledger   *Ledger
	registry *Registry
	store    Store
	logger   *log.Logger
	now      func() time.Time

	// roomLocks must be taken before mu.
	roomLocks lock.Keyed

	mu    sync.RWMutex
	rooms map[string]*model.Room
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithStore makes every room and assignment change write through to s.
func WithStore(s Store) Option {
	return func(a *Allocator) { a.store = s }
}

// WithLogger sets where consistency violations are reported.
func WithLogger(l *log.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithClock overrides the clock used for timestamps and "today".
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// New constructs an Allocator with an empty ledger and registry.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		ledger:   NewLedger(),
		registry: NewRegistry(),
		store:    NopStore{},
		logger:   log.Default(),
		now:      time.Now,
		rooms:    make(map[string]*model.Room),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ledger exposes the read-only occupancy queries.
func (a *Allocator) Ledger() *Ledger { return a.ledger }

// Registry exposes the read-only assignment queries.
func (a *Allocator) Registry() *Registry { return a.registry }

// Today is the current calendar date according to the allocator clock.
func (a *Allocator) Today() model.Date { return model.DateOf(a.now()) }

// ─── Rooms ────────────────────────────────────────────────────────────────────

// AddRoom registers a new room with an empty ledger row.
func (a *Allocator) AddRoom(ctx context.Context, p RoomParams) (*model.Room, error) {
	if p.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	room := &model.Room{
		ID:         uuid.New().String(),
		BuildingID: p.BuildingID,
		Name:       p.Name,
		Capacity:   p.Capacity,
		CostPerDay: p.CostPerDay,
		CreatedAt:  a.now().UTC(),
	}

	unlock := a.roomLocks.Lock(room.ID)
	defer unlock()

	if err := a.store.InsertRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("persist room: %w", err)
	}

	// ledger rows and the room table change together under mu
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ledger.addRoom(room.ID, room.Capacity); err != nil {
		return nil, err
	}
	a.rooms[room.ID] = room

	cp := *room
	return &cp, nil
}

// UpdateRoom edits a room's name, cost and capacity. Capacity may not drop
// below the busiest day currently booked.
func (a *Allocator) UpdateRoom(ctx context.Context, id string, p RoomParams) (*model.Room, error) {
	if p.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	unlock := a.roomLocks.Lock(id)
	defer unlock()

	cur, err := a.Room(id)
	if err != nil {
		return nil, err
	}
	next := *cur
	next.Name = p.Name
	next.Capacity = p.Capacity
	next.CostPerDay = p.CostPerDay

	if err := a.ledger.setCapacity(id, next.Capacity); err != nil {
		return nil, err
	}
	if err := a.store.UpdateRoom(ctx, &next); err != nil {
		a.undo(a.ledger.setCapacity(id, cur.Capacity))
		return nil, fmt.Errorf("persist room: %w", err)
	}

	a.mu.Lock()
	a.rooms[id] = &next
	a.mu.Unlock()

	cp := next
	return &cp, nil
}

// RemoveRoom deletes a room that has no current or upcoming tenants.
// Past assignments of the room are deleted with it.
func (a *Allocator) RemoveRoom(ctx context.Context, id string) error {
	unlock := a.roomLocks.Lock(id)
	defer unlock()

	if _, err := a.Room(id); err != nil {
		return err
	}
	if n := a.registry.tenants(id, a.Today()); n > 0 {
		return fmt.Errorf("%w: %d current or upcoming assignments", ErrRoomOccupied, n)
	}
	if err := a.store.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.registry.dropRoom(id)
	a.ledger.dropRoom(id)
	delete(a.rooms, id)
	return nil
}

// Room returns one room or ErrUnknownRoom.
func (a *Allocator) Room(id string) (*model.Room, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.rooms[id]
	if !ok {
		return nil, ErrUnknownRoom
	}
	cp := *r
	return &cp, nil
}

// Rooms returns every room ordered by building, then name.
func (a *Allocator) Rooms() []model.Room {
	return a.filterRooms(func(*model.Room) bool { return true })
}

// RoomsInBuilding returns the rooms of one building ordered by name.
func (a *Allocator) RoomsInBuilding(buildingID string) []model.Room {
	return a.filterRooms(func(r *model.Room) bool { return r.BuildingID == buildingID })
}

func (a *Allocator) filterRooms(keep func(*model.Room) bool) []model.Room {
	a.mu.RLock()
	out := make([]model.Room, 0, len(a.rooms))
	for _, r := range a.rooms {
		if keep(r) {
			out = append(out, *r)
		}
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].BuildingID != out[j].BuildingID {
			return out[i].BuildingID < out[j].BuildingID
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Availability returns the free slots of every room in a building over [from, to).
// With onlyFree set, rooms without a free slot are left out.
func (a *Allocator) Availability(buildingID string, from, to model.Date, onlyFree bool) ([]model.RoomAvailability, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	rooms := a.RoomsInBuilding(buildingID)
	out := make([]model.RoomAvailability, 0, len(rooms))
	for _, room := range rooms {
		free, err := a.ledger.AvailableSlots(room.ID, from, to)
		if errors.Is(err, ErrUnknownRoom) {
			continue // removed since the listing
		}
		if err != nil {
			return nil, err
		}
		if onlyFree && free < 1 {
			continue
		}
		out = append(out, model.RoomAvailability{Room: room, Available: free})
	}
	return out, nil
}

// ─── Assignments ──────────────────────────────────────────────────────────────

// Admit creates an assignment if the room has a free slot on every day of
// [CheckIn, CheckOut). On conflict it returns a *CapacityError naming the
// first full day, and nothing is changed.
func (a *Allocator) Admit(ctx context.Context, p AdmitParams) (*model.Assignment, error) {
	if !p.CheckIn.Before(p.CheckOut) {
		return nil, ErrInvalidRange
	}
	if p.PersonID == "" || !p.PersonType.Valid() {
		return nil, ErrUnknownPerson
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = model.PaymentUnpaid
	}
	if !p.PaymentStatus.Valid() {
		return nil, ErrInvalidPaymentStatus
	}

	unlock := a.roomLocks.Lock(p.RoomID)
	defer unlock()

	room, err := a.Room(p.RoomID)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	asg := &model.Assignment{
		ID:            uuid.New().String(),
		PersonID:      p.PersonID,
		PersonType:    p.PersonType,
		RoomID:        room.ID,
		BuildingID:    room.BuildingID,
		CheckIn:       p.CheckIn,
		CheckOut:      p.CheckOut,
		PaymentStatus: p.PaymentStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := a.ledger.reserve(room.ID, asg.ID, asg.CheckIn, asg.CheckOut); err != nil {
		return nil, a.checked(err)
	}
	if err := a.store.InsertAssignment(ctx, asg); err != nil {
		a.undo(a.ledger.release(room.ID, asg.ID, asg.CheckIn, asg.CheckOut))
		return nil, fmt.Errorf("persist assignment: %w", err)
	}
	a.registry.put(asg)

	cp := *asg
	return &cp, nil
}

// Update changes the dates, payment status or room of an assignment. The
// new range is checked without the assignment's own occupancy; on any
// error the assignment and the ledger are left exactly as they were.
func (a *Allocator) Update(ctx context.Context, id string, p UpdateParams) (*model.Assignment, error) {
	if p.PaymentStatus != "" && !p.PaymentStatus.Valid() {
		return nil, ErrInvalidPaymentStatus
	}

	var extra []string
	if p.RoomID != "" {
		extra = append(extra, p.RoomID)
	}
	cur, unlock, err := a.lockAssignment(id, extra...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	next := *cur
	if p.CheckIn != nil {
		next.CheckIn = *p.CheckIn
	}
	if p.CheckOut != nil {
		next.CheckOut = *p.CheckOut
	}
	if p.PaymentStatus != "" {
		next.PaymentStatus = p.PaymentStatus
	}
	if !next.CheckIn.Before(next.CheckOut) {
		return nil, ErrInvalidRange
	}
	if p.RoomID != "" {
		room, err := a.Room(p.RoomID)
		if err != nil {
			return nil, err
		}
		next.RoomID = room.ID
		next.BuildingID = room.BuildingID
	}
	next.UpdatedAt = a.now().UTC()

	restore, err := a.rebook(cur, &next)
	if err != nil {
		return nil, err
	}
	if err := a.store.UpdateAssignment(ctx, &next); err != nil {
		restore()
		return nil, fmt.Errorf("persist assignment: %w", err)
	}
	a.registry.put(&next)

	cp := next
	return &cp, nil
}

// rebook moves the ledger reservation of cur to match next and returns a
// func restoring the previous reservation.
func (a *Allocator) rebook(cur, next *model.Assignment) (func(), error) {
	if cur.RoomID == next.RoomID {
		if cur.CheckIn == next.CheckIn && cur.CheckOut == next.CheckOut {
			return func() {}, nil
		}
		if err := a.ledger.move(next.RoomID, next.ID, next.CheckIn, next.CheckOut); err != nil {
			return nil, a.checked(err)
		}
		return func() {
			a.undo(a.ledger.move(cur.RoomID, cur.ID, cur.CheckIn, cur.CheckOut))
		}, nil
	}

	if err := a.ledger.reserve(next.RoomID, next.ID, next.CheckIn, next.CheckOut); err != nil {
		return nil, a.checked(err)
	}
	if err := a.ledger.release(cur.RoomID, cur.ID, cur.CheckIn, cur.CheckOut); err != nil {
		a.undo(a.ledger.release(next.RoomID, next.ID, next.CheckIn, next.CheckOut))
		return nil, a.checked(err)
	}
	return func() {
		a.undo(a.ledger.release(next.RoomID, next.ID, next.CheckIn, next.CheckOut))
		a.undo(a.ledger.force(cur.RoomID, cur.ID, cur.CheckIn, cur.CheckOut))
	}, nil
}

// Remove deletes an assignment and frees its slots.
func (a *Allocator) Remove(ctx context.Context, id string) (*model.Assignment, error) {
	cur, unlock, err := a.lockAssignment(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := a.ledger.release(cur.RoomID, cur.ID, cur.CheckIn, cur.CheckOut); err != nil {
		return nil, a.checked(err)
	}
	if err := a.store.DeleteAssignment(ctx, id); err != nil {
		a.undo(a.ledger.force(cur.RoomID, cur.ID, cur.CheckIn, cur.CheckOut))
		return nil, fmt.Errorf("delete assignment: %w", err)
	}
	a.registry.delete(id)
	return cur, nil
}

// lockAssignment locks the room currently holding an assignment together
// with extra rooms, and returns the assignment as seen under those locks.
func (a *Allocator) lockAssignment(id string, extra ...string) (*model.Assignment, func(), error) {
	for {
		seen, err := a.registry.Get(id)
		if err != nil {
			return nil, nil, err
		}
		unlock := a.roomLocks.LockAll(append([]string{seen.RoomID}, extra...)...)
		cur, err := a.registry.Get(id)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if cur.RoomID == seen.RoomID {
			return cur, unlock, nil
		}
		// moved to another room in between; lock the new one
		unlock()
	}
}

// ─── Recovery ─────────────────────────────────────────────────────────────────

// Restore loads persisted rooms and assignments without writing to the
// store, then rebuilds the ledger from them.
func (a *Allocator) Restore(rooms []model.Room, assignments []model.Assignment) ([]*CapacityError, error) {
	a.mu.Lock()
	for i := range rooms {
		r := rooms[i]
		a.rooms[r.ID] = &r
	}
	a.mu.Unlock()
	for i := range assignments {
		a.registry.put(&assignments[i])
	}
	return a.Rebuild()
}

// Rebuild re-derives the ledger from the registry. It returns every day on
// which a room holds more occupants than its capacity; such days can only
// come from data written outside the allocator.
func (a *Allocator) Rebuild() ([]*CapacityError, error) {
	for {
		ids := a.roomIDs()
		unlock := a.roomLocks.LockAll(ids...)
		a.mu.Lock()
		if sameKeys(ids, a.rooms) {
			over, err := a.rebuildLocked()
			a.mu.Unlock()
			unlock()
			return over, err
		}
		// a room was added or removed before the locks were taken
		a.mu.Unlock()
		unlock()
	}
}

func (a *Allocator) roomIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.rooms))
	for id := range a.rooms {
		ids = append(ids, id)
	}
	return ids
}

func sameKeys(ids []string, rooms map[string]*model.Room) bool {
	if len(ids) != len(rooms) {
		return false
	}
	for _, id := range ids {
		if _, ok := rooms[id]; !ok {
			return false
		}
	}
	return true
}

func (a *Allocator) rebuildLocked() ([]*CapacityError, error) {
	fresh := NewLedger()
	for _, r := range a.rooms {
		if err := fresh.addRoom(r.ID, r.Capacity); err != nil {
			return nil, err
		}
	}
	var errs []error
	for _, asg := range a.registry.List() {
		if err := fresh.force(asg.RoomID, asg.ID, asg.CheckIn, asg.CheckOut); err != nil {
			errs = append(errs, a.checked(err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	a.ledger.swap(fresh)

	over := a.ledger.overbooked()
	sort.Slice(over, func(i, j int) bool {
		if over[i].RoomID != over[j].RoomID {
			return over[i].RoomID < over[j].RoomID
		}
		return over[i].Day.Before(over[j].Day)
	})
	return over, nil
}

// checked reports consistency violations to the operator log and passes
// err through unchanged.
func (a *Allocator) checked(err error) error {
	if errors.Is(err, ErrConsistencyViolation) {
		a.logger.Printf("allocation: %v", err)
	}
	return err
}

// undo reports a failed compensation step. Compensations restore a state
// the ledger held a moment ago, so a failure here is always a bug.
func (a *Allocator) undo(err error) {
	if err != nil {
		a.logger.Printf("allocation: rollback failed: %v", err)
	}
}
