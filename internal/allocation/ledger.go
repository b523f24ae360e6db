package allocation

import (
	"fmt"
	"sync"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
)

// span is a reserved half-open day range.
type span struct {
	from, to model.Date
}

func (s span) contains(d model.Date) bool {
	return !d.Before(s.from) && d.Before(s.to)
}

// roomRow holds the per-day occupancy of one room. Every mutation of a row
// happens inside a single write-locked section.
type roomRow struct {
	mu       sync.RWMutex
	capacity int
	occupied map[model.Date]int
	holds    map[string]span
}

func newRoomRow(capacity int) *roomRow {
	return &roomRow{
		capacity: capacity,
		occupied: make(map[model.Date]int),
		holds:    make(map[string]span),
	}
}

// firstFull returns the first day in s with no free slot. Days inside
// exclude are counted with one occupant fewer, so an assignment can be
// checked against the room without its own reservation.
func (r *roomRow) firstFull(s span, exclude *span) (model.Date, int, bool) {
	for d := s.from; d.Before(s.to); d = d.AddDays(1) {
		occ := r.occupied[d]
		if exclude != nil && exclude.contains(d) {
			occ--
		}
		if occ >= r.capacity {
			return d, occ, true
		}
	}
	return 0, 0, false
}

func (r *roomRow) add(s span, delta int) {
	for d := s.from; d.Before(s.to); d = d.AddDays(1) {
		n := r.occupied[d] + delta
		if n == 0 {
			delete(r.occupied, d)
			continue
		}
		r.occupied[d] = n
	}
}

func (r *roomRow) peak() (model.Date, int) {
	var day model.Date
	top := 0
	for d, n := range r.occupied {
		if n > top || (n == top && d.Before(day)) {
			day, top = d, n
		}
	}
	return day, top
}

// Ledger tracks how many slots of each room are occupied per day.
// It is derived from the Registry and can be rebuilt from it at any time.
// Only the Allocator mutates it; the exported methods are read-only.
type Ledger struct {
	mu   sync.RWMutex
	rows map[string]*roomRow
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{rows: make(map[string]*roomRow)}
}

func (l *Ledger) row(roomID string) (*roomRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rows[roomID]
	if !ok {
		return nil, ErrUnknownRoom
	}
	return r, nil
}

// AvailableSlots returns the minimum number of free slots over every day
// of [from, to). A room left over capacity by restored data reports 0.
func (l *Ledger) AvailableSlots(roomID string, from, to model.Date) (int, error) {
	if !from.Before(to) {
		return 0, ErrInvalidRange
	}
	r, err := l.row(roomID)
	if err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	free := r.capacity
	for d := from; d.Before(to); d = d.AddDays(1) {
		if f := r.capacity - r.occupied[d]; f < free {
			free = f
		}
	}
	return max(free, 0), nil
}

// Occupancy returns the occupied count for each day of [from, to).
func (l *Ledger) Occupancy(roomID string, from, to model.Date) ([]model.DayOccupancy, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	r, err := l.row(roomID)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.DayOccupancy, 0, from.DaysUntil(to))
	for d := from; d.Before(to); d = d.AddDays(1) {
		out = append(out, model.DayOccupancy{Day: d, Occupied: r.occupied[d], Capacity: r.capacity})
	}
	return out, nil
}

// Capacity returns the slot count the ledger holds for a room.
func (l *Ledger) Capacity(roomID string) (int, error) {
	r, err := l.row(roomID)
	if err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capacity, nil
}

func (l *Ledger) addRoom(roomID string, capacity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[roomID]; ok {
		return ErrRoomExists
	}
	l.rows[roomID] = newRoomRow(capacity)
	return nil
}

func (l *Ledger) dropRoom(roomID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rows, roomID)
}

// setCapacity changes a room's slot count. It refuses to go below the
// busiest day currently on the books.
func (l *Ledger) setCapacity(roomID string, capacity int) error {
	r, err := l.row(roomID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if day, peak := r.peak(); peak > capacity {
		return &CapacityError{RoomID: roomID, Day: day, Capacity: capacity, Occupied: peak, kind: ErrCapacityBelowOccupancy}
	}
	r.capacity = capacity
	return nil
}

// reserve checks and books [from, to) for one assignment in a single
// critical section. A second reservation under the same assignment id is
// a consistency violation.
func (l *Ledger) reserve(roomID, assignmentID string, from, to model.Date) error {
	r, err := l.row(roomID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.holds[assignmentID]; dup {
		return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID, Detail: "already reserved"}
	}
	s := span{from: from, to: to}
	if day, occ, full := r.firstFull(s, nil); full {
		return capacityExceeded(roomID, day, r.capacity, occ)
	}
	r.add(s, 1)
	r.holds[assignmentID] = s
	return nil
}

// release frees the range booked for an assignment. The range must match
// the reservation exactly and no day may drop below zero.
func (l *Ledger) release(roomID, assignmentID string, from, to model.Date) error {
	r, err := l.row(roomID)
	if err != nil {
		return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID, Detail: "room missing from ledger"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s := span{from: from, to: to}
	held, ok := r.holds[assignmentID]
	if !ok {
		return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID, Detail: "no reservation to release"}
	}
	if held != s {
		return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID,
			Detail: fmt.Sprintf("release of [%s, %s) does not match reservation [%s, %s)", from, to, held.from, held.to)}
	}
	for d := from; d.Before(to); d = d.AddDays(1) {
		if r.occupied[d] <= 0 {
			return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID,
				Detail: fmt.Sprintf("occupancy on %s would become negative", d)}
		}
	}
	r.add(s, -1)
	delete(r.holds, assignmentID)
	return nil
}

// move re-books an assignment in the same room from its current range to
// [from, to). The capacity check ignores the assignment's own occupancy.
// On conflict the row is left untouched.
func (l *Ledger) move(roomID, assignmentID string, from, to model.Date) error {
	r, err := l.row(roomID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.holds[assignmentID]
	if !ok {
		return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID, Detail: "no reservation to move"}
	}
	next := span{from: from, to: to}
	if day, occ, full := r.firstFull(next, &held); full {
		return capacityExceeded(roomID, day, r.capacity, occ)
	}
	r.add(held, -1)
	r.add(next, 1)
	r.holds[assignmentID] = next
	return nil
}

// force books a range without a capacity check. Rebuild uses it to load
// historical state that may already violate capacity.
func (l *Ledger) force(roomID, assignmentID string, from, to model.Date) error {
	r, err := l.row(roomID)
	if err != nil {
		return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID, Detail: "assignment references unknown room"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.holds[assignmentID]; dup {
		return &ConsistencyError{RoomID: roomID, AssignmentID: assignmentID, Detail: "already reserved"}
	}
	s := span{from: from, to: to}
	r.add(s, 1)
	r.holds[assignmentID] = s
	return nil
}

// overbooked lists every day on which a room holds more occupants than slots.
func (l *Ledger) overbooked() []*CapacityError {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*CapacityError
	for id, r := range l.rows {
		r.mu.RLock()
		for d, n := range r.occupied {
			if n > r.capacity {
				out = append(out, capacityExceeded(id, d, r.capacity, n))
			}
		}
		r.mu.RUnlock()
	}
	return out
}

// swap replaces all rows with those of other.
func (l *Ledger) swap(other *Ledger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = other.rows
}
