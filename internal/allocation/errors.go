package allocation

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
)

var (
	// ErrInvalidRange is returned when check-in is not before check-out.
	ErrInvalidRange = errors.New("check-in must be before check-out")

	// ErrUnknownRoom is returned for a room id the allocator does not know.
	ErrUnknownRoom = errors.New("unknown room")

	// ErrUnknownPerson is returned when the person reference is missing or
	// carries an unknown person type.
	ErrUnknownPerson = errors.New("unknown person")

	// ErrInvalidPaymentStatus is returned for a payment status outside unpaid/partial/paid.
	ErrInvalidPaymentStatus = errors.New("invalid payment status")

	// ErrCapacityExceeded is the business conflict: some day in the range has no free slot.
	// The concrete error is always a *CapacityError.
	ErrCapacityExceeded = errors.New("room capacity exceeded")

	// ErrNotFound is returned when an assignment does not exist.
	ErrNotFound = errors.New("assignment not found")

	// ErrRoomExists is returned when a room id is registered twice.
	ErrRoomExists = errors.New("room already exists")

	// ErrRoomOccupied is returned when deleting a room that still has active tenants.
	ErrRoomOccupied = errors.New("room has active tenants")

	// ErrInvalidCapacity is returned for a room capacity below one.
	ErrInvalidCapacity = errors.New("room capacity must be at least 1")

	// ErrCapacityBelowOccupancy is returned when shrinking a room below its
	// current peak occupancy. The concrete error is a *CapacityError.
	ErrCapacityBelowOccupancy = errors.New("room capacity below current occupancy")

	// ErrConsistencyViolation signals that the ledger and registry disagree.
	// It is never the result of a valid call sequence.
	ErrConsistencyViolation = errors.New("ledger consistency violation")
)

// CapacityError describes the first day on which a room cannot take
// another occupant.
type CapacityError struct {
	RoomID   string
	Day      model.Date
	Capacity int
	Occupied int
	kind     error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: room %s on %s has %d of %d slots occupied",
		e.kind, e.RoomID, e.Day, e.Occupied, e.Capacity)
}

func (e *CapacityError) Unwrap() error { return e.kind }

// NewCapacityError builds the conflict reported when day has no free slot.
func NewCapacityError(roomID string, day model.Date, capacity, occupied int) *CapacityError {
	return capacityExceeded(roomID, day, capacity, occupied)
}

func capacityExceeded(roomID string, day model.Date, capacity, occupied int) *CapacityError {
	return &CapacityError{RoomID: roomID, Day: day, Capacity: capacity, Occupied: occupied, kind: ErrCapacityExceeded}
}

// ConsistencyError pinpoints the ledger row that would have gone wrong.
type ConsistencyError struct {
	RoomID       string
	AssignmentID string
	Detail       string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%v: room %s assignment %s: %s",
		ErrConsistencyViolation, e.RoomID, e.AssignmentID, e.Detail)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistencyViolation }
