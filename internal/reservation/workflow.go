// Package reservation drives a reservation request from submission to an
// approved assignment or a rejection.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/allocation"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/lock"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a request does not exist.
	ErrNotFound = errors.New("reservation request not found")

	// ErrAlreadyProcessed is returned when processing an approved or rejected request.
	ErrAlreadyProcessed = errors.New("reservation request already processed")

	// ErrAllocationRequired is returned when approving without room and dates.
	ErrAllocationRequired = errors.New("approval requires building, room, check-in and check-out")

	// ErrInvalidDecision is returned for a decision other than approved or rejected.
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
)

// Decision is the outcome an operator chooses for a pending request.
type Decision string

const (
	Approve Decision = "approved"
	Reject  Decision = "rejected"
)

// Allocation is the room and stay chosen when approving a request.
type Allocation struct {
	BuildingID    string
	RoomID        string
	CheckIn       model.Date
	CheckOut      model.Date
	PaymentStatus model.PaymentStatus
}

// SubmitParams describes a new request.
type SubmitParams struct {
	PersonID      string
	PersonType    model.PersonType
	RequestedDate string
}

// Admitter is the part of the allocator the workflow depends on.
type Admitter interface {
	Room(id string) (*model.Room, error)
	Admit(ctx context.Context, p allocation.AdmitParams) (*model.Assignment, error)
	Remove(ctx context.Context, id string) (*model.Assignment, error)
}

// Store persists requests.
type Store interface {
	InsertRequest(ctx context.Context, req *model.ReservationRequest) error
	UpdateRequest(ctx context.Context, req *model.ReservationRequest) error
}

type nopStore struct{}

func (nopStore) InsertRequest(context.Context, *model.ReservationRequest) error { return nil }
func (nopStore) UpdateRequest(context.Context, *model.ReservationRequest) error { return nil }

// Workflow holds every request and applies decisions to them. Decisions on
// the same request are serialised, so a request is consumed exactly once.
type Workflow struct {
	admitter Admitter
	store    Store
	now      func() time.Time

	locks lock.Keyed

	mu       sync.RWMutex
	requests map[string]*model.ReservationRequest
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithStore makes request changes write through to s.
func WithStore(s Store) Option {
	return func(w *Workflow) { w.store = s }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New constructs a Workflow that admits approved stays through admitter.
func New(admitter Admitter, opts ...Option) *Workflow {
	w := &Workflow{
		admitter: admitter,
		store:    nopStore{},
		now:      time.Now,
		requests: make(map[string]*model.ReservationRequest),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Submit records a new pending request.
func (w *Workflow) Submit(ctx context.Context, p SubmitParams) (*model.ReservationRequest, error) {
	if p.PersonType == "" {
		p.PersonType = model.PersonTrainee
	}
	if p.PersonID == "" || !p.PersonType.Valid() {
		return nil, allocation.ErrUnknownPerson
	}
	req := &model.ReservationRequest{
		ID:            uuid.New().String(),
		PersonID:      p.PersonID,
		PersonType:    p.PersonType,
		RequestedDate: p.RequestedDate,
		Status:        model.RequestPending,
		CreatedAt:     w.now().UTC(),
	}
	if err := w.store.InsertRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}
	w.put(req)

	cp := *req
	return &cp, nil
}

// Process applies a decision to a pending request.
//
// Rejection always succeeds on a pending request. Approval admits the stay
// described by alloc; if admission fails the request stays pending and the
// admission error (typically a *allocation.CapacityError) is returned so the
// caller can retry with another room or range.
func (w *Workflow) Process(ctx context.Context, id string, d Decision, alloc *Allocation, reason string) (*model.ReservationRequest, error) {
	unlock := w.locks.Lock(id)
	defer unlock()

	req, err := w.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: request %s is %s", ErrAlreadyProcessed, id, req.Status)
	}

	switch d {
	case Reject:
		return w.reject(ctx, req, reason)
	case Approve:
		if alloc == nil || alloc.BuildingID == "" || alloc.RoomID == "" {
			return nil, ErrAllocationRequired
		}
		return w.approve(ctx, req, *alloc, reason)
	default:
		return nil, ErrInvalidDecision
	}
}

func (w *Workflow) reject(ctx context.Context, req *model.ReservationRequest, reason string) (*model.ReservationRequest, error) {
	processed := w.now().UTC()
	next := *req
	next.Status = model.RequestRejected
	next.Reason = reason
	next.ProcessedAt = &processed

	if err := w.store.UpdateRequest(ctx, &next); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}
	w.put(&next)
	return &next, nil
}

func (w *Workflow) approve(ctx context.Context, req *model.ReservationRequest, alloc Allocation, reason string) (*model.ReservationRequest, error) {
	room, err := w.admitter.Room(alloc.RoomID)
	if err != nil {
		return nil, err
	}
	if room.BuildingID != alloc.BuildingID {
		return nil, fmt.Errorf("%w: room %s is not in building %s", allocation.ErrUnknownRoom, alloc.RoomID, alloc.BuildingID)
	}

	asg, err := w.admitter.Admit(ctx, allocation.AdmitParams{
		PersonID:      req.PersonID,
		PersonType:    req.PersonType,
		RoomID:        alloc.RoomID,
		CheckIn:       alloc.CheckIn,
		CheckOut:      alloc.CheckOut,
		PaymentStatus: alloc.PaymentStatus,
	})
	if err != nil {
		return nil, err
	}

	processed := w.now().UTC()
	checkIn, checkOut := asg.CheckIn, asg.CheckOut
	next := *req
	next.Status = model.RequestApproved
	next.Reason = reason
	next.BuildingID = asg.BuildingID
	next.RoomID = asg.RoomID
	next.CheckIn = &checkIn
	next.CheckOut = &checkOut
	next.PaymentStatus = asg.PaymentStatus
	next.AssignmentID = asg.ID
	next.ProcessedAt = &processed

	if err := w.store.UpdateRequest(ctx, &next); err != nil {
		if _, rmErr := w.admitter.Remove(ctx, asg.ID); rmErr != nil {
			return nil, errors.Join(fmt.Errorf("persist request: %w", err), fmt.Errorf("undo admission: %w", rmErr))
		}
		return nil, fmt.Errorf("persist request: %w", err)
	}
	w.put(&next)
	return &next, nil
}

// Get returns one request or ErrNotFound.
func (w *Workflow) Get(id string) (*model.ReservationRequest, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	req, ok := w.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

// List returns every request, oldest first.
func (w *Workflow) List() []model.ReservationRequest {
	return w.filter(func(*model.ReservationRequest) bool { return true })
}

// ListPending returns the requests still awaiting a decision.
func (w *Workflow) ListPending() []model.ReservationRequest {
	return w.ListByStatus(model.RequestPending)
}

// ListByStatus returns the requests in one state.
func (w *Workflow) ListByStatus(status model.RequestStatus) []model.ReservationRequest {
	return w.filter(func(r *model.ReservationRequest) bool { return r.Status == status })
}

// ListByPerson returns the requests of one person.
func (w *Workflow) ListByPerson(personID string) []model.ReservationRequest {
	return w.filter(func(r *model.ReservationRequest) bool { return r.PersonID == personID })
}

// Restore loads persisted requests without writing to the store.
func (w *Workflow) Restore(reqs []model.ReservationRequest) {
	for i := range reqs {
		w.put(&reqs[i])
	}
}

func (w *Workflow) put(req *model.ReservationRequest) {
	cp := *req
	w.mu.Lock()
	w.requests[cp.ID] = &cp
	w.mu.Unlock()
}

func (w *Workflow) filter(keep func(*model.ReservationRequest) bool) []model.ReservationRequest {
	w.mu.RLock()
	out := make([]model.ReservationRequest, 0, len(w.requests))
	for _, r := range w.requests {
		if keep(r) {
			out = append(out, *r)
		}
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
