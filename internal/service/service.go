// Package service implements request validation and orchestration between
// HTTP handlers and the catalog, allocation and reservation layers.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/allocation"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/catalog"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/lock"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/repository"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/reservation"
	"github.com/go-playground/validator/v10"
)

// ErrValidation wraps every input error detected before reaching the core.
var ErrValidation = errors.New("invalid input")

// Limits bounds the date ranges the service accepts. Every booked night
// is one ledger entry and every queried day one response row.
type Limits struct {
	MaxStayDays  int
	MaxQueryDays int
}

// DefaultLimits allow stays and query windows of up to a leap year.
var DefaultLimits = Limits{MaxStayDays: 366, MaxQueryDays: 366}

// Option configures a DormService.
type Option func(*DormService)

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option {
	return func(s *DormService) { s.limits = l }
}

// DormService orchestrates building, room, assignment and request operations.
type DormService struct {
	buildings *catalog.Catalog
	alloc     *allocation.Allocator
	workflow  *reservation.Workflow
	validate  *validator.Validate
	limits    Limits

	// serialises room creation against building deletion
	buildingLocks lock.Keyed
}

// NewDormService constructs a DormService with its dependencies.
func NewDormService(
	buildings *catalog.Catalog,
	alloc *allocation.Allocator,
	workflow *reservation.Workflow,
	opts ...Option,
) *DormService {
	v := validator.New()
	// report json field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	s := &DormService{
		buildings: buildings,
		alloc:     alloc,
		workflow:  workflow,
		validate:  v,
		limits:    DefaultLimits,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Buildings ────────────────────────────────────────────────────────────────

// CreateBuilding validates the request and adds a building.
func (s *DormService) CreateBuilding(ctx context.Context, req model.CreateBuildingRequest) (*model.Building, error) {
	p, err := s.buildingParams(req)
	if err != nil {
		return nil, err
	}
	return s.buildings.Create(ctx, p)
}

// UpdateBuilding validates the request and edits a building.
func (s *DormService) UpdateBuilding(ctx context.Context, id string, req model.CreateBuildingRequest) (*model.Building, error) {
	p, err := s.buildingParams(req)
	if err != nil {
		return nil, err
	}
	return s.buildings.Update(ctx, id, p)
}

// DeleteBuilding removes a building that has no rooms left.
func (s *DormService) DeleteBuilding(ctx context.Context, id string) error {
	unlock := s.buildingLocks.Lock(id)
	defer unlock()

	if _, err := s.buildings.Get(id); err != nil {
		return err
	}
	if n := len(s.alloc.RoomsInBuilding(id)); n > 0 {
		return fmt.Errorf("%w: %d rooms", repository.ErrBuildingHasRooms, n)
	}
	return s.buildings.Delete(ctx, id)
}

// GetBuilding returns a single building.
func (s *DormService) GetBuilding(_ context.Context, id string) (*model.Building, error) {
	return s.buildings.Get(id)
}

// ListBuildings returns all buildings.
func (s *DormService) ListBuildings(_ context.Context) []model.Building {
	return s.buildings.List()
}

// Availability lists free slots per room of a building over [from, to).
func (s *DormService) Availability(_ context.Context, buildingID, from, to string, onlyFree bool) ([]model.RoomAvailability, error) {
	if _, err := s.buildings.Get(buildingID); err != nil {
		return nil, err
	}
	f, t, err := parseRange("from", from, "to", to, s.limits.MaxQueryDays)
	if err != nil {
		return nil, err
	}
	return s.alloc.Availability(buildingID, f, t, onlyFree)
}

func (s *DormService) buildingParams(req model.CreateBuildingRequest) (catalog.BuildingParams, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return catalog.BuildingParams{}, err
	}
	if req.DailyRate.IsNegative() {
		return catalog.BuildingParams{}, invalid("daily_rate must not be negative")
	}
	return catalog.BuildingParams{
		Name:           req.Name,
		TotalRooms:     req.TotalRooms,
		TotalRestrooms: req.TotalRestrooms,
		TotalKitchens:  req.TotalKitchens,
		DailyRate:      req.DailyRate,
	}, nil
}

// ─── Rooms ────────────────────────────────────────────────────────────────────

// CreateRoom adds a room to an existing building.
func (s *DormService) CreateRoom(ctx context.Context, buildingID string, req model.CreateRoomRequest) (*model.Room, error) {
	p, err := s.roomParams(req)
	if err != nil {
		return nil, err
	}
	p.BuildingID = buildingID

	unlock := s.buildingLocks.Lock(buildingID)
	defer unlock()
	if _, err := s.buildings.Get(buildingID); err != nil {
		return nil, err
	}
	return s.alloc.AddRoom(ctx, p)
}

// UpdateRoom edits name, capacity and cost of a room.
func (s *DormService) UpdateRoom(ctx context.Context, id string, req model.CreateRoomRequest) (*model.Room, error) {
	p, err := s.roomParams(req)
	if err != nil {
		return nil, err
	}
	return s.alloc.UpdateRoom(ctx, id, p)
}

// DeleteRoom removes a room without current or upcoming tenants.
func (s *DormService) DeleteRoom(ctx context.Context, id string) error {
	return s.alloc.RemoveRoom(ctx, id)
}

// GetRoom returns a single room.
func (s *DormService) GetRoom(_ context.Context, id string) (*model.Room, error) {
	return s.alloc.Room(id)
}

// ListRooms returns the rooms of a building.
func (s *DormService) ListRooms(_ context.Context, buildingID string) ([]model.Room, error) {
	if _, err := s.buildings.Get(buildingID); err != nil {
		return nil, err
	}
	return s.alloc.RoomsInBuilding(buildingID), nil
}

// RoomOccupancy returns per-day occupancy of a room over [from, to).
func (s *DormService) RoomOccupancy(_ context.Context, id, from, to string) ([]model.DayOccupancy, error) {
	f, t, err := parseRange("from", from, "to", to, s.limits.MaxQueryDays)
	if err != nil {
		return nil, err
	}
	return s.alloc.Ledger().Occupancy(id, f, t)
}

func (s *DormService) roomParams(req model.CreateRoomRequest) (allocation.RoomParams, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.check(req); err != nil {
		return allocation.RoomParams{}, err
	}
	if req.CostPerDay.IsNegative() {
		return allocation.RoomParams{}, invalid("cost_per_day must not be negative")
	}
	return allocation.RoomParams{Name: req.Name, Capacity: req.Capacity, CostPerDay: req.CostPerDay}, nil
}

// ─── Assignments ──────────────────────────────────────────────────────────────

// CreateAssignment admits a stay directly, bypassing the request workflow
// but not the allocator.
func (s *DormService) CreateAssignment(ctx context.Context, req model.CreateAssignmentRequest) (*model.AssignmentView, error) {
	req.PersonID = strings.TrimSpace(req.PersonID)
	if err := s.check(req); err != nil {
		return nil, err
	}
	checkIn, checkOut, err := parseRange("check_in", req.CheckIn, "check_out", req.CheckOut, s.limits.MaxStayDays)
	if err != nil {
		return nil, err
	}
	a, err := s.alloc.Admit(ctx, allocation.AdmitParams{
		PersonID:      req.PersonID,
		PersonType:    model.PersonType(req.PersonType),
		RoomID:        req.RoomID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		PaymentStatus: model.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		return nil, err
	}
	return s.view(a), nil
}

// UpdateAssignment changes dates, payment status or room of an assignment.
func (s *DormService) UpdateAssignment(ctx context.Context, id string, req model.UpdateAssignmentRequest) (*model.AssignmentView, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	p := allocation.UpdateParams{
		RoomID:        strings.TrimSpace(req.RoomID),
		PaymentStatus: model.PaymentStatus(req.PaymentStatus),
	}
	if req.CheckIn != "" {
		d, err := parseDate("check_in", req.CheckIn)
		if err != nil {
			return nil, err
		}
		p.CheckIn = &d
	}
	if req.CheckOut != "" {
		d, err := parseDate("check_out", req.CheckOut)
		if err != nil {
			return nil, err
		}
		p.CheckOut = &d
	}
	if p.CheckIn != nil || p.CheckOut != nil {
		cur, err := s.alloc.Registry().Get(id)
		if err != nil {
			return nil, err
		}
		checkIn, checkOut := cur.CheckIn, cur.CheckOut
		if p.CheckIn != nil {
			checkIn = *p.CheckIn
		}
		if p.CheckOut != nil {
			checkOut = *p.CheckOut
		}
		if err := checkSpan("check_in", "check_out", checkIn, checkOut, s.limits.MaxStayDays); err != nil {
			return nil, err
		}
	}

	a, err := s.alloc.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}
	return s.view(a), nil
}

// DeleteAssignment removes an assignment and frees its slots.
func (s *DormService) DeleteAssignment(ctx context.Context, id string) error {
	_, err := s.alloc.Remove(ctx, id)
	return err
}

// GetAssignment returns one assignment with its stay cost.
func (s *DormService) GetAssignment(_ context.Context, id string) (*model.AssignmentView, error) {
	a, err := s.alloc.Registry().Get(id)
	if err != nil {
		return nil, err
	}
	return s.view(a), nil
}

// AssignmentFilter narrows ListAssignments. At most one criterion is
// honoured, in the order RoomID, PersonID, ActiveOn, From/To. From and To
// select the stays overlapping [From, To) and must be given together.
type AssignmentFilter struct {
	RoomID   string
	PersonID string
	ActiveOn string
	From     string
	To       string
}

// ListAssignments returns assignments matching the filter.
func (s *DormService) ListAssignments(_ context.Context, f AssignmentFilter) ([]model.AssignmentView, error) {
	reg := s.alloc.Registry()
	var as []model.Assignment
	switch {
	case f.RoomID != "":
		if _, err := s.alloc.Room(f.RoomID); err != nil {
			return nil, err
		}
		as = reg.ListByRoom(f.RoomID)
	case f.PersonID != "":
		as = reg.ListByPerson(f.PersonID)
	case f.ActiveOn != "":
		d, err := parseDate("active", f.ActiveOn)
		if err != nil {
			return nil, err
		}
		as = reg.ListActive(d)
	case f.From != "" || f.To != "":
		from, to, err := parseRange("from", f.From, "to", f.To, s.limits.MaxQueryDays)
		if err != nil {
			return nil, err
		}
		if !from.Before(to) {
			return nil, allocation.ErrInvalidRange
		}
		as = reg.ListOverlapping(from, to)
	default:
		as = reg.List()
	}

	out := make([]model.AssignmentView, 0, len(as))
	for i := range as {
		out = append(out, *s.view(&as[i]))
	}
	return out, nil
}

func (s *DormService) view(a *model.Assignment) *model.AssignmentView {
	v := &model.AssignmentView{Assignment: *a, Nights: a.Nights()}
	if room, err := s.alloc.Room(a.RoomID); err == nil {
		v.Cost = a.StayCost(room.CostPerDay)
	}
	return v
}

// ─── Reservation requests ─────────────────────────────────────────────────────

// SubmitRequest records a new pending reservation request.
func (s *DormService) SubmitRequest(ctx context.Context, req model.SubmitReservationRequest) (*model.ReservationRequest, error) {
	req.PersonID = strings.TrimSpace(req.PersonID)
	req.RequestedDate = strings.TrimSpace(req.RequestedDate)
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.workflow.Submit(ctx, reservation.SubmitParams{
		PersonID:      req.PersonID,
		PersonType:    model.PersonType(req.PersonType),
		RequestedDate: req.RequestedDate,
	})
}

// ProcessRequest approves or rejects a pending request.
func (s *DormService) ProcessRequest(ctx context.Context, id string, req model.ProcessReservationRequest) (*model.ReservationRequest, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	decision := reservation.Decision(req.Decision)
	if decision == reservation.Reject {
		return s.workflow.Process(ctx, id, decision, nil, req.Reason)
	}

	checkIn, checkOut, err := parseRange("check_in", req.CheckIn, "check_out", req.CheckOut, s.limits.MaxStayDays)
	if err != nil {
		return nil, err
	}
	return s.workflow.Process(ctx, id, decision, &reservation.Allocation{
		BuildingID:    req.BuildingID,
		RoomID:        req.RoomID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		PaymentStatus: model.PaymentStatus(req.PaymentStatus),
	}, req.Reason)
}

// GetRequest returns one reservation request.
func (s *DormService) GetRequest(_ context.Context, id string) (*model.ReservationRequest, error) {
	return s.workflow.Get(id)
}

// ListRequests returns requests, optionally filtered by status or person.
func (s *DormService) ListRequests(_ context.Context, status, personID string) ([]model.ReservationRequest, error) {
	switch {
	case status != "":
		st := model.RequestStatus(status)
		if st != model.RequestPending && !st.Terminal() {
			return nil, invalid("status must be pending, approved or rejected")
		}
		reqs := s.workflow.ListByStatus(st)
		if personID == "" {
			return reqs, nil
		}
		out := reqs[:0]
		for _, r := range reqs {
			if r.PersonID == personID {
				out = append(out, r)
			}
		}
		return out, nil
	case personID != "":
		return s.workflow.ListByPerson(personID), nil
	default:
		return s.workflow.List(), nil
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (s *DormService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return invalid(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "datetime":
		return field + " must be a date formatted YYYY-MM-DD"
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func parseDate(field, s string) (model.Date, error) {
	d, err := model.ParseDate(s)
	if err != nil {
		return 0, invalid(field + " must be a date formatted YYYY-MM-DD")
	}
	return d, nil
}

// parseRange parses both ends of a range and rejects spans longer than
// maxDays. Ordering is left to the allocator, which reports ErrInvalidRange.
func parseRange(fromField, from, toField, to string, maxDays int) (model.Date, model.Date, error) {
	f, err := parseDate(fromField, from)
	if err != nil {
		return 0, 0, err
	}
	t, err := parseDate(toField, to)
	if err != nil {
		return 0, 0, err
	}
	if err := checkSpan(fromField, toField, f, t, maxDays); err != nil {
		return 0, 0, err
	}
	return f, t, nil
}

func checkSpan(fromField, toField string, from, to model.Date, maxDays int) error {
	if n := from.DaysUntil(to); n > maxDays {
		return invalid(fmt.Sprintf("%s to %s spans %d days, at most %d allowed", fromField, toField, n, maxDays))
	}
	return nil
}
