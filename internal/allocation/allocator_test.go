package allocation

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

// flakyStore fails the operations whose flag is set and counts the rest.
type flakyStore struct {
	NopStore
	mu           sync.Mutex
	failInsert   bool
	failUpdate   bool
	failDelete   bool
	failRoomEdit bool
	inserted     int
}

func (s *flakyStore) InsertAssignment(context.Context, *model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return errStoreDown
	}
	s.inserted++
	return nil
}

func (s *flakyStore) UpdateAssignment(context.Context, *model.Assignment) error {
	if s.failUpdate {
		return errStoreDown
	}
	return nil
}

func (s *flakyStore) DeleteAssignment(context.Context, string) error {
	if s.failDelete {
		return errStoreDown
	}
	return nil
}

func (s *flakyStore) UpdateRoom(context.Context, *model.Room) error {
	if s.failRoomEdit {
		return errStoreDown
	}
	return nil
}

func fixedClock(day string) func() time.Time {
	t := d(day).Time().Add(9 * time.Hour)
	return func() time.Time { return t }
}

type fixture struct {
	alloc *Allocator
	store *flakyStore
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &flakyStore{}
	logs := &bytes.Buffer{}
	a := New(
		WithStore(store),
		WithLogger(log.New(logs, "", 0)),
		WithClock(fixedClock("2023-12-01")),
	)
	return &fixture{alloc: a, store: store, logs: logs}
}

func (f *fixture) room(t *testing.T, capacity int) *model.Room {
	t.Helper()
	r, err := f.alloc.AddRoom(context.Background(), RoomParams{
		BuildingID: "b1",
		Name:       "Room",
		Capacity:   capacity,
		CostPerDay: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	return r
}

func stay(person, roomID, from, to string) AdmitParams {
	return AdmitParams{
		PersonID:   person,
		PersonType: model.PersonTrainee,
		RoomID:     roomID,
		CheckIn:    d(from),
		CheckOut:   d(to),
	}
}

func TestAdmitCapacityTwoScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 2)

	a, err := f.alloc.Admit(ctx, stay("A", room.ID, "2024-01-01", "2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentUnpaid, a.PaymentStatus)
	assert.Equal(t, "b1", a.BuildingID)

	_, err = f.alloc.Admit(ctx, stay("B", room.ID, "2024-01-03", "2024-01-07"))
	require.NoError(t, err)

	_, err = f.alloc.Admit(ctx, stay("C", room.ID, "2024-01-03", "2024-01-04"))
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, d("2024-01-03"), capErr.Day)
	assert.Equal(t, 2, capErr.Occupied)
	assert.Equal(t, 2, f.alloc.Registry().Len(), "rejected admission leaves no record")

	_, err = f.alloc.Remove(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.alloc.Admit(ctx, stay("C", room.ID, "2024-01-03", "2024-01-04"))
	require.NoError(t, err)

	occ, err := f.alloc.Ledger().Occupancy(room.ID, d("2024-01-01"), d("2024-01-08"))
	require.NoError(t, err)
	got := make([]int, len(occ))
	for i, o := range occ {
		got[i] = o.Occupied
	}
	assert.Equal(t, []int{0, 0, 2, 1, 1, 1, 0}, got)
}

func TestAdmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 1)

	_, err := f.alloc.Admit(ctx, stay("A", room.ID, "2024-01-05", "2024-01-05"))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.alloc.Admit(ctx, stay("", room.ID, "2024-01-01", "2024-01-02"))
	assert.ErrorIs(t, err, ErrUnknownPerson)

	p := stay("A", room.ID, "2024-01-01", "2024-01-02")
	p.PersonType = "visitor"
	_, err = f.alloc.Admit(ctx, p)
	assert.ErrorIs(t, err, ErrUnknownPerson)

	p = stay("A", room.ID, "2024-01-01", "2024-01-02")
	p.PaymentStatus = "refunded"
	_, err = f.alloc.Admit(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidPaymentStatus)

	_, err = f.alloc.Admit(ctx, stay("A", "missing", "2024-01-01", "2024-01-02"))
	assert.ErrorIs(t, err, ErrUnknownRoom)

	assert.Zero(t, f.alloc.Registry().Len())
}

func TestConcurrentAdmitsNeverOverbook(t *testing.T) {
	const capacity = 5
	f := newFixture(t)
	room := f.room(t, capacity)

	attempts := capacity*4 + 1
	start := make(chan struct{})
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
		unexpect []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.alloc.Admit(context.Background(), stay("p", room.ID, "2024-03-01", "2024-03-10"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrCapacityExceeded):
				full++
			default:
				unexpect = append(unexpect, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, unexpect)
	assert.Equal(t, capacity, ok)
	assert.Equal(t, attempts-capacity, full)
	free, err := f.alloc.Ledger().AvailableSlots(room.ID, d("2024-03-01"), d("2024-03-10"))
	require.NoError(t, err)
	assert.Zero(t, free)
}

func TestConcurrentAdmitsDifferentRooms(t *testing.T) {
	f := newFixture(t)
	r1 := f.room(t, 1)
	r2 := f.room(t, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{r1.ID, r2.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.alloc.Admit(context.Background(), stay("p", id, "2024-01-01", "2024-01-02"))
		}(i, id)
	}
	wg.Wait()
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

func TestAdmitRemoveRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 3)

	before, err := f.alloc.Ledger().Occupancy(room.ID, d("2024-01-01"), d("2024-01-10"))
	require.NoError(t, err)

	a, err := f.alloc.Admit(ctx, stay("A", room.ID, "2024-01-02", "2024-01-06"))
	require.NoError(t, err)
	removed, err := f.alloc.Remove(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.ID)

	after, err := f.alloc.Ledger().Occupancy(room.ID, d("2024-01-01"), d("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = f.alloc.Remove(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDatesAndPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 1)

	a, err := f.alloc.Admit(ctx, stay("A", room.ID, "2024-01-01", "2024-01-05"))
	require.NoError(t, err)
	_, err = f.alloc.Admit(ctx, stay("B", room.ID, "2024-01-08", "2024-01-10"))
	require.NoError(t, err)

	out := d("2024-01-08")
	got, err := f.alloc.Update(ctx, a.ID, UpdateParams{CheckOut: &out, PaymentStatus: model.PaymentPaid})
	require.NoError(t, err)
	assert.Equal(t, out, got.CheckOut)
	assert.Equal(t, model.PaymentPaid, got.PaymentStatus)

	// one day too far collides with B; nothing changes
	tooFar := d("2024-01-09")
	_, err = f.alloc.Update(ctx, a.ID, UpdateParams{CheckOut: &tooFar})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	stored, err := f.alloc.Registry().Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, out, stored.CheckOut)
	free, err := f.alloc.Ledger().AvailableSlots(room.ID, d("2024-01-01"), d("2024-01-08"))
	require.NoError(t, err)
	assert.Zero(t, free)

	in := d("2024-01-08")
	_, err = f.alloc.Update(ctx, a.ID, UpdateParams{CheckIn: &in})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.alloc.Update(ctx, a.ID, UpdateParams{PaymentStatus: "refunded"})
	assert.ErrorIs(t, err, ErrInvalidPaymentStatus)
}

func TestUpdateMovesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r1 := f.room(t, 1)
	r2 := f.room(t, 1)

	a, err := f.alloc.Admit(ctx, stay("A", r1.ID, "2024-01-01", "2024-01-05"))
	require.NoError(t, err)
	blocker, err := f.alloc.Admit(ctx, stay("B", r2.ID, "2024-01-04", "2024-01-06"))
	require.NoError(t, err)

	_, err = f.alloc.Update(ctx, a.ID, UpdateParams{RoomID: r2.ID})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	free, err := f.alloc.Ledger().AvailableSlots(r1.ID, d("2024-01-01"), d("2024-01-05"))
	require.NoError(t, err)
	assert.Zero(t, free, "failed move keeps the original booking")

	_, err = f.alloc.Remove(ctx, blocker.ID)
	require.NoError(t, err)

	moved, err := f.alloc.Update(ctx, a.ID, UpdateParams{RoomID: r2.ID})
	require.NoError(t, err)
	assert.Equal(t, r2.ID, moved.RoomID)

	free, err = f.alloc.Ledger().AvailableSlots(r1.ID, d("2024-01-01"), d("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, 1, free)
	free, err = f.alloc.Ledger().AvailableSlots(r2.ID, d("2024-01-01"), d("2024-01-05"))
	require.NoError(t, err)
	assert.Zero(t, free)
	assert.Len(t, f.alloc.Registry().ListByRoom(r2.ID), 1)
	assert.Empty(t, f.alloc.Registry().ListByRoom(r1.ID))

	_, err = f.alloc.Update(ctx, a.ID, UpdateParams{RoomID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownRoom)
}

func TestStoreFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 1)

	f.store.failInsert = true
	_, err := f.alloc.Admit(ctx, stay("A", room.ID, "2024-01-01", "2024-01-03"))
	assert.ErrorIs(t, err, errStoreDown)
	free, err := f.alloc.Ledger().AvailableSlots(room.ID, d("2024-01-01"), d("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, 1, free)
	assert.Zero(t, f.alloc.Registry().Len())

	f.store.failInsert = false
	a, err := f.alloc.Admit(ctx, stay("A", room.ID, "2024-01-01", "2024-01-03"))
	require.NoError(t, err)

	f.store.failUpdate = true
	out := d("2024-01-06")
	_, err = f.alloc.Update(ctx, a.ID, UpdateParams{CheckOut: &out})
	assert.ErrorIs(t, err, errStoreDown)
	free, err = f.alloc.Ledger().AvailableSlots(room.ID, d("2024-01-03"), d("2024-01-06"))
	require.NoError(t, err)
	assert.Equal(t, 1, free, "extension undone")

	f.store.failDelete = true
	_, err = f.alloc.Remove(ctx, a.ID)
	assert.ErrorIs(t, err, errStoreDown)
	free, err = f.alloc.Ledger().AvailableSlots(room.ID, d("2024-01-01"), d("2024-01-03"))
	require.NoError(t, err)
	assert.Zero(t, free, "removal undone")
	_, err = f.alloc.Registry().Get(a.ID)
	assert.NoError(t, err)

	assert.NotContains(t, f.logs.String(), "rollback failed")
}

func TestUpdateRoomCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 3)
	for _, p := range []string{"A", "B"} {
		_, err := f.alloc.Admit(ctx, stay(p, room.ID, "2024-01-01", "2024-01-03"))
		require.NoError(t, err)
	}

	_, err := f.alloc.UpdateRoom(ctx, room.ID, RoomParams{Name: "Small", Capacity: 1})
	assert.ErrorIs(t, err, ErrCapacityBelowOccupancy)

	_, err = f.alloc.UpdateRoom(ctx, room.ID, RoomParams{Name: "Small", Capacity: 0})
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	f.store.failRoomEdit = true
	_, err = f.alloc.UpdateRoom(ctx, room.ID, RoomParams{Name: "Big", Capacity: 10})
	assert.ErrorIs(t, err, errStoreDown)
	c, err := f.alloc.Ledger().Capacity(room.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, c)

	f.store.failRoomEdit = false
	updated, err := f.alloc.UpdateRoom(ctx, room.ID, RoomParams{Name: "Pair", Capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Pair", updated.Name)
	assert.Equal(t, "b1", updated.BuildingID)
	_, err = f.alloc.Admit(ctx, stay("C", room.ID, "2024-01-02", "2024-01-03"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestRemoveRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 2)

	a, err := f.alloc.Admit(ctx, stay("A", room.ID, "2024-01-01", "2024-01-03"))
	require.NoError(t, err)

	err = f.alloc.RemoveRoom(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomOccupied)

	_, err = f.alloc.Remove(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, f.alloc.RemoveRoom(ctx, room.ID))

	_, err = f.alloc.Room(room.ID)
	assert.ErrorIs(t, err, ErrUnknownRoom)
	assert.ErrorIs(t, f.alloc.RemoveRoom(ctx, room.ID), ErrUnknownRoom)
}

func TestRemoveRoomDropsPastStays(t *testing.T) {
	f := newFixture(t)
	room := f.room(t, 1)
	_, err := f.alloc.Restore(
		[]model.Room{*room},
		[]model.Assignment{{ID: "old", PersonID: "A", PersonType: model.PersonTrainee, RoomID: room.ID, CheckIn: d("2023-01-01"), CheckOut: d("2023-01-05")}},
	)
	require.NoError(t, err)

	require.NoError(t, f.alloc.RemoveRoom(context.Background(), room.ID))
	assert.Zero(t, f.alloc.Registry().Len())
}

func TestRestoreReportsOverbooking(t *testing.T) {
	f := newFixture(t)
	rooms := []model.Room{{ID: "r1", BuildingID: "b1", Name: "One", Capacity: 1}}
	assignments := []model.Assignment{
		{ID: "a1", PersonID: "A", PersonType: model.PersonTrainee, RoomID: "r1", CheckIn: d("2024-01-01"), CheckOut: d("2024-01-04")},
		{ID: "a2", PersonID: "B", PersonType: model.PersonTrainee, RoomID: "r1", CheckIn: d("2024-01-03"), CheckOut: d("2024-01-05")},
	}

	over, err := f.alloc.Restore(rooms, assignments)
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, d("2024-01-03"), over[0].Day)
	assert.Equal(t, 2, over[0].Occupied)

	avail, err := f.alloc.Availability("b1", d("2024-01-03"), d("2024-01-04"), false)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Zero(t, avail[0].Available)

	// the overbooked day still blocks new admissions
	_, err = f.alloc.Admit(context.Background(), stay("C", "r1", "2024-01-03", "2024-01-04"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	// and releasing one of them works as usual
	_, err = f.alloc.Remove(context.Background(), "a2")
	require.NoError(t, err)

	over, err = f.alloc.Rebuild()
	require.NoError(t, err)
	assert.Empty(t, over)
}

func TestRestoreUnknownRoomIsConsistencyViolation(t *testing.T) {
	f := newFixture(t)
	_, err := f.alloc.Restore(nil, []model.Assignment{
		{ID: "a1", PersonID: "A", RoomID: "ghost", CheckIn: d("2024-01-01"), CheckOut: d("2024-01-02")},
	})
	assert.ErrorIs(t, err, ErrConsistencyViolation)
	assert.Contains(t, f.logs.String(), "ghost")
}

func TestRebuildMatchesIncrementalLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, 3)
	for i, r := range [][2]string{
		{"2024-01-01", "2024-01-04"},
		{"2024-01-02", "2024-01-06"},
		{"2024-01-03", "2024-01-04"},
	} {
		_, err := f.alloc.Admit(ctx, stay(string(rune('A'+i)), room.ID, r[0], r[1]))
		require.NoError(t, err)
	}

	before, err := f.alloc.Ledger().Occupancy(room.ID, d("2024-01-01"), d("2024-01-07"))
	require.NoError(t, err)
	over, err := f.alloc.Rebuild()
	require.NoError(t, err)
	assert.Empty(t, over)
	after, err := f.alloc.Ledger().Occupancy(room.ID, d("2024-01-01"), d("2024-01-07"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	full := f.room(t, 1)
	open := f.room(t, 2)
	_, err := f.alloc.Admit(ctx, stay("A", full.ID, "2024-01-01", "2024-01-10"))
	require.NoError(t, err)

	all, err := f.alloc.Availability("b1", d("2024-01-02"), d("2024-01-03"), false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	free, err := f.alloc.Availability("b1", d("2024-01-02"), d("2024-01-03"), true)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, open.ID, free[0].Room.ID)
	assert.Equal(t, 2, free[0].Available)

	_, err = f.alloc.Availability("b1", d("2024-01-03"), d("2024-01-02"), false)
	assert.ErrorIs(t, err, ErrInvalidRange)
}
