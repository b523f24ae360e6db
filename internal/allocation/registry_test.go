package allocation

import (
	"testing"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIndexes(t *testing.T) {
	r := NewRegistry()
	r.put(&model.Assignment{ID: "b", PersonID: "p1", RoomID: "r1", CheckIn: d("2024-01-05"), CheckOut: d("2024-01-07")})
	r.put(&model.Assignment{ID: "a", PersonID: "p1", RoomID: "r2", CheckIn: d("2024-01-05"), CheckOut: d("2024-01-06")})
	r.put(&model.Assignment{ID: "c", PersonID: "p2", RoomID: "r1", CheckIn: d("2024-01-01"), CheckOut: d("2024-01-03")})

	ids := func(as []model.Assignment) []string {
		out := make([]string, len(as))
		for i, a := range as {
			out[i] = a.ID
		}
		return out
	}

	assert.Equal(t, []string{"c", "a", "b"}, ids(r.List()), "ordered by check-in, then id")
	assert.Equal(t, []string{"c", "b"}, ids(r.ListByRoom("r1")))
	assert.Equal(t, []string{"a", "b"}, ids(r.ListByPerson("p1")))
	assert.Equal(t, []string{"b"}, ids(r.ListActive(d("2024-01-06"))))
	assert.Equal(t, []string{"c", "a", "b"}, ids(r.ListOverlapping(d("2024-01-02"), d("2024-01-06"))))
	assert.Equal(t, []string{"b"}, ids(r.ListOverlapping(d("2024-01-06"), d("2024-01-10"))))
	assert.Empty(t, r.ListOverlapping(d("2024-01-03"), d("2024-01-05")), "check-out and check-in days do not overlap")
	assert.Equal(t, 2, r.tenants("r1", d("2024-01-02")))
	assert.Equal(t, 1, r.tenants("r1", d("2024-01-03")))

	// moving b to r2 reindexes it
	r.put(&model.Assignment{ID: "b", PersonID: "p1", RoomID: "r2", CheckIn: d("2024-01-05"), CheckOut: d("2024-01-07")})
	assert.Equal(t, []string{"c"}, ids(r.ListByRoom("r1")))
	assert.Equal(t, []string{"a", "b"}, ids(r.ListByRoom("r2")))

	assert.Equal(t, 2, r.dropRoom("r2"))
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, r.ListByPerson("p1"))

	r.delete("c")
	_, err := r.Get("c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.put(&model.Assignment{ID: "a", PersonID: "p1", RoomID: "r1", CheckIn: d("2024-01-01"), CheckOut: d("2024-01-02")})

	got, err := r.Get("a")
	require.NoError(t, err)
	got.RoomID = "elsewhere"

	again, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "r1", again.RoomID)
}
