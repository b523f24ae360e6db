package allocation

import (
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
)

// Registry is the system of record for admitted stays. It is written only
// by the Allocator; every value it returns is a copy.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*model.Assignment
	byRoom   map[string]map[string]struct{}
	byPerson map[string]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*model.Assignment),
		byRoom:   make(map[string]map[string]struct{}),
		byPerson: make(map[string]map[string]struct{}),
	}
}

// Get returns one assignment or ErrNotFound.
func (r *Registry) Get(id string) (*model.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// List returns every assignment ordered by check-in date.
func (r *Registry) List() []model.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Assignment, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, *a)
	}
	sortAssignments(out)
	return out
}

// ListByRoom returns the assignments of one room ordered by check-in date.
func (r *Registry) ListByRoom(roomID string) []model.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byRoom[roomID])
}

// ListByPerson returns the assignments of one person ordered by check-in date.
func (r *Registry) ListByPerson(personID string) []model.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byPerson[personID])
}

// ListActive returns the assignments whose stay contains asOf.
func (r *Registry) ListActive(asOf model.Date) []model.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Assignment
	for _, a := range r.byID {
		if a.Contains(asOf) {
			out = append(out, *a)
		}
	}
	sortAssignments(out)
	return out
}

// ListOverlapping returns the assignments sharing at least one day with [from, to).
func (r *Registry) ListOverlapping(from, to model.Date) []model.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Assignment
	for _, a := range r.byID {
		if a.Overlaps(from, to) {
			out = append(out, *a)
		}
	}
	sortAssignments(out)
	return out
}

// Len returns the number of assignments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// tenants counts assignments of a room that are current or future-dated on asOf.
func (r *Registry) tenants(roomID string, asOf model.Date) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for id := range r.byRoom[roomID] {
		if r.byID[id].ActiveOn(asOf) {
			n++
		}
	}
	return n
}

func (r *Registry) collect(ids map[string]struct{}) []model.Assignment {
	out := make([]model.Assignment, 0, len(ids))
	for id := range ids {
		out = append(out, *r.byID[id])
	}
	sortAssignments(out)
	return out
}

func (r *Registry) put(a *model.Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[a.ID]; ok {
		r.unindex(old)
	}
	cp := *a
	r.byID[a.ID] = &cp
	index(r.byRoom, cp.RoomID, cp.ID)
	index(r.byPerson, cp.PersonID, cp.ID)
}

func (r *Registry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[id]; ok {
		r.unindex(old)
		delete(r.byID, id)
	}
}

// dropRoom removes every assignment of a room and returns how many were dropped.
func (r *Registry) dropRoom(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byRoom[roomID]
	n := len(ids)
	for id := range ids {
		r.unindex(r.byID[id])
		delete(r.byID, id)
	}
	return n
}

func (r *Registry) unindex(a *model.Assignment) {
	unindex(r.byRoom, a.RoomID, a.ID)
	unindex(r.byPerson, a.PersonID, a.ID)
}

func index(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}

func unindex(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}

func sortAssignments(as []model.Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].CheckIn != as[j].CheckIn {
			return as[i].CheckIn.Before(as[j].CheckIn)
		}
		return as[i].ID < as[j].ID
	})
}
