// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/allocation"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/catalog"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/repository"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/reservation"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/service"
	"github.com/go-chi/chi/v5"
)

// DormHandler holds all HTTP handlers for the dormitory API.
type DormHandler struct {
	svc *service.DormService
}

// NewDormHandler constructs a DormHandler.
func NewDormHandler(svc *service.DormService) *DormHandler {
	return &DormHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors to HTTP statuses. Conflicts carry
// the details a caller needs to choose another room or date range.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var capErr *allocation.CapacityError
	switch {
	case errors.As(err, &capErr):
		code := "capacity_exceeded"
		if errors.Is(err, allocation.ErrCapacityBelowOccupancy) {
			code = "capacity_below_occupancy"
		}
		day := capErr.Day
		writeJSON(w, http.StatusConflict, model.ConflictResponse{
			Error:    capErr.Error(),
			Code:     code,
			RoomID:   capErr.RoomID,
			Day:      &day,
			Capacity: capErr.Capacity,
			Occupied: capErr.Occupied,
		})

	case errors.Is(err, reservation.ErrAlreadyProcessed):
		writeJSON(w, http.StatusConflict, model.ConflictResponse{Error: err.Error(), Code: "already_processed"})
	case errors.Is(err, allocation.ErrRoomOccupied):
		writeJSON(w, http.StatusConflict, model.ConflictResponse{Error: err.Error(), Code: "room_occupied"})
	case errors.Is(err, repository.ErrBuildingHasRooms):
		writeJSON(w, http.StatusConflict, model.ConflictResponse{Error: err.Error(), Code: "building_has_rooms"})

	case errors.Is(err, service.ErrValidation),
		errors.Is(err, allocation.ErrInvalidRange),
		errors.Is(err, allocation.ErrInvalidPaymentStatus),
		errors.Is(err, allocation.ErrInvalidCapacity),
		errors.Is(err, allocation.ErrUnknownPerson),
		errors.Is(err, catalog.ErrInvalidBuilding),
		errors.Is(err, reservation.ErrAllocationRequired),
		errors.Is(err, reservation.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, allocation.ErrUnknownRoom),
		errors.Is(err, allocation.ErrNotFound),
		errors.Is(err, reservation.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Buildings ────────────────────────────────────────────────────────────────

// CreateBuilding handles POST /buildings
func (h *DormHandler) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBuildingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	b, err := h.svc.CreateBuilding(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ListBuildings handles GET /buildings
func (h *DormHandler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListBuildings(r.Context()))
}

// GetBuilding handles GET /buildings/{id}
func (h *DormHandler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBuilding(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// UpdateBuilding handles PUT /buildings/{id}
func (h *DormHandler) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBuildingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	b, err := h.svc.UpdateBuilding(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBuilding handles DELETE /buildings/{id}
func (h *DormHandler) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBuilding(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Availability handles GET /buildings/{id}/availability?from=&to=&free=
// Returns the free slots of each room over the half-open range [from, to);
// an over-capacity room shows 0, never a negative count.
func (h *DormHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rooms, err := h.svc.Availability(r.Context(), chi.URLParam(r, "id"), q.Get("from"), q.Get("to"), q.Get("free") == "true")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// ─── Rooms ────────────────────────────────────────────────────────────────────

// CreateRoom handles POST /buildings/{id}/rooms
func (h *DormHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	room, err := h.svc.CreateRoom(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// ListRooms handles GET /buildings/{id}/rooms
func (h *DormHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.svc.ListRooms(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetRoom handles GET /rooms/{id}
func (h *DormHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.svc.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// UpdateRoom handles PUT /rooms/{id}
func (h *DormHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	room, err := h.svc.UpdateRoom(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeleteRoom handles DELETE /rooms/{id}
func (h *DormHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRoom(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RoomOccupancy handles GET /rooms/{id}/occupancy?from=&to=
func (h *DormHandler) RoomOccupancy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := h.svc.RoomOccupancy(r.Context(), chi.URLParam(r, "id"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// ─── Assignments ──────────────────────────────────────────────────────────────

// CreateAssignment handles POST /assignments
// Admits a stay directly; capacity is still enforced by the allocator.
func (h *DormHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	a, err := h.svc.CreateAssignment(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListAssignments handles GET /assignments?room=&person=&active=&from=&to=
func (h *DormHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	as, err := h.svc.ListAssignments(r.Context(), service.AssignmentFilter{
		RoomID:   q.Get("room"),
		PersonID: q.Get("person"),
		ActiveOn: q.Get("active"),
		From:     q.Get("from"),
		To:       q.Get("to"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, as)
}

// GetAssignment handles GET /assignments/{id}
func (h *DormHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAssignment handles PUT /assignments/{id}
func (h *DormHandler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	a, err := h.svc.UpdateAssignment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAssignment handles DELETE /assignments/{id}
func (h *DormHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAssignment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Reservation requests ─────────────────────────────────────────────────────

// SubmitRequest handles POST /requests
func (h *DormHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rr, err := h.svc.SubmitRequest(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rr)
}

// ListRequests handles GET /requests?status=&person=
func (h *DormHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := h.svc.ListRequests(r.Context(), q.Get("status"), q.Get("person"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

// GetRequest handles GET /requests/{id}
func (h *DormHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	rr, err := h.svc.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

// ProcessRequest handles POST /requests/{id}/process
// On a capacity conflict the request stays pending and 409 is returned.
func (h *DormHandler) ProcessRequest(w http.ResponseWriter, r *http.Request) {
	var req model.ProcessReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	rr, err := h.svc.ProcessRequest(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
