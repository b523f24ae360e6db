package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the chi router with the global middleware stack and
// every API route.
func NewRouter(h *DormHandler) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)                  // access log
	r.Use(CORS)                    // permissive CORS

	r.Get("/health", HealthCheck)

	r.Route("/buildings", func(r chi.Router) {
		r.Post("/", h.CreateBuilding)
		r.Get("/", h.ListBuildings)
		r.Get("/{id}", h.GetBuilding)
		r.Put("/{id}", h.UpdateBuilding)
		r.Delete("/{id}", h.DeleteBuilding)
		r.Get("/{id}/availability", h.Availability)
		r.Post("/{id}/rooms", h.CreateRoom)
		r.Get("/{id}/rooms", h.ListRooms)
	})

	r.Route("/rooms", func(r chi.Router) {
		r.Get("/{id}", h.GetRoom)
		r.Put("/{id}", h.UpdateRoom)
		r.Delete("/{id}", h.DeleteRoom)
		r.Get("/{id}/occupancy", h.RoomOccupancy)
	})

	r.Route("/assignments", func(r chi.Router) {
		r.Post("/", h.CreateAssignment)
		r.Get("/", h.ListAssignments)
		r.Get("/{id}", h.GetAssignment)
		r.Put("/{id}", h.UpdateAssignment)
		r.Delete("/{id}", h.DeleteAssignment)
	})

	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.SubmitRequest)
		r.Get("/", h.ListRequests)
		r.Get("/{id}", h.GetRequest)
		r.Post("/{id}/process", h.ProcessRequest)
	})

	return r
}
