package model

import (
	"github.com/shopspring/decimal"
)

// CreateBuildingRequest is the payload for creating or editing a building.
type CreateBuildingRequest struct {
	Name           string          `json:"name" validate:"required,max=120"`
	TotalRooms     int             `json:"total_rooms" validate:"min=0"`
	TotalRestrooms int             `json:"total_restrooms" validate:"min=0"`
	TotalKitchens  int             `json:"total_kitchens" validate:"min=0"`
	DailyRate      decimal.Decimal `json:"daily_rate"`
}

// CreateRoomRequest is the payload for creating or editing a room.
type CreateRoomRequest struct {
	Name       string          `json:"name" validate:"required,max=120"`
	Capacity   int             `json:"capacity" validate:"min=1,max=1000"`
	CostPerDay decimal.Decimal `json:"cost_per_day"`
}

// CreateAssignmentRequest is the administrative admission payload.
type CreateAssignmentRequest struct {
	PersonID      string `json:"person_id" validate:"required"`
	PersonType    string `json:"person_type" validate:"required,oneof=trainee trainer"`
	RoomID        string `json:"room_id" validate:"required"`
	CheckIn       string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut      string `json:"check_out" validate:"required,datetime=2006-01-02"`
	PaymentStatus string `json:"payment_status" validate:"omitempty,oneof=unpaid partial paid"`
}

// UpdateAssignmentRequest changes the dates, payment status or room of an
// assignment. Empty fields keep their current value.
type UpdateAssignmentRequest struct {
	RoomID        string `json:"room_id"`
	CheckIn       string `json:"check_in" validate:"omitempty,datetime=2006-01-02"`
	CheckOut      string `json:"check_out" validate:"omitempty,datetime=2006-01-02"`
	PaymentStatus string `json:"payment_status" validate:"omitempty,oneof=unpaid partial paid"`
}

// SubmitReservationRequest is the trainee-facing submission payload.
type SubmitReservationRequest struct {
	PersonID      string `json:"person_id" validate:"required"`
	PersonType    string `json:"person_type" validate:"omitempty,oneof=trainee trainer"`
	RequestedDate string `json:"requested_date" validate:"max=120"`
}

// ProcessReservationRequest approves or rejects a pending request.
// The allocation fields are required for approval.
type ProcessReservationRequest struct {
	Decision      string `json:"decision" validate:"required,oneof=approved rejected"`
	Reason        string `json:"reason" validate:"max=500"`
	BuildingID    string `json:"building_id" validate:"required_if=Decision approved"`
	RoomID        string `json:"room_id" validate:"required_if=Decision approved"`
	CheckIn       string `json:"check_in" validate:"required_if=Decision approved"`
	CheckOut      string `json:"check_out" validate:"required_if=Decision approved"`
	PaymentStatus string `json:"payment_status" validate:"omitempty,oneof=unpaid partial paid"`
}

// AssignmentView is an assignment enriched with its stay cost.
type AssignmentView struct {
	Assignment
	Nights int             `json:"nights"`
	Cost   decimal.Decimal `json:"cost"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConflictResponse carries enough detail for the caller to pick another
// room or date range.
type ConflictResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	RoomID   string `json:"room_id,omitempty"`
	Day      *Date  `json:"day,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
	Occupied int    `json:"occupied,omitempty"`
}
