// Package model defines the core domain types for the dormitory allocation system.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PersonType tags the kind of person occupying a slot.
type PersonType string

const (
	PersonTrainee PersonType = "trainee"
	PersonTrainer PersonType = "trainer"
)

// Valid reports whether t is a known person type.
func (t PersonType) Valid() bool {
	return t == PersonTrainee || t == PersonTrainer
}

// PaymentStatus is opaque to the allocation engine; it is stored and returned as-is.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

// RequestStatus is the state of a ReservationRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// Building is a dormitory building. The allocation engine never mutates it.
type Building struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	TotalRooms     int             `json:"total_rooms"`
	TotalRestrooms int             `json:"total_restrooms"`
	TotalKitchens  int             `json:"total_kitchens"`
	DailyRate      decimal.Decimal `json:"daily_rate"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Room is a set of slots inside a building.
type Room struct {
	ID         string          `json:"id"`
	BuildingID string          `json:"building_id"`
	Name       string          `json:"name"`
	Capacity   int             `json:"capacity"`
	CostPerDay decimal.Decimal `json:"cost_per_day"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Assignment is an admitted stay of one person in one room over
// the half-open range [CheckIn, CheckOut).
type Assignment struct {
	ID            string        `json:"id"`
	PersonID      string        `json:"person_id"`
	PersonType    PersonType    `json:"person_type"`
	RoomID        string        `json:"room_id"`
	BuildingID    string        `json:"building_id"`
	CheckIn       Date          `json:"check_in"`
	CheckOut      Date          `json:"check_out"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Nights returns the number of occupied days.
func (a *Assignment) Nights() int {
	return a.CheckIn.DaysUntil(a.CheckOut)
}

// Contains reports whether the stay occupies day d.
func (a *Assignment) Contains(d Date) bool {
	return !d.Before(a.CheckIn) && d.Before(a.CheckOut)
}

// Overlaps reports whether the stay shares at least one day with [from, to).
func (a *Assignment) Overlaps(from, to Date) bool {
	return a.CheckIn.Before(to) && from.Before(a.CheckOut)
}

// ActiveOn reports whether the assignment still holds its room on or after day d:
// either the stay contains d or it has not started yet.
func (a *Assignment) ActiveOn(d Date) bool {
	return d.Before(a.CheckOut)
}

// StayCost is the number of nights times the given daily cost.
func (a *Assignment) StayCost(costPerDay decimal.Decimal) decimal.Decimal {
	return costPerDay.Mul(decimal.NewFromInt(int64(a.Nights())))
}

// ReservationRequest is a trainee's request for a dormitory stay.
// The allocation fields are set only when the request is approved.
type ReservationRequest struct {
	ID            string        `json:"id"`
	PersonID      string        `json:"person_id"`
	PersonType    PersonType    `json:"person_type"`
	RequestedDate string        `json:"requested_date"`
	Status        RequestStatus `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	BuildingID    string        `json:"building_id,omitempty"`
	RoomID        string        `json:"room_id,omitempty"`
	CheckIn       *Date         `json:"check_in,omitempty"`
	CheckOut      *Date         `json:"check_out,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
	AssignmentID  string        `json:"assignment_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
}

// DayOccupancy is the number of occupied slots in a room on one day.
type DayOccupancy struct {
	Day      Date `json:"day"`
	Occupied int  `json:"occupied"`
	Capacity int  `json:"capacity"`
}

// RoomAvailability summarises free slots of a room over a date range.
type RoomAvailability struct {
	Room      Room `json:"room"`
	Available int  `json:"available"`
}
