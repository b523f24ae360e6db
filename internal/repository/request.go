package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RequestRepository handles persistence for reservation requests.
type RequestRepository struct {
	db *pgxpool.Pool
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: db}
}

// InsertRequest stores a newly submitted request.
func (r *RequestRepository) InsertRequest(ctx context.Context, req *model.ReservationRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reservation_requests (id, person_id, person_type, requested_date, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.PersonID, string(req.PersonType), req.RequestedDate, string(req.Status), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// UpdateRequest records a decision. The WHERE clause only matches pending
// rows, so a request is never moved out of a terminal state.
func (r *RequestRepository) UpdateRequest(ctx context.Context, req *model.ReservationRequest) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE reservation_requests
		 SET status = $2, reason = $3, building_id = $4, room_id = $5, check_in = $6, check_out = $7,
		     payment_status = $8, assignment_id = $9, processed_at = $10
		 WHERE id = $1 AND status = 'pending'`,
		req.ID, string(req.Status), req.Reason, nullString(req.BuildingID), nullString(req.RoomID),
		dateOrNil(req.CheckIn), dateOrNil(req.CheckOut), string(req.PaymentStatus),
		nullString(req.AssignmentID), req.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all requests, oldest first.
func (r *RequestRepository) List(ctx context.Context) ([]model.ReservationRequest, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, person_id, person_type, requested_date, status, reason, building_id, room_id,
		        check_in, check_out, payment_status, assignment_id, created_at, processed_at
		 FROM reservation_requests
		 ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []model.ReservationRequest
	for rows.Next() {
		var (
			req                       model.ReservationRequest
			personType, status, paid  string
			buildingID, roomID, asgID *string
			checkIn, checkOut         *time.Time
		)
		if err := rows.Scan(&req.ID, &req.PersonID, &personType, &req.RequestedDate, &status, &req.Reason,
			&buildingID, &roomID, &checkIn, &checkOut, &paid, &asgID, &req.CreatedAt, &req.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		req.PersonType = model.PersonType(personType)
		req.Status = model.RequestStatus(status)
		req.PaymentStatus = model.PaymentStatus(paid)
		req.BuildingID = derefString(buildingID)
		req.RoomID = derefString(roomID)
		req.AssignmentID = derefString(asgID)
		req.CheckIn = dateFromNullable(checkIn)
		req.CheckOut = dateFromNullable(checkOut)
		out = append(out, req)
	}
	return out, rows.Err()
}
