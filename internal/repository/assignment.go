package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/allocation"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentRepository handles persistence for assignments.
type AssignmentRepository struct {
	db *pgxpool.Pool
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// InsertAssignment stores a new assignment after re-checking capacity in
// the database. The allocator has already admitted the stay in memory;
// the second check under a row lock keeps two service instances sharing
// one database from overbooking each other.
func (r *AssignmentRepository) InsertAssignment(ctx context.Context, a *model.Assignment) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := guardCapacity(ctx, tx, a); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO assignments
			   (id, person_id, person_type, room_id, building_id, check_in, check_out, payment_status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			a.ID, a.PersonID, string(a.PersonType), a.RoomID, a.BuildingID,
			a.CheckIn.Time(), a.CheckOut.Time(), string(a.PaymentStatus), a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		return nil
	})
}

// UpdateAssignment rewrites room, dates and payment status with the same
// database-side capacity check as InsertAssignment, excluding the row itself.
func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, a *model.Assignment) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := guardCapacity(ctx, tx, a); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE assignments
			 SET room_id = $2, building_id = $3, check_in = $4, check_out = $5, payment_status = $6, updated_at = $7
			 WHERE id = $1`,
			a.ID, a.RoomID, a.BuildingID, a.CheckIn.Time(), a.CheckOut.Time(), string(a.PaymentStatus), a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteAssignment removes one assignment.
func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all assignments ordered by check-in.
func (r *AssignmentRepository) List(ctx context.Context) ([]model.Assignment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, person_id, person_type, room_id, building_id, check_in, check_out, payment_status, created_at, updated_at
		 FROM assignments
		 ORDER BY check_in, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var (
			a                 model.Assignment
			personType, paid  string
			checkIn, checkOut time.Time
		)
		if err := rows.Scan(&a.ID, &a.PersonID, &personType, &a.RoomID, &a.BuildingID,
			&checkIn, &checkOut, &paid, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.PersonType = model.PersonType(personType)
		a.PaymentStatus = model.PaymentStatus(paid)
		a.CheckIn = model.DateOf(checkIn)
		a.CheckOut = model.DateOf(checkOut)
		out = append(out, a)
	}
	return out, rows.Err()
}

// guardCapacity locks the room row with SELECT … FOR UPDATE and looks for
// the first day of the stay on which the other assignments already fill
// the room. Concurrent writers for the same room queue on the row lock.
func guardCapacity(ctx context.Context, tx pgx.Tx, a *model.Assignment) error {
	var capacity int
	err := tx.QueryRow(ctx, `SELECT capacity FROM rooms WHERE id = $1 FOR UPDATE`, a.RoomID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return allocation.ErrUnknownRoom
		}
		return fmt.Errorf("lock room row: %w", err)
	}

	var (
		day      time.Time
		occupied int
	)
	err = tx.QueryRow(ctx,
		`SELECT d::date, COUNT(a.id)
		 FROM generate_series($2::date, $3::date - 1, interval '1 day') AS d
		 LEFT JOIN assignments a
		   ON a.room_id = $1 AND a.id <> $4 AND a.check_in <= d::date AND a.check_out > d::date
		 GROUP BY d
		 HAVING COUNT(a.id) >= $5
		 ORDER BY d
		 LIMIT 1`,
		a.RoomID, a.CheckIn.Time(), a.CheckOut.Time(), a.ID, capacity,
	).Scan(&day, &occupied)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check room capacity: %w", err)
	}
	return allocation.NewCapacityError(a.RoomID, model.DateOf(day), capacity, occupied)
}
