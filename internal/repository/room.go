package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomRepository handles persistence for rooms.
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

// InsertRoom stores a new room.
func (r *RoomRepository) InsertRoom(ctx context.Context, room *model.Room) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO rooms (id, building_id, name, capacity, cost_per_day, created_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
		room.ID, room.BuildingID, room.Name, room.Capacity, room.CostPerDay.String(), room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// UpdateRoom rewrites name, capacity and cost of a room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room *model.Room) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE rooms SET name = $2, capacity = $3, cost_per_day = $4::numeric WHERE id = $1`,
		room.ID, room.Name, room.Capacity, room.CostPerDay.String(),
	)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRoom removes a room; its assignments go with it (ON DELETE CASCADE).
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all rooms ordered by building and name.
func (r *RoomRepository) List(ctx context.Context) ([]model.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, building_id, name, capacity, cost_per_day::text, created_at
		 FROM rooms
		 ORDER BY building_id, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var (
			room model.Room
			cost string
		)
		if err := rows.Scan(&room.ID, &room.BuildingID, &room.Name, &room.Capacity, &cost, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if room.CostPerDay, err = parseDecimal(cost); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}
