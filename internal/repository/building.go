package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BuildingRepository handles persistence for buildings.
type BuildingRepository struct {
	db *pgxpool.Pool
}

// NewBuildingRepository constructs a BuildingRepository.
func NewBuildingRepository(db *pgxpool.Pool) *BuildingRepository {
	return &BuildingRepository{db: db}
}

// InsertBuilding stores a new building.
func (r *BuildingRepository) InsertBuilding(ctx context.Context, b *model.Building) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO buildings (id, name, total_rooms, total_restrooms, total_kitchens, daily_rate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`,
		b.ID, b.Name, b.TotalRooms, b.TotalRestrooms, b.TotalKitchens, b.DailyRate.String(), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert building: %w", err)
	}
	return nil
}

// UpdateBuilding rewrites the editable columns of a building.
func (r *BuildingRepository) UpdateBuilding(ctx context.Context, b *model.Building) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE buildings
		 SET name = $2, total_rooms = $3, total_restrooms = $4, total_kitchens = $5, daily_rate = $6::numeric
		 WHERE id = $1`,
		b.ID, b.Name, b.TotalRooms, b.TotalRestrooms, b.TotalKitchens, b.DailyRate.String(),
	)
	if err != nil {
		return fmt.Errorf("update building: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBuilding removes a building that owns no rooms. The building row is
// locked with SELECT … FOR UPDATE so a concurrent room insert referencing
// it waits until the delete commits or rolls back.
func (r *BuildingRepository) DeleteBuilding(ctx context.Context, id string) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM buildings WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock building row: %w", err)
		}

		var rooms int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM rooms WHERE building_id = $1`, id).Scan(&rooms); err != nil {
			return fmt.Errorf("count rooms: %w", err)
		}
		if rooms > 0 {
			return ErrBuildingHasRooms
		}

		if _, err := tx.Exec(ctx, `DELETE FROM buildings WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete building: %w", err)
		}
		return nil
	})
}

// List returns all buildings ordered by name.
func (r *BuildingRepository) List(ctx context.Context) ([]model.Building, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, total_rooms, total_restrooms, total_kitchens, daily_rate::text, created_at
		 FROM buildings
		 ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()

	var out []model.Building
	for rows.Next() {
		var (
			b    model.Building
			rate string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.TotalRooms, &b.TotalRestrooms, &b.TotalKitchens, &rate, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		if b.DailyRate, err = parseDecimal(rate); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
