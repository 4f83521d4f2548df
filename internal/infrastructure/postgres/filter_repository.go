package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FilterRepository stores per-user notification filter expressions.
type FilterRepository struct {
	pool *pgxpool.Pool
}

func NewFilterRepository(pool *pgxpool.Pool) *FilterRepository {
	return &FilterRepository{pool: pool}
}

// Get returns the user's filter expression, or "" when none is set.
func (r *FilterRepository) Get(ctx context.Context, userID uuid.UUID) (string, error) {
	row := r.pool.QueryRow(ctx, `SELECT expression FROM notification_filters WHERE user_id=$1`, userID)
	var expr string
	if err := row.Scan(&expr); err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return expr, nil
}

// Set upserts the user's filter expression; an empty expression removes it.
func (r *FilterRepository) Set(ctx context.Context, userID uuid.UUID, expression string) error {
	if expression == "" {
		_, err := r.pool.Exec(ctx, `DELETE FROM notification_filters WHERE user_id=$1`, userID)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_filters (user_id, expression, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET expression=EXCLUDED.expression, updated_at=EXCLUDED.updated_at
	`, userID, expression, time.Now().UTC())
	return err
}
