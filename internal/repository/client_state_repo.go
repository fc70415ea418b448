package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientStateRepository persists per-browser token store entries in Postgres.
// It satisfies tokenstore.Backend.
type ClientStateRepository struct {
	pool *pgxpool.Pool
}

func NewClientStateRepository(pool *pgxpool.Pool) *ClientStateRepository {
	return &ClientStateRepository{pool: pool}
}

func (r *ClientStateRepository) Get(ctx context.Context, sessionID string, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM client_state WHERE session_id = $1 AND key = $2`,
		sessionID, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get client state: %w", err)
	}
	return value, true, nil
}

func (r *ClientStateRepository) Set(ctx context.Context, sessionID string, key string, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO client_state (session_id, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		sessionID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set client state: %w", err)
	}
	return nil
}

func (r *ClientStateRepository) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`DELETE FROM client_state WHERE session_id = $1 AND key = ANY($2)`,
		sessionID, keys)
	if err != nil {
		return fmt.Errorf("delete client state: %w", err)
	}
	return nil
}

// PurgeIdle removes every browser whose state has not been written since cutoff.
func (r *ClientStateRepository) PurgeIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM client_state WHERE session_id IN (
		     SELECT session_id FROM client_state
		     GROUP BY session_id
		     HAVING max(updated_at) <= $1
		 )`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge idle client state: %w", err)
	}
	return tag.RowsAffected(), nil
}
