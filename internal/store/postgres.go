package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/Consensus/internal/fairness"
	"github.com/MikeSquared-Agency/Consensus/internal/profile"
)

const schema = `
CREATE TABLE IF NOT EXISTS consensus_profiles (
	user_id    TEXT PRIMARY KEY,
	profile    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS consensus_recommendations (
	id         UUID PRIMARY KEY,
	user_ids   TEXT[] NOT NULL,
	mode       TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM consensus_profiles WHERE user_id = $1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return decodeProfile(raw)
}

// UpdateProfile holds a transaction-scoped advisory lock on the user ID so
// that updates for the same user, including the first one, run one at a time.
func (s *PostgresStore) UpdateProfile(ctx context.Context, userID string, fn UpdateFn) (*profile.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, fmt.Errorf("lock profile %s: %w", userID, err)
	}

	var current *profile.Profile
	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT profile FROM consensus_profiles WHERE user_id = $1`, userID,
	).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read profile %s: %w", userID, err)
	default:
		if current, err = decodeProfile(raw); err != nil {
			return nil, err
		}
	}

	next, err := apply(fn, current)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode profile %s: %w", userID, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO consensus_profiles (user_id, profile, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = now()`,
		userID, data,
	)
	if err != nil {
		return nil, fmt.Errorf("write profile %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit profile %s: %w", userID, err)
	}
	return next, nil
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM consensus_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveRecommendation(ctx context.Context, rec *Recommendation) error {
	rec.prepare(time.Now().UTC())
	data, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode recommendation: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO consensus_recommendations (id, user_ids, mode, result, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.UserIDs, string(rec.Mode), data, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecommendation(ctx context.Context, id uuid.UUID) (*Recommendation, error) {
	rec := &Recommendation{}
	var mode string
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_ids, mode, result, created_at
		FROM consensus_recommendations WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.UserIDs, &mode, &raw, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation %s: %w", id, err)
	}
	rec.Mode = fairness.Mode(mode)
	rec.Result = &fairness.Result{}
	if err := json.Unmarshal(raw, rec.Result); err != nil {
		return nil, fmt.Errorf("decode recommendation %s: %w", id, err)
	}
	return rec, nil
}

func decodeProfile(raw []byte) (*profile.Profile, error) {
	p := &profile.Profile{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.History.Ratings == nil {
		p.History.Ratings = map[string]float64{}
	}
	return p, nil
}
