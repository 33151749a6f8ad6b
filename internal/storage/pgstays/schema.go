package pgstays

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS stays (
  id BIGSERIAL PRIMARY KEY,
  identity_hash TEXT NOT NULL,
  title TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  currency TEXT NOT NULL,
  rating DOUBLE PRECISION NOT NULL DEFAULT 0,
  location TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  image_url TEXT NULL,
  description TEXT NULL,
  amenities JSONB NULL,
  source TEXT NOT NULL,
  first_seen TIMESTAMPTZ NOT NULL,
  last_seen TIMESTAMPTZ NOT NULL,
  times_seen INT NOT NULL DEFAULT 1,
  notified BOOLEAN NOT NULL DEFAULT FALSE,
  UNIQUE (identity_hash)
)`,
		`CREATE INDEX IF NOT EXISTS idx_stays_first_seen ON stays(first_seen) WHERE NOT notified`,
		`
CREATE TABLE IF NOT EXISTS price_observations (
  id BIGSERIAL PRIMARY KEY,
  stay_id BIGINT NOT NULL REFERENCES stays(id) ON DELETE CASCADE,
  price DOUBLE PRECISION NOT NULL,
  currency TEXT NOT NULL,
  observed_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_price_observations_stay_id_observed_at ON price_observations(stay_id, observed_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS searches (
  id BIGSERIAL PRIMARY KEY,
  criteria_hash TEXT NOT NULL,
  results_count INT NOT NULL DEFAULT 0,
  criteria_json JSONB NOT NULL,
  execution_ms BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_criteria_hash ON searches(criteria_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at)`,
		`
CREATE TABLE IF NOT EXISTS notifications (
  id BIGSERIAL PRIMARY KEY,
  stay_ids BIGINT[] NOT NULL,
  kind TEXT NOT NULL,
  success BOOLEAN NOT NULL DEFAULT TRUE,
  error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
