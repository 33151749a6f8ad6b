package pgstays

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/StayScout/internal/identity"
	"github.com/BearBump/StayScout/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Upsert записывает кандидата по его identity hash. Существующая запись
// мутирует (цена/рейтинг/last_seen/times_seen); наблюдение цены добавляется
// только если цена или валюта изменились с прошлого раза.
func (s *Storage) Upsert(ctx context.Context, c models.Candidate) (uint64, error) {
	now := time.Now().UTC()
	hash := identity.ItemIdentity(c)

	amenities, err := json.Marshal(c.Amenities)
	if err != nil {
		return 0, errors.Wrap(err, "marshal amenities")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		id           uint64
		prevPrice    float64
		prevCurrency string
	)
	err = tx.QueryRow(ctx, `
SELECT id, price, currency FROM stays WHERE identity_hash = $1 FOR UPDATE
`, hash).Scan(&id, &prevPrice, &prevCurrency)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx, `
UPDATE stays
SET
  title = $2, price = $3, currency = $4, rating = $5,
  location = $6, url = $7, image_url = $8, description = $9, amenities = $10,
  last_seen = $11,
  times_seen = times_seen + 1
WHERE id = $1
`, id, c.Title, c.Price, c.Currency, c.Rating,
			c.Location, c.URL, c.ImageURL, c.Description, amenities, now)
		if err != nil {
			return 0, errors.Wrap(err, "update stay")
		}

		if prevPrice != c.Price || prevCurrency != c.Currency {
			if err := insertObservation(ctx, tx, id, c.Price, c.Currency, now); err != nil {
				return 0, err
			}
		}

	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
INSERT INTO stays (
  identity_hash, title, price, currency, rating,
  location, url, image_url, description, amenities, source,
  first_seen, last_seen, times_seen, notified
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12,1,FALSE)
RETURNING id
`, hash, c.Title, c.Price, c.Currency, c.Rating,
			c.Location, c.URL, c.ImageURL, c.Description, amenities, c.Source, now).Scan(&id)
		if err != nil {
			return 0, errors.Wrap(err, "insert stay")
		}

		if err := insertObservation(ctx, tx, id, c.Price, c.Currency, now); err != nil {
			return 0, err
		}

	default:
		return 0, errors.Wrap(err, "select stay for update")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return id, nil
}

func insertObservation(ctx context.Context, tx pgx.Tx, stayID uint64, price float64, currency string, at time.Time) error {
	_, err := tx.Exec(ctx, `
INSERT INTO price_observations (stay_id, price, currency, observed_at)
VALUES ($1,$2,$3,$4)
`, stayID, price, currency, at)
	return errors.Wrap(err, "insert price observation")
}

// NewSince возвращает записи, впервые увиденные внутри окна и ещё не
// отправленные в уведомлении.
func (s *Storage) NewSince(ctx context.Context, window time.Duration) ([]*models.Stay, error) {
	cutoff := time.Now().UTC().Add(-window)

	rows, err := s.db.Query(ctx, staySelect+`
WHERE first_seen >= $1 AND NOT notified
ORDER BY first_seen DESC
`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "select new stays")
	}
	defer rows.Close()

	return scanStays(rows)
}

func (s *Storage) GetStaysByIDs(ctx context.Context, ids []uint64) ([]*models.Stay, error) {
	if len(ids) == 0 {
		return []*models.Stay{}, nil
	}

	rows, err := s.db.Query(ctx, staySelect+`
WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select stays")
	}
	defer rows.Close()

	return scanStays(rows)
}

func (s *Storage) MarkNotified(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE stays SET notified = TRUE WHERE id = ANY($1)`, ids)
	return errors.Wrap(err, "mark notified")
}

const (
	priceDropRecentWindow   = 7 * 24 * time.Hour
	priceDropLookbackWindow = 14 * 24 * time.Hour
)

// PriceDrops compares the latest observation inside the recent window against
// the latest prior observation inside the lookback window. A stay with fewer
// than two observations in range never qualifies.
func (s *Storage) PriceDrops(ctx context.Context, thresholdPercent float64) ([]*models.PriceDropReport, error) {
	now := time.Now().UTC()

	rows, err := s.db.Query(ctx, `
WITH latest AS (
  SELECT DISTINCT ON (stay_id) stay_id, price, currency, observed_at
  FROM price_observations
  WHERE observed_at >= $2
  ORDER BY stay_id, observed_at DESC
),
prior AS (
  SELECT DISTINCT ON (po.stay_id) po.stay_id, po.price, po.observed_at
  FROM price_observations po
  JOIN latest l ON l.stay_id = po.stay_id AND po.observed_at < l.observed_at
  WHERE po.observed_at >= $3
  ORDER BY po.stay_id, po.observed_at DESC
)
SELECT
  s.id, s.title, s.location, s.source,
  l.price, p.price, l.currency,
  l.observed_at, p.observed_at,
  (p.price - l.price) / p.price * 100 AS drop_percent
FROM stays s
JOIN latest l ON l.stay_id = s.id
JOIN prior p ON p.stay_id = s.id
WHERE p.price > 0
  AND (p.price - l.price) / p.price * 100 >= $1
ORDER BY drop_percent DESC
`, thresholdPercent, now.Add(-priceDropRecentWindow), now.Add(-priceDropLookbackWindow))
	if err != nil {
		return nil, errors.Wrap(err, "select price drops")
	}
	defer rows.Close()

	var out []*models.PriceDropReport
	for rows.Next() {
		var r models.PriceDropReport
		if err := rows.Scan(
			&r.StayID, &r.Title, &r.Location, &r.Source,
			&r.CurrentPrice, &r.PreviousPrice, &r.Currency,
			&r.CurrentAt, &r.PreviousAt,
			&r.DropPercent,
		); err != nil {
			return nil, errors.Wrap(err, "scan price drop")
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

const staySelect = `
SELECT
  id, identity_hash, title, price, currency, rating,
  location, url, image_url, description, amenities, source,
  first_seen, last_seen, times_seen, notified
FROM stays
`

func scanStays(rows pgx.Rows) ([]*models.Stay, error) {
	var out []*models.Stay
	for rows.Next() {
		var st models.Stay
		var amenities []byte
		if err := rows.Scan(
			&st.ID, &st.IdentityHash, &st.Title, &st.Price, &st.Currency, &st.Rating,
			&st.Location, &st.URL, &st.ImageURL, &st.Description, &amenities, &st.Source,
			&st.FirstSeen, &st.LastSeen, &st.TimesSeen, &st.Notified,
		); err != nil {
			return nil, errors.Wrap(err, "scan stay")
		}
		if len(amenities) > 0 {
			_ = json.Unmarshal(amenities, &st.Amenities)
		}
		out = append(out, &st)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
