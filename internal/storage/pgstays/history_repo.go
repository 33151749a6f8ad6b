package pgstays

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/StayScout/internal/identity"
	"github.com/BearBump/StayScout/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) RecordSearch(ctx context.Context, criteria models.SearchCriteria, resultsCount int, execution time.Duration) error {
	b, err := json.Marshal(criteria)
	if err != nil {
		return errors.Wrap(err, "marshal criteria")
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO searches (criteria_hash, results_count, criteria_json, execution_ms, created_at)
VALUES ($1,$2,$3,$4,$5)
`, identity.CriteriaIdentity(criteria), resultsCount, b, execution.Milliseconds(), time.Now().UTC())
	return errors.Wrap(err, "insert search record")
}

func (s *Storage) RecordNotification(ctx context.Context, stayIDs []uint64, kind string, success bool, notifyErr error) error {
	var errText *string
	if notifyErr != nil {
		t := notifyErr.Error()
		errText = &t
	}

	ids := make([]int64, 0, len(stayIDs))
	for _, id := range stayIDs {
		ids = append(ids, int64(id))
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO notifications (stay_ids, kind, success, error, created_at)
VALUES ($1,$2,$3,$4,$5)
`, ids, kind, success, errText, time.Now().UTC())
	return errors.Wrap(err, "insert notification record")
}

// PruneOlderThan чистит только сателлитные таблицы. Сами stays не удаляются:
// их история нужна для долгосрочной аналитики цен.
func (s *Storage) PruneOlderThan(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)

	for _, q := range []string{
		`DELETE FROM searches WHERE created_at < $1`,
		`DELETE FROM price_observations WHERE observed_at < $1`,
		`DELETE FROM notifications WHERE created_at < $1`,
	} {
		if _, err := s.db.Exec(ctx, q, cutoff); err != nil {
			return errors.Wrap(err, "prune old rows")
		}
	}
	return nil
}

func (s *Storage) Statistics(ctx context.Context, window time.Duration) (*models.Statistics, error) {
	cutoff := time.Now().UTC().Add(-window)

	st := &models.Statistics{CountsBySource: map[string]int64{}}

	err := s.db.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(AVG(results_count), 0)
FROM searches
WHERE created_at >= $1
`, cutoff).Scan(&st.TotalSearches, &st.AvgResults)
	if err != nil {
		return nil, errors.Wrap(err, "select search stats")
	}

	rows, err := s.db.Query(ctx, `
SELECT source, COUNT(*)
FROM stays
WHERE first_seen >= $1
GROUP BY source
ORDER BY COUNT(*) DESC
`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "select source breakdown")
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, errors.Wrap(err, "scan source breakdown")
		}
		st.CountsBySource[source] = n
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return st, nil
}

func (s *Storage) ListPriceObservations(ctx context.Context, stayID uint64, limit int) ([]*models.PriceObservation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT id, stay_id, price, currency, observed_at
FROM price_observations
WHERE stay_id = $1
ORDER BY observed_at DESC
LIMIT $2
`, stayID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select observations")
	}
	defer rows.Close()

	var out []*models.PriceObservation
	for rows.Next() {
		var o models.PriceObservation
		if err := rows.Scan(&o.ID, &o.StayID, &o.Price, &o.Currency, &o.ObservedAt); err != nil {
			return nil, errors.Wrap(err, "scan observation")
		}
		out = append(out, &o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
