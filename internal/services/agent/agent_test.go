package agent

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/StayScout/internal/identity"
	"github.com/BearBump/StayScout/internal/integrations/sources"
	"github.com/BearBump/StayScout/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// memRepo — упрощённая in-memory реализация Repository с теми же
// upsert/notified семантиками, что и pgstays.
type memRepo struct {
	stays        map[string]*models.Stay
	nextID       uint64
	observations map[uint64][]models.PriceObservation
	drops        []*models.PriceDropReport

	searches      int
	notifications []string

	upsertErr error
	dropsErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{
		stays:        map[string]*models.Stay{},
		observations: map[uint64][]models.PriceObservation{},
	}
}

func (r *memRepo) Upsert(ctx context.Context, c models.Candidate) (uint64, error) {
	if r.upsertErr != nil {
		return 0, r.upsertErr
	}
	hash := identity.ItemIdentity(c)
	now := time.Now().UTC()

	if st, ok := r.stays[hash]; ok {
		if st.Price != c.Price || st.Currency != c.Currency {
			r.observations[st.ID] = append(r.observations[st.ID], models.PriceObservation{StayID: st.ID, Price: c.Price, Currency: c.Currency, ObservedAt: now})
		}
		st.Price, st.Currency, st.Rating = c.Price, c.Currency, c.Rating
		st.LastSeen = now
		st.TimesSeen++
		return st.ID, nil
	}

	r.nextID++
	st := &models.Stay{
		ID: r.nextID, IdentityHash: hash, Title: c.Title, Price: c.Price, Currency: c.Currency,
		Rating: c.Rating, Location: c.Location, URL: c.URL, Source: c.Source,
		FirstSeen: now, LastSeen: now, TimesSeen: 1,
	}
	r.stays[hash] = st
	r.observations[st.ID] = append(r.observations[st.ID], models.PriceObservation{StayID: st.ID, Price: c.Price, Currency: c.Currency, ObservedAt: now})
	return st.ID, nil
}

func (r *memRepo) NewSince(ctx context.Context, window time.Duration) ([]*models.Stay, error) {
	cutoff := time.Now().UTC().Add(-window)
	var out []*models.Stay
	for _, st := range r.stays {
		if !st.Notified && st.FirstSeen.After(cutoff) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (r *memRepo) MarkNotified(ctx context.Context, ids []uint64) error {
	for _, st := range r.stays {
		for _, id := range ids {
			if st.ID == id {
				st.Notified = true
			}
		}
	}
	return nil
}

func (r *memRepo) PriceDrops(ctx context.Context, threshold float64) ([]*models.PriceDropReport, error) {
	if r.dropsErr != nil {
		return nil, r.dropsErr
	}
	var out []*models.PriceDropReport
	for _, d := range r.drops {
		if d.DropPercent >= threshold {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) RecordSearch(ctx context.Context, criteria models.SearchCriteria, resultsCount int, execution time.Duration) error {
	r.searches++
	return nil
}

func (r *memRepo) RecordNotification(ctx context.Context, stayIDs []uint64, kind string, success bool, notifyErr error) error {
	r.notifications = append(r.notifications, kind)
	return nil
}

func (r *memRepo) PruneOlderThan(ctx context.Context, retention time.Duration) error { return nil }

func (r *memRepo) Statistics(ctx context.Context, window time.Duration) (*models.Statistics, error) {
	return &models.Statistics{TotalSearches: int64(r.searches)}, nil
}

type fakeNotifier struct {
	newBatches  [][]*models.Stay
	dropBatches [][]*models.PriceDropReport
	tests       int
	err         error
}

func (n *fakeNotifier) NotifyNewStays(ctx context.Context, stays []*models.Stay, criteria models.SearchCriteria) error {
	n.newBatches = append(n.newBatches, stays)
	return n.err
}

func (n *fakeNotifier) NotifyPriceDrops(ctx context.Context, drops []*models.PriceDropReport) error {
	n.dropBatches = append(n.dropBatches, drops)
	return n.err
}

func (n *fakeNotifier) SendTest(ctx context.Context) error {
	n.tests++
	return n.err
}

type staticFetcher struct {
	out []models.Candidate
	err error
}

func (f staticFetcher) Fetch(ctx context.Context, criteria models.SearchCriteria) ([]models.Candidate, error) {
	return f.out, f.err
}

type fakeRL struct {
	allowed bool
}

func (r fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	return r.allowed, 1, nil
}

func testAgent(repo Repository, reg *sources.Registry, n *fakeNotifier) *Agent {
	criteria := models.SearchCriteria{Destination: "București", MaxPrice: 1000, Currency: "RON"}
	return New(repo, reg, n, nil, nil, criteria)
}

func TestAgent_SearchAndProcess_EndToEnd(t *testing.T) {
	repo := newMemRepo()
	notifier := &fakeNotifier{}

	// Три кандидата: пара дублей по identity и один уникальный.
	reg := sources.NewRegistry()
	reg.Register("booking", staticFetcher{out: []models.Candidate{
		{Title: "Hotel X ", Price: 100, Currency: "RON", Location: "București", Source: "booking"},
		{Title: "hotel x", Price: 100, Currency: "RON", Location: "bucurești", Source: "booking"},
		{Title: "Hotel Y", Price: 200, Currency: "RON", Location: "București", Source: "booking"},
	}})

	a := testAgent(repo, reg, notifier)
	require.NoError(t, a.SearchAndProcess(context.Background()))

	require.Len(t, repo.stays, 2)
	require.Len(t, notifier.newBatches, 1)
	require.Len(t, notifier.newBatches[0], 2)
	require.Equal(t, 1, repo.searches)
	require.Contains(t, repo.notifications, models.NotificationKindNewStays)

	// Второй идентичный проход: уже уведомлены, times_seen растёт.
	require.NoError(t, a.SearchAndProcess(context.Background()))
	require.Len(t, notifier.newBatches, 1) // no second new-stays batch
	require.Equal(t, 2, repo.searches)
	for _, st := range repo.stays {
		require.Equal(t, int32(2), st.TimesSeen)
		require.True(t, st.Notified)
	}
}

func TestAgent_FetchFailureDoesNotStopOtherSources(t *testing.T) {
	repo := newMemRepo()
	notifier := &fakeNotifier{}

	reg := sources.NewRegistry()
	reg.Register("broken", staticFetcher{err: errors.New("http 503")})
	reg.Register("booking", staticFetcher{out: []models.Candidate{
		{Title: "Hotel Z", Price: 300, Currency: "RON", Location: "Cluj", Source: "booking"},
	}})

	a := testAgent(repo, reg, notifier)
	require.NoError(t, a.SearchAndProcess(context.Background()))
	require.Len(t, repo.stays, 1)
	require.Equal(t, int64(1), a.Stats().TotalErrors)
}

func TestAgent_NotifyFailureStillRecordsSearch(t *testing.T) {
	repo := newMemRepo()
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	reg := sources.NewRegistry()
	reg.Register("booking", staticFetcher{out: []models.Candidate{
		{Title: "Hotel Q", Price: 300, Currency: "RON", Location: "Iași", Source: "booking"},
	}})

	a := testAgent(repo, reg, notifier)
	require.NoError(t, a.SearchAndProcess(context.Background()))

	require.Equal(t, 1, repo.searches)
	require.Contains(t, repo.notifications, models.NotificationKindNewStays)
	// Not marked notified: retried on next cadence.
	for _, st := range repo.stays {
		require.False(t, st.Notified)
	}

	// После починки канала следующий проход уведомляет.
	notifier.err = nil
	require.NoError(t, a.SearchAndProcess(context.Background()))
	for _, st := range repo.stays {
		require.True(t, st.Notified)
	}
}

func TestAgent_StorageFailureEndsPassEarly(t *testing.T) {
	repo := newMemRepo()
	repo.upsertErr = errors.New("pg down")
	notifier := &fakeNotifier{}

	reg := sources.NewRegistry()
	reg.Register("booking", staticFetcher{out: []models.Candidate{
		{Title: "Hotel W", Price: 300, Currency: "RON", Location: "Iași", Source: "booking"},
	}})

	a := testAgent(repo, reg, notifier)
	require.Error(t, a.SearchAndProcess(context.Background()))
	require.Empty(t, notifier.newBatches)
	// Search statistics are still best-effort recorded.
	require.Equal(t, 1, repo.searches)
}

func TestAgent_RunPriceAlerts(t *testing.T) {
	repo := newMemRepo()
	repo.drops = []*models.PriceDropReport{
		{StayID: 1, Title: "A", DropPercent: 20},
		{StayID: 2, Title: "B", DropPercent: 5},
	}
	notifier := &fakeNotifier{}

	a := testAgent(repo, sources.NewRegistry(), notifier)
	require.NoError(t, a.RunPriceAlerts(context.Background()))

	require.Len(t, notifier.dropBatches, 1)
	require.Len(t, notifier.dropBatches[0], 1) // threshold 10% drops the 5% one
	require.Equal(t, uint64(1), notifier.dropBatches[0][0].StayID)
	require.Contains(t, repo.notifications, models.NotificationKindPriceDrops)
}

func TestAgent_RateLimitedSourceIsSkipped(t *testing.T) {
	repo := newMemRepo()
	notifier := &fakeNotifier{}

	reg := sources.NewRegistry()
	reg.Register("booking", staticFetcher{out: []models.Candidate{
		{Title: "Hotel R", Price: 300, Currency: "RON", Location: "Iași", Source: "booking"},
	}})

	criteria := models.SearchCriteria{Destination: "Iași", MaxPrice: 1000, Currency: "RON"}
	a := New(repo, reg, notifier, fakeRL{allowed: false}, nil, criteria)
	require.NoError(t, a.SearchAndProcess(context.Background()))
	require.Empty(t, repo.stays)
}

func TestAgent_TestNotify(t *testing.T) {
	repo := newMemRepo()
	notifier := &fakeNotifier{}
	a := testAgent(repo, sources.NewRegistry(), notifier)

	require.NoError(t, a.TestNotify(context.Background()))
	require.Equal(t, 1, notifier.tests)
	require.Contains(t, repo.notifications, models.NotificationKindTest)
}

func TestAgent_StatisticsUsesCache(t *testing.T) {
	repo := newMemRepo()
	repo.searches = 3
	c := &memCache{m: map[string][]byte{}}

	a := New(repo, sources.NewRegistry(), &fakeNotifier{}, nil, c, models.SearchCriteria{})

	st, err := a.Statistics(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(3), st.TotalSearches)

	// Second read hits the cache even though the repo changed.
	repo.searches = 99
	st, err = a.Statistics(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(3), st.TotalSearches)
}

type memCache struct {
	m map[string][]byte
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}
