package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/StayScout/internal/cache"
	"github.com/BearBump/StayScout/internal/cache/rediscache"
	"github.com/BearBump/StayScout/internal/integrations/sources"
	"github.com/BearBump/StayScout/internal/models"
	"github.com/BearBump/StayScout/internal/notify"
	"github.com/BearBump/StayScout/internal/scheduler"
	"github.com/pkg/errors"
)

type Repository interface {
	Upsert(ctx context.Context, c models.Candidate) (uint64, error)
	NewSince(ctx context.Context, window time.Duration) ([]*models.Stay, error)
	MarkNotified(ctx context.Context, ids []uint64) error
	PriceDrops(ctx context.Context, thresholdPercent float64) ([]*models.PriceDropReport, error)
	RecordSearch(ctx context.Context, criteria models.SearchCriteria, resultsCount int, execution time.Duration) error
	RecordNotification(ctx context.Context, stayIDs []uint64, kind string, success bool, notifyErr error) error
	PruneOlderThan(ctx context.Context, retention time.Duration) error
	Statistics(ctx context.Context, window time.Duration) (*models.Statistics, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

const (
	TaskSearch      = "accommodation_search"
	TaskPriceAlerts = "price_alerts"
	TaskCleanup     = "database_cleanup"
	TaskHeartbeat   = "system_heartbeat"
)

// Agent связывает fetch → фильтры → store → детект изменений → notify в один
// проход и регистрирует проходы как задачи планировщика.
type Agent struct {
	repo     Repository
	registry *sources.Registry
	notifier notify.Notifier
	rl       RateLimiter
	cache    cache.BytesCache

	criteria models.SearchCriteria

	newWindow        time.Duration
	dropThreshold    float64
	retention        time.Duration
	passTimeout      time.Duration
	fetchRatePerMin  int64
	statsTTL         time.Duration
	searchInterval   time.Duration
	alertInterval    time.Duration
	cleanupInterval  time.Duration
	heartbeatEnabled bool

	totalPasses     atomic.Int64
	totalCandidates atomic.Int64
	totalNotified   atomic.Int64
	totalErrors     atomic.Int64
	lastPassNano    atomic.Int64
	lastErrorMu     sync.Mutex
	lastError       string
}

func New(repo Repository, registry *sources.Registry, notifier notify.Notifier, rl RateLimiter, c cache.BytesCache, criteria models.SearchCriteria) *Agent {
	return &Agent{
		repo:     repo,
		registry: registry,
		notifier: notifier,
		rl:       rl,
		cache:    c,
		criteria: criteria,

		newWindow:        24 * time.Hour,
		dropThreshold:    10,
		retention:        30 * 24 * time.Hour,
		passTimeout:      5 * time.Minute,
		fetchRatePerMin:  10,
		statsTTL:         time.Minute,
		searchInterval:   6 * time.Hour,
		alertInterval:    30 * time.Minute,
		cleanupInterval:  24 * time.Hour,
		heartbeatEnabled: true,
	}
}

type Settings struct {
	NewWindow       time.Duration
	DropThreshold   float64
	Retention       time.Duration
	PassTimeout     time.Duration
	FetchRatePerMin int64
	StatsTTL        time.Duration
	SearchInterval  time.Duration
	AlertInterval   time.Duration
	CleanupInterval time.Duration
	Heartbeat       *bool
}

func (a *Agent) WithSettings(s Settings) *Agent {
	if s.NewWindow > 0 {
		a.newWindow = s.NewWindow
	}
	if s.DropThreshold > 0 {
		a.dropThreshold = s.DropThreshold
	}
	if s.Retention > 0 {
		a.retention = s.Retention
	}
	if s.PassTimeout > 0 {
		a.passTimeout = s.PassTimeout
	}
	if s.FetchRatePerMin > 0 {
		a.fetchRatePerMin = s.FetchRatePerMin
	}
	if s.StatsTTL > 0 {
		a.statsTTL = s.StatsTTL
	}
	if s.SearchInterval > 0 {
		a.searchInterval = s.SearchInterval
	}
	if s.AlertInterval > 0 {
		a.alertInterval = s.AlertInterval
	}
	if s.CleanupInterval > 0 {
		a.cleanupInterval = s.CleanupInterval
	}
	if s.Heartbeat != nil {
		a.heartbeatEnabled = *s.Heartbeat
	}
	return a
}

// RegisterTasks добавляет стандартные задачи агента в планировщик.
func (a *Agent) RegisterTasks(loop *scheduler.Loop) {
	loop.Add(scheduler.NewTask(TaskSearch, a.searchInterval, a.SearchAndProcess))
	loop.Add(scheduler.NewTask(TaskPriceAlerts, a.alertInterval, a.RunPriceAlerts))
	loop.Add(scheduler.NewTask(TaskCleanup, a.cleanupInterval, a.CleanupDatabase))

	hb := scheduler.NewTask(TaskHeartbeat, 15*time.Minute, a.Heartbeat)
	if !a.heartbeatEnabled {
		hb.Disable()
	}
	loop.Add(hb)
}

// SearchAndProcess — один полный проход: fetch со всех площадок, фильтры,
// upsert, уведомление о новых и подешевевших, статистика. Ошибка store
// завершает проход досрочно; планировщик повторит на следующем такте.
func (a *Agent) SearchAndProcess(ctx context.Context) error {
	start := time.Now()
	a.totalPasses.Add(1)
	a.lastPassNano.Store(start.UTC().UnixNano())

	ctx, cancel := context.WithTimeout(ctx, a.passTimeout)
	defer cancel()

	candidates := a.fetchAll(ctx)
	a.totalCandidates.Add(int64(len(candidates)))

	filtered := applyFilters(candidates, a.criteria)
	slog.Info("candidates filtered", "raw", len(candidates), "kept", len(filtered))

	// Статистика — best effort, пишется даже если проход упал позже.
	defer func() {
		if err := a.repo.RecordSearch(ctx, a.criteria, len(filtered), time.Since(start)); err != nil {
			slog.Error("record search", "error", err.Error())
		}
	}()

	for _, c := range filtered {
		if _, err := a.repo.Upsert(ctx, c); err != nil {
			a.noteError(err)
			return errors.Wrap(err, "upsert candidate")
		}
	}

	if err := a.notifyNew(ctx); err != nil {
		a.noteError(err)
		return err
	}

	if err := a.notifyDrops(ctx); err != nil {
		a.noteError(err)
		return err
	}

	slog.Info("search pass completed", "kept", len(filtered), "took", time.Since(start).String())
	return nil
}

// fetchAll опрашивает площадки по очереди; падение одной не мешает остальным.
func (a *Agent) fetchAll(ctx context.Context) []models.Candidate {
	var out []models.Candidate
	for _, name := range a.registry.Names() {
		f, _ := a.registry.Get(name)

		if a.rl != nil && a.fetchRatePerMin > 0 {
			key := rediscache.SourceMinuteKey(name, time.Now())
			allowed, n, err := a.rl.Allow(ctx, key, a.fetchRatePerMin, 70*time.Second)
			if err != nil {
				slog.Warn("rate limiter unavailable", "source", name, "error", err.Error())
			} else if !allowed {
				slog.Warn("source rate limited, skipping this pass", "source", name, "count", n)
				continue
			}
		}

		found, err := f.Fetch(ctx, a.criteria)
		if err != nil {
			a.noteError(err)
			slog.Error("fetch source", "source", name, "error", err.Error())
			continue
		}
		slog.Info("source fetched", "source", name, "candidates", len(found))
		out = append(out, found...)
	}
	return out
}

func (a *Agent) notifyNew(ctx context.Context) error {
	fresh, err := a.repo.NewSince(ctx, a.newWindow)
	if err != nil {
		return errors.Wrap(err, "query new stays")
	}
	if len(fresh) == 0 {
		return nil
	}

	ids := stayIDs(fresh)
	if err := a.notifier.NotifyNewStays(ctx, fresh, a.criteria); err != nil {
		slog.Error("notify new stays", "count", len(fresh), "error", err.Error())
		a.recordNotification(ctx, ids, models.NotificationKindNewStays, false, err)
		return nil // retried on the next cadence, pass goes on
	}

	if err := a.repo.MarkNotified(ctx, ids); err != nil {
		return errors.Wrap(err, "mark notified")
	}
	a.totalNotified.Add(int64(len(ids)))
	a.recordNotification(ctx, ids, models.NotificationKindNewStays, true, nil)
	slog.Info("new stays notified", "count", len(ids))
	return nil
}

func (a *Agent) notifyDrops(ctx context.Context) error {
	drops, err := a.repo.PriceDrops(ctx, a.dropThreshold)
	if err != nil {
		return errors.Wrap(err, "query price drops")
	}
	if len(drops) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(drops))
	for _, d := range drops {
		ids = append(ids, d.StayID)
	}

	if err := a.notifier.NotifyPriceDrops(ctx, drops); err != nil {
		slog.Error("notify price drops", "count", len(drops), "error", err.Error())
		a.recordNotification(ctx, ids, models.NotificationKindPriceDrops, false, err)
		return nil
	}
	a.recordNotification(ctx, ids, models.NotificationKindPriceDrops, true, nil)
	slog.Info("price drops notified", "count", len(drops))
	return nil
}

// RunPriceAlerts — отдельная, более частая задача только для скидок.
func (a *Agent) RunPriceAlerts(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.passTimeout)
	defer cancel()

	if err := a.notifyDrops(ctx); err != nil {
		a.noteError(err)
		return err
	}
	return nil
}

func (a *Agent) CleanupDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.passTimeout)
	defer cancel()

	if err := a.repo.PruneOlderThan(ctx, a.retention); err != nil {
		a.noteError(err)
		return errors.Wrap(err, "prune old data")
	}
	slog.Info("old satellite rows pruned", "retention", a.retention.String())
	return nil
}

func (a *Agent) Heartbeat(ctx context.Context) error {
	slog.Info("agent alive",
		"passes", a.totalPasses.Load(),
		"candidates", a.totalCandidates.Load(),
		"notified", a.totalNotified.Load(),
		"errors", a.totalErrors.Load(),
	)
	return nil
}

// TestNotify проверяет канал уведомлений и фиксирует исход в аудит.
func (a *Agent) TestNotify(ctx context.Context) error {
	err := a.notifier.SendTest(ctx)
	a.recordNotification(ctx, nil, models.NotificationKindTest, err == nil, err)
	return err
}

// Statistics отдаёт агрегаты за окно, с коротким кэшем поверх store.
func (a *Agent) Statistics(ctx context.Context, window time.Duration) (*models.Statistics, error) {
	key := fmt.Sprintf("stats:%s", window)

	if a.cache != nil && a.statsTTL > 0 {
		if b, ok, err := a.cache.Get(ctx, key); err == nil && ok {
			var st models.Statistics
			if json.Unmarshal(b, &st) == nil {
				return &st, nil
			}
		}
	}

	st, err := a.repo.Statistics(ctx, window)
	if err != nil {
		return nil, err
	}

	if a.cache != nil && a.statsTTL > 0 {
		b, _ := json.Marshal(st)
		_ = a.cache.Set(ctx, key, b, a.statsTTL)
	}
	return st, nil
}

type Stats struct {
	TotalPasses     int64      `json:"totalPasses"`
	TotalCandidates int64      `json:"totalCandidates"`
	TotalNotified   int64      `json:"totalNotified"`
	TotalErrors     int64      `json:"totalErrors"`
	LastPassAt      *time.Time `json:"lastPassAt,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
}

func (a *Agent) Stats() Stats {
	st := Stats{
		TotalPasses:     a.totalPasses.Load(),
		TotalCandidates: a.totalCandidates.Load(),
		TotalNotified:   a.totalNotified.Load(),
		TotalErrors:     a.totalErrors.Load(),
	}
	if n := a.lastPassNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastPassAt = &t
	}
	a.lastErrorMu.Lock()
	st.LastError = a.lastError
	a.lastErrorMu.Unlock()
	return st
}

func (a *Agent) noteError(err error) {
	a.totalErrors.Add(1)
	a.lastErrorMu.Lock()
	a.lastError = err.Error()
	a.lastErrorMu.Unlock()
}

func (a *Agent) recordNotification(ctx context.Context, ids []uint64, kind string, success bool, notifyErr error) {
	if err := a.repo.RecordNotification(ctx, ids, kind, success, notifyErr); err != nil {
		slog.Error("record notification", "kind", kind, "error", err.Error())
	}
}

func stayIDs(stays []*models.Stay) []uint64 {
	ids := make([]uint64, 0, len(stays))
	for _, s := range stays {
		ids = append(ids, s.ID)
	}
	return ids
}
