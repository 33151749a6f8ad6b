package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/StayScout/config"
	"github.com/BearBump/StayScout/internal/broker/kafka"
	"github.com/BearBump/StayScout/internal/cache"
	"github.com/BearBump/StayScout/internal/cache/rediscache"
	"github.com/BearBump/StayScout/internal/integrations/sources"
	"github.com/BearBump/StayScout/internal/integrations/sources/bookinghttp"
	"github.com/BearBump/StayScout/internal/integrations/sources/fake"
	"github.com/BearBump/StayScout/internal/models"
	"github.com/BearBump/StayScout/internal/notify"
	"github.com/BearBump/StayScout/internal/notify/kafkanotify"
	"github.com/BearBump/StayScout/internal/notify/smtpmail"
	"github.com/BearBump/StayScout/internal/scheduler"
	"github.com/BearBump/StayScout/internal/services/agent"
	"github.com/BearBump/StayScout/internal/storage/pgstays"
)

type agentFactories struct {
	newStorage     func(cfg *config.Config) (agent.Repository, func(), error)
	newNotifier    func(cfg *config.Config) notify.Notifier
	newRateLimiter func(cfg *config.Config) agent.RateLimiter
	newCache       func(cfg *config.Config) cache.BytesCache
	newRegistry    func(cfg *config.Config) *sources.Registry
}

func defaultAgentFactories() agentFactories {
	return agentFactories{
		newStorage: func(cfg *config.Config) (agent.Repository, func(), error) {
			st, err := pgstays.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newNotifier: func(cfg *config.Config) notify.Notifier {
			return buildNotifier(cfg)
		},
		newRateLimiter: func(cfg *config.Config) agent.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
		newRegistry: func(cfg *config.Config) *sources.Registry {
			return buildRegistry(cfg)
		},
	}
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var ns []notify.Notifier
	for _, name := range cfg.Agent.Notifiers {
		switch name {
		case "email":
			ns = append(ns, smtpmail.New(smtpmail.Config{
				Host:      cfg.Email.SMTPServer,
				Port:      cfg.Email.SMTPPort,
				Username:  cfg.Email.Sender,
				Password:  cfg.Email.Password,
				Recipient: cfg.Email.Recipient,
			}))
		case "kafka":
			topic := cfg.Kafka.DealsFoundTopic
			if topic == "" {
				topic = "deals.found"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			ns = append(ns, kafkanotify.New(kafka.NewProducer(brokers), topic))
		default:
			slog.Warn("unknown notifier in config, skipped", "notifier", name)
		}
	}
	if len(ns) == 0 {
		slog.Warn("no notifiers configured, falling back to kafka")
		brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
		ns = append(ns, kafkanotify.New(kafka.NewProducer(brokers), "deals.found"))
	}
	if len(ns) == 1 {
		return ns[0]
	}
	return notify.NewMulti(ns...)
}

func buildRegistry(cfg *config.Config) *sources.Registry {
	reg := sources.NewRegistry()
	for _, name := range cfg.Agent.Sources {
		switch name {
		case "booking":
			c := bookinghttp.New(cfg.Agent.BookingBaseURL)
			if cfg.Agent.MaxResults > 0 {
				c = c.WithMaxResults(cfg.Agent.MaxResults)
			}
			reg.Register("booking", c)
		case "fake":
			reg.Register("fake", fake.New())
		default:
			slog.Warn("unknown source in config, skipped", "source", name)
		}
	}
	if len(reg.Names()) == 0 {
		// Без конфигурации площадок работаем на заглушке, чтобы демо жило.
		reg.Register("fake", fake.New())
	}
	return reg
}

func buildCriteria(cfg *config.Config) (models.SearchCriteria, error) {
	cc := cfg.Agent.Criteria
	checkIn, checkOut, err := cc.Dates(time.Now().UTC())
	if err != nil {
		return models.SearchCriteria{}, err
	}

	criteria := models.SearchCriteria{
		Destination:   cc.Destination,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Guests:        cc.Guests,
		MaxPrice:      cc.MaxPrice,
		Currency:      cc.Currency,
		PropertyTypes: cc.PropertyTypes,
		MinRating:     cc.MinRating,
	}
	if criteria.Destination == "" {
		criteria.Destination = "București, România"
	}
	if criteria.Guests <= 0 {
		criteria.Guests = 2
	}
	if criteria.MaxPrice <= 0 {
		criteria.MaxPrice = 500
	}
	if criteria.Currency == "" {
		criteria.Currency = "RON"
	}
	return criteria, nil
}

func agentSettings(cfg *config.Config) agent.Settings {
	a := cfg.Agent
	s := agent.Settings{
		DropThreshold:   a.PriceDropThresholdPct,
		FetchRatePerMin: int64(a.FetchRatePerMinute),
		Heartbeat:       a.HeartbeatEnabled,
	}
	if a.NewWindowHours > 0 {
		s.NewWindow = time.Duration(a.NewWindowHours) * time.Hour
	}
	if a.RetentionDays > 0 {
		s.Retention = time.Duration(a.RetentionDays) * 24 * time.Hour
	}
	if a.PassTimeoutSeconds > 0 {
		s.PassTimeout = time.Duration(a.PassTimeoutSeconds) * time.Second
	}
	if a.StatsCacheTTLSeconds > 0 {
		s.StatsTTL = time.Duration(a.StatsCacheTTLSeconds) * time.Second
	}
	if a.SearchIntervalHours > 0 {
		s.SearchInterval = time.Duration(a.SearchIntervalHours) * time.Hour
	}
	if a.PriceAlertIntervalMinutes > 0 {
		s.AlertInterval = time.Duration(a.PriceAlertIntervalMinutes) * time.Minute
	}
	if a.CleanupIntervalDays > 0 {
		s.CleanupInterval = time.Duration(a.CleanupIntervalDays) * 24 * time.Hour
	}
	return s
}

type runOpts struct {
	once       bool
	testNotify bool
}

// RunAgent собирает агента из фабрик и держит его до отмены контекста.
func RunAgent(ctx context.Context, cfg *config.Config, f agentFactories, opts runOpts) error {
	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	criteria, err := buildCriteria(cfg)
	if err != nil {
		return err
	}

	a := agent.New(repo, f.newRegistry(cfg), f.newNotifier(cfg), f.newRateLimiter(cfg), f.newCache(cfg), criteria).
		WithSettings(agentSettings(cfg))

	if opts.testNotify {
		return a.TestNotify(ctx)
	}
	if opts.once {
		return a.SearchAndProcess(ctx)
	}

	loop := scheduler.NewLoop()
	if cfg.Agent.SchedulerGranularitySeconds > 0 {
		loop = loop.WithGranularity(time.Duration(cfg.Agent.SchedulerGranularitySeconds) * time.Second)
	}
	a.RegisterTasks(loop)

	loop.Start(ctx)
	defer func() {
		if err := loop.Stop(); err != nil {
			slog.Error("stop scheduler", "error", err.Error())
		}
	}()

	httpAddr := cfg.Agent.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	return runControlServer(ctx, controlOpts{
		httpAddr:    httpAddr,
		swaggerPath: cfg.Agent.SwaggerPath,
		agent:       a,
		loop:        loop,
		cfg:         cfg,
	})
}
