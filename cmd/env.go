package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pricepulse/pricewatch/internal/alert"
	"github.com/pricepulse/pricewatch/internal/config"
	"github.com/pricepulse/pricewatch/internal/extract"
	"github.com/pricepulse/pricewatch/internal/fetch"
	"github.com/pricepulse/pricewatch/internal/resilience"
	"github.com/pricepulse/pricewatch/internal/schedule"
	"github.com/pricepulse/pricewatch/internal/store"
)

// env wires the full tracking stack for a command invocation.
type env struct {
	Store      store.Store
	Fetcher    *fetch.HTTPClient
	Controller *fetch.Controller
	Evaluator  *alert.Evaluator
	Engine     *schedule.Engine
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	fetcher := fetch.NewHTTPClient(fetch.HTTPClientConfig{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		HostInterval: time.Duration(cfg.Fetch.HostIntervalMs) * time.Millisecond,
		BreakerConfig: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Fetch.BreakerThreshold,
			ResetTimeout:     time.Duration(cfg.Fetch.BreakerResetSecs) * time.Second,
		},
	})

	var aux *extract.AuxEndpoint
	if cfg.Fetch.AuxEndpoint != "" {
		aux = extract.NewAuxEndpoint(cfg.Fetch.AuxEndpoint, time.Duration(cfg.Fetch.AuxTimeoutSecs)*time.Second)
	}
	aggregator := extract.NewAggregator(extract.DefaultExtractors(aux)...)

	controller := fetch.NewController(fetcher, aggregator,
		fetch.NewIdentityPool(cfg.Fetch.UserAgents...),
		fetch.ControllerConfig{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			BaseDelay:      time.Duration(cfg.Fetch.BaseDelayMs) * time.Millisecond,
			JitterFraction: cfg.Fetch.JitterFraction,
		})

	notifier := alert.NewWebhookNotifier(cfg.Notifier.WebhookURL, time.Duration(cfg.Notifier.TimeoutSecs)*time.Second)
	evaluator := alert.NewEvaluator(st, notifier)

	scorerCfg := schedule.DefaultScorerConfig()
	scorerCfg.TargetInterval = time.Duration(cfg.Scheduler.TargetIntervalHours) * time.Hour
	scorerCfg.Lookback = time.Duration(cfg.Scheduler.LookbackDays) * 24 * time.Hour
	if cfg.Scheduler.AlertMultiplier > 0 {
		scorerCfg.AlertMultiplier = cfg.Scheduler.AlertMultiplier
	}
	if cfg.Scheduler.RecentChangeBonus > 0 {
		scorerCfg.RecentChangeBonus = cfg.Scheduler.RecentChangeBonus
	}
	scorer := schedule.NewScorer(st, scorerCfg)

	orchestrator := schedule.NewOrchestrator(st, controller, evaluator)
	engine := schedule.NewEngine(st, scorer, orchestrator, schedule.EngineConfig{
		BatchSize:     cfg.Scheduler.BatchSize,
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
		Deadline:      time.Duration(cfg.Scheduler.DeadlineSecs) * time.Second,
		ItemTimeout:   time.Duration(cfg.Scheduler.ItemTimeoutSecs) * time.Second,
		ItemDelayMin:  time.Duration(cfg.Scheduler.ItemDelayMinMs) * time.Millisecond,
		ItemDelayMax:  time.Duration(cfg.Scheduler.ItemDelayMaxMs) * time.Millisecond,
	})

	return &env{
		Store:      st,
		Fetcher:    fetcher,
		Controller: controller,
		Evaluator:  evaluator,
		Engine:     engine,
	}, nil
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
