package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/researchdesk/config"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/deepsearch"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/scholar"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/video"
	"github.com/mohammad-safakhou/researchdesk/internal/history"
	"github.com/mohammad-safakhou/researchdesk/internal/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisDialTimeout = 5 * time.Second

// app holds the process wide dependencies shared by the commands.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	tracing      *runtime.Tracing
	promRegistry *prometheus.Registry
	telemetry    *telemetry.Telemetry
	registry     *core.Registry
	orchestrator *core.Orchestrator
	rdb          *redis.Client
	history      *history.Store
}

func loadApp(ctx context.Context, cfgPath string, withHistory bool) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg, withHistory, prometheus.NewRegistry())
}

// buildApp wires every component from cfg, registering metrics on reg. On
// error anything already started is shut down again.
func buildApp(ctx context.Context, cfg *config.Config, withHistory bool, reg *prometheus.Registry) (_ *app, err error) {
	logger, err := runtime.NewLogger(cfg.General.LogLevel, cfg.General.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	a.tracing, err = runtime.SetupTracing(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		if serr := a.tracing.Shutdown(ctx); serr != nil {
			logger.Warn("tracing shutdown", zap.Error(serr))
		}
	}()

	a.promRegistry = reg
	a.promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.telemetry, err = telemetry.New(logger, a.promRegistry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	var searcher deepsearch.Searcher
	ds, dsErr := deepsearch.NewClient(cfg.DeepSearch)
	if dsErr == nil {
		searcher = ds
	} else {
		logger.Warn("deep search disabled", zap.Error(dsErr))
	}
	a.registry, err = core.NewRegistry(
		deepsearch.NewAgent(searcher, dsErr, logger),
		video.New(ctx, cfg.Video, cfg.General.DataDir, logger),
		scholar.New(cfg.Scholar, logger),
	)
	if err != nil {
		return nil, err
	}
	a.orchestrator = core.NewOrchestrator(a.registry, logger,
		core.WithDispatchTimeout(cfg.Workflow.DispatchTimeout),
		core.WithTelemetry(a.telemetry),
	)

	if withHistory && cfg.Redis.Addr != "" {
		rdb, err := history.Conn(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redisDialTimeout)
		if err != nil {
			logger.Warn("report history disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			a.rdb = rdb
			a.history = history.NewStore(rdb, cfg.Redis.TTL, cfg.Redis.KeyPrefix)
		}
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	a.telemetry.Shutdown()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn("tracing shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}
