package projects

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/terralayer/spatial_layer/internal/app/metrics"
	"github.com/terralayer/spatial_layer/internal/app/storage"
	"github.com/terralayer/spatial_layer/pkg/logger"
)

const defaultStatsSchedule = "@every 1m"

// StatsCollector periodically aggregates spatial statistics and publishes
// them as gauges.
type StatsCollector struct {
	store    storage.ProjectStore
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// NewStatsCollector constructs a collector driven by the given cron
// schedule. An empty schedule falls back to a one minute interval.
func NewStatsCollector(store storage.ProjectStore, schedule string, log *logger.Logger) *StatsCollector {
	if schedule == "" {
		schedule = defaultStatsSchedule
	}
	if log == nil {
		log = logger.NewDefault("stats-collector")
	}
	return &StatsCollector{store: store, schedule: schedule, log: log}
}

// Name identifies the collector to the service manager.
func (c *StatsCollector) Name() string { return "project-stats-collector" }

// Start begins the collection schedule. It runs one collection immediately
// so gauges are populated before the first tick.
func (c *StatsCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	c.cron = cron.New()
	if _, err := c.cron.AddFunc(c.schedule, c.collect); err != nil {
		return err
	}
	c.collect()
	c.cron.Start()
	c.started = true
	c.log.WithField("schedule", c.schedule).Info("stats collector started")
	return nil
}

// Stop halts the schedule and waits for an in-flight collection to finish.
func (c *StatsCollector) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	stopCtx := c.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	c.started = false
	c.log.Info("stats collector stopped")
	return nil
}

func (c *StatsCollector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := c.store.ProjectStats(ctx)
	if err != nil {
		c.log.WithError(err).Warn("stats collection failed")
		return
	}
	metrics.SetSpatialStats(stats.Projects, stats.Geometries, stats.TotalAreaSqM)
}
