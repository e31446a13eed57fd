// Package scheduler is the refresh scheduler (C9): two independent
// robfig/cron "@every" timers driving the crawl cycle and the
// index/cluster/projector snapshot refresh.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the two timer periods, both duration-based per §4.C9.
type Config struct {
	CrawlInterval time.Duration
	IndexInterval time.Duration
	Timezone      string
}

func DefaultConfig() Config {
	return Config{
		CrawlInterval: time.Hour,
		IndexInterval: time.Hour,
		Timezone:      "UTC",
	}
}

// CrawlTick runs one full crawl cycle across every registered source.
type CrawlTick func(ctx context.Context) error

// RefreshTick rebuilds the vector index and recomputes the cluster/UMAP
// snapshots. It is invoked both on its own timer and inline after every
// successful crawl tick.
type RefreshTick func(ctx context.Context) error

// Scheduler owns the two cron entries and the recover-guarded tick wrappers.
type Scheduler struct {
	cron        *cron.Cron
	crawlTick   CrawlTick
	refreshTick RefreshTick
}

func New(config Config, crawlTick CrawlTick, refreshTick RefreshTick) (*Scheduler, error) {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		slog.Warn("scheduler: invalid timezone, using UTC", slog.String("timezone", config.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	s := &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		crawlTick:   crawlTick,
		refreshTick: refreshTick,
	}

	if _, err := s.cron.AddFunc(everySpec(config.CrawlInterval), s.runCrawlTick); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(everySpec(config.IndexInterval), s.runRefreshTick); err != nil {
		return nil, err
	}

	return s, nil
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}

// Start begins both timers. Call Stop to drain in-flight ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new ticks and waits for any in-flight tick to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runCrawlTick() {
	defer recoverAndLog("crawl")

	ctx := context.Background()
	start := time.Now()
	if err := s.crawlTick(ctx); err != nil {
		slog.Error("scheduler: crawl tick failed", slog.Any("error", err), slog.Duration("duration", time.Since(start)))
		return
	}
	slog.Info("scheduler: crawl tick completed", slog.Duration("duration", time.Since(start)))

	// Trigger an immediate snapshot refresh on the same code path as the
	// index timer's tick body, per §4.C9.
	s.runRefreshTick()
}

func (s *Scheduler) runRefreshTick() {
	defer recoverAndLog("refresh")

	ctx := context.Background()
	start := time.Now()
	if err := s.refreshTick(ctx); err != nil {
		slog.Error("scheduler: refresh tick failed", slog.Any("error", err), slog.Duration("duration", time.Since(start)))
		return
	}
	slog.Info("scheduler: refresh tick completed", slog.Duration("duration", time.Since(start)))
}

func recoverAndLog(tick string) {
	if r := recover(); r != nil {
		slog.Error("scheduler: tick panicked, recovering", slog.String("tick", tick), slog.Any("panic", r))
	}
}
