// Command worker runs the crawler process (C5): the scheduler drives a
// periodic crawl across every registered source, followed by a vector
// index / cluster / UMAP snapshot refresh. It exposes no HTTP query
// surface — that is cmd/api's job. Run with SERVICE_TYPE=crawler.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cgast/embird/internal/cluster"
	"github.com/cgast/embird/internal/crawl"
	"github.com/cgast/embird/internal/embedclient"
	"github.com/cgast/embird/internal/extract"
	"github.com/cgast/embird/internal/index"
	workerPkg "github.com/cgast/embird/internal/infra/worker"
	"github.com/cgast/embird/internal/observability/logging"
	bizmetrics "github.com/cgast/embird/internal/observability/metrics"
	"github.com/cgast/embird/internal/projector"
	"github.com/cgast/embird/internal/scheduler"
	"github.com/cgast/embird/internal/store/postgres"
	"github.com/cgast/embird/pkg/config"
)

func main() {
	logger := initLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database := initDatabase(ctx, logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()

	healthAddr := fmt.Sprintf(":%d", getHealthPort())
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	metricsServer := startMetricsServer(ctx, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	sched := setupScheduler(ctx, logger, database, workerMetrics)
	sched.Start()
	healthServer.SetReady(true)
	logger.Info("worker ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker shutting down")
	healthServer.SetReady(false)
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func initDatabase(ctx context.Context, logger *slog.Logger) *sql.DB {
	database, err := postgres.Open(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := postgres.Migrate(ctx, database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

func getHealthPort() int {
	portStr := os.Getenv("WORKER_HEALTH_PORT")
	if portStr == "" {
		return 9091
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 9091
	}
	return port
}

// setupScheduler wires the crawl pipeline and the index/cluster/projector
// refresh behind the two scheduler.Config timers, both recover-guarded by
// the scheduler itself.
func setupScheduler(ctx context.Context, logger *slog.Logger, database *sql.DB, metrics *workerPkg.WorkerMetrics) *scheduler.Scheduler {
	sourceRepo := postgres.NewSourceRepo(database)
	articleRepo := postgres.NewArticleRepo(database)
	snapshotRepo := postgres.NewSnapshotRepo(database)
	prefRepo := postgres.NewPreferenceRepo(database)

	embedder := embedclient.New(embedConfigFromEnv())
	extractClient := extract.NewClient(extractConfigFromEnv())

	crawlCfg := crawlConfigFromEnv()
	pipeline := crawl.New(extractClient, embedder, articleRepo, crawlCfg)

	vectorIndex := index.New(articleRepo)
	windowHours := config.GetEnvInt("VISUALIZATION_TIME_RANGE", 48)
	minSimilarity := envFloat("VISUALIZATION_SIMILARITY", 0.55)

	clusterCfg := cluster.DefaultConfig(minSimilarity)
	clusterCfg.SubclusterEnabled = config.GetEnvBool("SUBCLUSTER_ENABLED", true)
	clusterEngine := cluster.NewEngine(vectorIndex, articleRepo, clusterCfg)

	projectorCfg := projector.DefaultConfig()

	crawlTick := func(tickCtx context.Context) error {
		sources, err := sourceRepo.List(tickCtx)
		if err != nil {
			return err
		}

		stats := &crawl.Stats{Sources: len(sources)}
		start := time.Now()
		for _, source := range sources {
			before := *stats
			sourceStart := time.Now()
			pipeline.RunSource(tickCtx, source, stats)
			bizmetrics.RecordFeedCrawl(source.ID, time.Since(sourceStart),
				int64(stats.FeedItems-before.FeedItems),
				int64(stats.Inserted-before.Inserted),
				int64(stats.Duplicated-before.Duplicated))
			if stats.ExtractionErrors > before.ExtractionErrors {
				bizmetrics.RecordFeedCrawlError(source.ID, "extraction")
			}
			if stats.EmbeddingErrors > before.EmbeddingErrors {
				bizmetrics.RecordFeedCrawlError(source.ID, "embedding")
			}
			if err := sourceRepo.MarkCrawled(tickCtx, source.ID, time.Now()); err != nil {
				logger.Warn("worker: failed to mark source crawled", slog.Int64("source_id", source.ID), slog.Any("error", err))
			}
		}
		stats.Duration = time.Since(start)

		metrics.RecordJobRun("success")
		metrics.RecordJobDuration(stats.Duration.Seconds())
		metrics.RecordFeedsProcessed(stats.Sources)
		metrics.RecordLastSuccess()
		bizmetrics.UpdateSourcesTotal(len(sources))

		logger.Info("crawl completed",
			slog.Int("sources", stats.Sources),
			slog.Int("feed_items", stats.FeedItems),
			slog.Int("inserted", stats.Inserted),
			slog.Int("duplicated", stats.Duplicated),
			slog.Int("extraction_errors", stats.ExtractionErrors),
			slog.Int("embedding_errors", stats.EmbeddingErrors),
			slog.Duration("duration", stats.Duration))
		return nil
	}

	refreshTick := func(tickCtx context.Context) error {
		statsStart := time.Now()
		if articleStats, err := articleRepo.Stats(tickCtx, windowHours); err != nil {
			logger.Warn("worker: failed to read article stats", slog.Any("error", err))
		} else {
			bizmetrics.UpdateArticlesTotal(int(articleStats.TotalArticles))
		}
		bizmetrics.RecordDBQuery("article_stats", time.Since(statsStart))

		if err := vectorIndex.Rebuild(tickCtx, windowHours); err != nil {
			return err
		}

		clusterSnapshot, err := clusterEngine.Build(tickCtx, windowHours, minSimilarity)
		if err != nil {
			return err
		}
		if err := snapshotRepo.SaveClusterSnapshot(tickCtx, clusterSnapshot); err != nil {
			logger.Warn("worker: failed to persist cluster snapshot", slog.Any("error", err))
		}

		articles, err := articleRepo.ListInWindow(tickCtx, windowHours)
		if err != nil {
			return err
		}
		prefs, err := prefRepo.List(tickCtx)
		if err != nil {
			return err
		}

		umapSnapshot := projector.Build(windowHours, minSimilarity, articles, prefs, clusterSnapshot.Clusters, time.Now(), projectorCfg)
		if err := snapshotRepo.SaveUMAPSnapshot(tickCtx, umapSnapshot); err != nil {
			logger.Warn("worker: failed to persist UMAP snapshot", slog.Any("error", err))
		}
		return nil
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.CrawlInterval = config.GetEnvDuration("CRAWL_INTERVAL", schedCfg.CrawlInterval)
	schedCfg.IndexInterval = config.GetEnvDuration("FAISS_UPDATE_INTERVAL", schedCfg.IndexInterval)
	schedCfg.Timezone = config.GetEnvString("WORKER_TIMEZONE", schedCfg.Timezone)

	sched, err := scheduler.New(schedCfg, crawlTick, refreshTick)
	if err != nil {
		logger.Error("failed to build scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	return sched
}

func embedConfigFromEnv() embedclient.Config {
	cfg := embedclient.DefaultConfig()
	cfg.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	cfg.APIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.Model = config.GetEnvString("EMBEDDING_MODEL", "text-embedding-3-large")
	return cfg
}

func extractConfigFromEnv() extract.ClientConfig {
	cfg := extract.DefaultClientConfig()
	cfg.Timeout = config.GetEnvDuration("EXTRACT_TIMEOUT", cfg.Timeout)
	cfg.MaxRedirects = config.GetEnvInt("EXTRACT_MAX_REDIRECTS", cfg.MaxRedirects)
	return cfg
}

func crawlConfigFromEnv() crawl.Config {
	return crawl.Config{
		MaxConcurrentRequests: config.GetEnvInt("CRAWL_MAX_CONCURRENT", 10),
		RequestTimeout:        config.GetEnvDuration("CRAWL_REQUEST_TIMEOUT", 10*time.Second),
		EmbedTitleOnly:        config.GetEnvBool("EMBED_TITLE_ONLY", false),
		RetentionDays:         config.GetEnvInt("RETENTION_DAYS", 30),
		MaxItems:              int64(config.GetEnvInt("MAX_ITEMS", 100000)),
	}
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
