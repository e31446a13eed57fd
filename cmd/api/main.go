// Command api runs the query surface (C10) and its thin admin/auth
// surfaces (C15-C17): a read-mostly HTTP process with no crawl scheduler.
// Set SERVICE_TYPE=crawler to run the worker process instead (cmd/worker).
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/cgast/embird/internal/cluster"
	"github.com/cgast/embird/internal/common/pagination"
	secconfig "github.com/cgast/embird/internal/config"
	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/embedclient"
	hhttp "github.com/cgast/embird/internal/handler/http"
	hauth "github.com/cgast/embird/internal/handler/http/auth"
	"github.com/cgast/embird/internal/handler/http/middleware"
	"github.com/cgast/embird/internal/handler/http/preference"
	"github.com/cgast/embird/internal/handler/http/query"
	"github.com/cgast/embird/internal/handler/http/registry"
	"github.com/cgast/embird/internal/handler/http/requestid"
	"github.com/cgast/embird/internal/index"
	"github.com/cgast/embird/internal/observability/logging"
	"github.com/cgast/embird/internal/observability/slo"
	"github.com/cgast/embird/internal/observability/tracing"
	"github.com/cgast/embird/internal/projector"
	"github.com/cgast/embird/internal/store/postgres"
	"github.com/cgast/embird/pkg/config"
	"github.com/cgast/embird/pkg/ratelimit"
	"github.com/cgast/embird/pkg/security/csp"

	_ "github.com/cgast/embird/docs" // swagger docs
)

// @title           embird News Query API
// @version         1.0
// @description     Query surface over crawled articles, clusters, and UMAP projections.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

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

	version := config.GetEnvString("VERSION", "dev")
	components := setupServer(ctx, logger, database, version)

	runServer(ctx, cancel, logger, components, version)
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

// ServerComponents holds everything runServer needs to start listening and
// to tear down cleanly on shutdown.
type ServerComponents struct {
	Handler       http.Handler
	indexRefresh  func(context.Context)
	refreshPeriod time.Duration
}

func setupServer(ctx context.Context, logger *slog.Logger, database *sql.DB, version string) *ServerComponents {
	articleRepo := postgres.NewArticleRepo(database)
	sourceRepo := postgres.NewSourceRepo(database)
	prefRepo := postgres.NewPreferenceRepo(database)
	snapshotRepo := postgres.NewSnapshotRepo(database)

	embedder := embedclient.New(embedConfigFromEnv())

	vectorIndex := index.New(articleRepo)
	windowHours := config.GetEnvInt("VISUALIZATION_TIME_RANGE", 48)
	if err := vectorIndex.Rebuild(ctx, windowHours); err != nil {
		logger.Warn("initial index rebuild failed, search will fall back to direct cosine queries", slog.Any("error", err))
	}

	minSimilarity := envFloat("VISUALIZATION_SIMILARITY", 0.55)
	clusterCfg := cluster.DefaultConfig(minSimilarity)
	clusterCfg.SubclusterEnabled = config.GetEnvBool("SUBCLUSTER_ENABLED", true)
	clusterEngine := cluster.NewEngine(vectorIndex, articleRepo, clusterCfg)

	projectorCfg := projector.DefaultConfig()
	project := func(hours int, minSim float64, articles []entity.Article, prefs []entity.PreferenceVector, clusters map[string]entity.ClusterNode, now time.Time) entity.UMAPSnapshot {
		return projector.Build(hours, minSim, articles, prefs, clusters, now, projectorCfg)
	}

	queryHandler := &query.Handler{
		Articles:           articleRepo,
		Snapshots:          snapshotRepo,
		Preferences:        prefRepo,
		Embedder:           embedder,
		Index:              vectorIndex,
		Clusters:           clusterEngine,
		Project:            project,
		DefaultWindowHours: windowHours,
		DefaultMinSim:      minSimilarity,
		Pagination:         pagination.LoadFromEnv(),
	}

	registryHandler := &registry.Handler{
		Store:   sourceRepo,
		Enabled: config.GetEnvBool("ENABLE_URL_MANAGEMENT", true),
	}

	preferenceHandler := &preference.Handler{
		Store:    prefRepo,
		Embedder: embedder,
		Enabled:  config.GetEnvBool("ENABLE_PREFERENCE_MANAGEMENT", true),
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if err := secconfig.LoadPasswordPolicy().Validate(adminPassword); err != nil {
		logger.Warn("ADMIN_PASSWORD does not meet the configured password policy", slog.Any("error", err))
	}

	authHandler := &hauth.Handler{
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: adminPassword,
	}

	rootMux, ipRateLimiter := setupRoutes(database, version, queryHandler, registryHandler, preferenceHandler, authHandler, logger)
	handler := applyMiddleware(logger, rootMux, ipRateLimiter)

	refreshPeriod := config.GetEnvDuration("FAISS_UPDATE_INTERVAL", time.Hour)
	indexRefresh := func(refreshCtx context.Context) {
		if err := vectorIndex.Rebuild(refreshCtx, windowHours); err != nil {
			logger.Warn("periodic index rebuild failed", slog.Any("error", err))
		}
	}

	return &ServerComponents{
		Handler:       handler,
		indexRefresh:  indexRefresh,
		refreshPeriod: refreshPeriod,
	}
}

func embedConfigFromEnv() embedclient.Config {
	cfg := embedclient.DefaultConfig()
	cfg.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	cfg.APIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.Model = config.GetEnvString("EMBEDDING_MODEL", "text-embedding-3-large")
	return cfg
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

func ratelimitStore(cfg *ratelimit.RateLimitConfig) *ratelimit.InMemoryRateLimitStore {
	return ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: cfg.MaxActiveKeys})
}

func ratelimitAlgorithm() *ratelimit.SlidingWindowAlgorithm {
	return ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
}

func ratelimitMetrics() *ratelimit.PrometheusMetrics {
	return ratelimit.NewPrometheusMetrics()
}

func ratelimitBreaker(cfg *ratelimit.RateLimitConfig) *ratelimit.CircuitBreaker {
	return ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreakerResetTimeout,
	})
}

func setupRoutes(
	database *sql.DB,
	version string,
	queryHandler *query.Handler,
	registryHandler *registry.Handler,
	preferenceHandler *preference.Handler,
	authHandler *hauth.Handler,
	logger *slog.Logger,
) (*http.ServeMux, *middleware.IPRateLimiter) {
	rateLimitConfig, err := config.LoadRateLimitConfig()
	if err != nil {
		logger.Error("failed to load rate limit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
	}

	var ipRateLimiter *middleware.IPRateLimiter
	if rateLimitConfig.Enabled {
		store := ratelimitStore(rateLimitConfig)
		algorithm := ratelimitAlgorithm()
		metrics := ratelimitMetrics()
		breaker := ratelimitBreaker(rateLimitConfig)

		ipRateLimiter = middleware.NewIPRateLimiter(
			middleware.IPRateLimiterConfig{
				Limit:   rateLimitConfig.DefaultIPLimit,
				Window:  rateLimitConfig.DefaultIPWindow,
				Enabled: true,
			},
			ipExtractor, store, algorithm, metrics, breaker,
		)
		logger.Info("rate limiting initialized",
			slog.Int("ip_limit", rateLimitConfig.DefaultIPLimit),
			slog.Duration("ip_window", rateLimitConfig.DefaultIPWindow))
	} else {
		logger.Warn("rate limiting is disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/health", &hhttp.HealthHandler{DB: database, Version: version, RateLimiterEnabled: rateLimitConfig.Enabled})
	mux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	query.Register(mux, queryHandler)
	registry.Register(mux, registryHandler)
	preference.Register(mux, preferenceHandler)
	hauth.Register(mux, authHandler)

	return mux, ipRateLimiter
}

// applyMiddleware wraps the handler with the ambient chain, innermost first:
// metrics, CSP, body-size limit, logging, recovery, IP rate limit, request
// id, CORS.
func applyMiddleware(logger *slog.Logger, handler http.Handler, ipRateLimiter *middleware.IPRateLimiter) http.Handler {
	corsConfig, err := middleware.LoadCORSConfig()
	if err != nil {
		logger.Error("failed to load CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}
	corsConfig.Logger = &middleware.SlogAdapter{Logger: logger}

	cspConfig, err := config.LoadCSPConfig()
	if err != nil {
		logger.Error("failed to load CSP configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var cspMiddleware func(http.Handler) http.Handler
	if cspConfig.Enabled {
		cspMW := middleware.NewCSPMiddleware(middleware.CSPMiddlewareConfig{
			Enabled:       true,
			DefaultPolicy: csp.StrictPolicy(),
			PathPolicies:  map[string]*csp.CSPBuilder{"/swagger/": csp.SwaggerUIPolicy()},
			ReportOnly:    cspConfig.ReportOnly,
		})
		cspMiddleware = cspMW.Middleware()
	} else {
		cspMiddleware = func(next http.Handler) http.Handler { return next }
	}

	chain := handler
	chain = hhttp.MetricsMiddleware(chain)
	chain = cspMiddleware(chain)
	chain = hhttp.LimitRequestBody(1 << 20)(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	if ipRateLimiter != nil {
		chain = ipRateLimiter.Middleware()(chain)
	}
	chain = requestid.Middleware(chain)
	chain = middleware.CORS(*corsConfig)(chain)
	chain = tracing.Middleware(chain)
	return chain
}

func runServer(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, components *ServerComponents, version string) {
	if components.indexRefresh != nil && components.refreshPeriod > 0 {
		go runIndexRefreshLoop(ctx, components.indexRefresh, components.refreshPeriod, logger)
	}
	go runSLORollupLoop(ctx, 1*time.Minute)

	addr := config.GetEnvString("LISTEN_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

// runSLORollupLoop periodically rolls up the request/error counters and
// latency reservoir recorded by hhttp.MetricsMiddleware into the
// availability, latency, and error-rate gauges the SLO dashboards read.
func runSLORollupLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			availability, p95, p99, errorRate := hhttp.SLOSnapshot()
			slo.UpdateAvailability(availability)
			slo.UpdateLatencyP95(p95)
			slo.UpdateLatencyP99(p99)
			slo.UpdateErrorRate(errorRate)
		}
	}
}

// runIndexRefreshLoop keeps the in-process vector index warm between full
// worker-driven snapshot refreshes, matching the teacher's cron-recover
// idiom but on a bare ticker since the API process has no crawl tick to
// chain off.
func runIndexRefreshLoop(ctx context.Context, refresh func(context.Context), period time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("index refresh panic recovered", slog.Any("panic", r))
					}
				}()
				refresh(ctx)
			}()
		}
	}
}
