package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"urltree/internal/cache"
	"urltree/internal/config"
	"urltree/internal/handlers"
	"urltree/internal/logging"
	"urltree/internal/metrics"
	"urltree/internal/retry"
	"urltree/internal/service"
	"urltree/internal/source"
	"urltree/internal/storage"
)

const gcInterval = 10 * time.Minute

type Server struct {
	config         *config.Config
	store          *storage.PersistentStore
	memory         *cache.SnapshotCache
	files          *service.FilesService
	httpServer     *http.Server
	browserHandler *handlers.BrowserHandler
	apiHandler     *handlers.APIHandler
	webdavHandler  *handlers.WebDAVHandler
	stopGC         chan struct{}
}

func New(cfg *config.Config) (*Server, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistent store: %w", err)
	}

	memory := cache.New(cfg.CacheTTL, cfg.CacheMaxSize)
	layered := cache.NewLayered(memory, store)

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxAttempts = cfg.FetchRetries
	src := source.NewHTTP(source.Config{
		URL:         cfg.SourceURL,
		Timeout:     cfg.FetchTimeout,
		RetryConfig: retryConfig,
	})

	files := service.New(service.Config{
		Source:   src,
		Store:    layered,
		Policy:   policy,
		Payloads: store,
	})

	mux := http.NewServeMux()
	server := &Server{
		config:         cfg,
		store:          store,
		memory:         memory,
		files:          files,
		browserHandler: handlers.NewBrowserHandler(files),
		apiHandler:     handlers.NewAPIHandler(files),
		webdavHandler:  handlers.NewWebDAVHandler(files),
		stopGC:         make(chan struct{}),
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * cfg.FetchTimeout * time.Duration(cfg.FetchRetries),
			IdleTimeout:  60 * time.Second,
		},
	}

	server.setupRoutes(mux)

	return server, nil
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	if s.config.MetricsEnabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	mux.Handle("/api/", s.wrap(s.apiHandler))
	mux.Handle("/browse/", s.wrap(s.browserHandler))
	mux.Handle("/browse", s.wrap(s.browserHandler))
	mux.Handle("/dav/", s.wrap(s.webdavHandler))
	mux.Handle("/dav", s.wrap(s.webdavHandler))
}

// wrap applies CORS, request metrics and request logging.
func (s *Server) wrap(next http.Handler) http.Handler {
	return corsMiddleware(metrics.Middleware(routeLabel, logging.Middleware(next)))
}

// routeLabel keeps the metrics path label low-cardinality.
func routeLabel(r *http.Request) string {
	switch p := strings.TrimSuffix(r.URL.Path, "/"); {
	case p == "/api/files", p == "/api/files/refresh":
		return p
	case p == "/browse", strings.HasPrefix(p, "/browse/"):
		return "/browse"
	case p == "/dav", strings.HasPrefix(p, "/dav/"):
		return "/dav"
	case strings.HasPrefix(p, "/api/"):
		return "/api"
	default:
		return "other"
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS, PROPFIND")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Depth, X-Request-ID")

		// Preflights only; WebDAV clients send plain OPTIONS too.
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	persisted, err := s.store.CountSnapshots()
	if err != nil {
		logging.WithContext(r.Context()).Warn("counting persisted snapshots failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          "healthy",
		"data_dir":        s.config.DataDir,
		"cached_trees":    s.memory.Size(),
		"persisted_trees": persisted,
	})
}

// warmCache builds the tree before serving. A failure is not fatal: the next
// request retries the build.
func (s *Server) warmCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*s.config.FetchTimeout*time.Duration(s.config.FetchRetries))
	defer cancel()

	if err := s.files.EnsureCached(ctx); err != nil {
		logging.L().Error("warming tree cache failed", zap.Error(err))
	}
}

func (s *Server) runGarbageCollection() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.store.RunGarbageCollection(); err != nil {
				logging.L().Debug("value log GC skipped", zap.Error(err))
			}
		case <-s.stopGC:
			return
		}
	}
}

func (s *Server) Start() error {
	logger := logging.L()
	logger.Info("starting urltree server",
		zap.Int("port", s.config.Port),
		zap.String("data_dir", s.config.DataDir),
		zap.String("source_url", s.config.SourceURL),
		zap.Duration("cache_ttl", s.config.CacheTTL),
		zap.String("conflict_policy", s.config.ConflictPolicy),
		zap.Bool("metrics", s.config.MetricsEnabled),
	)

	s.warmCache()
	go s.runGarbageCollection()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("addr", fmt.Sprintf("http://localhost:%d", s.config.Port)))

	return s.waitForShutdown()
}

// waitForShutdown waits for shutdown signals and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logging.L().Info("shutting down server")

	if err := s.Stop(); err != nil {
		logging.L().Error("server forced to shutdown", zap.Error(err))
		return err
	}

	logging.L().Info("server shutdown complete")
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case <-s.stopGC:
	default:
		close(s.stopGC)
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	s.memory.Close()
	return s.store.Close()
}
