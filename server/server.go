package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/beatbridge/beatbridge/config"
	"github.com/beatbridge/beatbridge/database"
	"github.com/beatbridge/beatbridge/errors"
	"github.com/beatbridge/beatbridge/handlers"
	"github.com/beatbridge/beatbridge/middleware"
	"github.com/beatbridge/beatbridge/models"
	"github.com/beatbridge/beatbridge/recommend"
)

const (
	MaxEndpointLength   = 1000
	MaxRemoteAddrLength = 100
)

// ASCII control character constants
const (
	ASCIIControlCharMin = 32
	ASCIIControlCharMax = 127
)

type Server struct {
	config       *config.Config
	logger       *logrus.Logger
	db           *database.DB
	engine       *recommend.Service
	handlers     *handlers.Handler
	server       *http.Server
	runTicker    *time.Ticker
	tickerMutex  sync.RWMutex
	shutdownChan chan struct{}
	rateLimiter  *rate.Limiter
}

func New(cfg *config.Config) (*Server, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Invalid log level, defaulting to info")
	}
	logger.SetLevel(level)

	poolConfig := &database.ConnectionPool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		HealthCheck:     cfg.DBHealthCheck,
	}

	db, err := database.NewWithPool(cfg.DatabasePath, logger, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryServer, "INITIALIZATION_FAILED", "failed to initialize database").
			WithContext("database_path", cfg.DatabasePath)
	}

	engine := recommend.New(db, logger, cfg.RecommendThreshold)
	handlersService := handlers.New(logger, engine, db)

	var rateLimiter *rate.Limiter
	if cfg.RateLimitEnabled {
		rateLimiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		logger.WithFields(logrus.Fields{
			"rps":   cfg.RateLimitRPS,
			"burst": cfg.RateLimitBurst,
		}).Info("Rate limiting enabled")
	} else {
		logger.Info("Rate limiting disabled")
	}

	server := &Server{
		config:       cfg,
		logger:       logger,
		db:           db,
		engine:       engine,
		handlers:     handlersService,
		shutdownChan: make(chan struct{}),
		rateLimiter:  rateLimiter,
	}

	go server.scheduleRuns()

	return server, nil
}

// sanitizeForLogging removes control characters and limits length to prevent log injection
func sanitizeForLogging(input string) string {
	sanitized := strings.Map(func(r rune) rune {
		if r < ASCIIControlCharMin || r == ASCIIControlCharMax {
			return -1
		}
		return r
	}, input)

	if len(sanitized) > MaxEndpointLength {
		sanitized = sanitized[:MaxEndpointLength] + "..."
	}

	return sanitized
}

// sanitizeRemoteAddr sanitizes remote address for logging
func sanitizeRemoteAddr(remoteAddr string) string {
	if len(remoteAddr) > MaxRemoteAddrLength {
		return remoteAddr[:MaxRemoteAddrLength] + "..."
	}
	return remoteAddr
}

// requestMiddleware logs requests and applies the global rate limit.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sanitizedEndpoint := sanitizeForLogging(r.URL.Path)
		sanitizedRemoteAddr := sanitizeRemoteAddr(r.RemoteAddr)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"endpoint": sanitizedEndpoint,
			"remote":   sanitizedRemoteAddr,
		}).Info("Incoming request")

		if s.rateLimiter != nil && !s.rateLimiter.Allow() {
			s.logger.WithFields(logrus.Fields{
				"endpoint": sanitizedEndpoint,
				"remote":   sanitizedRemoteAddr,
			}).Warn("Rate limit exceeded")

			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	if s.config.SecurityHeadersEnabled {
		securityMiddleware := middleware.NewSecurityHeaders(s.config, s.logger)
		router.Use(securityMiddleware.Handler)
		s.logger.WithField("dev_mode", s.config.IsDevMode()).Info("Security headers middleware enabled")
	} else {
		s.logger.Info("Security headers middleware disabled")
	}

	router.Use(s.requestMiddleware)

	router.HandleFunc("/health", s.handlers.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/songs", s.handlers.HandleTagSong).Methods(http.MethodPost)
	router.HandleFunc("/api/recommendations/generate", s.handlers.HandleGenerate).Methods(http.MethodPost)
	router.HandleFunc("/api/recommendations/latest", s.handlers.HandleLatest).Methods(http.MethodGet)
	router.HandleFunc("/api/recommendations/history", s.handlers.HandleHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/recommendations/feedback", s.handlers.HandleFeedback).Methods(http.MethodPost)

	return router
}

func (s *Server) Start() error {
	if s.server != nil {
		return errors.ErrServerStart.WithContext("reason", "server already started")
	}

	s.server = &http.Server{
		Addr:    ":" + s.config.Port,
		Handler: s.Router(),
	}

	s.logger.WithFields(logrus.Fields{
		"port":               s.config.Port,
		"recommend_interval": s.config.RecommendInterval.String(),
		"url":                fmt.Sprintf("http://localhost:%s", s.config.Port),
	}).Info("Starting server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	close(s.shutdownChan)

	s.tickerMutex.RLock()
	if s.runTicker != nil {
		s.runTicker.Stop()
	}
	s.tickerMutex.RUnlock()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Error("Failed to shutdown HTTP server")
			return errors.Wrap(err, errors.CategoryServer, "SHUTDOWN_FAILED", "failed to shutdown HTTP server")
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close database connection")
		}
	}

	s.logger.Info("Server shut down successfully")
	return nil
}

// scheduleRuns fires a batch recommendation run on a fixed interval. Runs
// execute on this goroutine, never inline in a request handler.
func (s *Server) scheduleRuns() {
	s.tickerMutex.Lock()
	s.runTicker = time.NewTicker(s.config.RecommendInterval)
	s.tickerMutex.Unlock()

	defer func() {
		s.tickerMutex.Lock()
		if s.runTicker != nil {
			s.runTicker.Stop()
		}
		s.tickerMutex.Unlock()
	}()

	s.logger.WithField("interval", s.config.RecommendInterval.String()).
		Info("Recommendation scheduler started")

	for {
		s.tickerMutex.RLock()
		ticker := s.runTicker
		s.tickerMutex.RUnlock()

		if ticker == nil {
			return
		}

		select {
		case <-ticker.C:
			s.runScheduled()
		case <-s.shutdownChan:
			s.logger.Info("Stopping recommendation scheduler")
			return
		}
	}
}

func (s *Server) runScheduled() {
	// Zero preferences select nothing, which yields the genre-dominant
	// default weights.
	report, err := s.engine.Run(models.Preferences{}, s.config.RecommendThreshold)
	if err != nil {
		if errors.IsCode(err, "RUN_IN_PROGRESS") {
			s.logger.Warn("Skipping scheduled run, another run is in progress")
			return
		}
		s.logger.WithError(err).Error("Scheduled recommendation run failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"succeeded": len(report.Succeeded),
		"failed":    len(report.Failed),
	}).Info("Scheduled recommendation run finished")
}

// Engine exposes the recommendation engine, mainly for tests and manual
// invocation from main.
func (s *Server) Engine() *recommend.Service {
	return s.engine
}
