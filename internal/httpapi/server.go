package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/sandgraal/retro-games-sub003/internal/auth"
	"github.com/sandgraal/retro-games-sub003/internal/catalog"
	"github.com/sandgraal/retro-games-sub003/internal/db"
	"github.com/sandgraal/retro-games-sub003/internal/globaltime"
	"github.com/sandgraal/retro-games-sub003/internal/moderation"
)

const maxRequestBody = "1M"

// SnapshotReader serves the newest published catalog snapshot.
type SnapshotReader interface {
	LatestSnapshot() (string, []byte, error)
}

// Moderation is the suggestion workflow exposed over HTTP.
type Moderation interface {
	SubmitUpdate(ctx context.Context, targetID string, delta catalog.RawRecord, notes string, author moderation.Author) (moderation.Suggestion, error)
	SubmitNew(ctx context.Context, delta catalog.RawRecord, notes string, author moderation.Author) (moderation.Suggestion, error)
	List(ctx context.Context, filter string) ([]moderation.Suggestion, error)
	Decide(ctx context.Context, id string, status moderation.Status, notes string, moderator moderation.Author) (moderation.Suggestion, moderation.AuditEntry, error)
	Audit(ctx context.Context) ([]moderation.AuditEntry, error)
}

// RunLedger lists recorded ingestion runs. It is optional.
type RunLedger interface {
	RecentRuns(ctx context.Context, limit int) ([]db.IngestRun, error)
}

type Deps struct {
	Snapshots  SnapshotReader
	Moderation Moderation
	Runs       RunLedger
	Resolver   *auth.Resolver
}

type Options struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	SnapshotMaxAge     time.Duration
}

type Server struct {
	snapshots  SnapshotReader
	moderation Moderation
	runs       RunLedger
	resolver   *auth.Resolver
	logger     zerolog.Logger
	opts       Options
}

func NewServer(deps Deps, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	maxAge := opts.SnapshotMaxAge
	if maxAge < 0 {
		maxAge = 0
	}

	resolver := deps.Resolver
	if resolver == nil {
		resolver = auth.NewResolver("", "")
	}

	return &Server{
		snapshots:  deps.Snapshots,
		moderation: deps.Moderation,
		runs:       deps.Runs,
		resolver:   resolver,
		logger:     logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			CORSAllowedOrigins: origins,
			SnapshotMaxAge:     maxAge,
		},
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.snapshots == nil || s.moderation == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.newEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("catalog api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("catalog api server stopped")
	return nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxRequestBody))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))
	e.Use(s.resolvePrincipal())

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/catalog", s.handleCatalog)
	api.POST("/games/new", s.handleSubmitNew)
	api.POST("/games/:id/suggestions", s.handleSubmitUpdate)

	mod := api.Group("/moderation", s.requireModerator())
	mod.GET("/suggestions", s.handleListSuggestions)
	mod.POST("/suggestions/:id/decision", s.handleDecide)
	mod.GET("/audit", s.handleAudit)

	api.GET("/ingest/runs", s.handleRuns, s.requireModerator())

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		message = "Internal server error"
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if status >= 500 {
			_ = internalError(c, message)
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "catalog-ingest",
		"time":    globaltime.UTC(),
	})
}
