package httpapi

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/KurimiTokisakiQAQ/kd/internal/monitor"
)

const pingTimeout = 5 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type StatusProvider interface {
	Snapshot() monitor.Status
}

// Server exposes the operational surface of a running monitor: a database
// health probe and the loop's counters. It carries no domain endpoints.
type Server struct {
	echo   *echo.Echo
	pinger Pinger
	status StatusProvider
	logger zerolog.Logger
}

func NewServer(pinger Pinger, status StatusProvider, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		pinger: pinger,
		status: status,
		logger: logger,
	}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/status", s.handleStatus)
	return s
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("status server listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("health probe failed")
		return internalError(c, "database unreachable")
	}
	return success(c, map[string]string{"database": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return success(c, s.status.Snapshot())
}
