// Package server wires the HTTP surface: the v1 API, health probes, and the
// metrics endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/gridsense/ai/generate"
	"github.com/hrygo/gridsense/ai/metrics"
	"github.com/hrygo/gridsense/internal/profile"
	apiv1 "github.com/hrygo/gridsense/server/router/api/v1"
	"github.com/hrygo/gridsense/store"
)

// Server is the HTTP server hosting the learning service.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	apiService *apiv1.APIV1Service
	metrics    *metrics.Exporter
}

// NewServer assembles the server: metrics, the optional generative backend,
// and the v1 API routes.
func NewServer(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger())

	exporter := metrics.NewExporter(metrics.Config{})
	storeInstance.SetFailureListener(exporter.RecordStoreDegraded)

	var generator generate.Generator
	if instanceProfile.IsGenerationEnabled() {
		g, err := generate.NewOpenAIGenerator(generate.Config{
			APIKey:  instanceProfile.LLMAPIKey,
			BaseURL: instanceProfile.LLMBaseURL,
			Model:   instanceProfile.LLMModel,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create generator")
		}
		generator = g
		slog.Info("generative backend enabled",
			"provider", instanceProfile.LLMProvider,
			"model", instanceProfile.LLMModel)
	} else {
		slog.Info("generative backend disabled, retrieval and explicit commands only")
	}

	s := &Server{
		Profile:    instanceProfile,
		Store:      storeInstance,
		echoServer: e,
		metrics:    exporter,
	}

	s.apiService = apiv1.NewAPIV1Service(instanceProfile, storeInstance, generator, exporter)
	s.apiService.RegisterRoutes(e)

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	return s, nil
}

// Start begins serving in a background goroutine. The returned error only
// covers startup; runtime failures are logged.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped unexpectedly", "error", err)
		}
	}()
	slog.Info("server listening", "address", address, "mode", s.Profile.Mode)
	return nil
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server gracefully", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shut down")
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}

// requestLogger logs one line per request through slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency)
			return nil
		},
	})
}
