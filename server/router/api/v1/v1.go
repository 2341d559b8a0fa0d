// Package v1 exposes the learning service over REST.
package v1

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gridsense/ai/embedding"
	"github.com/hrygo/gridsense/ai/feedback"
	"github.com/hrygo/gridsense/ai/generate"
	"github.com/hrygo/gridsense/ai/metrics"
	"github.com/hrygo/gridsense/ai/policy"
	"github.com/hrygo/gridsense/ai/session"
	"github.com/hrygo/gridsense/internal/profile"
	"github.com/hrygo/gridsense/store"
)

// APIV1Service holds the shared collaborators behind the v1 routes.
type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Generator generate.Generator
	Metrics   *metrics.Exporter

	embedder embedding.Embedder
	parser   *feedback.Parser
	sessions *sessionManager
}

// NewAPIV1Service creates the v1 API service. The embedder is shared across
// sessions behind an LRU cache so repeated states embed once.
func NewAPIV1Service(p *profile.Profile, st *store.Store, generator generate.Generator, exporter *metrics.Exporter) *APIV1Service {
	return &APIV1Service{
		Profile:   p,
		Store:     st,
		Generator: generator,
		Metrics:   exporter,
		embedder:  embedding.NewCachedEmbedder(embedding.NewFeatureHasher(), 1024),
		parser:    feedback.NewParser(),
		sessions:  newSessionManager(),
	}
}

// RegisterRoutes mounts the v1 routes on the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.POST("/sessions", s.createSession)
	g.GET("/sessions/:id", s.getSession)
	g.DELETE("/sessions/:id", s.deleteSession)

	g.POST("/sessions/:id/grid", s.seedGrid)
	g.GET("/sessions/:id/grid", s.getGrid)

	g.POST("/sessions/:id/execute", s.execute)
	g.POST("/sessions/:id/feedback", s.recordFeedback)
	g.POST("/sessions/:id/learn", s.learn)

	g.GET("/sessions/:id/export", s.exportSession)
	g.POST("/sessions/:id/import", s.importSession)

	g.GET("/experiences", s.listExperiences)
}

type createSessionRequest struct {
	DomainTag   string   `json:"domain_tag"`
	Company     string   `json:"company"`
	Epsilon     *float64 `json:"epsilon"`
	Temperature *float64 `json:"temperature"`
	AutoLearn   *bool    `json:"auto_learn"`
}

type sessionResponse struct {
	SessionID   string         `json:"session_id"`
	Config      session.Config `json:"config"`
	Epsilon     float64        `json:"epsilon"`
	SuccessRate float64        `json:"success_rate"`
	Pending     bool           `json:"pending"`
}

func (s *APIV1Service) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cfg := session.Config{
		DomainTag:   req.DomainTag,
		Company:     req.Company,
		Epsilon:     s.Profile.InitialEpsilon,
		Temperature: s.Profile.Temperature,
		AutoLearn:   s.Profile.AutoLearn,
	}
	if cfg.DomainTag == "" {
		cfg.DomainTag = s.Profile.DomainTag
	}
	if req.Epsilon != nil {
		cfg.Epsilon = *req.Epsilon
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.AutoLearn != nil {
		cfg.AutoLearn = *req.AutoLearn
	}

	agent := policy.NewAgent(s.Store, s.embedder, policy.Config{
		Epsilon: cfg.Epsilon,
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	controller := session.New(cfg, session.Deps{
		Store:     s.Store,
		Policy:    agent,
		Parser:    s.parser,
		Generator: s.Generator,
		Metrics:   s.Metrics,
	})

	live := &liveSession{controller: controller, grid: newEmptyGrid()}
	s.sessions.add(live)

	return c.JSON(http.StatusCreated, s.sessionStatus(live))
}

func (s *APIV1Service) getSession(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, s.sessionStatus(live))
}

func (s *APIV1Service) deleteSession(c echo.Context) error {
	if !s.sessions.remove(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) sessionStatus(live *liveSession) sessionResponse {
	return sessionResponse{
		SessionID:   live.controller.ID(),
		Config:      live.controller.Config(),
		Epsilon:     live.controller.Epsilon(),
		SuccessRate: live.controller.SuccessRate(),
		Pending:     live.controller.HasPending(),
	}
}

type executeRequest struct {
	Command string `json:"command"`
	Intent  string `json:"intent"`
}

func (s *APIV1Service) execute(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Command == "" && req.Intent == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "command or intent required")
	}

	result := live.controller.ExecuteWithLearning(c.Request().Context(), req.Command, live.grid, req.Intent)
	return c.JSON(http.StatusOK, map[string]any{
		"result": result,
		"grid":   live.grid.GetState(),
	})
}

func (s *APIV1Service) recordFeedback(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	var signal session.Signal
	if err := c.Bind(&signal); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if signal.Score == nil && signal.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "score or text required")
	}
	if signal.Score != nil && (*signal.Score < -1 || *signal.Score > 1) {
		return echo.NewHTTPError(http.StatusBadRequest, "score must be within [-1, 1]")
	}

	result := live.controller.RecordFeedback(c.Request().Context(), signal, live.grid)
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) learn(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	live.controller.Learn(c.Request().Context(), nil)
	return c.JSON(http.StatusOK, s.sessionStatus(live))
}

func (s *APIV1Service) exportSession(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, live.controller.Export())
}

func (s *APIV1Service) importSession(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	var snap session.Snapshot
	if err := c.Bind(&snap); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid snapshot")
	}
	if err := live.controller.Import(c.Request().Context(), &snap); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.sessionStatus(live))
}

func (s *APIV1Service) listExperiences(c echo.Context) error {
	find := &store.FindExperience{Limit: 50}
	if tag := c.QueryParam("domain_tag"); tag != "" {
		find.DomainTag = &tag
	}
	if company := c.QueryParam("company"); company != "" {
		find.Company = &company
	}
	if limit := c.QueryParam("limit"); limit != "" {
		if err := echo.QueryParamsBinder(c).Int("limit", &find.Limit).BindError(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}

	experiences := s.Store.ListExperiences(c.Request().Context(), find)
	return c.JSON(http.StatusOK, map[string]any{
		"experiences": experiences,
		"count":       len(experiences),
	})
}
