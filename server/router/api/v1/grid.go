package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/gridsense/ai/grid"
)

func newEmptyGrid() *grid.MemoryGrid {
	return grid.NewMemoryGrid()
}

type seedGridRequest struct {
	Cells grid.State `json:"cells"`
}

// seedGrid replaces the session's grid content. Clients push the current
// sheet snapshot here before driving the learning loop.
func (s *APIV1Service) seedGrid(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	var req seedGridRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	for ref := range req.Cells {
		if !grid.ValidRef(ref) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cell reference "+ref)
		}
	}

	live.grid.Seed(req.Cells)
	return c.JSON(http.StatusOK, map[string]any{"cells": live.grid.GetState()})
}

func (s *APIV1Service) getGrid(c echo.Context) error {
	live, err := s.sessions.get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"cells": live.grid.GetState()})
}
