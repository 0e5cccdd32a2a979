// Package httpapi provides the HTTP API server: health, chat probe
// and lesson-plan routes.
package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Nex2i/Polygloss/internal/hub"
	"github.com/Nex2i/Polygloss/internal/lessons"
	"github.com/Nex2i/Polygloss/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	echo    *echo.Echo
	hub     *hub.Hub
	store   store.Store
	lessons lessons.Provider
}

// NewServer creates a new HTTP API server.
func NewServer(h *hub.Hub, st store.Store, provider lessons.Provider) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:    e,
		hub:     h,
		store:   st,
		lessons: provider,
	}

	// Register routes
	e.GET("/health", s.handleHealth)
	e.GET("/api/chat", s.handleChatProbe)
	e.GET("/api/lesson-plans", s.handleGetLessonPlan)
	e.GET("/api/lesson-plans/levels", s.handleGetLessonLevels)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleHealth reports liveness plus connection and store counters.
func (s *Server) handleHealth(c echo.Context) error {
	stats, err := s.store.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read store stats"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": s.hub.ConnectionCount(),
		"sessions":    s.hub.SessionCount(),
		"store":       stats,
	})
}

// handleChatProbe confirms the chat WebSocket endpoint is available.
func (s *Server) handleChatProbe(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Chat WebSocket endpoint is available.",
	})
}

// lessonPlanResponse wraps a plan the way the web client expects.
type lessonPlanResponse struct {
	Success bool          `json:"success"`
	Data    *lessons.Plan `json:"data"`
}

// handleGetLessonPlan returns the lesson plan for ?skill_level=N.
func (s *Server) handleGetLessonPlan(c echo.Context) error {
	skillLevel, err := strconv.Atoi(c.QueryParam("skill_level"))
	if err != nil || skillLevel < lessons.MinSkillLevel || skillLevel > lessons.MaxSkillLevel {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "Invalid skill level",
			"message": "Skill level must be a number between 1 and 10",
		})
	}

	plan, ok := s.lessons.Get(skillLevel)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error":   "Lesson plan not found",
			"message": "No lesson plan available for skill level " + strconv.Itoa(skillLevel),
		})
	}

	return c.JSON(http.StatusOK, lessonPlanResponse{Success: true, Data: plan})
}

// handleGetLessonLevels returns the available skill levels.
func (s *Server) handleGetLessonLevels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"levels": s.lessons.Levels(),
	})
}
