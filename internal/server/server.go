package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"course-rag/internal/models"
	"course-rag/internal/store"
)

// RAGSystem is the surface the HTTP layer needs; the handlers stay thin
// collaborators over it.
type RAGSystem interface {
	Query(ctx context.Context, query, sessionID string) (models.QueryResponse, error)
	GetCourseOutline(ctx context.Context, name string) (models.Course, error)
	Analytics() models.Analytics
	ResetSession(id string)
}

type Handler struct {
	RAG RAGSystem
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/query", h.query)
	g.GET("/courses", h.courses)
	g.GET("/courses/outline", h.outline)
	g.DELETE("/session/:id", h.resetSession)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

func (h *Handler) query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	resp, err := h.RAG.Query(c.Request().Context(), req.Query, req.SessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) courses(c echo.Context) error {
	return c.JSON(http.StatusOK, h.RAG.Analytics())
}

func (h *Handler) outline(c echo.Context) error {
	name := c.QueryParam("course")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "course required")
	}
	course, err := h.RAG.GetCourseOutline(c.Request().Context(), name)
	if errors.Is(err, store.ErrCourseNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no course found matching '%s'", name))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, course)
}

// resetSession is idempotent: unknown ids still return ok.
func (h *Handler) resetSession(c echo.Context) error {
	h.RAG.ResetSession(c.Param("id"))
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// NewEcho builds the router with the shared middleware and a JSON error
// handler, so a query failure is always distinct from an empty-content
// answer.
func NewEcho(sys RAGSystem) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		log.Error().Int("status", code).Str("path", c.Request().URL.Path).Msg(msg)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	h := &Handler{RAG: sys}
	h.Register(e.Group("/api"))
	return e
}

// Run starts the HTTP server and blocks.
func Run(addr string, sys RAGSystem) error {
	e := NewEcho(sys)
	log.Info().Str("addr", addr).Msg("listening")
	return e.Start(addr)
}
