// Package server exposes the session and its actions over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joelkehle/patentos/internal/agent"
	"github.com/joelkehle/patentos/internal/journal"
	"github.com/joelkehle/patentos/internal/metrics"
	"github.com/joelkehle/patentos/internal/patent"
	"github.com/joelkehle/patentos/internal/session"
)

// PDFRenderer prints a Markdown document to PDF.
type PDFRenderer interface {
	Render(ctx context.Context, title, markdown string) ([]byte, error)
}

// History lists the searches run by this process.
type History interface {
	Searches(ctx context.Context, limit int) ([]journal.SearchRun, error)
}

type Server struct {
	agent   *agent.Agent
	store   *session.Store
	history History
	pdf     PDFRenderer
	webDir  string
	logger  *zap.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

func WithPDFRenderer(r PDFRenderer) Option {
	return func(s *Server) { s.pdf = r }
}

// WithWebDir sets the directory the static UI is served from.
func WithWebDir(dir string) Option {
	return func(s *Server) { s.webDir = dir }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(a *agent.Agent, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		agent:  a,
		store:  a.Store(),
		logger: zap.NewNop(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close ends every open log stream.
func (s *Server) Close() { s.cancel() }

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.POST("/search", s.handleSearch)
	api.POST("/reset", s.handleReset)
	api.POST("/patents/:id/select", s.handleSelect)
	api.DELETE("/selection", s.handleClearSelection)
	api.POST("/patents/:id/prior-art", s.handlePriorArt)
	api.PUT("/sort", s.handleSort)
	api.GET("/patents/:id/export", s.handleExport)
	api.GET("/history", s.handleHistory)
	api.GET("/logs/stream", s.handleLogStream)

	r.NoRoute(s.handleRoot)
	return r
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.logger.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("elapsed_ms", time.Since(started).Milliseconds()))
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// writeActionError maps orchestrator and store errors to HTTP statuses.
func writeActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, agent.ErrEmptyQuery), errors.Is(err, session.ErrInvalidSortMode):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrUnknownEntity):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrStale):
		writeError(c, http.StatusConflict, "session changed while the request was running")
	case errors.Is(err, agent.ErrClosed):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "request ended before the result was ready")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	gw := "ready"
	if err := s.agent.Ready(); err != nil {
		gw = "unconfigured"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "gateway": gw})
}

// stateView is the read-only projection returned to clients. Entities are in
// the current sort order.
type stateView struct {
	session.State
	Selected *patent.Record `json:"selected,omitempty"`
}

func (s *Server) view() stateView {
	st := s.store.Snapshot()
	st.Entities = patent.Project(st.Entities, st.SortMode)
	v := stateView{State: st}
	if rec, ok := st.Selected(); ok {
		v.Selected = &rec
	}
	return v
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.view())
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.agent.SubmitSearch(req.Query); err != nil {
		writeActionError(c, err)
		return
	}
	st := s.store.Snapshot()
	c.JSON(http.StatusAccepted, gin.H{"generation": st.Generation, "status": st.Status, "query": st.Query})
}

func (s *Server) handleReset(c *gin.Context) {
	s.store.Reset()
	c.JSON(http.StatusOK, s.view())
}

func (s *Server) handleSelect(c *gin.Context) {
	sel, err := s.agent.SelectEntity(c.Param("id"))
	if err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"selectedId": sel.Record.ID, "record": sel.Record})
}

func (s *Server) handleClearSelection(c *gin.Context) {
	s.agent.ClearSelection()
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePriorArt(c *gin.Context) {
	id := c.Param("id")
	if wait, _ := strconv.ParseBool(c.Query("wait")); !wait {
		if err := s.agent.SubmitPriorArt(id); err != nil {
			writeActionError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id, "pending": s.store.PriorArtPending(id)})
		return
	}

	report, err := s.agent.RequestPriorArt(c.Request.Context(), id)
	if err != nil {
		writeActionError(c, err)
		return
	}
	rec, _, _ := s.store.Lookup(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "report": report, "fallback": rec.PriorArtFallback})
}

type sortRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSort(c *gin.Context) {
	var req sortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.store.SetSortMode(patent.SortMode(req.Mode)); err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.view())
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"searches": []journal.SearchRun{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := s.history.Searches(c.Request.Context(), limit)
	if err != nil {
		s.logger.Warn("history_query_failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "failed to read search history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"searches": runs})
}

func (s *Server) handleRoot(c *gin.Context) {
	p := c.Request.URL.Path
	if strings.HasPrefix(p, "/api/") || c.Request.Method != http.MethodGet {
		writeError(c, http.StatusNotFound, "not found")
		return
	}
	c.Header("Cache-Control", "no-store")
	if s.webDir == "" {
		writeError(c, http.StatusNotFound, "not found")
		return
	}
	if p == "/" || p == "/index.html" {
		c.File(filepath.Join(s.webDir, "index.html"))
		return
	}
	rel := strings.TrimPrefix(filepath.Clean("/"+p), "/")
	full := filepath.Join(s.webDir, rel)
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		c.File(full)
		return
	}
	writeError(c, http.StatusNotFound, "not found")
}
