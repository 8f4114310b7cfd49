// Package api serves game sessions over HTTP. Turn operations are plain
// JSON request/response calls; timer-driven results (inactivity prompts
// and task timeouts) are pushed to subscribers of the session stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/abhisek/chatterbox/internal/session"
	"github.com/abhisek/chatterbox/internal/store"
)

const (
	writeWait    = 5 * time.Second
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
)

// Options configures a Server.
type Options struct {
	Sessions SessionFactory

	// Events receives gate events when set.
	Events store.EventRepo

	Logger *slog.Logger

	// AllowedOrigins lists the browser origins allowed to open streams
	// and make cross-origin calls. Empty allows same-origin only.
	AllowedOrigins []string

	Now func() time.Time
}

type Server struct {
	sessions *registry
	events   store.EventRepo
	logger   *slog.Logger
	origins  []string
	now      func() time.Time
	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		sessions: newRegistry(opts.Sessions),
		events:   opts.Events,
		logger:   opts.Logger,
		origins:  opts.AllowedOrigins,
		now:      opts.Now,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger(), s.corsMiddleware())

	engine.GET("/healthz", s.handleHealthz)

	api := engine.Group("/api/sessions")
	api.POST("", s.handleCreateSession)
	api.GET("/:id", s.handleGetSession)
	api.DELETE("/:id", s.handleDeleteSession)
	api.POST("/:id/card", s.handleSetCard)
	api.POST("/:id/responses", s.handleResponse)
	api.POST("/:id/choices", s.handleChoice)
	api.POST("/:id/resume", s.handleResume)
	api.POST("/:id/speaking", s.handleSpeaking)
	api.POST("/:id/new-game", s.handleNewGame)
	api.GET("/:id/events", s.handleEvents)
	api.GET("/:id/stream", s.handleStream)
	return engine
}

// Close ends every live session and disconnects all streams.
func (s *Server) Close() {
	s.sessions.closeAll()
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	return s.sessions.len()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.origins, origin) || slices.Contains(s.origins, "*") {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (slices.Contains(s.origins, origin) || slices.Contains(s.origins, "*")) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// wire installs the timer callbacks that push results to the stream and
// record them.
func (s *Server) wire(e *entry) {
	id := e.sess.ID()
	e.sess.SetInactivityCallback(func(res session.Result) {
		s.record(context.Background(), id, store.KindInactivity, res)
		s.push(e, StreamInactivity, res)
	})
	e.sess.SetTaskTimeoutCallback(func(res session.Result) {
		s.record(context.Background(), id, store.KindTaskTimeout, res)
		s.push(e, StreamTaskTimeout, res)
	})
}

func (s *Server) push(e *entry, typ string, res session.Result) {
	if err := e.hub.publish(typ, res, s.now()); err != nil {
		s.logger.Warn("stream publish failed", "session", e.sess.ID(), "error", err)
	}
}

// record appends a gate event. Failures are logged; the turn still
// completes.
func (s *Server) record(ctx context.Context, id, kind string, res session.Result) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendGateEvent(context.WithoutCancel(ctx), gateEvent(id, kind, res)); err != nil {
		s.logger.Warn("record gate event failed", "session", id, "kind", kind, "error", err)
	}
}

func gateEvent(id, kind string, res session.Result) store.GateEventData {
	pkg := res.UIPackage
	data := store.GateEventData{
		SessionID:    id,
		Kind:         kind,
		Level:        pkg.Level.String(),
		ChildSaid:    res.ChildSaid,
		CoachLine:    pkg.CoachLine,
		UsedFallback: pkg.UsedFallback,
	}
	for _, sig := range pkg.Signals.List() {
		data.Signals = append(data.Signals, string(sig))
	}
	for _, iv := range pkg.Interventions {
		data.Interventions = append(data.Interventions, string(iv))
	}
	if kind == store.KindResponse && len(res.TargetAnswers) > 0 {
		correct := res.IsCorrect
		data.Correct = &correct
	}
	return data
}
