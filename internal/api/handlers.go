package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/abhisek/chatterbox/internal/safety"
	"github.com/abhisek/chatterbox/internal/session"
	"github.com/abhisek/chatterbox/internal/store"
)

// SessionView is the polled snapshot of a session.
type SessionView struct {
	ID              string                `json:"id"`
	Phase           session.Phase         `json:"phase"`
	Level           safety.Level          `json:"level"`
	Config          safety.SessionConfig  `json:"session_config"`
	State           safety.State          `json:"state"`
	Card            *safety.CardContext   `json:"card,omitempty"`
	Menu            []safety.Intervention `json:"menu"`
	Speaking        bool                  `json:"speaking"`
	AttemptNumber   int                   `json:"attempt_number"`
	ResponseHistory []string              `json:"response_history"`
	Summary         session.Summary       `json:"summary"`
}

func viewOf(e *entry) SessionView {
	sess := e.sess
	history := sess.ResponseHistory()
	if history == nil {
		history = []string{}
	}
	menu := sess.Menu()
	if menu == nil {
		menu = []safety.Intervention{}
	}
	return SessionView{
		ID:              sess.ID(),
		Phase:           sess.Phase(),
		Level:           sess.LastLevel(),
		Config:          sess.LastConfig(),
		State:           sess.State(),
		Card:            sess.CurrentCard(),
		Menu:            menu,
		Speaking:        e.speaking.Load(),
		AttemptNumber:   sess.AttemptCount(),
		ResponseHistory: history,
		Summary:         sess.Summary(),
	}
}

// EventView is one recorded gate event.
type EventView struct {
	Sequence      int64     `json:"seq"`
	Timestamp     time.Time `json:"ts"`
	Kind          string    `json:"kind"`
	Level         string    `json:"level"`
	Signals       []string  `json:"signals"`
	Interventions []string  `json:"interventions"`
	Correct       *bool     `json:"correct,omitempty"`
	ChildSaid     string    `json:"child_said,omitempty"`
	CoachLine     string    `json:"coach_line,omitempty"`
	UsedFallback  bool      `json:"used_fallback"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.len()})
}

type createSessionRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	e, err := s.sessions.create(req.ID, s.wire)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("session created", "session", e.sess.ID())
	c.JSON(http.StatusCreated, viewOf(e))
}

// lookup resolves the :id parameter, writing a 404 when it is unknown.
func (s *Server) lookup(c *gin.Context) (*entry, bool) {
	e, err := s.sessions.get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return e, true
}

func (s *Server) handleGetSession(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(e))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	e, err := s.sessions.remove(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("session deleted", "session", e.sess.ID())
	c.JSON(http.StatusOK, gin.H{"summary": e.sess.Summary()})
}

func (s *Server) handleSetCard(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	var card safety.CardContext
	if err := c.ShouldBindJSON(&card); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(card.TargetAnswers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_answers required"})
		return
	}
	if e.sess.Phase() == session.PhaseEnded {
		c.JSON(http.StatusConflict, gin.H{"error": "session has ended"})
		return
	}
	e.sess.SetCurrentCard(card)
	c.JSON(http.StatusOK, viewOf(e))
}

type responseRequest struct {
	Transcription string               `json:"transcription"`
	Audio         *safety.AudioSignals `json:"audio,omitempty"`
}

func (s *Server) handleResponse(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	var req responseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	res := e.sess.ProcessChildResponse(ctx, req.Transcription, req.Audio)
	s.record(ctx, e.sess.ID(), store.KindResponse, res)
	c.JSON(http.StatusOK, res)
}

type choiceRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleChoice(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	var req choiceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action required"})
		return
	}

	out := e.sess.HandleChoiceSelection(req.Action)
	if s.events != nil && out.Accepted {
		data := store.GateEventData{
			SessionID:     e.sess.ID(),
			Kind:          store.KindChoice,
			Level:         e.sess.LastLevel().String(),
			Interventions: []string{string(out.Action)},
			CoachLine:     out.Message,
		}
		if err := s.events.AppendGateEvent(c.Request.Context(), data); err != nil {
			s.logger.Warn("record gate event failed", "session", e.sess.ID(), "kind", store.KindChoice, "error", err)
		}
	}
	status := http.StatusOK
	if !out.Accepted {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, out)
}

func (s *Server) handleResume(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	resumed := e.sess.ResumeSession()
	c.JSON(http.StatusOK, gin.H{"resumed": resumed, "phase": e.sess.Phase()})
}

type speakingRequest struct {
	Speaking *bool `json:"speaking"`
}

// handleSpeaking holds or releases the interrupt gate while the avatar
// talks. Repeating the same state is a no-op.
func (s *Server) handleSpeaking(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	var req speakingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Speaking == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "speaking required"})
		return
	}
	e.setSpeaking(*req.Speaking)
	c.JSON(http.StatusOK, gin.H{"speaking": *req.Speaking, "gate_locked": e.sess.Gate().IsLocked()})
}

func (s *Server) handleNewGame(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	e.sess.NewGame()
	c.JSON(http.StatusOK, viewOf(e))
}

func (s *Server) handleEvents(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	if s.events == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "event recording disabled"})
		return
	}

	opts := store.QueryOpts{SessionID: e.sess.ID()}
	if v := c.Query("after"); v != "" {
		after, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after"})
			return
		}
		opts.After = after
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		opts.Limit = limit
	}

	records, err := s.events.QueryGateEvents(c.Request.Context(), opts)
	if err != nil {
		s.logger.Error("query gate events", "session", e.sess.ID(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query events failed"})
		return
	}

	out := make([]EventView, 0, len(records))
	for _, r := range records {
		out = append(out, EventView{
			Sequence:      r.Sequence,
			Timestamp:     r.Timestamp,
			Kind:          r.Kind,
			Level:         r.Level,
			Signals:       nonNil(r.Signals),
			Interventions: nonNil(r.Interventions),
			Correct:       r.Correct,
			ChildSaid:     r.ChildSaid,
			CoachLine:     r.CoachLine,
			UsedFallback:  r.UsedFallback,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) handleStream(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session", e.sess.ID(), "error", err)
		return
	}
	defer conn.Close()

	sub, ok := e.hub.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
			time.Now().Add(writeWait))
		return
	}
	defer e.hub.unsubscribe(sub)
	s.logger.Debug("stream attached", "session", e.sess.ID())

	// The reader only exists to notice the client going away and to
	// extend the read deadline on pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case data, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("stream write failed", "session", e.sess.ID(), "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
