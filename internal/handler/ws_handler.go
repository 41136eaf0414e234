package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/middleware"
	"github.com/stemsi/exstem-testflow/internal/render"
	"github.com/stemsi/exstem-testflow/internal/response"
	"github.com/stemsi/exstem-testflow/internal/service"
	"github.com/stemsi/exstem-testflow/internal/testsession"
	ws "github.com/stemsi/exstem-testflow/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live session: timer ticks and completion are pushed,
// learner actions arrive as messages.
type WSHandler struct {
	sessions *service.SessionService
	renderer *render.Renderer
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, renderer *render.Renderer, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		renderer: renderer,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// streamConn serializes writes to one connection. gorilla allows a single
// concurrent writer.
type streamConn struct {
	conn *websocket.Conn
	out  chan any
	done chan struct{}
}

// send queues v unless the writer has already gone.
func (s *streamConn) send(v any) {
	select {
	case s.out <- v:
	case <-s.done:
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream?token=...
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := uuidParam(c, "session_id")
	if !ok {
		return
	}

	runner, err := h.sessions.Runner(claims.UserID, id)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", id.String()).
		Logger()
	wsLog.Info().Msg("Learner connected")

	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()
	// idle time for the reaper starts when the stream goes away
	defer runner.Touch()

	sc := &streamConn{conn: conn, out: make(chan any, 16), done: make(chan struct{})}
	go h.writeLoop(sc, runner, events, wsLog)

	sc.send(h.state(runner.Snapshot()))

	for {
		var req ws.Request
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		runner.Touch()
		h.handle(sc, claims.UserID, id, req)
	}
}

// handle applies one client action and queues the reply.
func (h *WSHandler) handle(sc *streamConn, userID int, id uuid.UUID, req ws.Request) {
	var (
		snap testsession.Snapshot
		err  error
	)

	switch req.Action {
	case ws.ActionPing:
		sc.send(ws.PongEvent{Event: ws.EventPong})
		return
	case ws.ActionSelect:
		qid, qErr := uuid.Parse(req.QuestionID)
		aid, aErr := uuid.Parse(req.AnswerID)
		if qErr != nil || aErr != nil {
			sc.send(ws.NewError(string(response.ErrInvalidPayload), "question_id and answer_id must be UUIDs"))
			return
		}
		snap, err = h.sessions.SelectAnswer(userID, id, qid, aid)
	case ws.ActionNext:
		snap, err = h.sessions.Navigate(userID, id, service.NavNext, 0)
	case ws.ActionPrevious:
		snap, err = h.sessions.Navigate(userID, id, service.NavPrevious, 0)
	case ws.ActionGoTo:
		if req.Index == nil {
			sc.send(ws.NewError(string(response.ErrInvalidPayload), "index is required for goto"))
			return
		}
		snap, err = h.sessions.Navigate(userID, id, service.NavGoTo, *req.Index)
	case ws.ActionFinish:
		// The result itself is pushed as a completed event by the runner.
		if _, err = h.sessions.Finish(userID, id); err == nil {
			snap, err = h.sessions.Get(userID, id)
		}
	default:
		sc.send(ws.NewError(string(response.ErrInvalidPayload), "unknown action: "+string(req.Action)))
		return
	}

	if err != nil {
		_, code := errorStatus(err)
		sc.send(ws.NewError(string(code), response.GetMessage(code)))
		return
	}
	sc.send(h.state(snap))
}

// writeLoop owns all writes to the connection until the runner closes or
// the reader gives up.
func (h *WSHandler) writeLoop(sc *streamConn, runner *testsession.Runner, events <-chan testsession.Event, wsLog zerolog.Logger) {
	defer close(sc.done)
	defer sc.conn.Close()

	for {
		var msg any
		select {
		case v := <-sc.out:
			msg = v
		case ev, ok := <-events:
			if !ok || ev.Kind == testsession.EventClosed {
				_ = ws.WriteClose(sc.conn, "session closed")
				return
			}
			msg = h.translate(runner, ev)
		}

		if msg == nil {
			continue
		}
		if err := ws.WriteTyped(sc.conn, msg); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

func (h *WSHandler) translate(runner *testsession.Runner, ev testsession.Event) any {
	switch ev.Kind {
	case testsession.EventTick:
		return ws.TickEvent{
			Event:     ws.EventTick,
			Remaining: ev.Remaining,
			Clock:     render.Clock(time.Duration(ev.Remaining) * time.Second),
		}
	case testsession.EventCompleted:
		title := runner.Snapshot().Test.Title
		return ws.CompletedEvent{Event: ws.EventCompleted, Result: h.renderer.Result(title, ev.Result)}
	case testsession.EventRestarted:
		return h.state(runner.Snapshot())
	}
	return nil
}

func (h *WSHandler) state(snap testsession.Snapshot) ws.StateEvent {
	return ws.StateEvent{Event: ws.EventState, Session: h.renderer.Question(snap)}
}
