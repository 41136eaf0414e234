package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/render"
	"github.com/stemsi/exstem-testflow/internal/service"
	"github.com/stemsi/exstem-testflow/internal/testsession"
	ws "github.com/stemsi/exstem-testflow/internal/websocket"
)

type manualTicker struct{ ch chan time.Time }

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

type streamMsg struct {
	Event     ws.Event            `json:"event"`
	Code      string              `json:"code"`
	Remaining int                 `json:"remaining_seconds"`
	Session   render.QuestionView `json:"session"`
	Result    render.ResultView   `json:"result"`
}

type streamEnv struct {
	def      *model.TestDefinition
	sessions *service.SessionService
	server   *httptest.Server
	tickers  chan *manualTicker
}

func newStreamEnv(t *testing.T, durationSeconds int) *streamEnv {
	t.Helper()
	env := &streamEnv{def: definition(2, durationSeconds), tickers: make(chan *manualTicker, 4)}
	opts := testsession.Options{NewTicker: func(time.Duration) testsession.Ticker {
		tk := &manualTicker{ch: make(chan time.Time)}
		env.tickers <- tk
		return tk
	}}
	env.sessions = service.NewSessionService(staticDefs{env.def.ID: env.def}, &memSink{}, opts, zerolog.Nop())

	h := NewWSHandler(env.sessions, render.NewRenderer(), zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/v1/sessions/:session_id/stream", asUser(7), h.SessionStream)
	env.server = httptest.NewServer(r)

	t.Cleanup(func() {
		env.sessions.Shutdown()
		env.server.Close()
	})
	return env
}

func (e *streamEnv) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/v1/sessions/" + sessionID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one with the wanted event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want ws.Event) streamMsg {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg streamMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if msg.Event == want {
			return msg
		}
	}
}

func TestSessionStream_AnswerAndFinish(t *testing.T) {
	env := newStreamEnv(t, 0)
	snap, err := env.sessions.Start(context.Background(), 7, env.def.ID)
	if err != nil {
		t.Fatal(err)
	}
	conn := env.dial(t, snap.RunnerID.String())

	first := readUntil(t, conn, ws.EventState)
	if first.Session.SessionID != snap.RunnerID {
		t.Fatalf("state for wrong session: %s", first.Session.SessionID)
	}

	if err := conn.WriteJSON(ws.Request{Action: ws.ActionFinish}); err != nil {
		t.Fatal(err)
	}
	if msg := readUntil(t, conn, ws.EventError); msg.Code != "NOT_ALL_ANSWERED" {
		t.Errorf("early finish code = %q", msg.Code)
	}

	for _, q := range env.def.Questions {
		req := ws.Request{Action: ws.ActionSelect, QuestionID: q.ID.String(), AnswerID: q.Options[1].ID.String()}
		if err := conn.WriteJSON(req); err != nil {
			t.Fatal(err)
		}
		readUntil(t, conn, ws.EventState)
	}

	if err := conn.WriteJSON(ws.Request{Action: ws.ActionPing}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, conn, ws.EventPong)

	if err := conn.WriteJSON(ws.Request{Action: ws.ActionFinish}); err != nil {
		t.Fatal(err)
	}
	done := readUntil(t, conn, ws.EventCompleted)
	if done.Result.Score != 2 || done.Result.Percentage != 100 {
		t.Errorf("result = %d (%d%%), want 2 (100%%)", done.Result.Score, done.Result.Percentage)
	}
	if done.Result.Reason != testsession.FinishReasonSubmitted {
		t.Errorf("reason = %s", done.Result.Reason)
	}
}

func TestSessionStream_TimerExpiry(t *testing.T) {
	env := newStreamEnv(t, 2)
	snap, err := env.sessions.Start(context.Background(), 7, env.def.ID)
	if err != nil {
		t.Fatal(err)
	}
	tk := <-env.tickers
	conn := env.dial(t, snap.RunnerID.String())
	readUntil(t, conn, ws.EventState)

	tk.ch <- time.Now()
	if msg := readUntil(t, conn, ws.EventTick); msg.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", msg.Remaining)
	}

	tk.ch <- time.Now()
	done := readUntil(t, conn, ws.EventCompleted)
	if done.Result.Reason != testsession.FinishReasonExpired {
		t.Errorf("reason = %s, want expired", done.Result.Reason)
	}
	if done.Result.AnsweredCount != 0 || done.Result.Score != 0 {
		t.Errorf("expired unanswered session scored %d", done.Result.Score)
	}
}

func TestSessionStream_Closed(t *testing.T) {
	env := newStreamEnv(t, 0)
	snap, err := env.sessions.Start(context.Background(), 7, env.def.ID)
	if err != nil {
		t.Fatal(err)
	}
	conn := env.dial(t, snap.RunnerID.String())
	readUntil(t, conn, ws.EventState)

	if err := env.sessions.Close(7, snap.RunnerID); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("expected normal close, got %v", err)
			}
			return
		}
	}
}
