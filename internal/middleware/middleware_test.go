package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTokens map[string]*service.Claims

func (f fakeTokens) ValidateToken(token string) (*service.Claims, error) {
	switch token {
	case "expired":
		return nil, fmt.Errorf("parse token: %w", jwt.ErrTokenExpired)
	}
	c, ok := f[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return c, nil
}

var tokens = fakeTokens{
	"learner": {UserID: 1, Role: model.RoleLearner},
	"admin":   {UserID: 2, Role: model.RoleAdmin},
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestRequireJWT(t *testing.T) {
	r := gin.New()
	r.GET("/me", RequireJWT(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	r.GET("/admin", RequireJWT(tokens), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/learn", RequireJWT(tokens), RequireRole(model.RoleLearner), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantErr  string
	}{
		{name: "no header", path: "/me", wantCode: 401, wantErr: "TOKEN_REQUIRED"},
		{name: "wrong scheme", path: "/me", header: "Basic learner", wantCode: 401, wantErr: "TOKEN_REQUIRED"},
		{name: "unknown token", path: "/me", header: "Bearer nope", wantCode: 401, wantErr: "TOKEN_INVALID"},
		{name: "expired token", path: "/me", header: "Bearer expired", wantCode: 401, wantErr: "TOKEN_EXPIRED"},
		{name: "valid", path: "/me", header: "bearer learner", wantCode: 200},
		{name: "learner on admin route", path: "/admin", header: "Bearer learner", wantCode: 403, wantErr: "ADMIN_ACCESS_ONLY"},
		{name: "admin on admin route", path: "/admin", header: "Bearer admin", wantCode: 204},
		{name: "admin on learner-only route", path: "/learn", header: "Bearer admin", wantCode: 403, wantErr: "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body)
			}
			if tt.wantErr != "" {
				if got := errorCode(t, w.Body.Bytes()); got != tt.wantErr {
					t.Errorf("code = %s, want %s", got, tt.wantErr)
				}
			}
		})
	}
}

func TestRequireWSAuth(t *testing.T) {
	r := gin.New()
	r.GET("/ws", RequireWSAuth(tokens), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for target, want := range map[string]int{
		"/ws":               401,
		"/ws?token=nope":    401,
		"/ws?token=learner": 204,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != want {
			t.Errorf("%s: status = %d, want %d", target, w.Code, want)
		}
	}
}

type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.hits[key]++
	return m.hits[key], nil
}

func TestRateLimiter(t *testing.T) {
	counter := &memCounter{hits: map[string]int64{}}
	rl := NewRateLimiter(counter, 2, time.Minute, func(ip string) string { return "login:" + ip }, zerolog.Nop())

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i, want := range []int{200, 200, 429, 429} {
		if w := send("10.0.0.1"); w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Code, want)
		}
	}
	w := send("10.0.0.1")
	if errorCode(t, w.Body.Bytes()) != "RATE_LIMIT_EXCEEDED" || w.Header().Get("Retry-After") != "60" {
		t.Errorf("limited response = %d %s %v", w.Code, w.Body, w.Header())
	}
	if w := send("10.0.0.2"); w.Code != 200 {
		t.Errorf("other client limited: %d", w.Code)
	}

	counter.err = errors.New("redis down")
	if w := send("10.0.0.1"); w.Code != 200 {
		t.Errorf("counter outage should let requests through, got %d", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	big := strings.Repeat("soal ", 500)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 256, SkipPaths: []string{"/raw"}}))
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/raw", func(c *gin.Context) { c.String(http.StatusOK, big) })

	get := func(path, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", accept)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/big", "gzip, br;q=1.0")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("big body not compressed: %v", w.Header())
	}
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil || string(plain) != big {
		t.Errorf("decompressed body mismatch (err %v)", err)
	}

	tests := []struct {
		name   string
		path   string
		accept string
		body   string
	}{
		{name: "below threshold", path: "/small", accept: "br", body: "ok"},
		{name: "client without br", path: "/big", accept: "gzip", body: big},
		{name: "skipped path", path: "/raw", accept: "br", body: big},
	}
	for _, tt := range tests {
		w := get(tt.path, tt.accept)
		if w.Header().Get("Content-Encoding") != "" || w.Body.String() != tt.body {
			t.Errorf("%s: encoding %q, body length %d", tt.name, w.Header().Get("Content-Encoding"), w.Body.Len())
		}
	}
}

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/catalog", CacheControl(30), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/session", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]string{"/catalog": "private, max-age=30", "/session": "no-store"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if got := w.Header().Get("Cache-Control"); got != want {
			t.Errorf("%s: Cache-Control = %q, want %q", path, got, want)
		}
	}
}
