package logging

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestGinLogrusRecoveryRepanicsErrAbortHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/abort", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})

	req := httptest.NewRequest(http.MethodGet, "/abort", nil)
	recorder := httptest.NewRecorder()

	defer func() {
		recovered := recover()
		if recovered == nil {
			t.Fatalf("expected panic, got nil")
		}
		err, ok := recovered.(error)
		if !ok {
			t.Fatalf("expected error panic, got %T", recovered)
		}
		if !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("expected ErrAbortHandler, got %v", err)
		}
	}()

	engine.ServeHTTP(recorder, req)
}

func TestGinLogrusRecoveryHandlesRegularPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestGinLogrusLoggerTracksCallbackRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hook := test.NewGlobal()
	t.Cleanup(hook.Reset)

	var seenInContext, seenInGin string
	engine := gin.New()
	engine.Use(GinLogrusLogger("/google/callback"))
	engine.GET("/google/callback", func(c *gin.Context) {
		seenInContext = GetRequestID(c.Request.Context())
		seenInGin = GetGinRequestID(c)
		c.Status(http.StatusFound)
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/google/callback?code=4%2F0AbCdEfGhIj&state=abcdef0123456789", nil))

	if len(seenInContext) != 8 || seenInContext != seenInGin {
		t.Fatalf("request id mismatch: context=%q gin=%q", seenInContext, seenInGin)
	}
	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected an access log entry")
	}
	if got := entry.Data["request_id"]; got != seenInContext {
		t.Fatalf("access log request_id = %v, want %q", got, seenInContext)
	}
	if strings.Contains(entry.Message, "abcdef0123456789") || strings.Contains(entry.Message, "0AbCdEfGhIj") {
		t.Fatalf("access log leaks sensitive values: %s", entry.Message)
	}
	if !strings.Contains(entry.Message, "state=abcd...6789") {
		t.Fatalf("access log missing masked state: %s", entry.Message)
	}
}

func TestGinLogrusLoggerUntrackedAndSkipped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hook := test.NewGlobal()
	t.Cleanup(hook.Reset)

	engine := gin.New()
	engine.Use(GinLogrusLogger("/google/callback"))
	engine.GET("/login", func(c *gin.Context) {
		if id := GetRequestID(c.Request.Context()); id != "" {
			t.Errorf("unexpected request id %q on untracked path", id)
		}
		c.Status(http.StatusOK)
	})
	engine.GET("/healthz", func(c *gin.Context) {
		SkipGinRequestLogging(c)
		c.Status(http.StatusOK)
	})

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))
	if len(hook.AllEntries()) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(hook.AllEntries()))
	}
	if _, ok := hook.LastEntry().Data["request_id"]; ok {
		t.Fatal("untracked request should not carry a request id")
	}

	hook.Reset()
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("expected skipped request to produce no log, got %d entries", len(hook.AllEntries()))
	}
}

func TestLogFormatter(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.New(),
		Time:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "exchange finished\n",
		Data: log.Fields{
			"request_id": "a1b2c3d4",
			"result":     "http_failure",
			"status":     500,
			"ignored":    "x",
		},
		Buffer: &bytes.Buffer{},
	}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "[2026-01-02 15:04:05] [a1b2c3d4] [warn ] exchange finished result=http_failure status=500\n"
	if string(out) != want {
		t.Fatalf("Format() = %q, want %q", out, want)
	}
}

func TestEntryCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "deadbeef")
	if got := Entry(ctx).Data["request_id"]; got != "deadbeef" {
		t.Fatalf("Entry().Data[request_id] = %v", got)
	}
	if _, ok := Entry(context.Background()).Data["request_id"]; ok {
		t.Fatal("expected no request id without context")
	}
}
