package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
	}{
		{DebugLevel, []string{"debug", "info", "warn", "error"}},
		{InfoLevel, []string{"info", "warn", "error"}},
		{WarnLevel, []string{"warn", "error"}},
		{ErrorLevel, []string{"error"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			l := New(tt.level, &buf)
			l.Debug("debug")
			l.Info("info")
			l.Warn("warn")
			l.Error("error")

			var got []string
			for _, e := range decodeLines(t, &buf) {
				got = append(got, e["message"].(string))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf).WithField("run_id", "r1").WithError(errors.New("boom"))
	l.Info("Run failed", map[string]interface{}{"generation": 3})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "Run failed", e["message"])
	assert.Equal(t, "r1", e["run_id"])
	assert.Equal(t, "boom", e["error"])
	assert.Equal(t, 3.0, e["generation"])
	assert.Contains(t, e["caller"], "logging/logging_test.go:")
	assert.NotEmpty(t, e["timestamp"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithFormat(InfoLevel, FormatText, &buf)
	l.Info("Run completed", map[string]interface{}{"best": 31.0, "problem": "one max"})

	line := buf.String()
	assert.Contains(t, line, "INFO  Run completed")
	assert.Contains(t, line, "best=31")
	assert.Contains(t, line, `problem="one max"`)
	assert.Less(t, strings.Index(line, "best="), strings.Index(line, "problem="))
}

func TestNaNFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	New(InfoLevel, &buf).Info("Generation complete", map[string]interface{}{"best": math.NaN()})
	assert.Contains(t, buf.String(), "best=NaN")
}

func TestFatalExits(t *testing.T) {
	code := -1
	saved := exit
	t.Cleanup(func() { exit = saved })
	exit = func(c int) { code = c }

	var buf bytes.Buffer
	New(InfoLevel, &buf).Fatal("cannot start")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "cannot start")
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewLogger(&Config{Level: "warn", Format: "TEXT", Output: path})
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, l.Level())
	assert.Equal(t, FormatText, l.format)

	l, err = NewLogger(&Config{Level: "verbose"})
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, l.Level())

	_, err = NewLogger(&Config{Format: "xml"})
	assert.Error(t, err)

	l, err = NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, l.Level())
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	stored := &CtxLogger{New(DebugLevel, &buf)}
	ctx := stored.WithContext(context.Background())

	assert.Same(t, stored, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()).Logger)
}

type goal string

func (g goal) String() string { return string(g) }

func TestZapAdapter(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf)).Named("genetic_algorithm").With(zap.String("run_id", "r1"))

	zl.Debug("filtered out")
	zl.Info("Run completed",
		zap.Float64("best_fitness", 31.5),
		zap.Float32("ratio", 0.5),
		zap.Int("generation", 12),
		zap.Uint("size", 40),
		zap.Bool("improved", true),
		zap.Duration("duration", 1500*time.Millisecond),
		zap.Stringer("goal", goal("maximize")),
		zap.Error(errors.New("none")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "Run completed", e["message"])
	assert.Equal(t, "genetic_algorithm", e["logger"])
	assert.Equal(t, "r1", e["run_id"])
	assert.Equal(t, 31.5, e["best_fitness"])
	assert.Equal(t, 0.5, e["ratio"])
	assert.Equal(t, 12.0, e["generation"])
	assert.Equal(t, 40.0, e["size"])
	assert.Equal(t, true, e["improved"])
	assert.Equal(t, "1.5s", e["duration"])
	assert.Equal(t, "maximize", e["goal"])
	assert.Equal(t, "none", e["error"])
	assert.Contains(t, e["caller"], "logging/logging_test.go:")
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(New(InfoLevel, &buf)))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handling")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	for _, path := range []string{"/ok", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)

	assert.Equal(t, "handling", entries[0]["message"])
	assert.Equal(t, "/ok", entries[0]["path"])
	assert.NotEmpty(t, entries[0]["request_id"])

	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, 200.0, entries[1]["status"])
	assert.Equal(t, 2.0, entries[1]["bytes"])

	assert.Equal(t, "WARN", entries[2]["level"])
	assert.Equal(t, 404.0, entries[2]["status"])
	assert.Equal(t, "Not Found", entries[2]["error"])
}
