package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/ledger/xerrors"
)

// withBuffer 将输出写入 buf，仅测试使用
func withBuffer(buf *bytes.Buffer) Option {
	return func(o *options) {
		o.buffer = buf
	}
}

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := New(&Config{Level: level, Format: "json", Output: "buffer"}, append(opts, withBuffer(buf))...)
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)

	assert.Error(t, (&Config{Level: "verbose"}).validate())
	assert.Error(t, (&Config{Format: "xml"}).validate())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, level)
	assert.Equal(t, "warn", level.String())

	level, err = ParseLevel("nope")
	assert.Error(t, err)
	assert.Equal(t, InfoLevel, level)
}

func TestLoggerJSONOutput(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("ledger"))

	logger.WithNamespace("acctlock").
		With(String("account", "acct-1")).
		Info("lock acquired", String("mode", "write"), Int("waiters", 2))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "lock acquired", lines[0]["msg"])
	assert.Equal(t, "ledger.acctlock", lines[0]["namespace"])
	assert.Equal(t, "acct-1", lines[0]["account"])
	assert.Equal(t, "write", lines[0]["mode"])
	assert.EqualValues(t, 2, lines[0]["waiters"])
}

func TestLoggerLevelFilterAndSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	logger.Info("dropped")
	logger.Warn("kept")
	assert.Len(t, decodeLines(t, buf), 1)

	// 子 Logger 共享级别
	child := logger.With(String("k", "v"))
	require.NoError(t, logger.SetLevel(DebugLevel))
	child.Debug("now visible")
	assert.Len(t, decodeLines(t, buf), 2)

	assert.Error(t, logger.SetLevel(Level(42)))
}

type requestIDKey struct{}

func TestLoggerContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "debug", WithContextField(requestIDKey{}, "request_id"))

	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-42")
	logger.InfoContext(ctx, "with ctx")
	logger.InfoContext(context.Background(), "without ctx")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-42", lines[0]["request_id"])
	_, ok := lines[1]["request_id"]
	assert.False(t, ok)
}

func TestLoggerTraceContext(t *testing.T) {
	logger, buf := newBufferLogger(t, "debug", WithTraceContext())

	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    oteltrace.TraceID{0x01, 0x02},
		SpanID:     oteltrace.SpanID{0x03},
		TraceFlags: oteltrace.FlagsSampled,
	})
	logger.InfoContext(oteltrace.ContextWithSpanContext(context.Background(), sc), "traced")
	logger.Info("untraced")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, sc.TraceID().String(), lines[0]["trace_id"])
	assert.Equal(t, sc.SpanID().String(), lines[0]["span_id"])
	assert.NotContains(t, lines[1], "trace_id")
}

func TestErrorFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "debug")

	logger.Error("plain", Error(errors.New("boom")))
	logger.Error("coded", ErrorWithCode(xerrors.WithCode(errors.New("no funds"), "asset.insufficient"), ""))
	logger.Error("nil error", Error(nil))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "boom", lines[0]["err_msg"])

	group, ok := lines[1]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "asset.insufficient", group["code"])

	_, ok = lines[2]["err_msg"]
	assert.False(t, ok)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("nothing")
	assert.NoError(t, logger.SetLevel(DebugLevel))
	assert.NotNil(t, logger.With(String("k", "v")).WithNamespace("x"))
	assert.NotNil(t, Default())
}
