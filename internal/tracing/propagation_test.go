package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithAgentID(ctx, "agent-789")
	ctx = WithShortcut(ctx, "Alt+1")

	var buf bytes.Buffer
	logger := PropagateToLogger(ctx, zerolog.New(&buf))

	logger.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{"trace-123", "agent-789", "Alt+1"} {
		if !strings.Contains(output, want) {
			t.Errorf("%s not in log output: %s", want, output)
		}
	}
	if strings.Contains(output, "client_id") {
		t.Error("Empty fields should not be logged")
	}
}

func TestLoggerFromContext(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-xyz")

	var buf bytes.Buffer
	logger := LoggerFromContext(ctx, zerolog.New(&buf))

	logger.Info().Msg("test")

	if !strings.Contains(buf.String(), "trace-xyz") {
		t.Error("Trace ID not in log output")
	}
}
