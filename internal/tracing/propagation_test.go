package tracing

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := NewContext(context.Background(), &TraceContext{
		TraceID:    "trace-1",
		WorkflowID: "wf-1",
	})

	propagated := PropagateToLogger(ctx, logger)
	propagated.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"trace_id":"trace-1"`) {
		t.Errorf("Expected trace_id in log output, got %s", out)
	}
	if !strings.Contains(out, `"workflow_id":"wf-1"`) {
		t.Errorf("Expected workflow_id in log output, got %s", out)
	}
	if strings.Contains(out, "request_id") {
		t.Errorf("Did not expect request_id in log output, got %s", out)
	}
}

func TestFromHeaders_UsesInboundIDs(t *testing.T) {
	h := http.Header{}
	h.Set(TraceIDHeader, "trace-in")
	h.Set(RequestIDHeader, "req-in")

	ctx := FromHeaders(context.Background(), h)

	if GetTraceID(ctx) != "trace-in" {
		t.Errorf("Expected trace-in, got %s", GetTraceID(ctx))
	}
	if GetRequestID(ctx) != "req-in" {
		t.Errorf("Expected req-in, got %s", GetRequestID(ctx))
	}
}

func TestFromHeaders_GeneratesMissingIDs(t *testing.T) {
	ctx := FromHeaders(context.Background(), http.Header{})

	if GetTraceID(ctx) == "" || GetRequestID(ctx) == "" {
		t.Error("Expected generated IDs")
	}
}

func TestInjectHeaders(t *testing.T) {
	ctx := WithRequestID(WithTraceID(context.Background(), "t"), "r")
	h := http.Header{}

	InjectHeaders(ctx, h)

	if h.Get(TraceIDHeader) != "t" || h.Get(RequestIDHeader) != "r" {
		t.Errorf("Unexpected headers: %v", h)
	}
}

func TestMergeContext(t *testing.T) {
	source := NewContext(context.Background(), &TraceContext{
		TraceID:     "source-trace",
		WorkspaceID: "ws-1",
	})
	target := WithTraceID(context.Background(), "target-trace")

	merged := MergeContext(target, source)

	if GetTraceID(merged) != "target-trace" {
		t.Errorf("Expected target trace ID to win, got %s", GetTraceID(merged))
	}
	if GetWorkspaceID(merged) != "ws-1" {
		t.Errorf("Expected workspace ID to be merged, got %s", GetWorkspaceID(merged))
	}
}
