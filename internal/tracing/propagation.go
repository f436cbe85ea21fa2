package tracing

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

const (
	// TraceIDHeader carries the trace ID between processes
	TraceIDHeader = "X-Trace-Id"
	// RequestIDHeader carries the request ID between processes
	RequestIDHeader = "X-Request-Id"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RequestID != "" {
		logger = logger.With().Str("request_id", tc.RequestID).Logger()
	}
	if tc.WorkspaceID != "" {
		logger = logger.With().Str("workspace_id", tc.WorkspaceID).Logger()
	}
	if tc.WorkflowID != "" {
		logger = logger.With().Str("workflow_id", tc.WorkflowID).Logger()
	}

	return logger
}

// FromHeaders builds a request context from inbound headers, generating IDs that are missing
func FromHeaders(ctx context.Context, h http.Header) context.Context {
	traceID := h.Get(TraceIDHeader)
	if traceID == "" {
		traceID = NewTraceID()
	}
	requestID := h.Get(RequestIDHeader)
	if requestID == "" {
		requestID = NewRequestID()
	}
	return WithRequestID(WithTraceID(ctx, traceID), requestID)
}

// InjectHeaders writes the tracing IDs of ctx onto outbound headers
func InjectHeaders(ctx context.Context, h http.Header) {
	if traceID := GetTraceID(ctx); traceID != "" {
		h.Set(TraceIDHeader, traceID)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		h.Set(RequestIDHeader, requestID)
	}
}

// MergeContext merges tracing information from source context into target context
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.RequestID != "" && GetRequestID(target) == "" {
		target = WithRequestID(target, tc.RequestID)
	}
	if tc.WorkspaceID != "" && GetWorkspaceID(target) == "" {
		target = WithWorkspaceID(target, tc.WorkspaceID)
	}
	if tc.WorkflowID != "" && GetWorkflowID(target) == "" {
		target = WithWorkflowID(target, tc.WorkflowID)
	}

	return target
}
