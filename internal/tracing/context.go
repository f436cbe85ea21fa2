package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for the inbound request ID
	RequestIDKey ContextKey = "request_id"
	// WorkspaceIDKey is the context key for workspace ID
	WorkspaceIDKey ContextKey = "workspace_id"
	// WorkflowIDKey is the context key for workflow ID
	WorkflowIDKey ContextKey = "workflow_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID     string
	RequestID   string
	WorkspaceID string
	WorkflowID  string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestID generates a new request ID
func NewRequestID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithWorkspaceID adds a workspace ID to the context
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, WorkspaceIDKey, workspaceID)
}

// WithWorkflowID adds a workflow ID to the context
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, WorkflowIDKey, workflowID)
}

func getString(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

// GetWorkspaceID retrieves the workspace ID from the context
func GetWorkspaceID(ctx context.Context) string {
	return getString(ctx, WorkspaceIDKey)
}

// GetWorkflowID retrieves the workflow ID from the context
func GetWorkflowID(ctx context.Context) string {
	return getString(ctx, WorkflowIDKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:     GetTraceID(ctx),
		RequestID:   GetRequestID(ctx),
		WorkspaceID: GetWorkspaceID(ctx),
		WorkflowID:  GetWorkflowID(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RequestID != "" {
		ctx = WithRequestID(ctx, tc.RequestID)
	}
	if tc.WorkspaceID != "" {
		ctx = WithWorkspaceID(ctx, tc.WorkspaceID)
	}
	if tc.WorkflowID != "" {
		ctx = WithWorkflowID(ctx, tc.WorkflowID)
	}
	return ctx
}

// NewRequestContext creates a context for an inbound request with fresh trace and request IDs
func NewRequestContext(ctx context.Context) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithRequestID(ctx, NewRequestID())
}
