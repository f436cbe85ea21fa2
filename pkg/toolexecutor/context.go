package toolexecutor

import "context"

type execContextKey struct{}

// ContextWithExecContext attaches the execution context to a context.Context for
// response transformers and post-process hooks.
func ContextWithExecContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, execContextKey{}, execCtx)
}

// ExecContextFromContext extracts the execution context from a context.Context.
func ExecContextFromContext(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(execContextKey{}); v != nil {
		if execCtx, ok := v.(*ExecutionContext); ok {
			return execCtx
		}
	}
	return nil
}

// nestedContext returns the _context bag callers may embed in the parameters
func nestedContext(params map[string]interface{}) map[string]interface{} {
	if nested, ok := params["_context"].(map[string]interface{}); ok {
		return nested
	}
	return nil
}

// workflowIDFrom resolves the workflow id from the execution context, then the
// parameters, the nested _context bag and the credential shadow field.
func workflowIDFrom(params map[string]interface{}, execCtx *ExecutionContext) string {
	return scopedID(params, execCtx, "workflowId", func(ec *ExecutionContext) string { return ec.WorkflowID })
}

// workspaceIDFrom resolves the workspace id the same way as workflowIDFrom
func workspaceIDFrom(params map[string]interface{}, execCtx *ExecutionContext) string {
	return scopedID(params, execCtx, "workspaceId", func(ec *ExecutionContext) string { return ec.WorkspaceID })
}

func scopedID(params map[string]interface{}, execCtx *ExecutionContext, key string, fromCtx func(*ExecutionContext) string) string {
	if execCtx != nil {
		if id := fromCtx(execCtx); id != "" {
			return id
		}
	}
	if id, ok := params[key].(string); ok && id != "" {
		return id
	}
	if nested := nestedContext(params); nested != nil {
		if id, ok := nested[key].(string); ok && id != "" {
			return id
		}
	}
	if id, ok := params["_"+key].(string); ok && id != "" {
		return id
	}
	return ""
}
