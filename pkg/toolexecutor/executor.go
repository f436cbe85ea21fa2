package toolexecutor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harun/toolgate/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Routes an execution can take
const (
	RouteNone   = "none"
	RouteDirect = "direct"
	RouteProxy  = "proxy"
	RouteMCP    = "mcp"
)

// DefaultInternalPrefix is the path prefix of the host application's own API
const DefaultInternalPrefix = "/api/"

// MetricsRecorder receives dispatch measurements
type MetricsRecorder interface {
	RecordExecution(toolID, route string, success bool, duration time.Duration)
	RecordError(toolID, kind string)
	RecordCredentialExchange(success bool)
	RecordProxyRequest(status int)
	RecordMCPRequest(serverID string, success bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordExecution(string, string, bool, time.Duration) {}
func (noopMetrics) RecordError(string, string)                          {}
func (noopMetrics) RecordCredentialExchange(bool)                       {}
func (noopMetrics) RecordProxyRequest(int)                              {}
func (noopMetrics) RecordMCPRequest(string, bool)                       {}

// Config configures a ToolExecutor
type Config struct {
	// BaseURL of the host application serving the internal endpoints
	BaseURL string
	// InternalPrefix marks URLs on the host application's API surface
	InternalPrefix string

	Registry        *Registry
	CustomTools     CustomToolStore
	CustomToolCache *CustomToolCache

	// Signer is set in server processes only
	Signer *InternalTokenSigner

	HTTPClient  *http.Client
	FileOutputs FileOutputProcessor
	Metrics     MetricsRecorder
	Logger      zerolog.Logger
}

// ToolExecutor dispatches tool invocations across built-in, custom and MCP tools
type ToolExecutor struct {
	baseURL        string
	internalPrefix string

	registry    *Registry
	resolver    *Resolver
	credentials *CredentialClient
	signer      *InternalTokenSigner
	client      *http.Client
	files       FileOutputProcessor
	metrics     MetricsRecorder
	logger      zerolog.Logger
}

// New creates a ToolExecutor
func New(cfg Config) (*ToolExecutor, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	prefix := cfg.InternalPrefix
	if prefix == "" {
		prefix = DefaultInternalPrefix
	}

	client := cfg.HTTPClient
	if client == nil {
		// No client timeout: only descriptor-declared timeouts bound a call.
		client = &http.Client{}
	}

	logger := cfg.Logger.With().Str("component", "toolexecutor").Logger()

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(nil, cfg.Logger)
	}

	store := cfg.CustomTools
	if store == nil {
		store = NewHTTPCustomToolStore(baseURL, client, cfg.Signer)
	}

	var metrics MetricsRecorder = noopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	te := &ToolExecutor{
		baseURL:        baseURL,
		internalPrefix: prefix,
		registry:       registry,
		resolver:       NewResolver(registry, store, cfg.CustomToolCache),
		credentials:    NewCredentialClient(baseURL, client, cfg.Signer),
		signer:         cfg.Signer,
		client:         client,
		files:          cfg.FileOutputs,
		metrics:        metrics,
		logger:         logger,
	}

	logger.Info().
		Str("base_url", baseURL).
		Bool("server_mode", cfg.Signer != nil).
		Msg("Tool executor initialized")

	return te, nil
}

// Registry returns the built-in tool table
func (te *ToolExecutor) Registry() *Registry {
	return te.registry
}

// Describe resolves a tool from locally cached definitions without network access
func (te *ToolExecutor) Describe(toolID string) (Variant, error) {
	return te.resolver.Lookup(toolID)
}

// ExecuteTool is the positional form of Execute
func (te *ToolExecutor) ExecuteTool(ctx context.Context, toolID string, params map[string]interface{}, skipProxy, skipPostProcess bool, execCtx *ExecutionContext) ToolResult {
	return te.Execute(ctx, Request{
		ToolID:          toolID,
		Params:          params,
		SkipProxy:       skipProxy,
		SkipPostProcess: skipPostProcess,
		Context:         execCtx,
	})
}

// Execute runs one tool invocation. It never panics: every failure is folded
// into a ToolResult with Success false, and every result carries timing.
func (te *ToolExecutor) Execute(ctx context.Context, req Request) (result ToolResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()
	route := RouteNone

	ctx, span := tracing.StartSpan(ctx, "toolexecutor", "toolexecutor.Execute",
		attribute.String("tool.id", req.ToolID),
		attribute.Bool("tool.skip_proxy", req.SkipProxy),
	)
	defer span.End()

	if req.Context != nil {
		ctx = tracing.MergeContext(ctx, tracing.NewContext(context.Background(), &tracing.TraceContext{
			WorkspaceID: req.Context.WorkspaceID,
			WorkflowID:  req.Context.WorkflowID,
		}))
	}

	logger := tracing.PropagateToLogger(ctx, te.logger).With().
		Str("tool", req.ToolID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Tool execution panicked")
			err := errorFromPanic(req.ToolID, r)
			te.metrics.RecordError(req.ToolID, string(err.Kind))
			result = failure(err)
		}

		result = finalize(result, startTime, time.Now())

		te.metrics.RecordExecution(req.ToolID, route, result.Success, time.Duration(result.Timing.DurationMillis)*time.Millisecond)
		span.SetAttributes(attribute.String("tool.route", route), attribute.Bool("tool.success", result.Success))
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
		}
	}()

	ctx = ContextWithExecContext(ctx, req.Context)
	params := cloneParams(req.Params)

	variant, err := te.resolver.Resolve(ctx, req.ToolID, params, req.Context)
	if err != nil {
		te.metrics.RecordError(req.ToolID, string(KindOf(err)))
		logger.Error().Err(err).Msg("Tool resolution failed")
		return failure(err)
	}

	res, taken, err := variant.execute(ctx, te, req, params)
	route = taken
	if err != nil {
		te.metrics.RecordError(req.ToolID, string(KindOf(err)))
		logger.Error().Err(err).Str("route", route).Str("kind", string(KindOf(err))).Msg("Tool execution failed")
		return failure(err)
	}

	logger.Debug().Str("route", route).Msg("Tool execution completed")
	return res
}

// executeDescriptor runs a built-in or custom tool: defaults and validation,
// credential exchange, routing, then post-processing and file outputs.
func (te *ToolExecutor) executeDescriptor(ctx context.Context, d *Descriptor, schema *gojsonschema.Schema, req Request, params map[string]interface{}) (ToolResult, string, error) {
	applyDefaults(d, params)

	if err := validateRequired(d, params); err != nil {
		return ToolResult{}, RouteNone, err
	}
	if err := validateTypes(d, schema, params); err != nil {
		return ToolResult{}, RouteNone, err
	}

	if err := te.applyCredential(ctx, d, params, req.Context); err != nil {
		return ToolResult{}, RouteNone, err
	}

	rawURL, err := resolveURL(d, params)
	if err != nil {
		return ToolResult{}, RouteNone, newError(KindInternal, d.ID, err.Error(), err)
	}

	// The gateway builds external requests itself; only direct calls encode locally.
	var (
		result ToolResult
		route  string
	)
	if d.Request.InternalRoute || req.SkipProxy || te.isInternalURL(rawURL) {
		route = RouteDirect
		built, buildErr := buildRequestAt(d, params, rawURL)
		if buildErr != nil {
			return ToolResult{}, RouteNone, newError(KindInternal, d.ID, buildErr.Error(), buildErr)
		}
		result, err = te.executeDirect(ctx, d, built, params)
	} else {
		route = RouteProxy
		result, err = te.executeProxy(ctx, d, req, params)
	}
	if err != nil {
		return ToolResult{}, route, err
	}

	result = te.postProcess(ctx, d, result, params, req)
	result = te.processFileOutputs(ctx, d, result, req.Context)

	return result, route, nil
}

func failure(err error) ToolResult {
	message, output := failureFromError(err)
	return ToolResult{Success: false, Output: output, Error: message}
}

// finalize enforces the result invariants and attaches timing
func finalize(result ToolResult, start, end time.Time) ToolResult {
	if result.Success {
		result.Error = ""
	} else {
		if result.Error == "" {
			result.Error = "Tool execution failed"
		}
		if result.Output == nil {
			result.Output = map[string]interface{}{}
		}
	}
	result.Timing = &Timing{
		StartTime:      start,
		EndTime:        end,
		DurationMillis: end.Sub(start).Milliseconds(),
	}
	return result
}
