package toolexecutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Variant is a resolved tool. Each variant knows how to execute itself.
type Variant interface {
	// Kind names the variant: builtin, custom or remote
	Kind() string
	execute(ctx context.Context, te *ToolExecutor, req Request, params map[string]interface{}) (ToolResult, string, error)
}

// BuiltIn is a tool from the static table
type BuiltIn struct {
	Descriptor *Descriptor
	schema     *gojsonschema.Schema
}

// Custom is a user defined tool fetched from the custom-tool store
type Custom struct {
	Descriptor *Descriptor
	Tool       CustomTool
	schema     *gojsonschema.Schema
}

// Remote is a tool hosted by an MCP server. It has no conventional descriptor.
type Remote struct {
	ServerID string
	ToolName string
}

func (BuiltIn) Kind() string { return "builtin" }
func (Custom) Kind() string  { return "custom" }
func (Remote) Kind() string  { return "remote" }

func (b BuiltIn) execute(ctx context.Context, te *ToolExecutor, req Request, params map[string]interface{}) (ToolResult, string, error) {
	return te.executeDescriptor(ctx, b.Descriptor, b.schema, req, params)
}

func (c Custom) execute(ctx context.Context, te *ToolExecutor, req Request, params map[string]interface{}) (ToolResult, string, error) {
	return te.executeDescriptor(ctx, c.Descriptor, c.schema, req, params)
}

func (r Remote) execute(ctx context.Context, te *ToolExecutor, req Request, params map[string]interface{}) (ToolResult, string, error) {
	result, err := te.executeMCP(ctx, r, req, params)
	return result, RouteMCP, err
}

// Resolver maps tool identifiers onto the three tool namespaces
type Resolver struct {
	registry *Registry
	store    CustomToolStore
	cache    *CustomToolCache
}

// NewResolver creates a resolver over the built-in registry and custom-tool store
func NewResolver(registry *Registry, store CustomToolStore, cache *CustomToolCache) *Resolver {
	if cache == nil {
		cache = NewCustomToolCache()
	}
	return &Resolver{registry: registry, store: store, cache: cache}
}

// Resolve looks a tool up, fetching custom tools over the network when needed
func (r *Resolver) Resolve(ctx context.Context, toolID string, params map[string]interface{}, execCtx *ExecutionContext) (Variant, error) {
	switch {
	case strings.HasPrefix(toolID, CustomToolPrefix):
		identifier := strings.TrimPrefix(toolID, CustomToolPrefix)
		if r.store == nil {
			return nil, notFound(toolID)
		}
		tools, err := r.store.List(ctx, workflowIDFrom(params, execCtx))
		if err != nil {
			return nil, newError(KindResolution, toolID, fmt.Sprintf("Failed to load custom tool %s: %v", toolID, err), err)
		}
		r.cache.Remember(tools)
		tool, ok := findCustomTool(tools, identifier)
		if !ok {
			return nil, notFound(toolID)
		}
		return newCustomVariant(toolID, tool)

	case strings.HasPrefix(toolID, MCPToolPrefix):
		return remoteVariant(toolID)
	}

	return r.builtIn(toolID)
}

// Lookup resolves synchronously from locally cached definitions only
func (r *Resolver) Lookup(toolID string) (Variant, error) {
	switch {
	case strings.HasPrefix(toolID, CustomToolPrefix):
		tool, ok := r.cache.Find(strings.TrimPrefix(toolID, CustomToolPrefix))
		if !ok {
			return nil, notFound(toolID)
		}
		return newCustomVariant(toolID, tool)

	case strings.HasPrefix(toolID, MCPToolPrefix):
		return remoteVariant(toolID)
	}

	return r.builtIn(toolID)
}

func (r *Resolver) builtIn(toolID string) (Variant, error) {
	d, ok := r.registry.Get(toolID)
	if !ok {
		return nil, notFound(toolID)
	}
	return BuiltIn{Descriptor: d, schema: r.registry.schema(toolID)}, nil
}

func newCustomVariant(toolID string, tool CustomTool) (Variant, error) {
	d := customDescriptor(tool)
	schema, err := compileTypeSchema(d)
	if err != nil {
		return nil, newError(KindResolution, toolID, fmt.Sprintf("Custom tool %s has an unusable schema: %v", toolID, err), err)
	}
	return Custom{Descriptor: d, Tool: tool, schema: schema}, nil
}

func remoteVariant(toolID string) (Variant, error) {
	serverID, toolName, err := ParseMCPToolID(toolID)
	if err != nil {
		return nil, newError(KindResolution, toolID, err.Error(), err)
	}
	return Remote{ServerID: serverID, ToolName: toolName}, nil
}

func notFound(toolID string) *Error {
	return newError(KindResolution, toolID, fmt.Sprintf("Tool not found: %s", toolID), ErrToolNotFound)
}
