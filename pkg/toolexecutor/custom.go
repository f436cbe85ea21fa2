package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

const (
	// CustomToolPrefix marks user defined tools
	CustomToolPrefix = "custom_"

	customToolsPath     = "/internal/tools/custom"
	functionExecutePath = "/api/function/execute"
)

// CustomTool is a user defined script tool as stored by the custom-tool store
type CustomTool struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Schema CustomToolSchema `json:"schema"`
	Code   string           `json:"code"`
}

// CustomToolSchema is the function-calling schema of a custom tool
type CustomToolSchema struct {
	Function struct {
		Name        string          `json:"name,omitempty"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

// CustomToolStore lists the custom tools visible to a workflow
type CustomToolStore interface {
	List(ctx context.Context, workflowID string) ([]CustomTool, error)
}

// HTTPCustomToolStore fetches custom tools from the host application
type HTTPCustomToolStore struct {
	baseURL string
	client  *http.Client
	signer  *InternalTokenSigner
}

// NewHTTPCustomToolStore creates a store reading from baseURL. signer is nil outside server processes.
func NewHTTPCustomToolStore(baseURL string, client *http.Client, signer *InternalTokenSigner) *HTTPCustomToolStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCustomToolStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		signer:  signer,
	}
}

// List fetches custom tools, scoped to workflowID when it is set
func (s *HTTPCustomToolStore) List(ctx context.Context, workflowID string) ([]CustomTool, error) {
	endpoint := s.baseURL + customToolsPath
	if workflowID != "" {
		endpoint += "?workflowId=" + url.QueryEscape(workflowID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build custom tools request: %w", err)
	}
	if err := attachInternalToken(req, s.signer); err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch custom tools: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom tools response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(errorInfo{status: resp.StatusCode, statusText: statusText(resp), data: body}, directErrorExtractors)
		return nil, fmt.Errorf("failed to fetch custom tools: %s", msg)
	}

	var payload struct {
		Data []CustomTool `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode custom tools: %w", err)
	}

	return payload.Data, nil
}

// CustomToolCache keeps the custom tools seen so far for synchronous lookups
type CustomToolCache struct {
	mu    sync.RWMutex
	tools map[string]CustomTool
}

// NewCustomToolCache creates an empty cache
func NewCustomToolCache() *CustomToolCache {
	return &CustomToolCache{tools: make(map[string]CustomTool)}
}

// Remember stores tools so later synchronous lookups can find them
func (c *CustomToolCache) Remember(tools []CustomTool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tools {
		c.tools[t.ID] = t
	}
}

// Find looks a tool up by id, then by title
func (c *CustomToolCache) Find(identifier string) (CustomTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.tools[identifier]; ok {
		return t, true
	}
	ids := make([]string, 0, len(c.tools))
	for id := range c.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if c.tools[id].Title == identifier {
			return c.tools[id], true
		}
	}
	return CustomTool{}, false
}

// findCustomTool matches by stable id first and falls back to the display title
func findCustomTool(tools []CustomTool, identifier string) (CustomTool, bool) {
	for _, t := range tools {
		if t.ID == identifier {
			return t, true
		}
	}
	for _, t := range tools {
		if t.Title == identifier {
			return t, true
		}
	}
	return CustomTool{}, false
}

// customSystemFields are forwarded beside the params rather than inside them
var customSystemFields = map[string]bool{
	"_context":          true,
	"envVars":           true,
	"workflowVariables": true,
	"blockData":         true,
	"blockNameMapping":  true,
}

// customDescriptor turns a stored custom tool into a descriptor that executes
// through the host application's function runner.
func customDescriptor(tool CustomTool) *Descriptor {
	schema := tool.Schema.Function.Parameters

	return &Descriptor{
		ID:          CustomToolPrefix + tool.ID,
		Name:        tool.Title,
		Version:     "1.0.0",
		Description: tool.Schema.Function.Description,
		Parameters:  parseSchemaParameters(schema),
		Request: RequestSpec{
			URL:           StaticURL(functionExecutePath),
			Method:        StaticMethod(http.MethodPost),
			Headers:       StaticHeaders(map[string]string{"Content-Type": "application/json"}),
			InternalRoute: true,
			Body: func(params map[string]interface{}) (interface{}, error) {
				callParams := make(map[string]interface{}, len(params))
				for k, v := range params {
					if !customSystemFields[k] {
						callParams[k] = v
					}
				}

				var schemaValue interface{} = map[string]interface{}{}
				if len(schema) > 0 {
					if err := json.Unmarshal(schema, &schemaValue); err != nil {
						return nil, fmt.Errorf("custom tool %s has an invalid schema: %w", tool.ID, err)
					}
				}

				return map[string]interface{}{
					"code":              tool.Code,
					"params":            callParams,
					"schema":            schemaValue,
					"envVars":           mapOrEmpty(params["envVars"]),
					"workflowVariables": mapOrEmpty(params["workflowVariables"]),
					"blockData":         mapOrEmpty(params["blockData"]),
					"blockNameMapping":  mapOrEmpty(params["blockNameMapping"]),
					"workflowId":        workflowIDFrom(params, nil),
					"isCustomTool":      true,
				}, nil
			},
		},
		TransformResponse: transformCustomResponse(CustomToolPrefix + tool.ID),
	}
}

// transformCustomResponse unwraps the function runner envelope. A success:false
// body is an upstream failure with the runner's status attached.
func transformCustomResponse(toolID string) ResponseTransformer {
	return func(_ context.Context, resp *Response, _ map[string]interface{}) (ToolResult, error) {
		if !gjson.ValidBytes(resp.Body) {
			return ToolResult{}, fmt.Errorf("custom tool returned an invalid response")
		}
		body := gjson.ParseBytes(resp.Body)
		if success := body.Get("success"); success.Exists() && !success.Bool() {
			return ToolResult{}, upstreamError(toolID, errorInfo{
				status:     resp.Status,
				statusText: logicalFailureText,
				data:       resp.Body,
			}, proxyErrorExtractors)
		}

		output := body.Get("output")
		if result := output.Get("result"); result.Exists() {
			return ToolResult{Success: true, Output: result.Value()}, nil
		}
		if output.Exists() {
			return ToolResult{Success: true, Output: output.Value()}, nil
		}
		return ToolResult{Success: true, Output: body.Value()}, nil
	}
}

func mapOrEmpty(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

// parseSchemaParameters converts a JSON schema object into parameters
func parseSchemaParameters(schema json.RawMessage) []Parameter {
	if len(schema) == 0 {
		return nil
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(schema, &schemaMap); err != nil {
		return nil
	}

	properties, ok := schemaMap["properties"].(map[string]interface{})
	if !ok {
		return nil
	}

	required := make(map[string]bool)
	if reqList, ok := schemaMap["required"].([]interface{}); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Parameter, 0, len(properties))
	for _, name := range names {
		prop, ok := properties[name].(map[string]interface{})
		if !ok {
			continue
		}
		param := Parameter{
			Name:       name,
			Required:   required[name],
			Visibility: VisibilityUserOrLLM,
		}
		if typeVal, ok := prop["type"].(string); ok {
			param.Type = typeVal
		}
		if desc, ok := prop["description"].(string); ok {
			param.Description = desc
		}
		if defVal, ok := prop["default"]; ok {
			param.Default = defVal
		}
		params = append(params, param)
	}

	return params
}
