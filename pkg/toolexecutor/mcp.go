package toolexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// MCPToolPrefix marks tools hosted by MCP servers: mcp-<server>-<tool>
	MCPToolPrefix = "mcp-"

	mcpExecutePath = "/internal/mcp/tools/execute"
)

// mcpSystemFields never reach an MCP server as tool arguments
var mcpSystemFields = map[string]bool{
	"serverId":          true,
	"serverName":        true,
	"toolName":          true,
	"_context":          true,
	"envVars":           true,
	"workflowVariables": true,
	"blockData":         true,
	"blockNameMapping":  true,
	"_toolSchema":       true,
}

// mcpOutputPaths are tried in order to find the tool output in a response
var mcpOutputPaths = []string{"data.output", "output", "data"}

// MCP execution request
type mcpRequest struct {
	ServerID    string                 `json:"serverId"`
	ToolName    string                 `json:"toolName"`
	Arguments   map[string]interface{} `json:"arguments"`
	WorkflowID  string                 `json:"workflowId,omitempty"`
	WorkspaceID string                 `json:"workspaceId"`
}

// ParseMCPToolID splits mcp-<server>-<tool> into the server id (which keeps its
// mcp- prefix) and the tool name, which may itself contain dashes.
func ParseMCPToolID(toolID string) (string, string, error) {
	parts := strings.Split(toolID, "-")
	if len(parts) < 3 || parts[0]+"-" != MCPToolPrefix || parts[1] == "" {
		return "", "", fmt.Errorf("invalid MCP tool id: %s", toolID)
	}
	toolName := strings.Join(parts[2:], "-")
	if toolName == "" {
		return "", "", fmt.Errorf("invalid MCP tool id: %s", toolID)
	}
	return MCPToolPrefix + parts[1], toolName, nil
}

// extractMCPArguments reads the explicit arguments payload when present,
// otherwise every non-system parameter becomes an argument.
func (te *ToolExecutor) extractMCPArguments(toolID string, params map[string]interface{}) map[string]interface{} {
	if raw, ok := params["arguments"]; ok {
		switch args := raw.(type) {
		case map[string]interface{}:
			return args
		case string:
			parsed := map[string]interface{}{}
			if strings.TrimSpace(args) == "" {
				return parsed
			}
			if err := json.Unmarshal([]byte(args), &parsed); err != nil {
				te.logger.Warn().Err(err).Str("tool", toolID).Msg("Failed to parse MCP arguments, using empty arguments")
				return map[string]interface{}{}
			}
			return parsed
		default:
			te.logger.Warn().Str("tool", toolID).Msgf("Unsupported MCP arguments type %T, using empty arguments", raw)
			return map[string]interface{}{}
		}
	}

	args := make(map[string]interface{}, len(params))
	for k, v := range params {
		if !mcpSystemFields[k] {
			args[k] = v
		}
	}
	return args
}

// executeMCP runs a remote tool through the MCP execution endpoint
func (te *ToolExecutor) executeMCP(ctx context.Context, remote Remote, req Request, params map[string]interface{}) (ToolResult, error) {
	workspaceID := workspaceIDFrom(params, req.Context)
	if workspaceID == "" {
		return ToolResult{}, newError(KindValidation, req.ToolID, "Missing workspaceId in execution context for MCP tool", nil)
	}

	payload, err := json.Marshal(mcpRequest{
		ServerID:    remote.ServerID,
		ToolName:    remote.ToolName,
		Arguments:   te.extractMCPArguments(req.ToolID, params),
		WorkflowID:  workflowIDFrom(params, req.Context),
		WorkspaceID: workspaceID,
	})
	if err != nil {
		return ToolResult{}, newError(KindInternal, req.ToolID, fmt.Sprintf("Failed to encode MCP request: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, te.baseURL+mcpExecutePath, bytes.NewReader(payload))
	if err != nil {
		return ToolResult{}, newError(KindInternal, req.ToolID, fmt.Sprintf("Failed to build MCP request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	if err := attachInternalToken(httpReq, te.signer); err != nil {
		return ToolResult{}, newError(KindInternal, req.ToolID, err.Error(), err)
	}

	te.logger.Debug().
		Str("server", remote.ServerID).
		Str("tool", remote.ToolName).
		Msg("Executing MCP tool")

	resp, err := te.client.Do(httpReq)
	if err != nil {
		te.metrics.RecordMCPRequest(remote.ServerID, false)
		te.logger.Error().Err(err).Str("tool", req.ToolID).Msg("MCP request failed")
		return ToolResult{}, newError(KindUpstream, req.ToolID, fmt.Sprintf("MCP tool execution failed: %v", err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		te.metrics.RecordMCPRequest(remote.ServerID, false)
		return ToolResult{}, newError(KindUpstream, req.ToolID, fmt.Sprintf("Failed to read MCP response: %v", err), err)
	}

	info := errorInfo{status: resp.StatusCode, statusText: statusText(resp), data: body}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te.metrics.RecordMCPRequest(remote.ServerID, false)
		return ToolResult{}, upstreamError(req.ToolID, info, proxyErrorExtractors)
	}

	parsed := gjson.ParseBytes(body)
	if !gjson.ValidBytes(body) || !parsed.Get("success").Bool() {
		te.metrics.RecordMCPRequest(remote.ServerID, false)
		info.statusText = "MCP tool execution failed"
		return ToolResult{}, upstreamError(req.ToolID, info, proxyErrorExtractors)
	}

	te.metrics.RecordMCPRequest(remote.ServerID, true)

	for _, path := range mcpOutputPaths {
		if output := parsed.Get(path); output.Exists() {
			return ToolResult{Success: true, Output: output.Value()}, nil
		}
	}
	return ToolResult{Success: true, Output: map[string]interface{}{}}, nil
}
