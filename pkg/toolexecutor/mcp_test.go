package toolexecutor

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMCPToolID(t *testing.T) {
	tests := []struct {
		id         string
		wantServer string
		wantTool   string
		wantErr    bool
	}{
		{id: "mcp-github-search", wantServer: "mcp-github", wantTool: "search"},
		{id: "mcp-a-b-c", wantServer: "mcp-a", wantTool: "b-c"},
		{id: "mcp-fs-read-file-lines", wantServer: "mcp-fs", wantTool: "read-file-lines"},
		{id: "mcp-only", wantErr: true},
		{id: "mcp--tool", wantErr: true},
		{id: "mcp-server-", wantErr: true},
		{id: "github-search", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			server, tool, err := ParseMCPToolID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantServer, server)
			assert.Equal(t, tt.wantTool, tool)
		})
	}
}

func TestExecuteMCP_MissingWorkspace(t *testing.T) {
	host := newFakeHost(t)
	te := newTestExecutor(t, host.URL, nil)

	result := te.Execute(context.Background(), Request{
		ToolID:  "mcp-github-search",
		Params:  map[string]interface{}{"query": "go"},
		Context: &ExecutionContext{WorkflowID: "wf-1"},
	})

	assert.False(t, result.Success)
	assert.Equal(t, "Missing workspaceId in execution context for MCP tool", result.Error)
	assert.Equal(t, 0, host.TotalHits())
}

func TestExecuteMCP_Request(t *testing.T) {
	host := newFakeHost(t)
	host.respond(http.MethodPost, "/internal/mcp/tools/execute", http.StatusOK, `{"success":true,"data":{"output":{"items":[1,2]}}}`)

	metrics := newRecordingMetrics()
	te := newTestExecutor(t, host.URL, nil, withMetrics(metrics))

	t.Run("arguments from parameters", func(t *testing.T) {
		result := te.Execute(context.Background(), Request{
			ToolID: "mcp-github-search-issues",
			Params: map[string]interface{}{
				"query":       "label:bug",
				"serverId":    "ignored",
				"_context":    map[string]interface{}{"workspaceId": "nested"},
				"envVars":     map[string]interface{}{"TOKEN": "x"},
				"_toolSchema": map[string]interface{}{},
			},
			Context: &ExecutionContext{WorkspaceID: "ws-1", WorkflowID: "wf-1"},
		})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, map[string]interface{}{"items": []interface{}{float64(1), float64(2)}}, result.Output)

		body := host.JSON(t, "/internal/mcp/tools/execute")
		assert.Equal(t, "mcp-github", body["serverId"])
		assert.Equal(t, "search-issues", body["toolName"])
		assert.Equal(t, "ws-1", body["workspaceId"])
		assert.Equal(t, "wf-1", body["workflowId"])
		assert.Equal(t, map[string]interface{}{"query": "label:bug"}, body["arguments"])
	})

	t.Run("workspace from nested context", func(t *testing.T) {
		result := te.Execute(context.Background(), Request{
			ToolID: "mcp-github-search",
			Params: map[string]interface{}{"_context": map[string]interface{}{"workspaceId": "ws-nested"}},
		})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "ws-nested", host.JSON(t, "/internal/mcp/tools/execute")["workspaceId"])
	})

	argumentCases := []struct {
		name string
		args interface{}
		want map[string]interface{}
	}{
		{"explicit map", map[string]interface{}{"path": "/tmp"}, map[string]interface{}{"path": "/tmp"}},
		{"json string", `{"path":"/var"}`, map[string]interface{}{"path": "/var"}},
		{"empty string", "", map[string]interface{}{}},
		{"malformed json string", "{not json", map[string]interface{}{}},
	}
	for _, tc := range argumentCases {
		t.Run(tc.name, func(t *testing.T) {
			result := te.Execute(context.Background(), Request{
				ToolID:  "mcp-fs-read",
				Params:  map[string]interface{}{"arguments": tc.args, "other": "dropped"},
				Context: &ExecutionContext{WorkspaceID: "ws-1"},
			})
			require.True(t, result.Success, result.Error)
			assert.Equal(t, tc.want, host.JSON(t, "/internal/mcp/tools/execute")["arguments"])
		})
	}

	assert.NotContains(t, metrics.mcpRequests, false)
	assert.Equal(t, RouteMCP, metrics.lastRoute())
}

func TestExecuteMCP_Output(t *testing.T) {
	tests := []struct {
		name string
		body string
		want interface{}
	}{
		{"data output", `{"success":true,"data":{"output":"from data.output"},"output":"ignored"}`, "from data.output"},
		{"top level output", `{"success":true,"output":{"n":1}}`, map[string]interface{}{"n": float64(1)}},
		{"data", `{"success":true,"data":["x"]}`, []interface{}{"x"}},
		{"nothing", `{"success":true}`, map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost(t)
			host.respond(http.MethodPost, "/internal/mcp/tools/execute", http.StatusOK, tt.body)
			te := newTestExecutor(t, host.URL, nil)

			result := te.Execute(context.Background(), Request{ToolID: "mcp-s-t", Context: &ExecutionContext{WorkspaceID: "ws"}})
			require.True(t, result.Success, result.Error)
			assert.Equal(t, tt.want, result.Output)
		})
	}
}

func TestExecuteMCP_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, `{"error":"MCP server mcp-s is not connected"}`, "MCP server mcp-s is not connected", 500},
		{"logical failure", http.StatusOK, `{"success":false,"error":"Tool t not found on server"}`, "Tool t not found on server", 200},
		{"logical failure without message", http.StatusOK, `{"success":false}`, "MCP tool execution failed", 200},
		{"invalid body", http.StatusOK, `not json`, "not json", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost(t)
			host.respond(http.MethodPost, "/internal/mcp/tools/execute", tt.status, tt.body)
			metrics := newRecordingMetrics()
			te := newTestExecutor(t, host.URL, nil, withMetrics(metrics))

			result := te.Execute(context.Background(), Request{ToolID: "mcp-s-t", Context: &ExecutionContext{WorkspaceID: "ws"}})

			assert.False(t, result.Success)
			assert.Equal(t, tt.wantErr, result.Error)
			assert.Equal(t, tt.wantStatus, result.Output.(map[string]interface{})["status"])
			assert.Equal(t, []bool{false}, metrics.mcpRequests)
		})
	}
}
