// Package toolexecutor dispatches tool invocations and returns one uniform result.
//
// A tool id resolves into one of three namespaces, tried in order:
// custom tools (custom_ prefix, fetched from the custom-tool store),
// MCP tools (mcp-<server>-<tool>, executed through the MCP endpoint) and
// the built-in table.
//
// Invariants:
// - Execute never panics; every failure becomes a ToolResult with Success false.
// - Caller parameters are copied before any mutation.
// - A credential handle is exchanged for an access token and never forwarded.
// - Post-processing and file-output failures keep the unmodified result.
//
// Usage:
//
//	exec, _ := toolexecutor.New(toolexecutor.Config{BaseURL: "http://localhost:3000", Registry: registry})
//	result := exec.Execute(ctx, toolexecutor.Request{
//		ToolID: "http_request",
//		Params: map[string]interface{}{"url": "https://example.com"},
//	})
package toolexecutor
