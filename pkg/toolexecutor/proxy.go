package toolexecutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

const proxyPath = "/internal/proxy"

// proxyRequest is the body posted to the forwarding gateway
type proxyRequest struct {
	ToolID           string                 `json:"toolId"`
	Params           map[string]interface{} `json:"params"`
	ExecutionContext *ExecutionContext      `json:"executionContext"`
}

// executeProxy hands an external request to the forwarding gateway, which
// performs the upstream call and answers with a tool result.
func (te *ToolExecutor) executeProxy(ctx context.Context, d *Descriptor, req Request, params map[string]interface{}) (ToolResult, error) {
	payload, err := json.Marshal(proxyRequest{
		ToolID:           d.ID,
		Params:           params,
		ExecutionContext: req.Context,
	})
	if err != nil {
		return ToolResult{}, newError(KindInternal, d.ID, fmt.Sprintf("Failed to encode proxy request: %v", err), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, te.baseURL+proxyPath, bytes.NewReader(payload))
	if err != nil {
		return ToolResult{}, newError(KindInternal, d.ID, fmt.Sprintf("Failed to build proxy request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	if err := attachInternalToken(httpReq, te.signer); err != nil {
		return ToolResult{}, newError(KindInternal, d.ID, err.Error(), err)
	}

	te.logger.Debug().Str("tool", d.ID).Msg("Forwarding tool request through proxy")

	resp, err := te.client.Do(httpReq)
	if err != nil {
		te.metrics.RecordProxyRequest(0)
		return ToolResult{}, newError(KindUpstream, d.ID, fmt.Sprintf("Proxy request for %s failed: %v", d.DisplayName(), err), err)
	}
	defer resp.Body.Close()
	te.metrics.RecordProxyRequest(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ToolResult{}, newError(KindUpstream, d.ID, fmt.Sprintf("Failed to read proxy response: %v", err), err)
	}

	info := errorInfo{status: resp.StatusCode, statusText: statusText(resp), data: body}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ToolResult{}, upstreamError(d.ID, info, proxyErrorExtractors)
	}

	if !gjson.ValidBytes(body) {
		return ToolResult{}, newError(KindUpstream, d.ID, fmt.Sprintf("Proxy returned an invalid response for %s", d.DisplayName()), nil)
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.Get("success").Bool() {
		info.statusText = logicalFailureText
		return ToolResult{}, upstreamError(d.ID, info, proxyErrorExtractors)
	}

	output := parsed.Get("output")
	if !output.Exists() {
		return ToolResult{Success: true, Output: map[string]interface{}{}}, nil
	}
	return ToolResult{Success: true, Output: output.Value()}, nil
}
