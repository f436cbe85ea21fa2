package toolexecutor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// isInternalURL reports whether url targets the host application's API surface
func (te *ToolExecutor) isInternalURL(url string) bool {
	if strings.HasPrefix(url, te.internalPrefix) {
		return true
	}
	return strings.HasPrefix(url, te.baseURL+te.internalPrefix)
}

// paramTimeout reads a descriptor-declared timeout parameter in milliseconds
func paramTimeout(params map[string]interface{}) time.Duration {
	switch v := params["timeout"].(type) {
	case float64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	}
	return 0
}

// executeDirect issues the descriptor's request itself and parses the response
func (te *ToolExecutor) executeDirect(ctx context.Context, d *Descriptor, built *builtRequest, params map[string]interface{}) (ToolResult, error) {
	if timeout := paramTimeout(params); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := built.httpRequest(ctx, te.baseURL)
	if err != nil {
		return ToolResult{}, newError(KindInternal, d.ID, err.Error(), err)
	}
	if te.isInternalURL(built.url) {
		if err := attachInternalToken(req, te.signer); err != nil {
			return ToolResult{}, newError(KindInternal, d.ID, err.Error(), err)
		}
	}

	te.logger.Debug().
		Str("tool", d.ID).
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Msg("Executing tool request directly")

	resp, err := te.client.Do(req)
	if err != nil {
		return ToolResult{}, newError(KindUpstream, d.ID, fmt.Sprintf("Request to %s failed: %v", d.DisplayName(), err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ToolResult{}, newError(KindUpstream, d.ID, fmt.Sprintf("Failed to read response from %s: %v", d.DisplayName(), err), err)
	}

	response := &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header,
		Body:       body,
	}

	if !response.OK() {
		return ToolResult{}, upstreamError(d.ID, errorInfo{
			status:     response.Status,
			statusText: response.StatusText,
			data:       body,
		}, directErrorExtractors)
	}

	if response.Status == http.StatusAccepted && len(bytes.TrimSpace(body)) == 0 {
		return ToolResult{Success: true, Output: map[string]interface{}{"status": http.StatusAccepted}}, nil
	}

	if d.TransformResponse != nil {
		return te.transform(ctx, d, response, params)
	}

	return defaultResult(d.ID, response)
}

// transform runs a descriptor's response transformer, folding errors and panics
func (te *ToolExecutor) transform(ctx context.Context, d *Descriptor, response *Response, params map[string]interface{}) (result ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ToolResult{}
			err = newError(KindTransform, d.ID, fmt.Sprintf("Failed to transform response from %s: %v", d.DisplayName(), r), nil)
		}
	}()

	result, err = d.TransformResponse(ctx, response, params)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return ToolResult{}, err
		}
		return ToolResult{}, newError(KindTransform, d.ID, err.Error(), err)
	}
	return result, nil
}

// defaultResult maps a successful response without a transformer. Bodies shaped
// like a tool result are honoured; anything else becomes the output as is.
func defaultResult(toolID string, response *Response) (ToolResult, error) {
	body := bytes.TrimSpace(response.Body)
	if len(body) == 0 {
		return ToolResult{Success: true, Output: map[string]interface{}{"status": response.Status}}, nil
	}
	if !gjson.ValidBytes(body) {
		return ToolResult{Success: true, Output: string(body)}, nil
	}

	parsed := gjson.ParseBytes(body)
	if success := parsed.Get("success"); success.IsBool() {
		if !success.Bool() {
			return ToolResult{}, upstreamError(toolID, errorInfo{
				status:     response.Status,
				statusText: logicalFailureText,
				data:       body,
			}, proxyErrorExtractors)
		}
		if output := parsed.Get("output"); output.Exists() {
			return ToolResult{Success: true, Output: output.Value()}, nil
		}
	}

	return ToolResult{Success: true, Output: parsed.Value()}, nil
}
