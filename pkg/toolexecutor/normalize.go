package toolexecutor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// logicalFailureText replaces the status text of 2xx responses whose body reports failure
const logicalFailureText = "Tool execution failed"

// errorExtractor pulls a human readable message out of one known error envelope
type errorExtractor func(body gjson.Result) (string, bool)

// directErrorExtractors is tried in order against direct API responses
var directErrorExtractors = []errorExtractor{
	stringAt("errors.0.message"),
	stringAt("errors.0.detail"),
	stringAt("details.0.message"),
	anyAt("errors.0.details"),
	stringArray("errors"),
	stringArray("@this"),
	stringAt("message"),
	stringAt("fault.faultstring"),
	stringAt("faultstring"),
	stringAt("error_description"),
	errorObject,
	stringAt("error"),
	bareString,
}

// proxyErrorExtractors is tried in order against forwarding gateway responses,
// whose envelopes put the message under "error" first.
var proxyErrorExtractors = []errorExtractor{
	stringAt("error"),
	errorObject,
	stringAt("message"),
	stringAt("errors.0.message"),
	stringArray("errors"),
	stringAt("details.0.message"),
	stringAt("error_description"),
	stringAt("fault.faultstring"),
	stringAt("faultstring"),
	bareString,
}

func stringAt(path string) errorExtractor {
	return func(body gjson.Result) (string, bool) {
		r := body.Get(path)
		if r.Type == gjson.String && strings.TrimSpace(r.Str) != "" {
			return r.Str, true
		}
		return "", false
	}
}

func anyAt(path string) errorExtractor {
	return func(body gjson.Result) (string, bool) {
		r := body.Get(path)
		switch {
		case r.Type == gjson.String && strings.TrimSpace(r.Str) != "":
			return r.Str, true
		case r.IsObject() || r.IsArray():
			return compactJSON(r.Raw), true
		}
		return "", false
	}
}

func stringArray(path string) errorExtractor {
	return func(body gjson.Result) (string, bool) {
		r := body.Get(path)
		if !r.IsArray() {
			return "", false
		}
		var parts []string
		for _, item := range r.Array() {
			if item.Type != gjson.String {
				return "", false
			}
			if s := strings.TrimSpace(item.Str); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ", "), true
	}
}

func errorObject(body gjson.Result) (string, bool) {
	r := body.Get("error")
	if !r.IsObject() {
		return "", false
	}
	if msg := r.Get("message"); msg.Type == gjson.String && strings.TrimSpace(msg.Str) != "" {
		return msg.Str, true
	}
	return compactJSON(r.Raw), true
}

func bareString(body gjson.Result) (string, bool) {
	if body.Type == gjson.String && strings.TrimSpace(body.Str) != "" {
		return body.Str, true
	}
	return "", false
}

func compactJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}

// extractErrorMessage runs the extractor cascade against info and falls back to
// the status text and finally to a synthesized status message.
func extractErrorMessage(info errorInfo, extractors []errorExtractor) string {
	data := bytes.TrimSpace(info.data)
	if len(data) > 0 {
		if gjson.ValidBytes(data) {
			body := gjson.ParseBytes(data)
			for _, extract := range extractors {
				if msg, ok := extract(body); ok {
					return msg
				}
			}
		} else {
			return string(data)
		}
	}
	if strings.TrimSpace(info.statusText) != "" {
		return info.statusText
	}
	return fmt.Sprintf("Request failed with status %d", info.status)
}

// statusText strips the numeric code from an http.Response status line
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// upstreamError builds the failure for a non-success response
func upstreamError(toolID string, info errorInfo, extractors []errorExtractor) *Error {
	e := newError(KindUpstream, toolID, extractErrorMessage(info, extractors), nil)
	e.Status = info.status
	e.StatusText = info.statusText
	return e
}
