package toolexecutor

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractErrorMessage_Direct(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"graphql errors", `{"errors":[{"message":"Field 'x' doesn't exist"}]}`, "Field 'x' doesn't exist"},
		{"json api errors", `{"errors":[{"detail":"Title can't be blank"}]}`, "Title can't be blank"},
		{"details array", `{"details":[{"message":"Invalid cursor"}]}`, "Invalid cursor"},
		{"nested error details", `{"errors":[{"details":{"field":"name","reason":"taken"}}]}`, `{"field":"name","reason":"taken"}`},
		{"string array under errors", `{"errors":["first problem","second problem"]}`, "first problem, second problem"},
		{"top level string array", `["quota exceeded","try later"]`, "quota exceeded, try later"},
		{"message", `{"message":"Bad credentials","documentation_url":"https://docs"}`, "Bad credentials"},
		{"soap fault", `{"fault":{"faultstring":"Rate limit quota violation"}}`, "Rate limit quota violation"},
		{"bare faultstring", `{"faultstring":"Invalid ApiKey"}`, "Invalid ApiKey"},
		{"oauth error description", `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`, "Token has been expired or revoked."},
		{"error object", `{"error":{"code":404,"message":"Requested entity was not found."}}`, "Requested entity was not found."},
		{"error object without message", `{"error":{"code":"E42"}}`, `{"code":"E42"}`},
		{"error string", `{"error":"channel_not_found","ok":false}`, "channel_not_found"},
		{"json string body", `"Service unavailable"`, "Service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := errorInfo{status: http.StatusBadRequest, statusText: "Bad Request", data: []byte(tt.body)}
			assert.Equal(t, tt.want, extractErrorMessage(info, directErrorExtractors))
		})
	}
}

func TestExtractErrorMessage_Precedence(t *testing.T) {
	body := []byte(`{"error":"invalid_request","message":"The message wins for direct calls","errors":[{"message":"graphql wins over both"}]}`)

	info := errorInfo{status: http.StatusBadRequest, data: body}
	assert.Equal(t, "graphql wins over both", extractErrorMessage(info, directErrorExtractors))
	assert.Equal(t, "invalid_request", extractErrorMessage(info, proxyErrorExtractors))

	info.data = []byte(`{"error":"invalid_request","message":"Missing field"}`)
	assert.Equal(t, "Missing field", extractErrorMessage(info, directErrorExtractors))
	assert.Equal(t, "invalid_request", extractErrorMessage(info, proxyErrorExtractors))
}

func TestExtractErrorMessage_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		info errorInfo
		want string
	}{
		{"plain text body", errorInfo{status: 502, statusText: "Bad Gateway", data: []byte("upstream connect error")}, "upstream connect error"},
		{"html body", errorInfo{status: 500, data: []byte("<html><body>Oops</body></html>")}, "<html><body>Oops</body></html>"},
		{"unrecognized json", errorInfo{status: 418, statusText: "I'm a teapot", data: []byte(`{"ok":false}`)}, "I'm a teapot"},
		{"empty body", errorInfo{status: 503, statusText: "Service Unavailable"}, "Service Unavailable"},
		{"whitespace body", errorInfo{status: 500, statusText: "Internal Server Error", data: []byte("  \n")}, "Internal Server Error"},
		{"nothing at all", errorInfo{status: 599}, "Request failed with status 599"},
		{"blank strings are skipped", errorInfo{status: 400, data: []byte(`{"message":"  ","error":""}`)}, "Request failed with status 400"},
		{"mixed arrays are not messages", errorInfo{status: 400, statusText: "Bad Request", data: []byte(`{"errors":["a",1]}`)}, "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractErrorMessage(tt.info, directErrorExtractors))
			assert.Equal(t, tt.want, extractErrorMessage(tt.info, proxyErrorExtractors))
		})
	}
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Not Found", statusText(&http.Response{StatusCode: 404, Status: "404 Not Found"}))
	assert.Equal(t, "Custom Reason", statusText(&http.Response{StatusCode: 499, Status: "499 Custom Reason"}))
	assert.Equal(t, "Bad Gateway", statusText(&http.Response{StatusCode: 502}))
}

func TestUpstreamError(t *testing.T) {
	e := upstreamError("github_repo", errorInfo{status: 404, statusText: "Not Found", data: []byte(`{"message":"Not Found"}`)}, directErrorExtractors)

	assert.Equal(t, KindUpstream, e.Kind)
	assert.Equal(t, "github_repo", e.ToolID)
	assert.Equal(t, 404, e.Status)

	message, output := failureFromError(e)
	assert.Equal(t, "Not Found", message)
	assert.Equal(t, map[string]interface{}{"status": 404, "statusText": "Not Found"}, output)
}
