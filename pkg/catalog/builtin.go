package catalog

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/harun/toolgate/pkg/toolexecutor"
)

// HTTPRequestID identifies the generic HTTP request tool
const HTTPRequestID = "http_request"

// HTTPRequestTool is the built-in generic HTTP client tool
func HTTPRequestTool() *toolexecutor.Descriptor {
	return &toolexecutor.Descriptor{
		ID:          HTTPRequestID,
		Name:        "HTTP Request",
		Version:     "1.0.0",
		Description: "Make an HTTP request to any URL",
		Parameters: []toolexecutor.Parameter{
			{Name: "url", Type: "string", Required: true, Visibility: toolexecutor.VisibilityUserOrLLM, Description: "The URL to send the request to"},
			{Name: "method", Type: "string", Visibility: toolexecutor.VisibilityUserOrLLM, Description: "HTTP method", Default: http.MethodGet},
			{Name: "params", Type: "object", Visibility: toolexecutor.VisibilityUserOrLLM, Description: "Query parameters"},
			{Name: "headers", Type: "object", Visibility: toolexecutor.VisibilityUserOrLLM, Description: "Request headers"},
			{Name: "body", Type: "any", Visibility: toolexecutor.VisibilityUserOrLLM, Description: "Request body"},
			{Name: "timeout", Type: "number", Visibility: toolexecutor.VisibilityUserOnly, Description: "Timeout in milliseconds"},
		},
		Request: toolexecutor.RequestSpec{
			URL: func(params map[string]interface{}) (string, error) {
				raw, _ := params["url"].(string)
				raw = strings.TrimSpace(raw)
				if raw == "" {
					return "", fmt.Errorf("url is required")
				}
				query, _ := params["params"].(map[string]interface{})
				return withQuery(raw, query)
			},
			Method: func(params map[string]interface{}) string {
				method, _ := params["method"].(string)
				return method
			},
			Headers: func(params map[string]interface{}) map[string]string {
				headers := map[string]string{}
				if raw, ok := params["headers"].(map[string]interface{}); ok {
					for k, v := range raw {
						if v != nil {
							headers[k] = fmt.Sprint(v)
						}
					}
				}
				return headers
			},
			Body: func(params map[string]interface{}) (interface{}, error) {
				method, _ := params["method"].(string)
				switch strings.ToUpper(method) {
				case "", http.MethodGet, http.MethodHead:
					return nil, nil
				}
				return params["body"], nil
			},
		},
	}
}

// withQuery appends query parameters in key order, keeping any already present
func withQuery(raw string, query map[string]interface{}) (string, error) {
	if len(query) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	values := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if query[k] != nil {
			values.Set(k, fmt.Sprint(query[k]))
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}
