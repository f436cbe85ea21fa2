package toolexecutor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Visibility controls who is allowed to supply a parameter value
type Visibility string

const (
	// VisibilityUserOnly parameters are filled in by the user and validated upstream
	VisibilityUserOnly Visibility = "user-only"
	// VisibilityUserOrLLM parameters may be filled in by the user or proposed by an agent
	VisibilityUserOrLLM Visibility = "user-or-llm"
	// VisibilityHidden parameters are injected by the system
	VisibilityHidden Visibility = "hidden"
)

// Parameter declares one input accepted by a tool
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Required    bool        `json:"required"`
	Visibility  Visibility  `json:"visibility"`
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// URLBuilder resolves the request URL from the parameter map
type URLBuilder func(params map[string]interface{}) (string, error)

// MethodBuilder resolves the HTTP method from the parameter map
type MethodBuilder func(params map[string]interface{}) string

// HeadersBuilder resolves request headers from the parameter map
type HeadersBuilder func(params map[string]interface{}) map[string]string

// BodyBuilder resolves the request body from the parameter map.
// Returning a FormData value sends a multipart body; a string is sent verbatim;
// anything else is JSON encoded unless the headers ask for url-encoded form content.
type BodyBuilder func(params map[string]interface{}) (interface{}, error)

// StaticURL returns a URLBuilder that always yields url
func StaticURL(url string) URLBuilder {
	return func(map[string]interface{}) (string, error) {
		return url, nil
	}
}

// StaticMethod returns a MethodBuilder that always yields method
func StaticMethod(method string) MethodBuilder {
	return func(map[string]interface{}) string {
		return method
	}
}

// StaticHeaders returns a HeadersBuilder that always yields a copy of headers
func StaticHeaders(headers map[string]string) HeadersBuilder {
	return func(map[string]interface{}) map[string]string {
		out := make(map[string]string, len(headers))
		for k, v := range headers {
			out[k] = v
		}
		return out
	}
}

// RequestSpec maps parameters to an outbound HTTP request
type RequestSpec struct {
	URL     URLBuilder
	Method  MethodBuilder
	Headers HeadersBuilder
	Body    BodyBuilder

	// InternalRoute marks requests that target the host application even
	// when the URL does not carry the internal prefix.
	InternalRoute bool
}

// FormData is a multipart/form-data body. Values are strings, FormFile or
// anything else, which is encoded as JSON text.
type FormData map[string]interface{}

// FormFile is a file part inside a FormData body
type FormFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Response is a terminal HTTP response handed to response transformers
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// ResponseTransformer maps a raw response into a ToolResult. Returning an
// error turns the execution into a failure.
type ResponseTransformer func(ctx context.Context, resp *Response, params map[string]interface{}) (ToolResult, error)

// PostProcessor enriches a successful result. It may run further tools through exec.
type PostProcessor func(ctx context.Context, result ToolResult, params map[string]interface{}, exec Executor) (ToolResult, error)

// Executor runs tools. ToolExecutor implements it; post-process hooks receive it to recurse.
type Executor interface {
	Execute(ctx context.Context, req Request) ToolResult
}

// Descriptor is the immutable declarative definition of one tool
type Descriptor struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`

	Request           RequestSpec         `json:"-"`
	TransformResponse ResponseTransformer `json:"-"`
	PostProcess       PostProcessor       `json:"-"`

	RequiresOAuth bool     `json:"requires_oauth,omitempty"`
	FileOutputs   []string `json:"file_outputs,omitempty"`
}

// DisplayName prefers the friendly name over the id
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// ProducesFiles reports whether the tool declares file outputs
func (d *Descriptor) ProducesFiles() bool {
	return len(d.FileOutputs) > 0
}

// ExecutionContext is read-only scoping data supplied by the orchestrating caller
type ExecutionContext struct {
	WorkspaceID string `json:"workspaceId,omitempty"`
	WorkflowID  string `json:"workflowId,omitempty"`
	ExecutionID string `json:"executionId,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

// Request is one tool invocation
type Request struct {
	ToolID          string                 `json:"toolId"`
	Params          map[string]interface{} `json:"params"`
	SkipProxy       bool                   `json:"skipProxy,omitempty"`
	SkipPostProcess bool                   `json:"skipPostProcess,omitempty"`
	Context         *ExecutionContext      `json:"executionContext,omitempty"`
}

// Timing records when an execution started and ended
type Timing struct {
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	DurationMillis int64     `json:"durationMillis"`
}

// ToolResult is the uniform outcome of every execution path
type ToolResult struct {
	Success bool        `json:"success"`
	Output  interface{} `json:"output"`
	Error   string      `json:"error,omitempty"`
	Timing  *Timing     `json:"timing,omitempty"`
}

// errorInfo carries a failed exchange into the error normalizer
type errorInfo struct {
	status     int
	statusText string
	data       []byte
}
