package toolexecutor

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeHost stands in for the host application: token service, proxy, custom
// tool store, MCP endpoint and internal API routes. Every call is recorded.
type fakeHost struct {
	*httptest.Server
	Router chi.Router

	mu      sync.Mutex
	hits    map[string]int
	bodies  map[string][]byte
	headers map[string]http.Header
	queries map[string]string
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{
		Router:  chi.NewRouter(),
		hits:    make(map[string]int),
		bodies:  make(map[string][]byte),
		headers: make(map[string]http.Header),
		queries: make(map[string]string),
	}
	h.Router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))

			h.mu.Lock()
			h.hits[r.URL.Path]++
			h.bodies[r.URL.Path] = body
			h.headers[r.URL.Path] = r.Header.Clone()
			h.queries[r.URL.Path] = r.URL.RawQuery
			h.mu.Unlock()

			next.ServeHTTP(w, r)
		})
	})
	h.Server = httptest.NewServer(h.Router)
	t.Cleanup(h.Close)
	return h
}

func (h *fakeHost) Hits(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func (h *fakeHost) TotalHits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, n := range h.hits {
		total += n
	}
	return total
}

func (h *fakeHost) Header(path string) http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.headers[path]
}

func (h *fakeHost) Query(path string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queries[path]
}

func (h *fakeHost) Body(path string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bodies[path]
}

// JSON decodes the last body posted to path
func (h *fakeHost) JSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(h.Body(path), &out), "body of %s", path)
	return out
}

// respond registers a route answering with a fixed status and body
func (h *fakeHost) respond(method, path string, status int, body string) {
	h.Router.MethodFunc(method, path, func(w http.ResponseWriter, _ *http.Request) {
		if body != "" && (body[0] == '{' || body[0] == '[') {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

type recordedExecution struct {
	toolID  string
	route   string
	success bool
}

// recordingMetrics captures what the executor reports
type recordingMetrics struct {
	mu          sync.Mutex
	executions  []recordedExecution
	errors      map[string]int
	exchanges   []bool
	proxyCodes  []int
	mcpRequests []bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{errors: make(map[string]int)}
}

func (m *recordingMetrics) RecordExecution(toolID, route string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, recordedExecution{toolID: toolID, route: route, success: success})
}

func (m *recordingMetrics) RecordError(_ string, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recordingMetrics) RecordCredentialExchange(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, success)
}

func (m *recordingMetrics) RecordProxyRequest(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proxyCodes = append(m.proxyCodes, code)
}

func (m *recordingMetrics) RecordMCPRequest(_ string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mcpRequests = append(m.mcpRequests, success)
}

func (m *recordingMetrics) lastRoute() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.executions) == 0 {
		return ""
	}
	return m.executions[len(m.executions)-1].route
}

// echoDescriptor posts every parameter as the JSON body to url
func echoDescriptor(id, url string, params ...Parameter) *Descriptor {
	return &Descriptor{
		ID:         id,
		Version:    "1.0.0",
		Parameters: params,
		Request: RequestSpec{
			URL:    StaticURL(url),
			Method: StaticMethod(http.MethodPost),
			Body: func(p map[string]interface{}) (interface{}, error) {
				return p, nil
			},
		},
	}
}

type executorOption func(*Config)

func withSigner(s *InternalTokenSigner) executorOption {
	return func(c *Config) { c.Signer = s }
}

func withMetrics(m MetricsRecorder) executorOption {
	return func(c *Config) { c.Metrics = m }
}

func withFileOutputs(p FileOutputProcessor) executorOption {
	return func(c *Config) { c.FileOutputs = p }
}

func newTestExecutor(t *testing.T, baseURL string, descriptors []*Descriptor, opts ...executorOption) *ToolExecutor {
	t.Helper()
	registry := NewRegistry(nil, zerolog.Nop())
	for _, d := range descriptors {
		require.NoError(t, registry.Register(d))
	}
	cfg := Config{
		BaseURL:  baseURL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	te, err := New(cfg)
	require.NoError(t, err)
	return te
}

func newTestSigner(t *testing.T) *InternalTokenSigner {
	t.Helper()
	s, err := NewInternalTokenSigner("0123456789abcdef0123456789abcdef", "", time.Minute)
	require.NoError(t, err)
	return s
}
