package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Tool metrics
	ToolExecutionsTotal      *prometheus.CounterVec
	ToolExecutionDuration    *prometheus.HistogramVec
	ToolExecutionErrorsTotal *prometheus.CounterVec

	// Collaborator metrics
	CredentialExchangesTotal *prometheus.CounterVec
	ProxyRequestsTotal       *prometheus.CounterVec
	MCPRequestsTotal         *prometheus.CounterVec

	// Inbound server metrics
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool", "route", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool", "route"},
		),
		ToolExecutionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_execution_errors_total",
				Help: "Total number of tool execution errors by kind",
			},
			[]string{"tool", "kind"},
		),

		CredentialExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credential_exchanges_total",
				Help: "Total number of credential exchanges",
			},
			[]string{"status"},
		),
		ProxyRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_requests_total",
				Help: "Total number of requests forwarded through the proxy, by HTTP status",
			},
			[]string{"status"},
		),
		MCPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_requests_total",
				Help: "Total number of MCP tool requests",
			},
			[]string{"server", "status"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"route", "code"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ToolExecutionsTotal)
	m.registry.MustRegister(m.ToolExecutionDuration)
	m.registry.MustRegister(m.ToolExecutionErrorsTotal)

	m.registry.MustRegister(m.CredentialExchangesTotal)
	m.registry.MustRegister(m.ProxyRequestsTotal)
	m.registry.MustRegister(m.MCPRequestsTotal)

	m.registry.MustRegister(m.HTTPRequestsTotal)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordExecution records one finished tool execution
func (m *Metrics) RecordExecution(toolID, route string, success bool, duration time.Duration) {
	m.ToolExecutionsTotal.WithLabelValues(toolID, route, status(success)).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolID, route).Observe(duration.Seconds())
}

// RecordError records a failed execution stage
func (m *Metrics) RecordError(toolID, kind string) {
	m.ToolExecutionErrorsTotal.WithLabelValues(toolID, kind).Inc()
}

// RecordCredentialExchange records a credential exchange outcome
func (m *Metrics) RecordCredentialExchange(success bool) {
	m.CredentialExchangesTotal.WithLabelValues(status(success)).Inc()
}

// RecordProxyRequest records a proxy response status, 0 for transport failures
func (m *Metrics) RecordProxyRequest(code int) {
	m.ProxyRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordMCPRequest records an MCP request outcome
func (m *Metrics) RecordMCPRequest(serverID string, success bool) {
	m.MCPRequestsTotal.WithLabelValues(serverID, status(success)).Inc()
}

// RecordHTTPRequest records an inbound HTTP request
func (m *Metrics) RecordHTTPRequest(route string, code int) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
