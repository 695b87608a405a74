package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberbrosec/cyberbro-web/internal/version"
)

type ServerMetrics struct {
	reg                    *prometheus.Registry
	handler                http.Handler
	inflight               prometheus.Gauge
	reqTotal               *prometheus.CounterVec
	reqDur                 *prometheus.HistogramVec
	respBytes              *prometheus.HistogramVec
	httpPanicTotal         prometheus.Counter
	buildInfo              *prometheus.GaugeVec
	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	errorsTotal *prometheus.CounterVec

	profilingActive prometheus.Gauge

	// domain metrics
	contactSubmissionsTotal *prometheus.CounterVec
	mailDispatchTotal       *prometheus.CounterVec
	draftFallbackTotal      prometheus.Counter
	scamChecksTotal         *prometheus.CounterVec
	windowDeniedTotal       *prometheus.CounterVec
	kvErrorsTotal           *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_capacity_total",
			Help: "Total number of times rate limiter capacity reached",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		contactSubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact form submissions by outcome",
		}, []string{"outcome"}),
		mailDispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_dispatch_total",
			Help: "Outbound transactional mail attempts by status",
		}, []string{"status"}),
		draftFallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "draft_fallback_total",
			Help: "Reply drafts that fell back to the static template",
		}),
		scamChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scam_checks_total",
			Help: "Scam checker submissions by detected scenario",
		}, []string{"scenario"}),
		windowDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feature_rate_limited_total",
			Help: "Form submissions rejected by the per-feature rate window",
		}, []string{"feature"}),
		kvErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstore_errors_total",
			Help: "Key-value store errors by operation",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.errorsTotal,
		m.profilingActive,
		m.contactSubmissionsTotal,
		m.mailDispatchTotal,
		m.draftFallbackTotal,
		m.scamChecksTotal,
		m.windowDeniedTotal,
		m.kvErrorsTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func (m *ServerMetrics) IncContactSubmission(outcome string) {
	m.contactSubmissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) IncMailDispatch(status string) {
	m.mailDispatchTotal.WithLabelValues(status).Inc()
}

func (m *ServerMetrics) IncDraftFallback() {
	m.draftFallbackTotal.Inc()
}

func (m *ServerMetrics) IncScamCheck(scenario string) {
	m.scamChecksTotal.WithLabelValues(scenario).Inc()
}

func (m *ServerMetrics) IncWindowDenied(feature string) {
	m.windowDeniedTotal.WithLabelValues(feature).Inc()
}

func (m *ServerMetrics) IncKVError(op string) {
	m.kvErrorsTotal.WithLabelValues(op).Inc()
}
