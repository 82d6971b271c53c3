package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline and dashboard metrics in its own registry, so
// several instances (one per test, say) never collide.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastClose     *prometheus.GaugeVec
	forecastFinal *prometheus.GaugeVec
	modelRMSE     *prometheus.GaugeVec
	outlookScore  *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

// New creates a recorder with the Go runtime collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := factory{reg: reg}

	r := &Recorder{
		registry: reg,
		stageDuration: f.histogram(prometheus.HistogramOpts{
			Name:    "stockcast_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, "stage"),
		runsTotal: f.counter(prometheus.CounterOpts{
			Name: "stockcast_runs_total",
			Help: "Pipeline runs by model and outcome",
		}, "model", "status"),
		errorsTotal: f.counter(prometheus.CounterOpts{
			Name: "stockcast_errors_total",
			Help: "Errors by kind",
		}, "kind"),
		lastClose: f.gauge(prometheus.GaugeOpts{
			Name: "stockcast_last_close",
			Help: "Last observed close per symbol",
		}, "symbol"),
		forecastFinal: f.gauge(prometheus.GaugeOpts{
			Name: "stockcast_forecast_final",
			Help: "Final projected close per symbol and model",
		}, "symbol", "model"),
		modelRMSE: f.gauge(prometheus.GaugeOpts{
			Name: "stockcast_model_rmse",
			Help: "Held-out RMSE of the last evaluation",
		}, "symbol", "model"),
		outlookScore: f.gauge(prometheus.GaugeOpts{
			Name: "stockcast_outlook_score",
			Help: "Technical outlook total score",
		}, "symbol"),
		httpRequests: f.counter(prometheus.CounterOpts{
			Name: "stockcast_http_requests_total",
			Help: "Dashboard HTTP requests",
		}, "route", "method", "status"),
		httpDuration: f.histogram(prometheus.HistogramOpts{
			Name:    "stockcast_http_request_duration_seconds",
			Help:    "Dashboard HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, "route", "method", "class"),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockcast_http_in_flight_requests",
			Help: "Dashboard requests currently being served",
		}),
	}
	reg.MustRegister(r.httpInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

type factory struct{ reg prometheus.Registerer }


func (f factory) counter(opts prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.reg.MustRegister(c)
	return c
}

func (f factory) gauge(opts prometheus.GaugeOpts, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	f.reg.MustRegister(g)
	return g
}

func (f factory) histogram(opts prometheus.HistogramOpts, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.reg.MustRegister(h)
	return h
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveStage records how long a pipeline stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(model, status string) {
	r.runsTotal.WithLabelValues(model, status).Inc()
}

// RecordError counts an error of the given kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) SetLastClose(symbol string, v float64) {
	r.lastClose.WithLabelValues(symbol).Set(v)
}

func (r *Recorder) SetForecast(symbol, model string, final, rmse float64) {
	r.forecastFinal.WithLabelValues(symbol, model).Set(final)
	r.modelRMSE.WithLabelValues(symbol, model).Set(rmse)
}

func (r *Recorder) SetOutlookScore(symbol string, v float64) {
	r.outlookScore.WithLabelValues(symbol).Set(v)
}

// ObserveHTTP records one served request. route should be the templated path.
func (r *Recorder) ObserveHTTP(route, method string, status int, d time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(d.Seconds())
}

// InFlight adjusts the in-flight request gauge by delta.
func (r *Recorder) InFlight(delta float64) { r.httpInFlight.Add(delta) }

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
