package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rivergarden/training-portal/internal/platform/logger"
)

// Metrics is the process-wide Prometheus registry. Every method is a no-op on a nil receiver,
// so call sites use Current() without checking whether metrics are enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	progressSaves   *CounterVec
	saveLatency     *HistogramVec
	completions     *CounterVec
	playerSessions  *Gauge
	offlineSync     *CounterVec
	portalReachable *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init installs the global registry once. It returns nil when metrics are disabled.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("tp_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"tp_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("tp_api_inflight_requests", "In-flight API requests."),

		progressSaves: NewCounterVec("tp_progress_saves_total", "Progress writes by delivery type and outcome.", []string{"delivery", "outcome"}),
		saveLatency: NewHistogramVec(
			"tp_progress_save_duration_seconds",
			"Progress write latency in seconds by outcome.",
			[]string{"outcome"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		),
		completions:     NewCounterVec("tp_course_completions_total", "Mark-complete calls by delivery type and result.", []string{"delivery", "result"}),
		playerSessions:  NewGauge("tp_player_sessions_open", "Open course player sessions."),
		offlineSync:     NewCounterVec("tp_offline_sync_records_total", "Offline progress records handled by a flush, by result.", []string{"result"}),
		portalReachable: NewGauge("tp_portal_reachable", "1 when the last connectivity probe reached the portal."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.progressSaves, m.saveLatency, m.completions,
		m.playerSessions, m.offlineSync, m.portalReachable,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveProgressSave(delivery, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.progressSaves.Inc(delivery, outcome)
	m.saveLatency.Observe(dur.Seconds(), outcome)
}

func (m *Metrics) IncCompletion(delivery, result string) {
	if m == nil {
		return
	}
	m.completions.Inc(delivery, result)
}

func (m *Metrics) SetPlayerSessions(n int) {
	if m == nil {
		return
	}
	m.playerSessions.Set(float64(n))
}

func (m *Metrics) AddOfflineSync(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.offlineSync.Add(float64(n), result)
}

func (m *Metrics) SetPortalReachable(ok bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	m.portalReachable.Set(v)
}
