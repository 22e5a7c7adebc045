package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/profzeller/p16-server-setup/internal/hardware"
)

type gpuMetrics struct {
	utilization *prometheus.GaugeVec
	memoryUsed  *prometheus.GaugeVec
	memoryTotal *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	powerDraw   *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metrics     *gpuMetrics
)

// getGpuMetrics returns the process-wide gauges, creating them on first
// use. promauto registers against the default registry, which tolerates
// each name exactly once.
func getGpuMetrics() *gpuMetrics {
	metricsOnce.Do(func() {
		metrics = newGpuMetrics()
	})
	return metrics
}

func newGpuMetrics() *gpuMetrics {
	return &gpuMetrics{
		utilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_utilization_percent",
			Help: "GPU compute utilization as reported by NVML.",
		}, []string{"gpu"}),
		memoryUsed: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_memory_used_mib",
			Help: "GPU memory in use, in MiB.",
		}, []string{"gpu"}),
		memoryTotal: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_memory_total_mib",
			Help: "Total GPU memory, in MiB.",
		}, []string{"gpu"}),
		temperature: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_temperature_celsius",
			Help: "GPU core temperature in degrees Celsius.",
		}, []string{"gpu"}),
		powerDraw: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpu_power_draw_watts",
			Help: "GPU board power draw in watts.",
		}, []string{"gpu"}),
	}
}

// Server exposes the live GPU dashboard, a JSON sample API and Prometheus
// metrics on localhost.
type Server struct {
	port    int
	storage *Storage
	metrics *gpuMetrics
	server  *http.Server

	mu     sync.RWMutex
	latest []hardware.GPUSample
	since  time.Time
}

// NewServer creates a dashboard server. storage may be nil when recording
// is disabled; the dashboard then shows live samples only.
func NewServer(port int, storage *Storage) *Server {
	return &Server{
		port:    port,
		storage: storage,
		metrics: getGpuMetrics(),
		since:   time.Now(),
	}
}

// Observe publishes one round of samples to the dashboard and the
// Prometheus gauges.
func (s *Server) Observe(samples []hardware.GPUSample) {
	s.mu.Lock()
	s.latest = samples
	s.mu.Unlock()

	for _, g := range samples {
		label := strconv.Itoa(g.Index)
		s.metrics.utilization.WithLabelValues(label).Set(float64(g.UtilizationPct))
		s.metrics.memoryUsed.WithLabelValues(label).Set(float64(g.MemoryUsedMiB))
		s.metrics.memoryTotal.WithLabelValues(label).Set(float64(g.MemoryTotalMiB))
		s.metrics.temperature.WithLabelValues(label).Set(float64(g.TemperatureC))
		s.metrics.powerDraw.WithLabelValues(label).Set(g.PowerDrawW)
	}
}

// Start launches the web server in a background goroutine.
func (s *Server) Start() error {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleDashboard).Methods("GET")
	router.HandleFunc("/api/samples", s.handleSamples).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Dashboard server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the web server down gracefully.
func (s *Server) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Addr returns the address the dashboard listens on.
func (s *Server) Addr() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	since := s.since
	s.mu.RUnlock()

	data := struct {
		GPUs      []hardware.GPUSample
		Since     string
		Recording bool
	}{
		GPUs:      latest,
		Since:     since.Format("2006-01-02 15:04:05"),
		Recording: s.storage != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		log.Printf("Failed to render dashboard: %v", err)
	}
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var records []Record
	if s.storage != nil {
		var err error
		records, err = s.storage.Last(limit)
		if err != nil {
			http.Error(w, "Failed to load samples", http.StatusInternalServerError)
			return
		}
	} else {
		s.mu.RLock()
		if s.latest != nil {
			records = []Record{{Timestamp: time.Now(), GPUs: s.latest}}
		}
		s.mu.RUnlock()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		log.Printf("Failed to encode samples: %v", err)
	}
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>GPU Monitor</title>
    <meta http-equiv="refresh" content="5">
    <style>
        body { font-family: monospace; margin: 20px; background: #1a1a2e; color: #eee; }
        h1 { color: #4ecca3; }
        .meta { color: #888; margin-bottom: 20px; }
        table { border-collapse: collapse; width: 100%; }
        th, td { text-align: left; padding: 8px 14px; border-bottom: 1px solid #333; }
        th { color: #4ecca3; }
        .bar { display: inline-block; height: 10px; background: #4ecca3; vertical-align: middle; }
        .hot { color: #e84545; }
        .links { margin-top: 20px; }
        .links a { color: #4ecca3; margin-right: 16px; }
    </style>
</head>
<body>
    <h1>GPU Monitor</h1>
    <div class="meta">monitoring since {{.Since}}{{if .Recording}} &middot; recording enabled{{end}} &middot; refreshes every 5s</div>
    {{if .GPUs}}
    <table>
        <tr>
            <th>GPU</th>
            <th>Name</th>
            <th>Utilization</th>
            <th>Memory</th>
            <th>Temp</th>
            <th>Power</th>
        </tr>
        {{range .GPUs}}
        <tr>
            <td>{{.Index}}</td>
            <td>{{.Name}}</td>
            <td><span class="bar" style="width: {{.UtilizationPct}}px"></span> {{.UtilizationPct}}%</td>
            <td>{{.MemoryUsedMiB}} / {{.MemoryTotalMiB}} MiB</td>
            <td{{if ge .TemperatureC 80}} class="hot"{{end}}>{{.TemperatureC}}&deg;C</td>
            <td>{{printf "%.1f" .PowerDrawW}} W</td>
        </tr>
        {{end}}
    </table>
    {{else}}
    <p>No samples yet.</p>
    {{end}}
    <div class="links">
        <a href="/api/samples">JSON</a>
        <a href="/metrics">Prometheus metrics</a>
    </div>
</body>
</html>`))
