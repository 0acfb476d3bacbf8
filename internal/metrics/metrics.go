package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds the supervisor's Prometheus collectors. Each supervisor owns
// one; a nil *Set is valid and records nothing.
type Set struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	escalations       prometheus.Counter
	running           prometheus.Gauge
	cpuPercent        prometheus.Gauge
	memoryRSS         prometheus.Gauge
}

// NewSet creates unregistered collectors.
func NewSet() *Set {
	return &Set{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "unicornguard",
				Subsystem: "lifecycle",
				Name:      "operations_total",
				Help:      "Number of lifecycle operations by outcome.",
			}, []string{"op", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "unicornguard",
				Subsystem: "lifecycle",
				Name:      "operation_duration_seconds",
				Help:      "Wall time spent in lifecycle operations, including the stop wait.",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			}, []string{"op"},
		),
		escalations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "unicornguard",
				Subsystem: "lifecycle",
				Name:      "escalations_total",
				Help:      "Number of times a graceful stop timed out and the kill signal was sent.",
			},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "unicornguard",
				Subsystem: "server",
				Name:      "running",
				Help:      "1 when the supervised server was alive at the last observation.",
			},
		),
		cpuPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "unicornguard",
				Subsystem: "server",
				Name:      "cpu_percent",
				Help:      "CPU usage of the server master process.",
			},
		),
		memoryRSS: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "unicornguard",
				Subsystem: "server",
				Name:      "memory_rss_bytes",
				Help:      "Resident set size of the server master process.",
			},
		),
	}
}

// Register registers the collectors with r. It is safe to call repeatedly
// and with several registerers. When r already holds equivalent collectors
// (another Set registered first) the Set adopts them, so every Set
// registered with r reports into what r exports.
func (s *Set) Register(r prometheus.Registerer) error {
	if r == nil {
		return errors.New("nil registerer")
	}
	var err error
	if s.operations, err = register(r, s.operations); err != nil {
		return err
	}
	if s.operationDuration, err = register(r, s.operationDuration); err != nil {
		return err
	}
	if s.escalations, err = register(r, s.escalations); err != nil {
		return err
	}
	if s.running, err = register(r, s.running); err != nil {
		return err
	}
	if s.cpuPercent, err = register(r, s.cpuPercent); err != nil {
		return err
	}
	if s.memoryRSS, err = register(r, s.memoryRSS); err != nil {
		return err
	}
	return nil
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	err := r.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("metric already registered with a different type: %w", err)
	}
	return existing, nil
}

// Handler serves the metrics gathered by g, or by the default gatherer
// when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (s *Set) ObserveOperation(op, outcome string, seconds float64) {
	if s == nil {
		return
	}
	s.operations.WithLabelValues(op, outcome).Inc()
	s.operationDuration.WithLabelValues(op).Observe(seconds)
}

func (s *Set) IncEscalation() {
	if s != nil {
		s.escalations.Inc()
	}
}

func (s *Set) SetRunning(alive bool) {
	if s == nil {
		return
	}
	v := 0.0
	if alive {
		v = 1
	}
	s.running.Set(v)
}

// ObserveUsage publishes a resource sample.
func (s *Set) ObserveUsage(u ServerUsage) {
	if s == nil {
		return
	}
	s.cpuPercent.Set(u.CPUPercent)
	s.memoryRSS.Set(float64(u.MemoryRSS))
}
