package searchmigrate

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/searchmigrate/state"
)

// Collector wraps Prometheus metrics for the migration manager. It owns
// its registry so integrators can mount the handler without clashing with
// process-wide collectors.
type Collector struct {
	registry *prometheus.Registry

	Runs           *prometheus.CounterVec
	Migrations     *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	CurrentVersion prometheus.Gauge
}

// NewCollector creates a Collector under the given namespace. An empty
// namespace defaults to "searchmigrate".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "searchmigrate"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "migration_runs_total",
		Help:      "Total number of migration runs by result",
	}, []string{"result"})

	c.Migrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "migrations_applied_total",
		Help:      "Total number of migration executions by type and result",
	}, []string{"type", "result"})

	c.Duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "migration_duration_seconds",
		Help:      "Duration of individual migration executions in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})

	c.CurrentVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "current_version",
		Help:      "Highest successfully completed versioned migration",
	})

	c.registry.MustRegister(c.Runs, c.Migrations, c.Duration, c.CurrentVersion)
	return c
}

// Registry returns the collector's Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome of one RunMigrations call.
func (c *Collector) ObserveRun(result Result, _ time.Duration) {
	c.Runs.WithLabelValues(result.String()).Inc()
}

// ObserveMigration records the outcome and duration of one migration
// execution.
func (c *Collector) ObserveMigration(typ state.MigrationType, result Result, elapsed time.Duration) {
	c.Migrations.WithLabelValues(typ.String(), result.String()).Inc()
	c.Duration.WithLabelValues(typ.String()).Observe(elapsed.Seconds())
}

// SetCurrentVersion records the current schema version.
func (c *Collector) SetCurrentVersion(version int) {
	c.CurrentVersion.Set(float64(version))
}
