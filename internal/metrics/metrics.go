// Package metrics collects per-run Prometheus metrics and writes them in
// the node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "provision"

// Recorder holds the metrics of one CLI run.
type Recorder struct {
	registry *prometheus.Registry

	deployDuration prometheus.Histogram
	deploys        *prometheus.CounterVec
	scriptExit     *prometheus.GaugeVec
	destroys       *prometheus.CounterVec
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		deployDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deploy_duration_seconds",
			Help:      "Time from server creation request until all steps ran.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200},
		}),
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deploys_total",
			Help:      "Deployments by result.",
		}, []string{"result"}),
		scriptExit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "script_exit_status",
			Help:      "Exit status of each deployed script.",
		}, []string{"script"}),
		destroys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "destroys_total",
			Help:      "Destroy requests by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.deployDuration, r.deploys, r.scriptExit, r.destroys)
	return r
}

// Registry is where provider client metrics are registered as well.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// DeployFinished records a finished deployment.
func (r *Recorder) DeployFinished(elapsed time.Duration, err error) {
	if err != nil {
		r.deploys.WithLabelValues("error").Inc()
		return
	}
	r.deploys.WithLabelValues("success").Inc()
	r.deployDuration.Observe(elapsed.Seconds())
}

// ScriptFinished records the exit status of a script.
func (r *Recorder) ScriptFinished(script string, exitStatus int) {
	r.scriptExit.WithLabelValues(script).Set(float64(exitStatus))
}

// DestroyFinished records a destroy request.
func (r *Recorder) DestroyFinished(_ string, destroyed bool, err error) {
	switch {
	case err != nil:
		r.destroys.WithLabelValues("error").Inc()
	case destroyed:
		r.destroys.WithLabelValues("destroyed").Inc()
	default:
		r.destroys.WithLabelValues("refused").Inc()
	}
}

// WriteToTextfile writes all metrics to path.
func (r *Recorder) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
