package stats

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func MilisecondsElapsed(from time.Time) float64 {
	return float64(time.Since(from)) / float64(time.Millisecond)
}

var (
	prometheusMetricsFactory promauto.Factory              = promauto.With(prometheus.DefaultRegisterer)
	counters                 map[string]prometheus.Counter = map[string]prometheus.Counter{
		"processesSubmitted": prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
			Name: "shellstream_processes_submitted_total",
			Help: "The number of shell commands submitted.",
		}),
		"streamReadErrors": prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
			Name: "shellstream_stream_read_errors_total",
			Help: "The number of failed reads on a process output stream.",
		}),
	}
	counterVecs map[string]*prometheus.CounterVec = map[string]*prometheus.CounterVec{
		"processesFinished": prometheusMetricsFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "shellstream_processes_finished_total",
			Help: "The number of finished processes, by result.",
		}, []string{"result"}),
		"outputBytes": prometheusMetricsFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "shellstream_output_bytes_total",
			Help: "The number of bytes captured from process output streams.",
		}, []string{"output_stream"}),
	}
	gauges map[string]prometheus.Gauge = map[string]prometheus.Gauge{
		"runningProcesses": prometheusMetricsFactory.NewGauge(prometheus.GaugeOpts{
			Name: "shellstream_running_processes",
			Help: "The number of processes not yet finished.",
		}),
		"activeWatchers": prometheusMetricsFactory.NewGauge(prometheus.GaugeOpts{
			Name: "shellstream_active_watchers",
			Help: "The number of clients currently following a process output.",
		}),
	}
	histograms map[string]prometheus.Histogram = map[string]prometheus.Histogram{
		"processRunTime": prometheusMetricsFactory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shellstream_process_run_time_milliseconds",
			Help:    "The time elapsed between a process submission and its exit.",
			Buckets: []float64{10, 100, 1000, 10000, 60000, 600000},
		}),
	}
	histogramVecs map[string]*prometheus.HistogramVec = map[string]*prometheus.HistogramVec{
		"watcherDuration": prometheusMetricsFactory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shellstream_watcher_duration_milliseconds",
			Help:    "The time elapsed following a process output.",
			Buckets: []float64{10, 100, 1000, 10000, 60000},
		}, []string{"transport", "result"}),
	}
)

func HistogramVec(name string) *prometheus.HistogramVec {
	return histogramVecs[name]
}

func CounterVec(name string) *prometheus.CounterVec {
	return counterVecs[name]
}

func Histogram(name string) prometheus.Histogram {
	return histograms[name]
}
func Gauge(name string) prometheus.Gauge {
	return gauges[name]
}
func Counter(name string) prometheus.Counter {
	return counters[name]
}

func ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
}
