// Package metrics holds the Prometheus collectors of the prober.
// All methods are safe to call on a nil *Collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "txprober"

// Outcome labels of a cycle.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Collector struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	latency         prometheus.Histogram
	receiptAttempts prometheus.Histogram
	nativeFee       prometheus.Gauge
	referenceFee    prometheus.Gauge
	balance         prometheus.Gauge
	skippedTicks    prometheus.Counter
	reportFailures  *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	rateFailures    prometheus.Counter
}

// NewCollector registers every collector on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Measurement cycles by outcome",
		}, []string{"outcome"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transaction_latency_seconds",
			Help:      "Submit to consensus receipt latency",
			Buckets:   []float64{0.5, 1, 2, 3, 4, 5, 7.5, 10, 15, 30, 60},
		}),
		receiptAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receipt_attempts",
			Help:      "Receipt queries needed per submission",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		nativeFee: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_native_fee",
			Help:      "Fee of the last successful probe in native units",
		}),
		referenceFee: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reference_fee",
			Help:      "Fee of the last successful probe in the reference currency",
		}),
		balance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_balance",
			Help:      "Operator account balance in native units",
		}),
		skippedTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_ticks_total",
			Help:      "Ticks skipped because a cycle was still running",
		}),
		reportFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_failures_total",
			Help:      "Records that fell back to local output",
		}, []string{"backend"}),
		alerts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_alerts_total",
			Help:      "Balance alerts by delivery result",
		}, []string{"result"}),
		rateFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_failures_total",
			Help:      "Exchange rate fetch failures",
		}),
	}
}

// Registry is served on /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}

// ObserveCycle records one finished cycle.
func (c *Collector) ObserveCycle(succeeded bool, latencyMs int64, nativeFee, referenceFee float64) {
	if c == nil {
		return
	}
	if !succeeded {
		c.cycles.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	c.cycles.WithLabelValues(OutcomeSuccess).Inc()
	c.latency.Observe(float64(latencyMs) / 1000)
	c.nativeFee.Set(nativeFee)
	c.referenceFee.Set(referenceFee)
}

func (c *Collector) ObserveReceiptAttempts(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.receiptAttempts.Observe(float64(n))
}

func (c *Collector) SetBalance(v float64) {
	if c == nil {
		return
	}
	c.balance.Set(v)
}

func (c *Collector) IncSkippedTick() {
	if c == nil {
		return
	}
	c.skippedTicks.Inc()
}

func (c *Collector) IncReportFailure(backend string) {
	if c == nil {
		return
	}
	c.reportFailures.WithLabelValues(backend).Inc()
}

func (c *Collector) IncAlert(delivered bool) {
	if c == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	c.alerts.WithLabelValues(result).Inc()
}

func (c *Collector) IncRateFailure() {
	if c == nil {
		return
	}
	c.rateFailures.Inc()
}
