// Package pipeline runs one measurement cycle end to end.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/yaron8/tx-latency-prober/metrics"
	"github.com/yaron8/tx-latency-prober/prober/fees"
	"github.com/yaron8/tx-latency-prober/prober/health"
	"github.com/yaron8/tx-latency-prober/prober/ledger"
	"github.com/yaron8/tx-latency-prober/prober/txexec"
	"github.com/yaron8/tx-latency-prober/telemetrics"
)

// Reporter takes ownership of a finished record.
type Reporter interface {
	Report(ctx context.Context, record telemetrics.MeasurementRecord) error
}

type Pipeline struct {
	client   ledger.Client
	executor *txexec.Executor
	monitor  *health.Monitor
	rates    fees.RateSource
	reporter Reporter
	chainID  int64
	logger   *slog.Logger
	metrics  *metrics.Collector
	now      func() time.Time

	mu   sync.RWMutex
	last *telemetrics.MeasurementRecord
}

type Deps struct {
	Client   ledger.Client
	Executor *txexec.Executor
	Monitor  *health.Monitor
	Rates    fees.RateSource
	Reporter Reporter
	ChainID  int64
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

func New(d Deps) *Pipeline {
	return &Pipeline{
		client:   d.Client,
		executor: d.Executor,
		monitor:  d.Monitor,
		rates:    d.Rates,
		reporter: d.Reporter,
		chainID:  d.ChainID,
		logger:   d.Logger,
		metrics:  d.Metrics,
		now:      time.Now,
	}
}

// RunCycle measures once and reports the record. Ledger errors end up in the
// record's error field; nothing is returned to the scheduler.
func (p *Pipeline) RunCycle(ctx context.Context) telemetrics.MeasurementRecord {
	logger := p.logger.With("cycle_id", uuid.NewString())

	in := p.measure(ctx, logger)
	record := telemetrics.Build(in)

	p.metrics.ObserveCycle(record.Succeeded(), record.Latency, record.NativeFee, record.ReferenceFee)
	if record.Succeeded() {
		logger.Info("Measurement succeeded",
			"tx_id", record.TransactionID,
			"latency_ms", record.Latency,
			"fee", record.NativeFee,
			"fee_reference", record.ReferenceFee,
			"ping_ms", record.PingTime)
	} else {
		logger.Error("failed to execute.", "error", record.ErrorDescription)
	}

	p.remember(record)

	// reporting failures are handled by the reporter
	_ = p.reporter.Report(ctx, record)

	return record
}

// Last returns the most recent record, if any.
func (p *Pipeline) Last() (telemetrics.MeasurementRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return telemetrics.MeasurementRecord{}, false
	}
	return *p.last, true
}

func (p *Pipeline) measure(ctx context.Context, logger *slog.Logger) telemetrics.Inputs {
	in := telemetrics.Inputs{
		ExecutedAt: p.now(),
		ChainID:    p.chainID,
	}

	pingStart := p.now()
	if err := p.client.Ping(ctx); err != nil {
		in.Err = errors.Wrap(err, "network version info query")
		return in
	}
	in.PingTime = p.now().Sub(pingStart)

	// side channel; never fails the cycle
	if res := p.monitor.Check(ctx); res.Err == nil {
		logger.Debug("Balance checked", "balance", res.Balance, "below_floor", res.BelowFloor, "alerted", res.Alerted)
	}

	out, err := p.executor.Execute(ctx)
	p.metrics.ObserveReceiptAttempts(out.ReceiptAttempts)
	in.StartTime = out.StartTime
	if err != nil {
		in.Err = err
		return in
	}
	in.EndTime = out.EndTime
	in.TransactionID = out.TransactionID

	cost := fees.Compute(ctx, out.Record, p.rates)
	if cost.RateErr != nil {
		p.metrics.IncRateFailure()
		logger.Warn("Error fetching exchange rate, reference fee left at zero", "error", cost.RateErr)
	}
	in.NativeFee = cost.NativeFee
	in.ReferenceFee = cost.ReferenceFee

	return in
}

func (p *Pipeline) remember(record telemetrics.MeasurementRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &record
}
