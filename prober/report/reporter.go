// Package report encodes measurement records and delivers them to storage.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/yaron8/tx-latency-prober/metrics"
	"github.com/yaron8/tx-latency-prober/telemetrics"
)

const defaultDeliveryTimeout = time.Minute

// Reporter hands each record to its sink and prints it when delivery fails.
type Reporter struct {
	sink     Sink
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Collector
	mu       sync.Mutex
	fallback io.Writer
}

func NewReporter(sink Sink, fallback io.Writer, timeout time.Duration, logger *slog.Logger, m *metrics.Collector) *Reporter {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Reporter{
		sink:     sink,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		fallback: fallback,
	}
}

// Report delivers the record. Delivery ignores ctx cancellation and is bounded
// by the reporter timeout. On error the record is printed to the fallback writer
// and the error is returned.
func (r *Reporter) Report(ctx context.Context, record telemetrics.MeasurementRecord) error {
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	err := r.sink.Deliver(deliverCtx, record)
	if err == nil {
		r.logger.Info("Record delivered", "backend", r.sink.Name(), "executed_at", record.ExecutedAt)
		return nil
	}

	r.metrics.IncReportFailure(r.sink.Name())
	r.logger.Error(fmt.Sprintf("failed to %s.upload!! Printing instead!", r.sink.Name()), "error", err)
	r.print(record)
	return err
}

func (r *Reporter) print(record telemetrics.MeasurementRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		r.logger.Error("Error encoding record for fallback output", "error", err, "record", fmt.Sprintf("%+v", record))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.fallback, string(data)); err != nil {
		r.logger.Error("Error writing fallback output", "error", err, "record", string(data))
	}
}
