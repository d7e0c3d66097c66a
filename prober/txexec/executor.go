// Package txexec submits the probe transfer and resolves its consensus outcome.
package txexec

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/yaron8/tx-latency-prober/prober/ledger"
)

const (
	// DefaultMaxReceiptAttempts bounds receipt queries per submission.
	DefaultMaxReceiptAttempts = 3
	// DefaultAmountTinybar is 10 hbar.
	DefaultAmountTinybar int64 = 10 * 100_000_000
)

// Error classes, checked with errors.Is.
var (
	ErrSubmission          = errors.New("transaction submission failed")
	ErrReceiptQuery        = errors.New("receipt query failed")
	ErrUnresolvedConsensus = errors.New("unresolved consensus")
	ErrConsensusRejected   = errors.New("consensus rejected")
	ErrRecordFetch         = errors.New("record fetch failed")
)

// Config tunes the executor. Zero values use the defaults.
type Config struct {
	AmountTinybar      int64
	MaxReceiptAttempts int
	// RetryDelay is a fixed pause between receipt queries.
	RetryDelay time.Duration
}

// Outcome is what one execution observed. StartTime is set as soon as the
// attempt begins; the rest only once the matching step succeeded.
type Outcome struct {
	TransactionID   string
	Status          ledger.Status
	StartTime       time.Time
	EndTime         time.Time
	ReceiptAttempts int
	Record          ledger.SettledRecord
}

// Latency is EndTime-StartTime, zero when the transfer did not resolve.
func (o Outcome) Latency() time.Duration {
	if o.EndTime.IsZero() {
		return 0
	}
	return o.EndTime.Sub(o.StartTime)
}

type Executor struct {
	client ledger.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewExecutor(client ledger.Client, cfg Config, logger *slog.Logger) *Executor {
	if cfg.AmountTinybar <= 0 {
		cfg.AmountTinybar = DefaultAmountTinybar
	}
	if cfg.MaxReceiptAttempts <= 0 {
		cfg.MaxReceiptAttempts = DefaultMaxReceiptAttempts
	}
	return &Executor{
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Execute submits one zero-net-value transfer and waits for its receipt.
// The returned Outcome is populated up to the step that failed.
func (e *Executor) Execute(ctx context.Context) (Outcome, error) {
	out := Outcome{StartTime: e.now()}

	sub, err := e.client.SubmitTransfer(ctx, e.cfg.AmountTinybar)
	if err != nil {
		return out, errors.Mark(errors.Wrap(err, "submit transfer"), ErrSubmission)
	}

	status, attempts, err := e.resolve(ctx, sub)
	out.Status = status
	out.ReceiptAttempts = attempts
	if err != nil {
		return out, err
	}

	out.EndTime = e.now()
	out.TransactionID = sub.TransactionID

	record, err := e.client.QueryRecord(ctx, sub)
	if err != nil {
		return out, errors.Mark(errors.Wrapf(err, "get record of %s", sub.TransactionID), ErrRecordFetch)
	}
	out.Record = record

	return out, nil
}

// resolve polls the receipt until it leaves UNKNOWN or the attempts run out.
func (e *Executor) resolve(ctx context.Context, sub ledger.Submission) (ledger.Status, int, error) {
	status := ledger.StatusUnknown
	attempts := 0

	for attempts < e.cfg.MaxReceiptAttempts {
		if attempts > 0 {
			if err := e.pause(ctx); err != nil {
				return status, attempts, errors.Mark(errors.Wrap(err, "waiting for receipt"), ErrReceiptQuery)
			}
		}

		attempts++
		s, err := e.client.QueryReceipt(ctx, sub)
		if err != nil {
			return status, attempts, errors.Mark(errors.Wrapf(err, "get receipt of %s", sub.TransactionID), ErrReceiptQuery)
		}
		status = s
		if status != ledger.StatusUnknown {
			break
		}
		e.logger.Debug("receipt status unknown", "tx_id", sub.TransactionID, "attempt", attempts)
	}

	switch status {
	case ledger.StatusSuccess:
		return status, attempts, nil
	case ledger.StatusUnknown:
		return status, attempts, errors.Mark(
			errors.Newf("unresolved consensus: receipt status is still %s after %d queries", status, attempts),
			ErrUnresolvedConsensus)
	default:
		return status, attempts, errors.Mark(
			errors.Newf("consensus status in transaction receipt is %s", status),
			ErrConsensusRejected)
	}
}

func (e *Executor) pause(ctx context.Context) error {
	if e.cfg.RetryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
