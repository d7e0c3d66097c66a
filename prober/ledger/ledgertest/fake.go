// Package ledgertest provides a scripted ledger.Client for tests.
package ledgertest

import (
	"context"
	"sync"

	"github.com/yaron8/tx-latency-prober/prober/ledger"
)

// Fake returns scripted answers and counts calls. Receipts are consumed in
// order; once exhausted the last entry repeats.
type Fake struct {
	mu sync.Mutex

	Account       string
	TransactionID string
	SubmitErr     error
	Receipts      []ledger.Status
	ReceiptErr    error
	Record        ledger.SettledRecord
	RecordErr     error
	Balance       float64
	BalanceErr    error
	PingErr       error

	submits       int
	receiptCalls  int
	recordCalls   int
	balanceCalls  int
	inFlight      int
	maxConcurrent int
}

// NewFake returns a fake that succeeds on the first receipt query.
func NewFake() *Fake {
	return &Fake{
		Account:       "0.0.1001",
		TransactionID: "0.0.1001@1709294400.000000001",
		Receipts:      []ledger.Status{ledger.StatusSuccess},
		Record:        ledger.SettledRecord{TransactionID: "0.0.1001@1709294400.000000001", Fee: 0.00084},
		Balance:       500,
	}
}

func (f *Fake) AccountID() string {
	return f.Account
}

func (f *Fake) SubmitTransfer(ctx context.Context, amountTinybar int64) (ledger.Submission, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.SubmitErr != nil {
		return ledger.Submission{}, f.SubmitErr
	}
	return ledger.NewSubmission(f.TransactionID, amountTinybar), nil
}

func (f *Fake) QueryReceipt(ctx context.Context, sub ledger.Submission) (ledger.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.receiptCalls
	f.receiptCalls++
	if f.ReceiptErr != nil {
		return "", f.ReceiptErr
	}
	if len(f.Receipts) == 0 {
		return ledger.StatusUnknown, nil
	}
	if idx >= len(f.Receipts) {
		idx = len(f.Receipts) - 1
	}
	return f.Receipts[idx], nil
}

func (f *Fake) QueryRecord(ctx context.Context, sub ledger.Submission) (ledger.SettledRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordCalls++
	if f.RecordErr != nil {
		return ledger.SettledRecord{}, f.RecordErr
	}
	return f.Record, nil
}

func (f *Fake) QueryBalance(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	return f.Balance, f.BalanceErr
}

func (f *Fake) Ping(ctx context.Context) error {
	return f.PingErr
}

// Submits returns the number of SubmitTransfer calls.
func (f *Fake) Submits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

// ReceiptCalls returns the number of QueryReceipt calls.
func (f *Fake) ReceiptCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receiptCalls
}

// RecordCalls returns the number of QueryRecord calls.
func (f *Fake) RecordCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordCalls
}

// BalanceCalls returns the number of QueryBalance calls.
func (f *Fake) BalanceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balanceCalls
}

// MaxConcurrentSubmits is the highest number of overlapping SubmitTransfer calls seen.
func (f *Fake) MaxConcurrentSubmits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxConcurrent
}

func (f *Fake) enter() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
	if f.inFlight > f.maxConcurrent {
		f.maxConcurrent = f.inFlight
	}
}

func (f *Fake) leave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
}

var _ ledger.Client = (*Fake)(nil)
