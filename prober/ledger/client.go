// Package ledger defines the ledger operations the prober consumes and the
// Hedera implementation of them.
package ledger

import "context"

// Status is a consensus receipt status code, e.g. "SUCCESS".
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	// StatusUnknown means consensus has not been reached yet.
	StatusUnknown Status = "UNKNOWN"
)

// Submission is the handle of a submitted transaction.
type Submission struct {
	TransactionID string
	// handle is implementation specific, e.g. the SDK response.
	handle any
}

// NewSubmission wraps an implementation handle.
func NewSubmission(transactionID string, handle any) Submission {
	return Submission{TransactionID: transactionID, handle: handle}
}

// Handle returns the implementation handle passed to NewSubmission.
func (s Submission) Handle() any {
	return s.handle
}

// SettledRecord is the post-consensus record of a transaction.
type SettledRecord struct {
	TransactionID string
	// Fee is the charged fee in hbar.
	Fee float64
}

// Client is the authenticated ledger session shared by every cycle.
// Implementations are used by one cycle at a time.
type Client interface {
	// SubmitTransfer builds, signs and submits a transfer of +amount and
	// -amount tinybar on the operator account.
	SubmitTransfer(ctx context.Context, amountTinybar int64) (Submission, error)
	QueryReceipt(ctx context.Context, sub Submission) (Status, error)
	QueryRecord(ctx context.Context, sub Submission) (SettledRecord, error)
	// QueryBalance returns the operator balance in hbar.
	QueryBalance(ctx context.Context) (float64, error)
	// Ping does a lightweight network info round trip.
	Ping(ctx context.Context) error
	AccountID() string
}
