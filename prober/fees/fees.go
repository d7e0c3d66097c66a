// Package fees derives the cost of a probe transaction.
package fees

import (
	"context"

	"github.com/yaron8/tx-latency-prober/prober/ledger"
)

// RateSource returns the native-to-reference exchange rate.
type RateSource interface {
	NativeToReference(ctx context.Context) (float64, error)
}

// Cost is the fee in native and reference units. RateErr is set when the rate
// could not be fetched; ReferenceFee is then zero and NativeFee still valid.
type Cost struct {
	NativeFee    float64
	ReferenceFee float64
	Rate         float64
	RateErr      error
}

// Compute never fails the cycle: a missing rate only degrades ReferenceFee.
func Compute(ctx context.Context, record ledger.SettledRecord, rates RateSource) Cost {
	cost := Cost{NativeFee: record.Fee}

	rate, err := rates.NativeToReference(ctx)
	if err != nil {
		cost.RateErr = err
		return cost
	}

	cost.Rate = rate
	cost.ReferenceFee = cost.NativeFee * rate
	return cost
}
