package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yaron8/tx-latency-prober/prober/ledger"
)

type stubRate struct {
	rate float64
	err  error
}

func (s stubRate) NativeToReference(context.Context) (float64, error) {
	return s.rate, s.err
}

func TestCompute_ConvertsWithRate(t *testing.T) {
	cost := Compute(context.Background(), ledger.SettledRecord{Fee: 0.0008}, stubRate{rate: 0.25})

	assert.NoError(t, cost.RateErr)
	assert.Equal(t, 0.0008, cost.NativeFee)
	assert.Equal(t, 0.0008*0.25, cost.ReferenceFee)
	assert.Equal(t, 0.25, cost.Rate)
}

func TestCompute_RateFailureKeepsNativeFee(t *testing.T) {
	rateErr := errors.New("price api down")

	cost := Compute(context.Background(), ledger.SettledRecord{Fee: 0.0008}, stubRate{err: rateErr})

	assert.ErrorIs(t, cost.RateErr, rateErr)
	assert.Equal(t, 0.0008, cost.NativeFee)
	assert.Zero(t, cost.ReferenceFee)
	assert.Zero(t, cost.Rate)
}
