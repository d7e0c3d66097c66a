package telemetrics

import "time"

const unknownFailure = "unknown failure"

// Inputs collects everything one cycle observed.
type Inputs struct {
	ExecutedAt    time.Time
	ChainID       int64
	PingTime      time.Duration
	StartTime     time.Time
	EndTime       time.Time
	TransactionID string
	NativeFee     float64
	ReferenceFee  float64
	// Err is the first unrecoverable error of the cycle, nil on success.
	Err error
}

// Build assembles the record. It does no I/O.
//
// A failed cycle keeps executedAt, chainId, startTime and pingTime and zeroes
// the success fields. A successful cycle derives endTime from the elapsed
// monotonic time so latency is exactly endTime-startTime and never negative.
func Build(in Inputs) MeasurementRecord {
	rec := MeasurementRecord{
		ExecutedAt: in.ExecutedAt.UnixMilli(),
		ChainID:    in.ChainID,
		PingTime:   in.PingTime.Milliseconds(),
	}
	if !in.StartTime.IsZero() {
		rec.StartTime = in.StartTime.UnixMilli()
	}

	if in.Err != nil {
		rec.ErrorDescription = in.Err.Error()
		if rec.ErrorDescription == "" {
			rec.ErrorDescription = unknownFailure
		}
		return rec
	}
	if in.TransactionID == "" || in.StartTime.IsZero() || in.EndTime.IsZero() {
		rec.ErrorDescription = "cycle finished without a transaction id"
		return rec
	}

	elapsed := in.EndTime.Sub(in.StartTime).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}

	rec.TransactionID = in.TransactionID
	rec.EndTime = rec.StartTime + elapsed
	rec.Latency = rec.EndTime - rec.StartTime
	rec.NativeFee = in.NativeFee
	rec.ReferenceFee = in.ReferenceFee
	return rec
}
