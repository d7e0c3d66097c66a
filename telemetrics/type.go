package telemetrics

// MeasurementRecord is one row of probe telemetry. It is passed by value so the
// copy handed to a reporter can never be changed by the cycle that built it.
// Timestamps are unix milliseconds; Latency and PingTime are milliseconds.
type MeasurementRecord struct {
	ExecutedAt         int64   `json:"executedAt" parquet:"executedAt,timestamp(millisecond)"`
	TransactionID      string  `json:"txhash" parquet:"txhash"`
	StartTime          int64   `json:"startTime" parquet:"startTime,timestamp(millisecond)"`
	EndTime            int64   `json:"endTime" parquet:"endTime,timestamp(millisecond)"`
	ChainID            int64   `json:"chainId" parquet:"chainId"`
	Latency            int64   `json:"latency" parquet:"latency"`
	ErrorDescription   string  `json:"error" parquet:"error"`
	NativeFee          float64 `json:"txFee" parquet:"txFee"`
	ReferenceFee       float64 `json:"txFeeInUSD" parquet:"txFeeInUSD"`
	BlockResourceUsage int64   `json:"resourceUsedOfLatestBlock" parquet:"resourceUsedOfLatestBlock"`
	BlockTxCount       int64   `json:"numOfTxInLatestBlock" parquet:"numOfTxInLatestBlock"`
	PingTime           int64   `json:"pingTime" parquet:"pingTime"`
}

// Succeeded reports whether the record is on the success branch: no error,
// a transaction id and a non-negative latency.
func (r MeasurementRecord) Succeeded() bool {
	return r.ErrorDescription == "" && r.TransactionID != "" && r.Latency >= 0
}

// GetColumns returns the column names in table order.
func GetColumns() []string {
	return []string{
		"executedAt",
		"txhash",
		"startTime",
		"endTime",
		"chainId",
		"latency",
		"error",
		"txFee",
		"txFeeInUSD",
		"resourceUsedOfLatestBlock",
		"numOfTxInLatestBlock",
		"pingTime"}
}
