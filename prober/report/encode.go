package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/parquet-go/parquet-go"

	"github.com/yaron8/tx-latency-prober/telemetrics"
)

// FileName is <YYYYMMDD_HHmmss>_<chainId>.parquet, stamped with the cycle start in UTC.
func FileName(record telemetrics.MeasurementRecord) string {
	stamp := time.UnixMilli(record.ExecutedAt).UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%d.parquet", stamp, record.ChainID)
}

// EncodeParquet writes the record as a single-row parquet file in memory.
func EncodeParquet(record telemetrics.MeasurementRecord) ([]byte, error) {
	var buf bytes.Buffer

	writer := parquet.NewGenericWriter[telemetrics.MeasurementRecord](&buf)
	if _, err := writer.Write([]telemetrics.MeasurementRecord{record}); err != nil {
		return nil, errors.Wrap(err, "write parquet row")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close parquet writer")
	}

	return buf.Bytes(), nil
}
