package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/yaron8/tx-latency-prober/logi"
	"github.com/yaron8/tx-latency-prober/telemetrics"
)

var sample = telemetrics.MeasurementRecord{
	ExecutedAt:    time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC).UnixMilli(),
	TransactionID: "0.0.1001@1709296245.000000001",
	StartTime:     time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC).UnixMilli() + 120,
	EndTime:       time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC).UnixMilli() + 3120,
	ChainID:       295,
	Latency:       3000,
	NativeFee:     0.00084,
	ReferenceFee:  0.00006,
	PingTime:      42,
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "20240301_123045_295.parquet", FileName(sample))
}

func TestEncodeParquet_SingleRow(t *testing.T) {
	data, err := EncodeParquet(sample)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PAR1")))

	reader := parquet.NewGenericReader[telemetrics.MeasurementRecord](bytes.NewReader(data))
	defer reader.Close()
	assert.Equal(t, int64(1), reader.NumRows())

	rows := make([]telemetrics.MeasurementRecord, 1)
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("read parquet: %v", err)
	}
	require.Equal(t, 1, n)
	assert.Equal(t, sample, rows[0])
}

func TestEncodeParquet_TimeColumnsAreTimestampMillis(t *testing.T) {
	data, err := EncodeParquet(sample)
	require.NoError(t, err)

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	schema := file.Schema().String()

	for _, column := range []string{"executedAt", "startTime", "endTime"} {
		assert.Contains(t, schema, "int64 "+column+" (TIMESTAMP(isAdjustedToUTC=true,unit=MILLIS))")
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Sink_PutsParquetObject(t *testing.T) {
	putter := &fakePutter{}
	sink := &S3Sink{client: putter, bucket: "latency"}

	require.NoError(t, sink.Deliver(context.Background(), sample))

	assert.Equal(t, "latency", *putter.input.Bucket)
	assert.Equal(t, "20240301_123045_295.parquet", *putter.input.Key)
	assert.Equal(t, contentType, *putter.input.ContentType)
	assert.True(t, bytes.HasPrefix(putter.body, []byte("PAR1")))
}

func TestS3Sink_Error(t *testing.T) {
	sink := &S3Sink{client: &fakePutter{err: errors.New("AccessDenied")}, bucket: "latency"}

	err := sink.Deliver(context.Background(), sample)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), "")
	assert.EqualError(t, err, "undefined bucket name")
}

type bufferObject struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (b *bufferObject) Close() error {
	b.closed = true
	return b.closeErr
}

func TestGCSSink_WritesUnderPrefix(t *testing.T) {
	obj := &bufferObject{}
	var gotName string
	sink := &GCSSink{
		newWriter: func(_ context.Context, name string) io.WriteCloser {
			gotName = name
			return obj
		},
		bucket: "latency",
		prefix: "tx-latency-measurement/hedera",
	}

	require.NoError(t, sink.Deliver(context.Background(), sample))

	assert.Equal(t, "tx-latency-measurement/hedera/20240301_123045_295.parquet", gotName)
	assert.True(t, obj.closed)
	assert.True(t, bytes.HasPrefix(obj.Bytes(), []byte("PAR1")))
}

func TestGCSSink_FinalizeError(t *testing.T) {
	sink := &GCSSink{
		newWriter: func(context.Context, string) io.WriteCloser {
			return &bufferObject{closeErr: errors.New("googleapi: 403")}
		},
		bucket: "latency",
	}

	err := sink.Deliver(context.Background(), sample)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNewGCSSink_RequiresParameters(t *testing.T) {
	_, err := NewGCSSink(context.Background(), GCSConfig{Bucket: "b"})
	assert.EqualError(t, err, "undefined parameters")
}

func TestGCSClientOptions_KeyFileOnly(t *testing.T) {
	opts := gcsClientOptions(GCSConfig{ProjectID: "latency-prj", KeyFilePath: "/secrets/key.json", Bucket: "b"})

	assert.Equal(t, []option.ClientOption{option.WithCredentialsFile("/secrets/key.json")}, opts)
}

type stubSink struct {
	err         error
	ctxErr      error
	hadDeadline bool
	delivers    int
}

func (s *stubSink) Name() string { return "stub" }

func (s *stubSink) Deliver(ctx context.Context, _ telemetrics.MeasurementRecord) error {
	s.delivers++
	s.ctxErr = ctx.Err()
	_, s.hadDeadline = ctx.Deadline()
	return s.err
}

func TestReporter_DeliversWithoutFallback(t *testing.T) {
	var out bytes.Buffer
	sink := &stubSink{}
	r := NewReporter(sink, &out, time.Second, logi.Discard(), nil)

	err := r.Report(context.Background(), sample)

	require.NoError(t, err)
	assert.Equal(t, 1, sink.delivers)
	assert.Empty(t, out.String())
}

func TestReporter_FailurePrintsFullRecord(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&stubSink{err: errors.New("bucket gone")}, &out, time.Second, logi.Discard(), nil)

	err := r.Report(context.Background(), sample)

	require.Error(t, err)
	var printed telemetrics.MeasurementRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &printed))
	assert.Equal(t, sample, printed)
}

func TestReporter_DeliveryOutlivesCancelledCycle(t *testing.T) {
	var out bytes.Buffer
	sink := &stubSink{}
	r := NewReporter(sink, &out, time.Second, logi.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Report(ctx, sample))

	assert.NoError(t, sink.ctxErr)
	assert.True(t, sink.hadDeadline)
}
