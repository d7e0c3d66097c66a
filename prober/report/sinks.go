package report

import (
	"bytes"
	"context"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/option"

	"github.com/yaron8/tx-latency-prober/prober/dao"
	"github.com/yaron8/tx-latency-prober/telemetrics"
)

// Backend names accepted in UPLOAD_METHOD.
const (
	BackendAWS   = "AWS"
	BackendGCP   = "GCP"
	BackendRedis = "REDIS"
)

const contentType = "application/octet-stream"

// Sink delivers one record to a storage backend.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, record telemetrics.MeasurementRecord) error
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads parquet files to an S3 bucket.
type S3Sink struct {
	client objectPutter
	bucket string
}

// NewS3Sink resolves AWS credentials from the default chain.
func NewS3Sink(ctx context.Context, bucket string) (*S3Sink, error) {
	if bucket == "" {
		return nil, errors.New("undefined bucket name")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return &S3Sink{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Deliver(ctx context.Context, record telemetrics.MeasurementRecord) error {
	body, err := EncodeParquet(record)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(FileName(record)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return errors.Wrapf(err, "put s3://%s/%s", s.bucket, FileName(record))
}

// GCSSink uploads parquet files to a Cloud Storage bucket under a prefix.
type GCSSink struct {
	newWriter func(ctx context.Context, object string) io.WriteCloser
	bucket    string
	prefix    string
	closer    io.Closer
}

type GCSConfig struct {
	ProjectID   string
	KeyFilePath string
	Bucket      string
	// Prefix is prepended to object names, e.g. tx-latency-measurement/hedera.
	Prefix string
}

func NewGCSSink(ctx context.Context, cfg GCSConfig) (*GCSSink, error) {
	if cfg.ProjectID == "" || cfg.KeyFilePath == "" || cfg.Bucket == "" {
		return nil, errors.New("undefined parameters")
	}
	client, err := storage.NewClient(ctx, gcsClientOptions(cfg)...)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client")
	}

	bucket := client.Bucket(cfg.Bucket)
	return &GCSSink{
		newWriter: func(ctx context.Context, object string) io.WriteCloser {
			w := bucket.Object(object).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		closer: client,
	}, nil
}

// gcsClientOptions authenticates with the key file only. Object writes are
// billed to the bucket's project, so ProjectID is not sent as a quota project.
func gcsClientOptions(cfg GCSConfig) []option.ClientOption {
	return []option.ClientOption{option.WithCredentialsFile(cfg.KeyFilePath)}
}

func (g *GCSSink) Name() string { return "gcs" }

// ObjectName is where a record lands in the bucket.
func (g *GCSSink) ObjectName(record telemetrics.MeasurementRecord) string {
	return path.Join(g.prefix, FileName(record))
}

func (g *GCSSink) Deliver(ctx context.Context, record telemetrics.MeasurementRecord) error {
	body, err := EncodeParquet(record)
	if err != nil {
		return err
	}

	object := g.ObjectName(record)
	w := g.newWriter(ctx, object)
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write gs://%s/%s", g.bucket, object)
	}
	// the object only becomes visible once Close succeeds
	return errors.Wrapf(w.Close(), "finalize gs://%s/%s", g.bucket, object)
}

func (g *GCSSink) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer.Close()
}

// RedisSink stores records as JSON through the records DAO.
type RedisSink struct {
	dao *dao.DAORecords
}

func NewRedisSink(d *dao.DAORecords) *RedisSink {
	return &RedisSink{dao: d}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Deliver(ctx context.Context, record telemetrics.MeasurementRecord) error {
	return r.dao.Store(ctx, record)
}

var (
	_ Sink = (*S3Sink)(nil)
	_ Sink = (*GCSSink)(nil)
	_ Sink = (*RedisSink)(nil)
)
