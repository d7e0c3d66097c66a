package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/yaron8/tx-latency-prober/telemetrics"
)

// DAORecords stores measurement records in Redis
type DAORecords struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewDAORecords creates a new DAORecords with the provided Redis client
func NewDAORecords(redisClient *redis.Client, ttl time.Duration) *DAORecords {
	return &DAORecords{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

// RecordKey is the key a record is stored under
func RecordKey(record telemetrics.MeasurementRecord) string {
	return fmt.Sprintf("measurement:%d:%d", record.ChainID, record.ExecutedAt)
}

// LastKey holds the executedAt of the newest stored record of a chain
func LastKey(chainID int64) string {
	return fmt.Sprintf("measurement:%d:last", chainID)
}

// Store saves a record as JSON and moves the chain's last pointer in one transaction
func (dao *DAORecords) Store(ctx context.Context, record telemetrics.MeasurementRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}

	_, err = dao.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, RecordKey(record), data, dao.ttl)
		pipe.Set(ctx, LastKey(record.ChainID), strconv.FormatInt(record.ExecutedAt, 10), 0)
		return nil
	})
	return errors.Wrapf(err, "store %s", RecordKey(record))
}

// Get loads a stored record
func (dao *DAORecords) Get(ctx context.Context, key string) (telemetrics.MeasurementRecord, error) {
	var record telemetrics.MeasurementRecord

	data, err := dao.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		return record, errors.Wrapf(err, "get %s", key)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, errors.Wrapf(err, "decode %s", key)
	}
	return record, nil
}

// Ping checks the connection
func (dao *DAORecords) Ping(ctx context.Context) error {
	return dao.redisClient.Ping(ctx).Err()
}
