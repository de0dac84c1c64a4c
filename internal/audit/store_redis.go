package audit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is an EventStore that XADDs each record to a capped Redis
// Stream. It represents a low-latency local buffering tier in front of
// whatever durable projection service eventually consumes the stream
// (out of scope here, §1).
type RedisStore struct {
	client    *redis.Client
	stream    string
	maxLength int64
}

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Addr      string
	Password  string
	DB        int
	Stream    string
	MaxLength int64 // approximate cap passed to XADD MAXLEN ~
}

// NewRedisStore constructs a RedisStore from cfg.
func NewRedisStore(cfg RedisStoreConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	stream := cfg.Stream
	if stream == "" {
		stream = "unionsquare:audit"
	}
	maxLen := cfg.MaxLength
	if maxLen <= 0 {
		maxLen = 1_000_000
	}
	return &RedisStore{client: client, stream: stream, maxLength: maxLen}
}

// Put XADDs record's JSON encoding to the stream, capped with MAXLEN ~ so
// the stream self-trims without a blocking exact trim.
func (s *RedisStore) Put(ctx context.Context, record Record) error {
	payload, err := record.Marshal()
	if err != nil {
		return &PermanentError{Err: fmt.Errorf("audit: encode record: %w", err)}
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLength,
		Approx: true,
		Values: map[string]interface{}{
			"kind":       string(record.Kind),
			"request_id": record.RequestId,
			"payload":    payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("audit: redis xadd: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
