package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/promptflow/config"
	"github.com/BaSui01/promptflow/internal/metrics"
	"github.com/BaSui01/promptflow/types"
)

const archiveKeyPrefix = "promptflow:batch:"

// Archive persists completed batch results to Redis so they survive
// removal from the in-memory registry. Entries expire after the
// configured TTL; a zero TTL keeps them until evicted by Redis itself.
type Archive struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Collector
}

// ArchiveOption configures an Archive.
type ArchiveOption func(*Archive)

// WithArchiveMetrics records write outcomes on the collector.
func WithArchiveMetrics(m *metrics.Collector) ArchiveOption {
	return func(a *Archive) { a.metrics = m }
}

// NewArchive connects to Redis and verifies the connection with a ping.
func NewArchive(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger, opts ...ArchiveOption) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("batch archive connected", zap.String("addr", cfg.Addr))
	a := &Archive{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "archive")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Store writes the batch result as JSON under its batch ID.
func (a *Archive) Store(ctx context.Context, result *types.BatchResult) error {
	err := a.store(ctx, result)
	if a.metrics != nil {
		a.metrics.RecordArchiveWrite(err)
	}
	return err
}

func (a *Archive) store(ctx context.Context, result *types.BatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal batch result: %w", err)
	}
	if err := a.client.Set(ctx, archiveKeyPrefix+result.BatchID, data, a.ttl).Err(); err != nil {
		return fmt.Errorf("archive batch %s: %w", result.BatchID, err)
	}
	a.logger.Debug("batch archived",
		zap.String("batch_id", result.BatchID),
		zap.Duration("ttl", a.ttl),
	)
	return nil
}

// Load fetches an archived batch result. Returns ErrBatchNotFound for
// unknown or expired IDs.
func (a *Archive) Load(ctx context.Context, batchID string) (*types.BatchResult, error) {
	data, err := a.client.Get(ctx, archiveKeyPrefix+batchID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}
	var result types.BatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", batchID, err)
	}
	return &result, nil
}

// Delete drops an archived result. Deleting an absent key is not an error.
func (a *Archive) Delete(ctx context.Context, batchID string) error {
	return a.client.Del(ctx, archiveKeyPrefix+batchID).Err()
}

// Close releases the underlying Redis connection.
func (a *Archive) Close() error {
	return a.client.Close()
}
