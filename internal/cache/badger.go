package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ntentasd/bopstack-api/internal/metrics"
)

var _ Cache = (*Badger)(nil)

// Badger is an embedded single-node cache, for deployments without a
// Valkey or Memcached cluster.
type Badger struct {
	DB      *badger.DB
	metrics *CacheMetrics
}

// NewBadger opens the store at path. An empty path keeps everything in
// memory.
func NewBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &Badger{DB: db, metrics: NewCacheMetrics(metrics.BadgerCache)}, nil
}

func (b *Badger) StoreReport(ctx context.Context, key string, data any, ttl time.Duration) error {
	_, span := otel.Tracer("bopstack-cache").Start(ctx, "cache.StoreReport")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", metrics.BadgerCache),
		attribute.String("cache.key", key),
		attribute.Int64("cache.ttl", int64(ttl.Seconds())),
	)

	val, err := marshalReport(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	err = b.DB.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), val)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to store report: %w", err)
	}
	b.metrics.RecordWrite(start)
	span.SetStatus(codes.Ok, "")

	return nil
}

func (b *Badger) FetchReport(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer("bopstack-cache").Start(ctx, "cache.FetchReport")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", metrics.BadgerCache),
		attribute.String("cache.key", key),
	)

	start := time.Now()
	var val []byte
	err := b.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		b.metrics.RecordMiss()
		span.SetAttributes(attribute.String("cache.result", "miss"))
		span.SetStatus(codes.Ok, "")
		return nil, ErrCacheMiss
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("cache fetch: %w", err)
	default:
		b.metrics.RecordHit(start)
		span.SetAttributes(attribute.String("cache.result", "hit"))
		span.SetStatus(codes.Ok, "")
		return val, nil
	}
}

func (b *Badger) Ping(ctx context.Context) error {
	if b.DB.IsClosed() {
		return errors.New("badger is closed")
	}
	return nil
}

func (b *Badger) Close() {
	b.DB.Close()
}
