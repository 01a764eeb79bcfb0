package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ntentasd/bopstack-api/internal/metrics"
)

var _ Cache = (*Memcached)(nil)

type Memcached struct {
	client  *memcache.Client
	metrics *CacheMetrics
}

func NewMemcached(addr ...string) *Memcached {
	client := memcache.New(addr...)
	cm := NewCacheMetrics(metrics.MemcachedCache)
	return &Memcached{client, cm}
}

// store bounds the blocking client call, which has no context support.
func (m *Memcached) store(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- m.client.Set(&memcache.Item{Key: key, Value: val, Expiration: int32(ttl.Seconds())})
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return context.DeadlineExceeded
	}
}

func (m *Memcached) StoreReport(ctx context.Context, key string, data any, ttl time.Duration) error {
	ctx, span := otel.Tracer("bopstack-cache").Start(ctx, "cache.StoreReport")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", metrics.MemcachedCache),
		attribute.String("cache.key", key),
		attribute.Int64("cache.ttl", int64(ttl.Seconds())),
	)

	b, err := marshalReport(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	if err := m.store(ctx, key, b, ttl); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to store report: %w", err)
	}
	m.metrics.RecordWrite(start)
	span.SetStatus(codes.Ok, "")

	return nil
}

func (m *Memcached) FetchReport(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer("bopstack-cache").Start(ctx, "cache.FetchReport")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", metrics.MemcachedCache),
		attribute.String("cache.key", key),
	)

	start := time.Now()
	val, err := m.client.Get(key)
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		m.metrics.RecordMiss()
		span.SetAttributes(attribute.String("cache.result", "miss"))
		span.SetStatus(codes.Ok, "")
		return nil, ErrCacheMiss
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("cache fetch: %w", err)
	default:
		m.metrics.RecordHit(start)
		span.SetAttributes(attribute.String("cache.result", "hit"))
		span.SetStatus(codes.Ok, "")
		return val.Value, nil
	}
}

func (m *Memcached) Ping(ctx context.Context) error {
	return m.client.Ping()
}

func (m *Memcached) Close() {
	m.client.Close()
}
