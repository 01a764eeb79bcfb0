package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ntentasd/bopstack-api/internal/metrics"
)

var _ Cache = (*Valkey)(nil)

type Valkey struct {
	client  redis.UniversalClient
	metrics *CacheMetrics
}

func NewValkey(addrs []string) *Valkey {
	opts := &redis.ClusterOptions{
		Addrs:       addrs,
		DialTimeout: 2 * time.Second,
	}
	return NewValkeyWithClient(redis.NewClusterClient(opts))
}

// NewValkeyWithClient wraps an existing client, cluster or single node.
func NewValkeyWithClient(client redis.UniversalClient) *Valkey {
	cm := NewCacheMetrics(metrics.ValkeyCache)
	return &Valkey{client, cm}
}

func (v *Valkey) StoreReport(ctx context.Context, key string, data any, ttl time.Duration) error {
	ctx, span := otel.Tracer("bopstack-cache").Start(ctx, "cache.StoreReport")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", metrics.ValkeyCache),
		attribute.String("cache.key", key),
		attribute.Int64("cache.ttl", int64(ttl.Seconds())),
	)

	ctx, cancel := context.WithTimeout(
		ctx,
		time.Millisecond*200,
	)
	defer cancel()

	b, err := marshalReport(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	if err := v.client.Set(ctx, key, b, ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to store report: %w", err)
	}
	v.metrics.RecordWrite(start)
	span.SetStatus(codes.Ok, "")

	return nil
}

func (v *Valkey) FetchReport(ctx context.Context, key string) ([]byte, error) {
	ctx, span := otel.Tracer("bopstack-cache").Start(ctx, "cache.FetchReport")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.driver", metrics.ValkeyCache),
		attribute.String("cache.key", key),
	)

	ctx, cancel := context.WithTimeout(
		ctx,
		time.Millisecond*100,
	)
	defer cancel()

	start := time.Now()
	val, err := v.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		v.metrics.RecordMiss()
		span.SetAttributes(attribute.String("cache.result", "miss"))
		span.SetStatus(codes.Ok, "")
		return nil, ErrCacheMiss
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("cache fetch: %w", err)
	default:
		v.metrics.RecordHit(start)
		span.SetAttributes(attribute.String("cache.result", "hit"))
		span.SetStatus(codes.Ok, "")
		return val, nil
	}
}

func (v *Valkey) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *Valkey) Close() {
	v.client.Close()
}
