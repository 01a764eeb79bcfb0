// Package db reads raw tag samples from ScyllaDB.
package db

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gocql/gocql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/inf.v0"

	"github.com/ntentasd/bopstack-api/internal/fetch"
	"github.com/ntentasd/bopstack-api/internal/metrics"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

const Keyspace = "bop_data"

const samplesQuery = `
SELECT timestamp, value
FROM samples
WHERE tag_id = ? AND bucket_date = ? AND timestamp >= ? AND timestamp <= ?
ORDER BY timestamp ASC
`

var _ fetch.Source = (*DB)(nil)

type DB struct {
	sess *gocql.Session
}

func New(sess *gocql.Session) *DB {
	return &DB{sess: sess}
}

// Connect opens a session on the samples keyspace.
func Connect(nodes []string) (*DB, error) {
	cluster := gocql.NewCluster(nodes...)
	cluster.Keyspace = Keyspace
	cluster.Consistency = gocql.LocalOne
	cluster.Timeout = 5 * time.Second
	cluster.DisableInitialHostLookup = true
	cluster.DisableShardAwarePort = true

	sess, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("unable to connect: %w", err)
	}
	return New(sess), nil
}

func (db *DB) Close() {
	db.sess.Close()
}

// Fetch returns the samples of tagID in [startMs, endMs], possibly spanning
// multiple bucket_dates. Values that do not parse as finite numbers are
// dropped.
func (db *DB) Fetch(ctx context.Context, tagID string, startMs, endMs int64) ([]types.Entry, error) {
	ctx, span := otel.Tracer("bopstack-db").Start(ctx, "db.Fetch")
	defer span.End()

	span.SetAttributes(attribute.String("db.tag", tagID))

	from := time.UnixMilli(startMs).UTC()
	to := time.UnixMilli(endMs).UTC()

	start := time.Now()
	defer func() {
		metrics.DbReadLatencySeconds.WithLabelValues(metrics.ScyllaDb, "samples").
			Observe(time.Since(start).Seconds())
	}()

	entries := make([]types.Entry, 0, 256)
	for _, bucket := range buckets(from, to) {
		iter := db.sess.Query(samplesQuery, tagID, bucket, from, to).WithContext(ctx).Iter()

		var ts time.Time
		var dec *inf.Dec
		for iter.Scan(&ts, &dec) {
			if dec == nil {
				continue
			}
			val, err := strconv.ParseFloat(dec.String(), 64)
			if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
				continue
			}
			entries = append(entries, types.Entry{Timestamp: ts, Value: val})
		}

		if err := iter.Close(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to query bucket %s: %w", bucket, err)
		}
	}

	span.SetAttributes(attribute.Int("db.samples", len(entries)))
	return entries, nil
}

// buckets lists the UTC day partitions touched by [from, to] as YYYY-MM-DD.
func buckets(from, to time.Time) []string {
	if to.Before(from) {
		return nil
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var out []string
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		out = append(out, date.Format(time.DateOnly))
	}
	return out
}
