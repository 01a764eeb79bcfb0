package analyzer_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	An "github.com/ntentasd/bopstack-api/internal/analyzer"
	"github.com/ntentasd/bopstack-api/internal/cache"
	"github.com/ntentasd/bopstack-api/internal/fetch"
	"github.com/ntentasd/bopstack-api/internal/pipeline"
	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/internal/tags"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

var epoch = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

// fakeFetcher serves fixed series and records how often it was asked.
type fakeFetcher struct {
	mu     sync.Mutex
	calls  int
	series map[string][]types.Entry
	failed map[string]bool
}

func (f *fakeFetcher) FetchAll(ctx context.Context, tagIDs []string, startMs, endMs int64) *fetch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	res := &fetch.Result{Series: make(map[string][]types.Entry)}
	for _, tag := range tagIDs {
		if f.failed[tag] {
			res.Failures = append(res.Failures, types.FetchFailure{Tag: tag, Error: "connection reset"})
			continue
		}
		if s, ok := f.series[tag]; ok {
			res.Series[tag] = s
		}
	}
	return res
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	reports []*types.Report
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, r *types.Report) error {
	p.reports = append(p.reports, r)
	return p.err
}

// drillmaxFetcher closes the Upper Annular at 100 s over a 100 -> 110.4 gal
// ramp and opens it again at 400 s.
func drillmaxFetcher(t testing.TB) *fakeFetcher {
	t.Helper()
	rt, err := tags.Resolve(tags.Drillmax)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var acc, well []types.Entry
	for sec := 0; sec <= 500; sec++ {
		raw := 1000.0
		switch {
		case sec > 110:
			raw = 1120
		case sec > 80:
			raw = 1000 + 4*float64(sec-80)
		}
		acc = append(acc, types.Entry{Timestamp: at(sec), Value: raw})
		well = append(well, types.Entry{Timestamp: at(sec), Value: 800})
	}

	return &fakeFetcher{
		series: map[string][]types.Entry{
			rt.Valves[0].StatusTag: {
				{Timestamp: at(0), Value: 513},
				{Timestamp: at(100), Value: 514},
				{Timestamp: at(400), Value: 513},
			},
			rt.AccumulatorTag:  acc,
			rt.PodTag:          {{Timestamp: at(0), Value: 3}},
			rt.WellPressureTag: well,
		},
		failed: map[string]bool{},
	}
}

func request() An.Request {
	return An.Request{Rig: "STDMX", Start: at(0), End: at(600)}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("Computes a report", func(t *testing.T) {
		f := drillmaxFetcher(t)
		a := An.New(f)

		report, err := a.Analyze(ctx, request())
		assertError(t, err, nil)

		assertString(t, report.Rig, tags.Drillmax)
		assertInt(t, len(report.Events), 2)
		assertInt(t, len(report.FetchFailures), 0)

		ev := report.Events[0]
		assertString(t, ev.Valve, "Upper Annular")
		if ev.State != types.StateClose {
			t.Errorf("got state %q, want CLOSE", ev.State)
		}
		// raw tenths of a gallon are scaled
		assertFloat(t, float64(ev.DeltaGal), 10.4)
		if ev.ActivePod != types.PodYellow {
			t.Errorf("got pod %q, want Yellow Pod", ev.ActivePod)
		}
		assertInt(t, len(report.Cycles), 1)
	})

	t.Run("Serves repeated requests from the cache", func(t *testing.T) {
		c, err := cache.NewBadger("")
		assertError(t, err, nil)
		defer c.Close()

		f := drillmaxFetcher(t)
		pub := &fakePublisher{}
		a := An.New(f, An.WithCache(c, time.Minute), An.WithPublisher(pub))

		first, err := a.Analyze(ctx, request())
		assertError(t, err, nil)
		second, err := a.Analyze(ctx, request())
		assertError(t, err, nil)

		assertInt(t, f.callCount(), 1)
		assertInt(t, len(pub.reports), 1)
		assertInt(t, len(second.Events), len(first.Events))
		if second.Events[0].ID != first.Events[0].ID {
			t.Error("cached event differs from the computed one")
		}
		if !second.Events[1].MaxPressure.IsNaN() {
			t.Errorf("got max pressure %v, want NaN after the round trip", second.Events[1].MaxPressure)
		}
	})

	t.Run("Window overrides change the key", func(t *testing.T) {
		c, err := cache.NewBadger("")
		assertError(t, err, nil)
		defer c.Close()

		f := drillmaxFetcher(t)
		a := An.New(f, An.WithCache(c, time.Minute))

		_, err = a.Analyze(ctx, request())
		assertError(t, err, nil)

		req := request()
		req.Windows = map[types.ValveClass]float64{types.ClassAnnular: 45}
		_, err = a.Analyze(ctx, req)
		assertError(t, err, nil)

		assertInt(t, f.callCount(), 2)
	})

	t.Run("Partial reports are served but not cached", func(t *testing.T) {
		c, err := cache.NewBadger("")
		assertError(t, err, nil)
		defer c.Close()

		f := drillmaxFetcher(t)
		rt, _ := tags.Resolve(tags.Drillmax)
		f.failed[rt.WellPressureTag] = true
		a := An.New(f, An.WithCache(c, time.Minute))

		report, err := a.Analyze(ctx, request())
		assertError(t, err, nil)
		assertInt(t, len(report.FetchFailures), 1)
		assertString(t, report.FetchFailures[0].Tag, rt.WellPressureTag)
		assertInt(t, len(report.Cycles), 0)

		_, err = a.Analyze(ctx, request())
		assertError(t, err, nil)
		assertInt(t, f.callCount(), 2)
	})

	t.Run("Refresh recomputes and overwrites the cached report", func(t *testing.T) {
		c, err := cache.NewBadger("")
		assertError(t, err, nil)
		defer c.Close()

		f := drillmaxFetcher(t)
		a := An.New(f, An.WithCache(c, time.Minute))

		req := request()
		req.Refresh = true
		_, err = a.Analyze(ctx, req)
		assertError(t, err, nil)
		_, err = a.Analyze(ctx, req)
		assertError(t, err, nil)
		assertInt(t, f.callCount(), 2)

		_, err = a.Analyze(ctx, request())
		assertError(t, err, nil)
		assertInt(t, f.callCount(), 2)
	})

	t.Run("Publisher errors do not fail the request", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		a := An.New(drillmaxFetcher(t), An.WithPublisher(pub))

		_, err := a.Analyze(ctx, request())
		assertError(t, err, nil)
		assertInt(t, len(pub.reports), 1)
	})
}

func TestAnalyzeErrors(t *testing.T) {
	ctx := context.Background()

	allFailed := drillmaxFetcher(t)
	rt, _ := tags.Resolve(tags.Drillmax)
	for _, tag := range rt.TagIDs() {
		allFailed.failed[tag] = true
	}

	quiet := drillmaxFetcher(t)
	quiet.series[rt.Valves[0].StatusTag] = []types.Entry{{Timestamp: at(0), Value: 513}}

	tests := []struct {
		name    string
		fetcher *fakeFetcher
		req     An.Request
		want    error
	}{
		{name: "Unknown rig", fetcher: drillmaxFetcher(t),
			req: An.Request{Rig: "Atlantis", Start: at(0), End: at(1)}, want: tags.ErrUnknownRig},
		{name: "Inverted range", fetcher: drillmaxFetcher(t),
			req: An.Request{Rig: "Drillmax", Start: at(10), End: at(0)}, want: An.ErrInvalidRange},
		{name: "Zero window", fetcher: drillmaxFetcher(t),
			req: An.Request{Rig: "Drillmax", Start: at(0), End: at(600),
				Windows: map[types.ValveClass]float64{types.ClassAnnular: 0}}, want: profile.ErrInvalidProfile},
		{name: "Every fetch failed", fetcher: allFailed, req: request(), want: An.ErrFetchFailed},
		{name: "No actuations", fetcher: quiet, req: request(), want: An.ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := An.New(tt.fetcher).Analyze(ctx, tt.req)
			assertError(t, err, tt.want)
		})
	}
}

func TestKey(t *testing.T) {
	rt, _ := tags.Resolve(tags.Drillmax)
	in := An.Inputs(rt, nil)
	if len(in.Valves) != 0 || in.Accumulator != nil {
		t.Error("expected empty inputs for no series")
	}

	a := An.New(&fakeFetcher{})
	base := a.Profiles()

	k1, err := An.Key("Drillmax", at(0), at(60), configFor(base))
	assertError(t, err, nil)
	k2, _ := An.Key("Drillmax", at(0), at(60), configFor(base))
	k3, _ := An.Key("Drillmax", at(0), at(61), configFor(base))
	k4, _ := An.Key("Drillmax", at(0), at(60), configFor(base.WithWindow(types.ClassAnnular, 31)))

	assertString(t, k1, k2)
	if k1 == k3 || k1 == k4 {
		t.Error("different requests share a key")
	}
	assertStringPrefix(t, k1, "report:")
}

func TestDayRange(t *testing.T) {
	t.Run("Spans whole days", func(t *testing.T) {
		from := time.Date(2025, 2, 28, 17, 5, 0, 0, time.UTC)
		to := time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC)

		start, end := An.DayRange(from, to)
		assertTime(t, start, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
		assertTime(t, end, time.Date(2025, 3, 1, 23, 59, 59, int(999*time.Millisecond), time.UTC))
	})

	t.Run("Uses UTC days", func(t *testing.T) {
		zone := time.FixedZone("UTC+3", 3*60*60)
		local := time.Date(2025, 3, 1, 1, 0, 0, 0, zone)

		start, _ := An.DayRange(local, local)
		assertTime(t, start, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	})
}

// Helpers //

func configFor(p profile.Profiles) pipeline.Config {
	return pipeline.Config{Profiles: p}
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %v, want %v", got, want)
	}
}

func assertFloat(t testing.TB, got, want float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > 1e-6 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func assertInt(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertString(t testing.TB, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func assertStringPrefix(t testing.TB, full, prefix string) {
	t.Helper()
	if len(full) < len(prefix) || full[:len(prefix)] != prefix {
		t.Errorf("%q does not start with %q", full, prefix)
	}
}

func assertTime(t testing.TB, got, want time.Time) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("got time %s, want %s", got, want)
	}
}
