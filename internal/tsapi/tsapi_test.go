package tsapi_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"

	Fe "github.com/ntentasd/bopstack-api/internal/fetch"
	Ts "github.com/ntentasd/bopstack-api/internal/tsapi"
)

func TestFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("Parses datapoints and drops malformed ones", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assertString(t, r.URL.Path, "/timeseries/data")
			assertString(t, r.URL.Query().Get("externalId"), "BOP.UA.STATUS")
			assertString(t, r.URL.Query().Get("start"), "1000")
			assertString(t, r.URL.Query().Get("end"), "9000")

			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				t.Errorf("missing basic auth")
			}

			fmt.Fprint(w, `{"items":[{"externalId":"BOP.UA.STATUS","datapoints":[
				{"timestamp":3000,"value":514},
				{"timestamp":2000,"value":"513"},
				{"timestamp":2500,"value":"n/a"},
				{"timestamp":2600,"value":null}
			]}]}`)
		}))
		defer srv.Close()

		c, err := Ts.New(srv.URL, "key", "secret")
		assertError(t, err, nil)

		got, err := c.Fetch(ctx, "BOP.UA.STATUS", 1000, 9000)
		assertError(t, err, nil)
		if len(got) != 2 {
			t.Fatalf("got %d entries, want 2", len(got))
		}
		if !got[0].Timestamp.Equal(time.UnixMilli(2000)) || got[0].Value != 513 {
			t.Errorf("got first entry %+v", got[0])
		}
		if got[1].Value != 514 {
			t.Errorf("got second value %v, want 514", got[1].Value)
		}
	})

	t.Run("Empty items is not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items":[]}`)
		}))
		defer srv.Close()

		c, _ := Ts.New(srv.URL, "", "")
		got, err := c.Fetch(ctx, "x", 0, 1)
		assertError(t, err, nil)
		if len(got) != 0 {
			t.Errorf("got %d entries, want 0", len(got))
		}
	})

	t.Run("Status errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c, _ := Ts.New(srv.URL, "", "")
		_, err := c.Fetch(ctx, "x", 0, 1)
		assertError(t, err, &Ts.StatusError{})
	})

	t.Run("Missing URL", func(t *testing.T) {
		_, err := Ts.New("", "", "")
		assertError(t, err, Ts.ErrMissingURL)
	})
}

func TestFetchRetries(t *testing.T) {
	fastBackOff := func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }

	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "Server errors are retried", status: http.StatusBadGateway, wantCalls: 3},
		{name: "Rate limits are retried", status: http.StatusTooManyRequests, wantCalls: 3},
		{name: "Client errors are not retried", status: http.StatusNotFound, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c, _ := Ts.New(srv.URL, "", "")
			pool := Fe.NewPool(c, Fe.WithMaxTries(3), Fe.WithBackOff(fastBackOff))
			res := pool.FetchAll(context.Background(), []string{"x"}, 0, 1)

			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("got %d calls, want %d", got, tt.wantCalls)
			}
			if len(res.Failures) != 1 {
				t.Errorf("got %d failures, want 1", len(res.Failures))
			}
		})
	}
}

// Helpers //

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %v, want %v", got, want)
	}
}

func assertString(t testing.TB, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
