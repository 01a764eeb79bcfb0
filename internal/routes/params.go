package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ntentasd/bopstack-api/internal/analyzer"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

var ErrBadParam = errors.New("bad parameter")

const windowPrefix = "window_"

// parseRequest reads start, end and window_<class> overrides. A bare date
// as end covers that whole day.
func parseRequest(rig string, q url.Values) (analyzer.Request, error) {
	req := analyzer.Request{Rig: rig}

	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if rawStart == "" || rawEnd == "" {
		return req, fmt.Errorf("%w: start and end are required", ErrBadParam)
	}

	var err error
	if req.Start, err = parseTime(rawStart, false); err != nil {
		return req, fmt.Errorf("%w: start: %v", ErrBadParam, err)
	}
	if req.End, err = parseTime(rawEnd, true); err != nil {
		return req, fmt.Errorf("%w: end: %v", ErrBadParam, err)
	}

	for key, vals := range q {
		if !strings.HasPrefix(key, windowPrefix) || len(vals) == 0 {
			continue
		}
		class, err := types.ToValveClass(strings.TrimPrefix(key, windowPrefix))
		if err != nil {
			return req, fmt.Errorf("%w: %s: %v", ErrBadParam, key, err)
		}
		sec, err := strconv.ParseFloat(vals[0], 64)
		if err != nil || sec <= 0 {
			return req, fmt.Errorf("%w: %s must be a positive number of seconds", ErrBadParam, key)
		}
		if req.Windows == nil {
			req.Windows = make(map[types.ValveClass]float64)
		}
		req.Windows[class] = sec
	}

	return req, nil
}

func parseTime(s string, endOfDay bool) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		if endOfDay {
			_, end := analyzer.DayRange(d, d)
			return end, nil
		}
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t.UTC(), nil
}
