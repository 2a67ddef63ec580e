package model

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type Timespan struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// ParseTimespan reads a "start,end" pair of millisecond timestamps. Fractional milliseconds
// are truncated. Pairs with a non numeric bound or with start not before end are rejected.
func ParseTimespan(raw string) (Timespan, bool) {
	parts := splitCSV(raw)
	if len(parts) != 2 {
		return Timespan{}, false
	}
	start, ok := parseMillis(parts[0])
	if !ok {
		return Timespan{}, false
	}
	end, ok := parseMillis(parts[1])
	if !ok {
		return Timespan{}, false
	}
	if start >= end {
		return Timespan{}, false
	}
	return Timespan{Start: start, End: end}, true
}

func parseMillis(raw string) (int64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return int64(math.Floor(f)), true
}

// Filter restricts upstream data to a cohort and a set of time windows. Empty fields mean no
// restriction on that dimension.
type Filter struct {
	CohortIDs []int64    `json:"cohortIds"`
	Timespans []Timespan `json:"timespans"`
}

func NewFilter(cohortIDs []int64, rawTimespans []string) Filter {
	f := Filter{CohortIDs: lo.Uniq(cohortIDs)}
	for _, raw := range rawTimespans {
		if ts, ok := ParseTimespan(raw); ok {
			f.Timespans = append(f.Timespans, ts)
		}
	}
	return f
}

// ParseCohort reads a comma separated id list, skipping anything that is not an id.
func ParseCohort(raw string) []int64 {
	var ids []int64
	for _, part := range splitCSV(raw) {
		if id, err := strconv.ParseInt(part, 10, 64); err == nil && id >= 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (f Filter) CohortSize() int {
	return len(f.CohortIDs)
}

// FilterParams names the query parameters a module expects and the unit of its timestamps.
type FilterParams struct {
	Cohort           string
	Timespans        string
	TimestampDivisor int64
}

func (p FilterParams) divisor() int64 {
	if p.TimestampDivisor <= 0 {
		return 1
	}
	return p.TimestampDivisor
}

// ScaledTimespans converts the millisecond timespans into the module's unit. Spans that
// collapse to start >= end in that unit are left out.
func (f Filter) ScaledTimespans(p FilterParams) [][2]int64 {
	d := p.divisor()
	var out [][2]int64
	for _, ts := range f.Timespans {
		if start, end := ts.Start/d, ts.End/d; start < end {
			out = append(out, [2]int64{start, end})
		}
	}
	return out
}

func (f Filter) CohortParam() string {
	return strings.Join(lo.Map(f.CohortIDs, func(id int64, _ int) string {
		return strconv.FormatInt(id, 10)
	}), ",")
}

// Query serializes the filter into the module's query parameters.
func (f Filter) Query(p FilterParams) url.Values {
	q := url.Values{}
	if len(f.CohortIDs) > 0 {
		q.Set(p.Cohort, f.CohortParam())
	}
	for _, ts := range f.ScaledTimespans(p) {
		q.Add(p.Timespans+"[]", strconv.FormatInt(ts[0], 10)+","+strconv.FormatInt(ts[1], 10))
	}
	return q
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
}
