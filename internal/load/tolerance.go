package load

import (
	"fmt"
	"strconv"
	"strings"
)

// Tolerance bounds the coercion failures a load absorbs before aborting.
// When MaxRatio is positive it wins and is compared against the rows
// processed so far; otherwise MaxFailures is an absolute count.
type Tolerance struct {
	MaxFailures int64
	MaxRatio    float64
}

// ParseTolerance accepts an absolute count ("25") or a percentage ("0.5%").
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Tolerance{}, fmt.Errorf("empty tolerance")
	}
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || v <= 0 || v > 100 {
			return Tolerance{}, fmt.Errorf("invalid tolerance %q: percentage must be in (0, 100]", s)
		}
		return Tolerance{MaxRatio: v / 100}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return Tolerance{}, fmt.Errorf("invalid tolerance %q: want a non-negative count or a percentage", s)
	}
	return Tolerance{MaxFailures: n}, nil
}

// Exceeded reports whether failed out of processed rows breaks the tolerance.
func (t Tolerance) Exceeded(failed, processed int64) bool {
	if t.MaxRatio > 0 {
		if processed == 0 {
			return false
		}
		return float64(failed)/float64(processed) > t.MaxRatio
	}
	return failed > t.MaxFailures
}

func (t Tolerance) String() string {
	if t.MaxRatio > 0 {
		return strconv.FormatFloat(t.MaxRatio*100, 'f', -1, 64) + "%"
	}
	return strconv.FormatInt(t.MaxFailures, 10)
}
