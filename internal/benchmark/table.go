package benchmark

import "time"

// Result is one (case, engine) measurement. RowsReturned is nil when the case
// failed; Error then carries the tag.
type Result struct {
	Case         string        `yaml:"case" json:"case"`
	Engine       string        `yaml:"engine" json:"engine"`
	Kind         string        `yaml:"kind" json:"kind"`
	Elapsed      time.Duration `yaml:"-" json:"-"`
	ElapsedMS    float64       `yaml:"elapsed_ms" json:"elapsed_ms"`
	Samples      []float64     `yaml:"samples_ms,omitempty" json:"samples_ms,omitempty"`
	RowsReturned *int64        `yaml:"rows_returned" json:"rows_returned"`
	// Warm is true when the timed runs followed a warmup pass.
	Warm  bool   `yaml:"warm" json:"warm"`
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
	Err   error  `yaml:"-" json:"-"`
}

// Winner names the fastest engine for a case.
type Winner struct {
	Case      string  `yaml:"case" json:"case"`
	Engine    string  `yaml:"engine" json:"engine"`
	ElapsedMS float64 `yaml:"elapsed_ms" json:"elapsed_ms"`
}

// ComparisonTable holds every result of a run keyed by (case, engine).
// Warm and cold runs are separate tables; Warmup records which this is.
type ComparisonTable struct {
	RunID          string        `yaml:"run_id" json:"run_id"`
	StartedAt      time.Time     `yaml:"started_at" json:"started_at"`
	Elapsed        time.Duration `yaml:"-" json:"-"`
	ElapsedSeconds float64       `yaml:"elapsed_seconds" json:"elapsed_seconds"`
	Warmup         bool          `yaml:"warmup" json:"warmup"`
	Repeat         int           `yaml:"repeat" json:"repeat"`
	Engines        []string      `yaml:"engines" json:"engines"`
	Cases          []string      `yaml:"cases" json:"cases"`
	Results        []Result      `yaml:"results" json:"results"`
	Winners        []Winner      `yaml:"winners" json:"winners"`
}

// Get returns the result for a (case, engine) pair.
func (t *ComparisonTable) Get(caseID, engine string) (Result, bool) {
	for _, r := range t.Results {
		if r.Case == caseID && r.Engine == engine {
			return r, true
		}
	}
	return Result{}, false
}

// Winner returns the fastest engine for caseID; false when every engine
// failed the case.
func (t *ComparisonTable) Winner(caseID string) (Winner, bool) {
	for _, w := range t.Winners {
		if w.Case == caseID {
			return w, true
		}
	}
	return Winner{}, false
}

// Failed returns the failed results in table order.
func (t *ComparisonTable) Failed() []Result {
	var out []Result
	for _, r := range t.Results {
		if r.Err != nil || r.Error != "" {
			out = append(out, r)
		}
	}
	return out
}

// computeWinners picks the lowest elapsed time per case. Engines are scanned
// in declaration order with a strict comparison, so ties go to the engine
// declared first.
func (t *ComparisonTable) computeWinners() {
	t.Winners = t.Winners[:0]
	for _, c := range t.Cases {
		var best *Result
		for _, e := range t.Engines {
			r, ok := t.Get(c, e)
			if !ok || r.RowsReturned == nil {
				continue
			}
			if best == nil || r.Elapsed < best.Elapsed {
				rr := r
				best = &rr
			}
		}
		if best != nil {
			t.Winners = append(t.Winners, Winner{Case: c, Engine: best.Engine, ElapsedMS: best.ElapsedMS})
		}
	}
}
