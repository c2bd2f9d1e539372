package models

import "time"

// Window is one half-open [Start, End) calendar-day range, the unit of fetch
// and load concurrency. Windows are value types and never mutated.
type Window struct {
	Start time.Time
	End   time.Time
}

// Label returns the window's start date, used in logs and export file names.
func (w Window) Label() string {
	return w.Start.Format("2006-01-02")
}

// NormalizedRow maps destination column names to scalar values (nil, bool,
// int64, float64, string or time.Time).
type NormalizedRow map[string]any

// LoadReport summarizes one Load call.
type LoadReport struct {
	Inserted int
	Failed   int
	Errors   []error
}

// WindowReport carries one window's outcome inside a RunReport.
type WindowReport struct {
	Window     Window
	Fetched    int
	Normalized int
	Inserted   int
	FailedRows int
	Err        error
}

// RunState tracks the orchestrator's progress through a run.
type RunState string

const (
	StatePlanned      RunState = "planned"
	StateFetching     RunState = "fetching"
	StateNormalizing  RunState = "normalizing"
	StateLoading      RunState = "loading"
	StateDeduplicated RunState = "deduplicated"
	StateDone         RunState = "done"
	StateFailed       RunState = "failed"
)

// RunReport is the aggregate result of one pipeline run. The run always
// completes with a report; window-scoped failures are recorded here instead of
// being raised to the caller.
type RunReport struct {
	RunID             string
	Entity            string
	State             RunState
	Mode              string
	StartedAt         time.Time
	FinishedAt        time.Time
	Windows           []WindowReport
	DuplicatesRemoved int64
	DedupeErr         error
	FatalErr          error
}

// WindowsAttempted returns the number of planned windows.
func (r *RunReport) WindowsAttempted() int {
	return len(r.Windows)
}

// WindowsFailed counts windows that ended with an error. A window that failed
// mid-pagination still contributes the rows collected before the failure.
func (r *RunReport) WindowsFailed() int {
	n := 0
	for _, w := range r.Windows {
		if w.Err != nil {
			n++
		}
	}
	return n
}

// RowsFetched totals raw records across all windows.
func (r *RunReport) RowsFetched() int {
	n := 0
	for _, w := range r.Windows {
		n += w.Fetched
	}
	return n
}

// RowsInserted totals persisted rows across all windows.
func (r *RunReport) RowsInserted() int {
	n := 0
	for _, w := range r.Windows {
		n += w.Inserted
	}
	return n
}

// RowsFailed totals rows skipped by row-level insert failures.
func (r *RunReport) RowsFailed() int {
	n := 0
	for _, w := range r.Windows {
		n += w.FailedRows
	}
	return n
}

// RunStatus is the durable record of the most recent run for an entity,
// persisted to the status store.
type RunStatus struct {
	Entity            string    `json:"entity"`
	RunID             string    `json:"run_id"`
	State             string    `json:"state"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	WindowsAttempted  int       `json:"windows_attempted"`
	WindowsFailed     int       `json:"windows_failed"`
	RowsInserted      int       `json:"rows_inserted"`
	RowsFailed        int       `json:"rows_failed"`
	DuplicatesRemoved int64     `json:"duplicates_removed"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}
