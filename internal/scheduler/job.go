package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// historyLimit bounds the per-job result history
const historyLimit = 50

// Counts are the per-run numbers a maintenance job reports
// (e.g. removed forecast rows, warmed tickers)
type Counts map[string]int64

// String renders counts as sorted key=value pairs
func (c Counts) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, c[k]))
	}
	return strings.Join(parts, " ")
}

// Job is a maintenance task run beside the forecast daemon
// ⭐ SSOT: 유지보수 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name is the unique job key (CLI `scheduler run <name>`)
	Name() string

	// Run executes one pass and reports what it touched.
	// An error triggers the scheduler's retry policy.
	Run(ctx context.Context) (Counts, error)

	// Schedule is a 6-field cron expression (seconds first),
	// evaluated in the daemon's timezone
	Schedule() string
}

// JobResult is one execution of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Counts    Counts        `json:"counts,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory keeps the latest historyLimit results of one job, oldest first.
// Callers hold the scheduler lock.
type JobHistory struct {
	results []JobResult
	total   int
	failed  int
}

// Add appends a result, evicting the oldest past historyLimit
func (h *JobHistory) Add(result JobResult) {
	h.total++
	if !result.Success {
		h.failed++
	}

	h.results = append(h.results, result)
	if len(h.results) > historyLimit {
		h.results = h.results[len(h.results)-historyLimit:]
	}
}

// Latest returns a copy of the last n results
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.results) {
		n = len(h.results)
	}
	out := make([]JobResult, n)
	copy(out, h.results[len(h.results)-n:])
	return out
}

// Total counts every run since start, evicted ones included
func (h *JobHistory) Total() int {
	return h.total
}

// Failed counts failed runs since start
func (h *JobHistory) Failed() int {
	return h.failed
}

// SuccessRate is over every run since start (0 when never run)
func (h *JobHistory) SuccessRate() float64 {
	if h.total == 0 {
		return 0
	}
	return float64(h.total-h.failed) / float64(h.total)
}

// last returns the most recent retained result matching ok
func (h *JobHistory) last(ok func(JobResult) bool) *JobResult {
	for i := len(h.results) - 1; i >= 0; i-- {
		if ok(h.results[i]) {
			r := h.results[i]
			return &r
		}
	}
	return nil
}
