package daemon

import (
	"context"
	"fmt"
	"time"
)

// Clock abstracts time so the control loop can be driven in tests
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// QuietWindow is a daily [Start, End) pause window in minutes after midnight.
// Start > End wraps midnight (예: 23:00–00:05).
type QuietWindow struct {
	Start   int
	End     int
	Enabled bool
}

// ParseQuietWindow parses "HH:MM" bounds; both empty disables the window
func ParseQuietWindow(start, end string) (QuietWindow, error) {
	if start == "" && end == "" {
		return QuietWindow{}, nil
	}
	s, err := parseHHMM(start)
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet start: %w", err)
	}
	e, err := parseHHMM(end)
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet end: %w", err)
	}
	return QuietWindow{Start: s, End: e, Enabled: s != e}, nil
}

func parseHHMM(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("must be HH:MM, got %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t (in its own location) falls inside the window
func (q QuietWindow) Contains(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if q.Start < q.End {
		return m >= q.Start && m < q.End
	}
	return m >= q.Start || m < q.End
}

// Remaining returns the time from t until the window ends
func (q QuietWindow) Remaining(t time.Time) time.Duration {
	if !q.Contains(t) {
		return 0
	}
	y, mo, d := t.Date()
	end := time.Date(y, mo, d, q.End/60, q.End%60, 0, 0, t.Location())
	if !end.After(t) {
		end = end.AddDate(0, 0, 1)
	}
	return end.Sub(t)
}

// String formats the window as HH:MM-HH:MM
func (q QuietWindow) String() string {
	if !q.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", q.Start/60, q.Start%60, q.End/60, q.End%60)
}
