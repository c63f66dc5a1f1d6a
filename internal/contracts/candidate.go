package contracts

import "time"

// CandidateState 티커별 선정 상태 (lstm_candidates)
// ⭐ SSOT: 선정 우선순위/처리 여부는 이 구조체로만 표현
type CandidateState struct {
	Ticker           string     `json:"ticker"`
	MentionFrequency int        `json:"mention_frequency"` // 최근 분석 건수
	Priority         int        `json:"priority"`          // 건너뛸 때마다 +1, 처리되면 0
	ProcessedDate    *time.Time `json:"processed_date,omitempty"`
	FailedDate       *time.Time `json:"failed_date,omitempty"`
	Failures         int        `json:"failures"` // FailedDate 당일 실패 횟수
	LastError        string     `json:"last_error,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ProcessedOn reports whether the ticker was processed on the given calendar day
func (c *CandidateState) ProcessedOn(day time.Time) bool {
	return c.ProcessedDate != nil && SameDay(*c.ProcessedDate, day)
}

// FailuresOn returns the failure count recorded for the given calendar day
func (c *CandidateState) FailuresOn(day time.Time) int {
	if c.FailedDate == nil || !SameDay(*c.FailedDate, day) {
		return 0
	}
	return c.Failures
}

// SameDay compares calendar dates, ignoring time of day and zone offsets
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOf truncates t to midnight UTC of its calendar date
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
