package selection

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateReason(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
	}{
		{"short ascii", "TRAINING: insufficient data", 27},
		{"long ascii", strings.Repeat("x", 600), 500},
		{"korean cut on rune boundary", strings.Repeat("가", 200), 498},
		{"offset multi-byte run", "a" + strings.Repeat("가", 200), 499},
		{"exact limit", strings.Repeat("가", 166) + "ab", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateReason(tt.in)
			assert.Len(t, got, tt.wantLen)
			assert.True(t, utf8.ValidString(got))
			assert.True(t, strings.HasPrefix(tt.in, got))
		})
	}

	t.Run("invalid utf-8 is replaced", func(t *testing.T) {
		got := truncateReason("FORECASTING: bad\xff\xfe byte")
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, "FORECASTING: bad� byte", got)
	})
}

func TestMemoryStore_MarkFailedTruncatesReason(t *testing.T) {
	store := NewMemoryStore()
	reason := "TRAINING: 학습 실패 " + strings.Repeat("데이터 부족 ", 100)

	require.NoError(t, store.MarkFailed(context.Background(), "AAPL", today, reason))

	s, ok := store.Get("AAPL")
	require.True(t, ok)
	assert.LessOrEqual(t, len(s.LastError), maxReasonBytes)
	assert.True(t, utf8.ValidString(s.LastError))
	assert.True(t, strings.HasPrefix(reason, s.LastError))
}
