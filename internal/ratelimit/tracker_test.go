package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(limit, remaining, reset, used string) http.Header {
	h := http.Header{}
	if limit != "" {
		h.Set(HeaderLimit, limit)
	}
	if remaining != "" {
		h.Set(HeaderRemaining, remaining)
	}
	if reset != "" {
		h.Set(HeaderReset, reset)
	}
	if used != "" {
		h.Set(HeaderUsed, used)
	}
	return h
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		wantOK bool
	}{
		{"all headers", header("5000", "4999", "1700000000", "1"), true},
		{"missing used", header("5000", "4999", "1700000000", ""), false},
		{"missing limit", header("", "4999", "1700000000", "1"), false},
		{"non numeric remaining", header("5000", "lots", "1700000000", "1"), false},
		{"empty", http.Header{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, ok := Parse(tt.header)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, 5000, rl.Limit)
				assert.Equal(t, 4999, rl.Remaining)
				assert.Equal(t, int64(1700000000), rl.Reset)
				assert.Equal(t, 1, rl.Used)
			}
		})
	}
}

func TestTracker_UpdateKeepsStaleValueOnMalformedHeaders(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Current()
	assert.False(t, ok)

	_, ok = tr.Update(header("60", "59", "1700000000", "1"))
	require.True(t, ok)

	_, ok = tr.Update(header("60", "oops", "1700000000", "2"))
	assert.False(t, ok)

	rl, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, 59, rl.Remaining)
	assert.Equal(t, 1, rl.Used)
}

func TestTracker_Blocked(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tr := NewTracker().WithClock(func() time.Time { return now })

	blocked, _ := tr.Blocked()
	assert.False(t, blocked, "unknown quota never blocks")

	tr.Update(header("60", "0", "1700000100", "60"))

	blocked, resetAt := tr.Blocked()
	assert.True(t, blocked)
	assert.Equal(t, time.Unix(1_700_000_100, 0), resetAt)

	now = time.Unix(1_700_000_100, 0)
	blocked, _ = tr.Blocked()
	assert.False(t, blocked, "reset time reached")
}

func TestTracker_NotBlockedWithRemainingQuota(t *testing.T) {
	tr := NewTracker()
	tr.Update(header("60", "1", "9999999999", "59"))

	blocked, _ := tr.Blocked()
	assert.False(t, blocked)
}
