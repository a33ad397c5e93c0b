package month

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentAndPrevious(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		curStart  time.Time
		prevStart time.Time
	}{
		{
			name:      "mid month",
			now:       time.Date(2025, 5, 17, 13, 45, 0, 0, time.UTC),
			curStart:  time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			prevStart: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "january wraps year",
			now:       time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			curStart:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			prevStart: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "non utc input",
			now:       time.Date(2025, 3, 1, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*3600)),
			curStart:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			prevStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := Current(tt.now)
			prev := Previous(tt.now)

			assert.Equal(t, tt.curStart, cur.Start)
			assert.True(t, cur.End.Equal(tt.now))
			assert.Equal(t, tt.prevStart, prev.Start)
			assert.Equal(t, tt.curStart, prev.End)
		})
	}
}

func TestYear(t *testing.T) {
	r := Year(2024)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), r.End)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "Jan", Short(time.January))
	assert.Equal(t, "Sep", Short(time.September))
	assert.Equal(t, "Dec", Short(time.December))
}

func TestTrend(t *testing.T) {
	assert.Equal(t, "up", Trend(10, 5))
	assert.Equal(t, "up", Trend(5, 5))
	assert.Equal(t, "down", Trend(4, 5))
}
