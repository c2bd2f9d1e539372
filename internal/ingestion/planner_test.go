package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanWindows_CoversRangeExactly(t *testing.T) {
	start := date(2024, time.January, 1)
	end := date(2024, time.January, 6)

	windows, err := PlanWindows(start, end)

	assert.NoError(t, err)
	assert.Len(t, windows, 5)

	// Contiguous, non-overlapping, one day each, union == [start, end)
	assert.Equal(t, start, windows[0].Start)
	assert.Equal(t, end, windows[len(windows)-1].End)
	for i, w := range windows {
		assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start), "window %d is not one day", i)
		if i > 0 {
			assert.Equal(t, windows[i-1].End, w.Start, "gap or overlap before window %d", i)
		}
	}
}

func TestPlanWindows_SingleDay(t *testing.T) {
	windows, err := PlanWindows(date(2024, time.March, 10), date(2024, time.March, 11))

	assert.NoError(t, err)
	assert.Len(t, windows, 1)
	assert.Equal(t, "2024-03-10", windows[0].Label())
}

func TestPlanWindows_EmptyRange(t *testing.T) {
	windows, err := PlanWindows(date(2024, time.January, 1), date(2024, time.January, 1))

	assert.NoError(t, err)
	assert.Empty(t, windows)
}

func TestPlanWindows_InvalidRange(t *testing.T) {
	windows, err := PlanWindows(date(2024, time.January, 2), date(2024, time.January, 1))

	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Nil(t, windows)
}

func TestPlanWindows_TruncatesTimeOfDay(t *testing.T) {
	start := time.Date(2024, time.May, 1, 13, 45, 12, 0, time.UTC)
	end := time.Date(2024, time.May, 3, 2, 0, 0, 0, time.UTC)

	windows, err := PlanWindows(start, end)

	assert.NoError(t, err)
	assert.Len(t, windows, 2)
	assert.Equal(t, date(2024, time.May, 1), windows[0].Start)
	assert.Equal(t, date(2024, time.May, 3), windows[1].End)
}
