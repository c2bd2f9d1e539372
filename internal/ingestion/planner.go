package ingestion

import (
	"errors"
	"time"

	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// ErrInvalidRange reports window bounds with start after end. It is fatal and
// aborts a run before any work starts.
var ErrInvalidRange = errors.New("invalid date range: start must not be after end")

// PlanWindows splits the half-open range [start, end) into contiguous,
// non-overlapping one-day windows. start == end plans nothing; start after
// end fails with ErrInvalidRange.
func PlanWindows(start, end time.Time) ([]models.Window, error) {
	start = truncateDay(start)
	end = truncateDay(end)

	if start.After(end) {
		return nil, ErrInvalidRange
	}

	var windows []models.Window
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		windows = append(windows, models.Window{
			Start: day,
			End:   day.AddDate(0, 0, 1),
		})
	}
	return windows, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
