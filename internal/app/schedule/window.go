package schedule

import (
	"fmt"
	"time"

	"github.com/ghalamif/uabridge/internal/domain"
)

// windowShape is the lookback and end-truncation rule for one history type.
type windowShape struct {
	lookbackDays int
	truncateHour bool
}

var shapes = map[domain.HistoryType]windowShape{
	domain.HistoryTypeDaily:  {lookbackDays: 30, truncateHour: false},
	domain.HistoryTypeHourly: {lookbackDays: 2, truncateHour: true},
}

// Window is a half-open [Start, End) time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether Start is not after End.
func (w Window) Valid() bool {
	return !w.Start.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// DefaultWindow computes the naive backfill window relative to now, in now's location.
//
//	daily:  [today-30d 00:00, today 00:00)
//	hourly: [today-2d 00:00, today currentHour:00)
func DefaultWindow(t domain.HistoryType, now time.Time) (Window, error) {
	shape, ok := shapes[t]
	if !ok {
		return Window{}, fmt.Errorf("unknown history type %q", t)
	}

	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	end := midnight
	if shape.truncateHour {
		end = time.Date(y, m, d, now.Hour(), 0, 0, 0, now.Location())
	}
	return Window{Start: midnight.AddDate(0, 0, -shape.lookbackDays), End: end}, nil
}

// CheckpointWindow applies a delivered checkpoint over the default window.
// A present checkpoint always replaces the default start.
func CheckpointWindow(t domain.HistoryType, now time.Time, checkpoint *time.Time) (Window, error) {
	w, err := DefaultWindow(t, now)
	if err != nil {
		return Window{}, err
	}
	if checkpoint != nil && !checkpoint.IsZero() {
		w.Start = checkpoint.In(now.Location())
	}
	return w, nil
}
