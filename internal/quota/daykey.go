package quota

import (
	"fmt"
	"time"
)

// DayKeys derives the per-day partition key for usage records. A single
// reference timezone is fixed at construction so every user shares the same
// reset boundary regardless of where requests originate.
type DayKeys struct {
	loc *time.Location
}

func NewDayKeys(timezone string) (*DayKeys, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load quota timezone %q: %w", timezone, err)
	}
	return &DayKeys{loc: loc}, nil
}

// Key returns the YYYY-MM-DD day key for t in the reference timezone.
func (d *DayKeys) Key(t time.Time) string {
	return t.In(d.loc).Format("2006-01-02")
}
