package budget

import "time"

// WeekBounds returns the Monday and Sunday (UTC, at midnight) of the week containing t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	delta := (int(t.Weekday()) - int(time.Monday) + 7) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-delta, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 6)
}
