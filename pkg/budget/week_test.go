package budget

import (
	"testing"
	"time"
)

func TestWeekBounds(t *testing.T) {
	warsaw, _ := time.LoadLocation("Europe/Warsaw")
	tests := []struct {
		name      string
		at        time.Time
		wantStart time.Time
	}{
		{"monday midnight", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"wednesday afternoon", time.Date(2025, 1, 15, 15, 30, 0, 0, time.UTC), time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"sunday last second", time.Date(2025, 1, 19, 23, 59, 59, 0, time.UTC), time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"crosses year boundary", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
		{"non-UTC input is converted", time.Date(2025, 1, 20, 0, 30, 0, 0, warsaw), time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := WeekBounds(tt.at)
			if !start.Equal(tt.wantStart) {
				t.Fatalf("start = %v, want %v", start, tt.wantStart)
			}
			if want := tt.wantStart.AddDate(0, 0, 6); !end.Equal(want) {
				t.Fatalf("end = %v, want %v", end, want)
			}
			if start.Weekday() != time.Monday || end.Weekday() != time.Sunday {
				t.Fatalf("bounds %v..%v are not Monday..Sunday", start, end)
			}
		})
	}
}
