package gtfs

import (
	"testing"
	"time"
)

func emptyStore(calendars []Calendar, dates []CalendarDate, tz *time.Location) *Store {
	return NewStore(
		map[string]Route{}, map[string]Stop{}, nil, map[string][]ShapePoint{},
		nil, nil, calendars, dates, tz,
	)
}

func TestActiveServiceIDs(t *testing.T) {
	weekdaysOnly := Calendar{
		ServiceID: "weekday",
		StartDate: "20250101",
		EndDate:   "20251231",
	}
	for d := time.Monday; d <= time.Friday; d++ {
		weekdaysOnly.Weekdays[d] = true
	}
	saturdayOnly := Calendar{
		ServiceID: "saturday",
		StartDate: "20250101",
		EndDate:   "20251231",
	}
	saturdayOnly.Weekdays[time.Saturday] = true

	// 2025-03-05 is a Wednesday.
	wednesday := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		calendars []Calendar
		dates     []CalendarDate
		at        time.Time
		want      []string
		dontWant  []string
	}{
		{
			name:      "weekday bit active",
			calendars: []Calendar{weekdaysOnly, saturdayOnly},
			at:        wednesday,
			want:      []string{"weekday"},
			dontWant:  []string{"saturday"},
		},
		{
			name:      "outside validity range",
			calendars: []Calendar{{ServiceID: "old", StartDate: "20240101", EndDate: "20241231", Weekdays: weekdaysOnly.Weekdays}},
			at:        wednesday,
			dontWant:  []string{"old"},
		},
		{
			name:      "type 1 exception adds service",
			calendars: []Calendar{saturdayOnly},
			dates:     []CalendarDate{{ServiceID: "saturday", Date: "20250305", ExceptionType: 1}},
			at:        wednesday,
			want:      []string{"saturday"},
		},
		{
			name:      "type 2 exception removes service",
			calendars: []Calendar{weekdaysOnly},
			dates:     []CalendarDate{{ServiceID: "weekday", Date: "20250305", ExceptionType: 2}},
			at:        wednesday,
			dontWant:  []string{"weekday"},
		},
		{
			name:      "exception on another date ignored",
			calendars: []Calendar{weekdaysOnly},
			dates:     []CalendarDate{{ServiceID: "weekday", Date: "20250306", ExceptionType: 2}},
			at:        wednesday,
			want:      []string{"weekday"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := emptyStore(tt.calendars, tt.dates, time.UTC)
			active := s.ActiveServiceIDs(tt.at)
			for _, id := range tt.want {
				if _, ok := active[id]; !ok {
					t.Errorf("service %q should be active", id)
				}
			}
			for _, id := range tt.dontWant {
				if _, ok := active[id]; ok {
					t.Errorf("service %q should not be active", id)
				}
			}
		})
	}
}

func TestActiveServiceIDs_UsesFeedTimezone(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Active only on Tuesdays.
	cal := Calendar{ServiceID: "tue", StartDate: "20250101", EndDate: "20251231"}
	cal.Weekdays[time.Tuesday] = true
	s := emptyStore([]Calendar{cal}, nil, la)

	// 02:00 UTC Wednesday is 18:00 Tuesday in Los Angeles.
	at := time.Date(2025, 3, 5, 2, 0, 0, 0, time.UTC)
	if _, ok := s.ActiveServiceIDs(at)["tue"]; !ok {
		t.Error("expected Tuesday service active for an instant that is still Tuesday locally")
	}
}

func TestSecondsFromMidnight(t *testing.T) {
	s := emptyStore(nil, nil, time.UTC)
	at := time.Date(2025, 3, 5, 8, 30, 15, 0, time.UTC)
	want := 8*3600 + 30*60 + 15
	if got := s.SecondsFromMidnight(at); got != want {
		t.Errorf("SecondsFromMidnight = %d, want %d", got, want)
	}
}
