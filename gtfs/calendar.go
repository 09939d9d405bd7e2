package gtfs

import "time"

// ActiveServiceIDs returns the set of service ids active on the calendar
// date of the given instant, evaluated in the feed's local timezone. Using
// the feed timezone matters: a server running in UTC would otherwise compute
// the wrong date and weekday for several hours around local midnight.
//
// Weekly calendar rows activate a service when the date falls inside the
// validity range and the local weekday bit is set. Exceptions then apply:
// type 1 adds the service on that date, type 2 removes it.
func (s *Store) ActiveServiceIDs(at time.Time) map[string]struct{} {
	local := at.In(s.tz)
	yyyymmdd := local.Format("20060102")
	weekday := int(local.Weekday())

	active := map[string]struct{}{}
	for _, cal := range s.calendars {
		if cal.StartDate > yyyymmdd || cal.EndDate < yyyymmdd {
			continue
		}
		if cal.Weekdays[weekday] {
			active[cal.ServiceID] = struct{}{}
		}
	}
	for _, exc := range s.calendarDates {
		if exc.Date != yyyymmdd {
			continue
		}
		if exc.ExceptionType == 1 {
			active[exc.ServiceID] = struct{}{}
		} else if exc.ExceptionType == 2 {
			delete(active, exc.ServiceID)
		}
	}
	return active
}

// SecondsFromMidnight returns the local time-of-day of the given instant in
// the feed timezone, in seconds.
func (s *Store) SecondsFromMidnight(at time.Time) int {
	local := at.In(s.tz)
	return local.Hour()*3600 + local.Minute()*60 + local.Second()
}
