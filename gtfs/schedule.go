package gtfs

import (
	"sort"
	"time"
)

// ExpectedHeadway returns the scheduled headway in seconds for a
// route+direction at the given instant, or (0, false) when the schedule does
// not determine one.
//
// Frequency windows take priority: the window whose [start, end) interval
// contains the local time-of-day wins. A query after the last window
// extrapolates the last window's headway; a query before the first window
// returns the first window's headway, symmetric with the after-last case.
//
// Without frequency data the headway is inferred from the gap between the
// scheduled first-stop departures straddling the query time, merged across
// all service ids active on the date. Fewer than two known departures, or a
// degenerate straddling pair, yields unknown.
func (s *Store) ExpectedHeadway(rd RouteDir, at time.Time) (int, bool) {
	nowSecs := s.SecondsFromMidnight(at)

	if windows := s.frequencies[rd]; len(windows) > 0 {
		for _, w := range windows {
			if nowSecs >= w.StartSecs && nowSecs < w.EndSecs {
				return w.HeadwaySecs, true
			}
		}
		if nowSecs < windows[0].StartSecs {
			return windows[0].HeadwaySecs, true
		}
		return windows[len(windows)-1].HeadwaySecs, true
	}

	active := s.ActiveServiceIDs(at)
	if len(active) == 0 {
		return 0, false
	}

	var merged []int
	for serviceID := range active {
		key := RouteDirService{RouteDir: rd, ServiceID: serviceID}
		merged = append(merged, s.departures[key]...)
	}
	if len(merged) < 2 {
		return 0, false
	}
	sort.Ints(merged)
	return headwayFromSortedTimes(merged, nowSecs)
}

// headwayFromSortedTimes finds the departure pair straddling nowSecs and
// returns their gap. The binary search locates the first departure at or
// after the query time; the one before it is the other side of the pair.
func headwayFromSortedTimes(times []int, nowSecs int) (int, bool) {
	if len(times) < 2 {
		return 0, false
	}
	after := sort.SearchInts(times, nowSecs)
	if after >= len(times) {
		after = len(times) - 1
	}
	before := after - 1
	if before < 0 {
		before = 0
	}
	if before == after {
		return 0, false
	}
	gap := times[after] - times[before]
	if gap <= 0 {
		return 0, false
	}
	return gap, true
}
