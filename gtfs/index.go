package gtfs

import (
	"sort"
	"time"
)

// Store holds the parsed static feed plus derived lookup indexes. It is
// built once at startup and read-only afterwards, so it is safe for
// concurrent readers without locking.
type Store struct {
	Routes map[string]Route
	Stops  map[string]Stop
	Trips  map[string]Trip
	Shapes map[string][]ShapePoint

	routeTrips     map[RouteDir][]Trip
	routeShape     map[RouteDir]string
	frequencies    map[RouteDir][]FrequencyWindow
	departures     map[RouteDirService][]int
	firstStops     map[RouteDir]map[string]struct{}
	firstStopTimes map[string]StopTime

	calendars     []Calendar
	calendarDates []CalendarDate

	tz *time.Location
}

// NewStore assembles a Store from parsed tables and builds the derived
// indexes. tz is the feed's local timezone; nil falls back to UTC.
func NewStore(
	routes map[string]Route,
	stops map[string]Stop,
	trips []Trip,
	shapes map[string][]ShapePoint,
	firstStopTimes map[string]StopTime,
	frequencies []FrequencyWindow,
	calendars []Calendar,
	calendarDates []CalendarDate,
	tz *time.Location,
) *Store {
	if tz == nil {
		tz = time.UTC
	}
	if firstStopTimes == nil {
		firstStopTimes = map[string]StopTime{}
	}
	s := &Store{
		Routes:         routes,
		Stops:          stops,
		Trips:          make(map[string]Trip, len(trips)),
		Shapes:         shapes,
		routeTrips:     map[RouteDir][]Trip{},
		routeShape:     map[RouteDir]string{},
		frequencies:    map[RouteDir][]FrequencyWindow{},
		departures:     map[RouteDirService][]int{},
		firstStops:     map[RouteDir]map[string]struct{}{},
		firstStopTimes: firstStopTimes,
		calendars:      calendars,
		calendarDates:  calendarDates,
		tz:             tz,
	}

	for _, t := range trips {
		s.Trips[t.TripID] = t
		rd := RouteDir{RouteID: t.RouteID, Direction: t.Direction}
		s.routeTrips[rd] = append(s.routeTrips[rd], t)
	}

	s.buildShapeIndex(trips)
	s.buildFrequencyIndex(frequencies)
	s.buildDepartureIndexes(trips, firstStopTimes)

	return s
}

// buildShapeIndex picks, per route+direction, the shape id used by the most
// trips. Ties go to the shape seen first in trip order.
func (s *Store) buildShapeIndex(trips []Trip) {
	counts := map[RouteDir]map[string]int{}
	order := map[RouteDir][]string{}
	for _, t := range trips {
		if t.ShapeID == "" {
			continue
		}
		rd := RouteDir{RouteID: t.RouteID, Direction: t.Direction}
		m := counts[rd]
		if m == nil {
			m = map[string]int{}
			counts[rd] = m
		}
		if _, seen := m[t.ShapeID]; !seen {
			order[rd] = append(order[rd], t.ShapeID)
		}
		m[t.ShapeID]++
	}
	for rd, m := range counts {
		best, bestCount := "", 0
		for _, shapeID := range order[rd] {
			if m[shapeID] > bestCount {
				best, bestCount = shapeID, m[shapeID]
			}
		}
		if best != "" {
			s.routeShape[rd] = best
		}
	}
}

func (s *Store) buildFrequencyIndex(frequencies []FrequencyWindow) {
	for _, fw := range frequencies {
		t, ok := s.Trips[fw.TripID]
		if !ok {
			continue
		}
		rd := RouteDir{RouteID: t.RouteID, Direction: t.Direction}
		s.frequencies[rd] = append(s.frequencies[rd], fw)
	}
	for _, windows := range s.frequencies {
		sort.Slice(windows, func(i, j int) bool { return windows[i].StartSecs < windows[j].StartSecs })
	}
}

func (s *Store) buildDepartureIndexes(trips []Trip, firstStopTimes map[string]StopTime) {
	for _, t := range trips {
		st, ok := firstStopTimes[t.TripID]
		if !ok {
			continue
		}
		rd := RouteDir{RouteID: t.RouteID, Direction: t.Direction}
		key := RouteDirService{RouteDir: rd, ServiceID: t.ServiceID}
		s.departures[key] = append(s.departures[key], st.DepartureSecs)
		set := s.firstStops[rd]
		if set == nil {
			set = map[string]struct{}{}
			s.firstStops[rd] = set
		}
		set[st.StopID] = struct{}{}
	}
	for _, times := range s.departures {
		sort.Ints(times)
	}
}

// Location returns the feed's local timezone.
func (s *Store) Location() *time.Location { return s.tz }

// ShapeForRouteDir returns the canonical shape for a route+direction, or nil.
func (s *Store) ShapeForRouteDir(rd RouteDir) []ShapePoint {
	shapeID, ok := s.routeShape[rd]
	if !ok {
		return nil
	}
	return s.Shapes[shapeID]
}

// ShapeIDForRouteDir returns the majority-vote shape id, or "".
func (s *Store) ShapeIDForRouteDir(rd RouteDir) string { return s.routeShape[rd] }

// TripsForRouteDir returns all trips serving a route+direction.
func (s *Store) TripsForRouteDir(rd RouteDir) []Trip { return s.routeTrips[rd] }

// IsFirstStop reports whether stopID is the first stop of any trip on the
// route+direction. Vehicles whose next stop is a first stop have not yet
// departed the terminal.
func (s *Store) IsFirstStop(rd RouteDir, stopID string) bool {
	set, ok := s.firstStops[rd]
	if !ok {
		return false
	}
	_, ok = set[stopID]
	return ok
}

// StopName returns the display name of a stop, or "".
func (s *Store) StopName(stopID string) string { return s.Stops[stopID].StopName }
