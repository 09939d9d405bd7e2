package gtfs

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// table is a parsed CSV file with case-insensitive header lookup.
type table struct {
	rows [][]string
	cols map[string]int
}

func parseTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rec, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	t := &table{cols: map[string]int{}}
	if len(rec) == 0 {
		return t, nil
	}
	for i, h := range rec[0] {
		t.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	t.rows = rec[1:]
	return t, nil
}

// get returns the named column of a row, or "" when the column is missing or
// the row is short.
func (t *table) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRoutes(r io.Reader) (map[string]Route, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Route, len(t.rows))
	for _, row := range t.rows {
		id := t.get(row, "route_id")
		if id == "" {
			continue
		}
		short := t.get(row, "route_short_name")
		if short == "" {
			short = id
		}
		color := t.get(row, "route_color")
		textColor := t.get(row, "route_text_color")
		if textColor == "" {
			textColor = "000000"
		}
		rt := t.get(row, "route_type")
		if rt == "" {
			rt = "3"
		}
		out[id] = Route{
			RouteID:   id,
			ShortName: short,
			LongName:  t.get(row, "route_long_name"),
			Color:     color,
			TextColor: textColor,
			Category:  routeCategory(short, color, rt),
		}
	}
	return out, nil
}

func parseStops(r io.Reader) (map[string]Stop, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Stop, len(t.rows))
	for _, row := range t.rows {
		id := t.get(row, "stop_id")
		if id == "" {
			continue
		}
		lat, _ := strconv.ParseFloat(t.get(row, "stop_lat"), 64)
		lng, _ := strconv.ParseFloat(t.get(row, "stop_lon"), 64)
		out[id] = Stop{StopID: id, StopName: t.get(row, "stop_name"), Lat: lat, Lng: lng}
	}
	return out, nil
}

func parseTrips(r io.Reader) ([]Trip, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	out := make([]Trip, 0, len(t.rows))
	for _, row := range t.rows {
		id := t.get(row, "trip_id")
		if id == "" {
			continue
		}
		dir, _ := strconv.Atoi(t.get(row, "direction_id"))
		out = append(out, Trip{
			TripID:    id,
			RouteID:   t.get(row, "route_id"),
			Direction: dir,
			ShapeID:   t.get(row, "shape_id"),
			ServiceID: t.get(row, "service_id"),
			Headsign:  t.get(row, "trip_headsign"),
		})
	}
	return out, nil
}

func parseShapes(r io.Reader) (map[string][]ShapePoint, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	raw := map[string][]ShapePoint{}
	for _, row := range t.rows {
		id := t.get(row, "shape_id")
		if id == "" {
			continue
		}
		lat, _ := strconv.ParseFloat(t.get(row, "shape_pt_lat"), 64)
		lng, _ := strconv.ParseFloat(t.get(row, "shape_pt_lon"), 64)
		seq, _ := strconv.Atoi(t.get(row, "shape_pt_sequence"))
		raw[id] = append(raw[id], ShapePoint{Lat: lat, Lng: lng, Sequence: seq})
	}
	out := make(map[string][]ShapePoint, len(raw))
	for id, pts := range raw {
		out[id] = BuildShape(pts)
	}
	return out, nil
}

// parseFirstStopTimes keeps only the lowest-sequence stop-time row per trip;
// that is all the headway pipeline needs from stop_times.txt.
func parseFirstStopTimes(r io.Reader) (map[string]StopTime, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	out := map[string]StopTime{}
	for _, row := range t.rows {
		id := t.get(row, "trip_id")
		if id == "" {
			continue
		}
		seq, _ := strconv.Atoi(t.get(row, "stop_sequence"))
		if existing, ok := out[id]; ok && existing.StopSequence <= seq {
			continue
		}
		out[id] = StopTime{
			TripID:        id,
			StopID:        t.get(row, "stop_id"),
			StopSequence:  seq,
			ArrivalSecs:   ParseGTFSTime(t.get(row, "arrival_time")),
			DepartureSecs: ParseGTFSTime(t.get(row, "departure_time")),
		}
	}
	return out, nil
}

func parseFrequencies(r io.Reader) ([]FrequencyWindow, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	out := make([]FrequencyWindow, 0, len(t.rows))
	for _, row := range t.rows {
		id := t.get(row, "trip_id")
		if id == "" {
			continue
		}
		headway, _ := strconv.Atoi(t.get(row, "headway_secs"))
		out = append(out, FrequencyWindow{
			TripID:      id,
			StartSecs:   ParseGTFSTime(t.get(row, "start_time")),
			EndSecs:     ParseGTFSTime(t.get(row, "end_time")),
			HeadwaySecs: headway,
			ExactTimes:  t.get(row, "exact_times") == "1",
		})
	}
	return out, nil
}

func parseCalendar(r io.Reader) ([]Calendar, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	days := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	out := make([]Calendar, 0, len(t.rows))
	for _, row := range t.rows {
		id := t.get(row, "service_id")
		if id == "" {
			continue
		}
		c := Calendar{
			ServiceID: id,
			StartDate: t.get(row, "start_date"),
			EndDate:   t.get(row, "end_date"),
		}
		for i, d := range days {
			c.Weekdays[i] = t.get(row, d) == "1"
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCalendarDates(r io.Reader) ([]CalendarDate, error) {
	t, err := parseTable(r)
	if err != nil {
		return nil, err
	}
	out := make([]CalendarDate, 0, len(t.rows))
	for _, row := range t.rows {
		id := t.get(row, "service_id")
		if id == "" {
			continue
		}
		et, _ := strconv.Atoi(t.get(row, "exception_type"))
		out = append(out, CalendarDate{ServiceID: id, Date: t.get(row, "date"), ExceptionType: et})
	}
	return out, nil
}

// parseAgencyTimezone returns the first agency_timezone value, or "".
func parseAgencyTimezone(r io.Reader) (string, error) {
	t, err := parseTable(r)
	if err != nil {
		return "", err
	}
	for _, row := range t.rows {
		if tz := t.get(row, "agency_timezone"); tz != "" {
			return tz, nil
		}
	}
	return "", nil
}

// ParseGTFSTime converts a GTFS HH:MM:SS string to seconds from midnight.
// GTFS allows hours past 24 for after-midnight service; those are preserved
// (e.g. "25:10:00" -> 90600). Malformed input yields 0.
func ParseGTFSTime(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return h*3600 + m*60 + sec
}
