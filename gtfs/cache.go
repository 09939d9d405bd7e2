package gtfs

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
)

// storeSnapshot is the gob-encodable form of a Store: the parsed tables plus
// the timezone name. Derived indexes are cheap to rebuild and are not
// persisted.
type storeSnapshot struct {
	Routes         map[string]Route
	Stops          map[string]Stop
	Trips          []Trip
	Shapes         map[string][]ShapePoint
	FirstStopTimes map[string]StopTime
	Frequencies    []FrequencyWindow
	Calendars      []Calendar
	CalendarDates  []CalendarDate
	Timezone       string
}

// SerializeStore encodes the Store for disk caching, avoiding a re-parse of
// the static zip on restart.
func SerializeStore(s *Store) ([]byte, error) {
	snap := storeSnapshot{
		Routes:         s.Routes,
		Stops:          s.Stops,
		Shapes:         s.Shapes,
		FirstStopTimes: s.firstStopTimes,
		Calendars:      s.calendars,
		CalendarDates:  s.calendarDates,
		Timezone:       s.tz.String(),
	}
	for _, trips := range s.routeTrips {
		snap.Trips = append(snap.Trips, trips...)
	}
	for _, windows := range s.frequencies {
		snap.Frequencies = append(snap.Frequencies, windows...)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("gtfs: encode store: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeStore decodes a cached Store. A decode failure means the cache
// is corrupt; callers should discard the file and rebuild from the zip.
func DeserializeStore(data []byte) (*Store, error) {
	var snap storeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("gtfs: decode store: %w", err)
	}
	tz := feedLocation(snap.Timezone, "")
	return NewStore(snap.Routes, snap.Stops, snap.Trips, snap.Shapes,
		snap.FirstStopTimes, snap.Frequencies, snap.Calendars, snap.CalendarDates, tz), nil
}

// SerializeStoreToFile writes the encoded Store to a file.
func SerializeStoreToFile(s *Store, path string) error {
	data, err := SerializeStore(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DeserializeStoreFromFile reads an encoded Store from a file.
func DeserializeStoreFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gtfs: read cache file: %w", err)
	}
	return DeserializeStore(data)
}
