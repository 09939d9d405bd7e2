package gtfs

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/config"
)

// ErrMissingTable marks a static feed missing one of the required tables.
var ErrMissingTable = errors.New("gtfs: required table missing")

// defaultTimezone is assumed when neither agency.txt nor the configuration
// names a feed timezone.
const defaultTimezone = "America/Los_Angeles"

// LoadFromConfig downloads (or reuses a cached copy of) the static feed zip
// and builds the Store. A corrupt cached zip is discarded and re-fetched
// once before the load fails.
func LoadFromConfig(cfg config.GTFSConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("gtfs: create data dir: %w", err)
	}
	zipPath := filepath.Join(cfg.DataDir, "static.zip")

	if _, err := os.Stat(zipPath); err == nil {
		if zipReadable(zipPath) {
			log.Printf("[gtfs] using cached %s", zipPath)
			return LoadFromZipFile(zipPath, cfg.Timezone)
		}
		log.Printf("[gtfs] cached %s is corrupt, re-downloading", zipPath)
		_ = os.Remove(zipPath)
	}

	log.Printf("[gtfs] downloading static feed from %s", cfg.StaticURL)
	if err := downloadFile(cfg.StaticURL, zipPath); err != nil {
		return nil, fmt.Errorf("gtfs: download static feed: %w", err)
	}
	return LoadFromZipFile(zipPath, cfg.Timezone)
}

// LoadFromZipFile parses a static feed zip into a Store. Required tables are
// routes, stops, trips and shapes; the rest degrade to empty indexes. A
// corrupt archive is removed so the next load re-fetches it.
func LoadFromZipFile(path, tzOverride string) (*Store, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("gtfs: open zip %s: %w", path, err)
	}
	defer zr.Close()
	return loadFromZip(&zr.Reader, tzOverride)
}

func loadFromZip(zr *zip.Reader, tzOverride string) (*Store, error) {
	open := func(name string) (io.ReadCloser, bool) {
		for _, f := range zr.File {
			n := strings.ToLower(f.Name)
			if n == name || strings.HasSuffix(n, "/"+name) {
				rc, err := f.Open()
				if err != nil {
					return nil, false
				}
				return rc, true
			}
		}
		return nil, false
	}

	required := func(name string, parse func(io.Reader) error) error {
		rc, ok := open(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingTable, name)
		}
		defer rc.Close()
		if err := parse(rc); err != nil {
			return fmt.Errorf("gtfs: parse %s: %w", name, err)
		}
		return nil
	}
	optional := func(name string, parse func(io.Reader) error) error {
		rc, ok := open(name)
		if !ok {
			return nil
		}
		defer rc.Close()
		if err := parse(rc); err != nil {
			return fmt.Errorf("gtfs: parse %s: %w", name, err)
		}
		return nil
	}

	var (
		routes         map[string]Route
		stops          map[string]Stop
		trips          []Trip
		shapes         map[string][]ShapePoint
		firstStopTimes = map[string]StopTime{}
		frequencies    []FrequencyWindow
		calendars      []Calendar
		calendarDates  []CalendarDate
		agencyTZ       string
	)

	steps := []error{
		required("routes.txt", func(r io.Reader) (err error) { routes, err = parseRoutes(r); return }),
		required("stops.txt", func(r io.Reader) (err error) { stops, err = parseStops(r); return }),
		required("trips.txt", func(r io.Reader) (err error) { trips, err = parseTrips(r); return }),
		required("shapes.txt", func(r io.Reader) (err error) { shapes, err = parseShapes(r); return }),
		optional("stop_times.txt", func(r io.Reader) (err error) { firstStopTimes, err = parseFirstStopTimes(r); return }),
		optional("frequencies.txt", func(r io.Reader) (err error) { frequencies, err = parseFrequencies(r); return }),
		optional("calendar.txt", func(r io.Reader) (err error) { calendars, err = parseCalendar(r); return }),
		optional("calendar_dates.txt", func(r io.Reader) (err error) { calendarDates, err = parseCalendarDates(r); return }),
		optional("agency.txt", func(r io.Reader) (err error) { agencyTZ, err = parseAgencyTimezone(r); return }),
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}

	tz := feedLocation(tzOverride, agencyTZ)

	store := NewStore(routes, stops, trips, shapes, firstStopTimes, frequencies, calendars, calendarDates, tz)
	log.Printf("[gtfs] loaded %d routes, %d stops, %d trips, %d shapes, %d calendars, %d exceptions (tz %s)",
		len(routes), len(stops), len(trips), len(shapes), len(calendars), len(calendarDates), tz)
	return store, nil
}

// feedLocation resolves the feed timezone: explicit override, then the
// agency.txt value, then the default. Unknown names fall back to UTC.
func feedLocation(override, agencyTZ string) *time.Location {
	name := override
	if name == "" {
		name = agencyTZ
	}
	if name == "" {
		name = defaultTimezone
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[gtfs] unknown timezone %q, falling back to UTC", name)
		return time.UTC
	}
	return tz
}

func zipReadable(path string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	_ = zr.Close()
	return true
}

func downloadFile(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "gtfs-*.zip")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
