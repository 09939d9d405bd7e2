package gtfs

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "static.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}
	return path
}

func minimalFeed() map[string]string {
	return map[string]string{
		"routes.txt": "route_id,route_short_name,route_color,route_type\nr1,44,AA0000,3\n",
		"stops.txt":  "stop_id,stop_name,stop_lat,stop_lon\ns1,Pike St,47.61,-122.33\n",
		"trips.txt":  "trip_id,route_id,direction_id,shape_id,service_id\nt1,r1,0,sh1,daily\n",
		"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\nsh1,47.60,-122.33,1\nsh1,47.62,-122.33,2\n",
	}
}

func TestLoadFromZipFile(t *testing.T) {
	files := minimalFeed()
	files["stop_times.txt"] = "trip_id,stop_id,stop_sequence,departure_time\nt1,s1,1,08:00:00\n"
	files["agency.txt"] = "agency_id,agency_name,agency_timezone\nKCM,King County Metro,America/Los_Angeles\n"

	store, err := LoadFromZipFile(writeZip(t, files), "")
	if err != nil {
		t.Fatalf("LoadFromZipFile: %v", err)
	}
	if len(store.Routes) != 1 || len(store.Stops) != 1 || len(store.Trips) != 1 {
		t.Errorf("loaded %d routes, %d stops, %d trips, want 1 each",
			len(store.Routes), len(store.Stops), len(store.Trips))
	}
	if got := store.ShapeIDForRouteDir(RouteDir{"r1", 0}); got != "sh1" {
		t.Errorf("shape id = %q, want sh1", got)
	}
	if !store.IsFirstStop(RouteDir{"r1", 0}, "s1") {
		t.Error("s1 should be a first stop")
	}
	if store.Location().String() != "America/Los_Angeles" {
		t.Errorf("timezone = %s, want America/Los_Angeles", store.Location())
	}
}

func TestLoadFromZipFile_TimezoneOverride(t *testing.T) {
	store, err := LoadFromZipFile(writeZip(t, minimalFeed()), "Europe/Sofia")
	if err != nil {
		t.Fatalf("LoadFromZipFile: %v", err)
	}
	if store.Location().String() != "Europe/Sofia" {
		t.Errorf("timezone = %s, want Europe/Sofia", store.Location())
	}
}

func TestLoadFromZipFile_MissingRequiredTable(t *testing.T) {
	files := minimalFeed()
	delete(files, "trips.txt")

	_, err := LoadFromZipFile(writeZip(t, files), "")
	if !errors.Is(err, ErrMissingTable) {
		t.Errorf("err = %v, want ErrMissingTable", err)
	}
}

func TestLoadFromZipFile_NestedEntries(t *testing.T) {
	nested := map[string]string{}
	for name, content := range minimalFeed() {
		nested["feed/"+name] = content
	}
	store, err := LoadFromZipFile(writeZip(t, nested), "")
	if err != nil {
		t.Fatalf("LoadFromZipFile: %v", err)
	}
	if len(store.Routes) != 1 {
		t.Errorf("loaded %d routes, want 1", len(store.Routes))
	}
}

func TestLoadFromZipFile_CorruptArchiveRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := LoadFromZipFile(path, ""); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt archive should have been removed")
	}
}

func TestFeedLocation(t *testing.T) {
	tests := []struct {
		name     string
		override string
		agencyTZ string
		want     string
	}{
		{"override wins", "Europe/Sofia", "America/Los_Angeles", "Europe/Sofia"},
		{"agency when no override", "", "America/New_York", "America/New_York"},
		{"default when both empty", "", "", "America/Los_Angeles"},
		{"unknown name falls back to UTC", "Not/AZone", "", "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := feedLocation(tt.override, tt.agencyTZ); got.String() != tt.want {
				t.Errorf("feedLocation = %s, want %s", got, tt.want)
			}
		})
	}
}
