package gtfs

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSerializeStoreRoundTrip(t *testing.T) {
	original := scheduleStore(t)
	original.Routes["A"] = Route{RouteID: "A", ShortName: "44", Category: CategoryLocal}
	original.Stops["s1"] = Stop{StopID: "s1", StopName: "Pike St", Lat: 47.61, Lng: -122.33}

	data, err := SerializeStore(original)
	if err != nil {
		t.Fatalf("SerializeStore: %v", err)
	}
	restored, err := DeserializeStore(data)
	if err != nil {
		t.Fatalf("DeserializeStore: %v", err)
	}

	if len(restored.Routes) != len(original.Routes) {
		t.Errorf("routes = %d, want %d", len(restored.Routes), len(original.Routes))
	}
	if restored.StopName("s1") != "Pike St" {
		t.Errorf("stop name = %q, want Pike St", restored.StopName("s1"))
	}
	if restored.Location().String() != original.Location().String() {
		t.Errorf("timezone = %s, want %s", restored.Location(), original.Location())
	}

	// Derived indexes must be rebuilt, not just the raw tables.
	got, ok := restored.ExpectedHeadway(RouteDir{"A", 0}, at(7, 0))
	if !ok || got != 600 {
		t.Errorf("ExpectedHeadway after round trip = (%d, %v), want (600, true)", got, ok)
	}
	got, ok = restored.ExpectedHeadway(RouteDir{"B", 0}, at(8, 5))
	if !ok || got != 600 {
		t.Errorf("departure headway after round trip = (%d, %v), want (600, true)", got, ok)
	}
	if !restored.IsFirstStop(RouteDir{"B", 0}, "s1") {
		t.Error("first-stop index lost in round trip")
	}
}

func TestSerializeStoreToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.gob")
	s := emptyStore(nil, nil, time.UTC)
	s.Routes["r1"] = Route{RouteID: "r1", ShortName: "44"}

	if err := SerializeStoreToFile(s, path); err != nil {
		t.Fatalf("SerializeStoreToFile: %v", err)
	}
	restored, err := DeserializeStoreFromFile(path)
	if err != nil {
		t.Fatalf("DeserializeStoreFromFile: %v", err)
	}
	if restored.Routes["r1"].ShortName != "44" {
		t.Errorf("restored route = %+v", restored.Routes["r1"])
	}
}

func TestDeserializeStore_Corrupt(t *testing.T) {
	if _, err := DeserializeStore([]byte("garbage")); err == nil {
		t.Error("expected error for corrupt cache data")
	}
}
