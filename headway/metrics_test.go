package headway

import (
	"math"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
)

var defaultThresholds = model.ThresholdParams{
	Mode:         model.ModePct,
	BunchingPct:  20,
	GappingPct:   150,
	BunchingMins: 3,
	GappingMins:  12,
}

func knownResult(ref, routeID string, headwaySecs float64, ratio *float64) model.HeadwayResult {
	return model.HeadwayResult{
		VehicleRef:        ref,
		RouteID:           routeID,
		ActualHeadwaySecs: model.Float64Ptr(headwaySecs),
		HeadwayRatioPct:   ratio,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		result model.HeadwayResult
		params model.ThresholdParams
		want   string
	}{
		{
			name:   "no headway is unknown",
			result: model.HeadwayResult{},
			params: defaultThresholds,
			want:   model.StatusUnknown,
		},
		{
			name:   "ratio below bunching cutoff",
			result: knownResult("v", "r", 90, model.Float64Ptr(15)),
			params: defaultThresholds,
			want:   model.StatusBunching,
		},
		{
			name:   "ratio above gapping cutoff",
			result: knownResult("v", "r", 960, model.Float64Ptr(160)),
			params: defaultThresholds,
			want:   model.StatusGapping,
		},
		{
			name:   "ratio in band",
			result: knownResult("v", "r", 600, model.Float64Ptr(100)),
			params: defaultThresholds,
			want:   model.StatusOnTime,
		},
		{
			name:   "ratio at bunching cutoff is on time",
			result: knownResult("v", "r", 120, model.Float64Ptr(20)),
			params: defaultThresholds,
			want:   model.StatusOnTime,
		},
		{
			name:   "pct mode without ratio falls back to minutes",
			result: knownResult("v", "r", 100, nil),
			params: defaultThresholds,
			want:   model.StatusBunching,
		},
		{
			name:   "abs mode ignores ratio",
			result: knownResult("v", "r", 100, model.Float64Ptr(100)),
			params: model.ThresholdParams{Mode: model.ModeAbs, BunchingMins: 3, GappingMins: 12},
			want:   model.StatusBunching,
		},
		{
			name:   "abs mode gapping",
			result: knownResult("v", "r", 13 * 60, nil),
			params: model.ThresholdParams{Mode: model.ModeAbs, BunchingMins: 3, GappingMins: 12},
			want:   model.StatusGapping,
		},
		{
			name:   "abs mode in band",
			result: knownResult("v", "r", 6 * 60, nil),
			params: model.ThresholdParams{Mode: model.ModeAbs, BunchingMins: 3, GappingMins: 12},
			want:   model.StatusOnTime,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.result, tt.params); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	store := gtfs.NewStore(
		map[string]gtfs.Route{
			"r1": {RouteID: "r1", ShortName: "44", Category: gtfs.CategoryLocal},
		},
		map[string]gtfs.Stop{}, nil, map[string][]gtfs.ShapePoint{},
		nil, nil, nil, nil, time.UTC,
	)
	fetchedAt := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	results := []model.HeadwayResult{
		knownResult("v1", "r1", 60, model.Float64Ptr(10)),   // bunching
		knownResult("v2", "r1", 90, model.Float64Ptr(15)),   // bunching
		knownResult("v3", "r1", 600, model.Float64Ptr(100)), // on time
		knownResult("v4", "r2", 540, model.Float64Ptr(90)),  // on time
		knownResult("v5", "r2", 1200, model.Float64Ptr(200)), // gapping
		{VehicleRef: "v6", RouteID: "r1", Excluded: true},    // no headway, counted as a vehicle only
	}

	snap := Aggregate(results, defaultThresholds, store, fetchedAt)

	city := snap.CityMetrics
	if city.Total != 5 {
		t.Fatalf("city total = %d, want 5", city.Total)
	}
	if city.BunchingCount != 2 || city.OnTimeCount != 2 || city.GappingCount != 1 {
		t.Errorf("city counts = %d/%d/%d, want 2/2/1",
			city.BunchingCount, city.OnTimeCount, city.GappingCount)
	}
	if math.Abs(city.BunchingPct-40) > 0.001 || math.Abs(city.GappingPct-20) > 0.001 {
		t.Errorf("city pcts = %f/%f, want 40/20", city.BunchingPct, city.GappingPct)
	}

	if len(snap.RouteMetrics) != 2 {
		t.Fatalf("route metrics = %d, want 2", len(snap.RouteMetrics))
	}
	// r2 has the higher gapping percentage and sorts first.
	first := snap.RouteMetrics[0]
	if first.RouteID != "r2" {
		t.Errorf("first route = %s, want r2 (highest gapping pct)", first.RouteID)
	}
	if first.RouteShortName != "r2" || first.RouteCategory != gtfs.CategoryLocal {
		t.Errorf("unknown route fallback = %s/%s", first.RouteShortName, first.RouteCategory)
	}

	second := snap.RouteMetrics[1]
	if second.RouteID != "r1" || second.RouteShortName != "44" {
		t.Errorf("second route = %s/%s, want r1/44", second.RouteID, second.RouteShortName)
	}
	// v6 carries no headway but still counts as a vehicle on r1.
	if second.VehicleCount != 4 {
		t.Errorf("r1 vehicle count = %d, want 4", second.VehicleCount)
	}
	if second.Total != 3 {
		t.Errorf("r1 total = %d, want 3", second.Total)
	}

	if !snap.FetchedAt.Equal(fetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", snap.FetchedAt, fetchedAt)
	}
}

func TestAggregate_Empty(t *testing.T) {
	store := gtfs.NewStore(
		map[string]gtfs.Route{}, map[string]gtfs.Stop{}, nil,
		map[string][]gtfs.ShapePoint{}, nil, nil, nil, nil, time.UTC,
	)
	snap := Aggregate(nil, defaultThresholds, store, time.Now())
	if snap.CityMetrics.Total != 0 || len(snap.RouteMetrics) != 0 {
		t.Errorf("empty aggregate = %+v", snap)
	}
}
