package headway

import (
	"math"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
)

// engineStore serves route r1 direction 0 with a 600s frequency headway all
// day and marks "terminal" as the route's first stop.
func engineStore(t *testing.T) *gtfs.Store {
	t.Helper()
	trips := []gtfs.Trip{
		{TripID: "t1", RouteID: "r1", Direction: 0, ServiceID: "daily"},
	}
	firstStopTimes := map[string]gtfs.StopTime{
		"t1": {TripID: "t1", StopID: "terminal", StopSequence: 1, DepartureSecs: 0},
	}
	frequencies := []gtfs.FrequencyWindow{
		{TripID: "t1", StartSecs: 0, EndSecs: 24 * 3600, HeadwaySecs: 600},
	}
	return gtfs.NewStore(
		map[string]gtfs.Route{}, map[string]gtfs.Stop{}, trips,
		map[string][]gtfs.ShapePoint{}, firstStopTimes, frequencies, nil, nil, time.UTC,
	)
}

func vehicle(ref string, distance float64) model.Vehicle {
	return model.Vehicle{
		VehicleRef:         ref,
		RouteID:            "r1",
		Direction:          0,
		DistanceAlongRoute: distance,
		ProgressRate:       model.ProgressNormal,
	}
}

func resultsByRef(results []model.HeadwayResult) map[string]model.HeadwayResult {
	m := make(map[string]model.HeadwayResult, len(results))
	for _, r := range results {
		m[r.VehicleRef] = r
	}
	return m
}

var noon = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

func TestCompute_SharedStopPrediction(t *testing.T) {
	e := NewEngine(engineStore(t), 1800)

	vehicles := []model.Vehicle{
		vehicle("lead", 3000),
		vehicle("follow", 2000),
	}
	calls := map[string][]model.OnwardCall{
		"lead": {
			{StopID: "s5", ExpectedArrival: 1000},
			{StopID: "s6", ExpectedArrival: 1100},
		},
		"follow": {
			{StopID: "s5", ExpectedArrival: 1300},
			{StopID: "s6", ExpectedArrival: 1400},
		},
	}

	byRef := resultsByRef(e.Compute(vehicles, calls, noon))

	lead := byRef["lead"]
	if lead.LeadVehicleRef != nil || lead.ActualHeadwaySecs != nil {
		t.Errorf("lead vehicle should have no pairing, got %+v", lead)
	}
	if lead.Excluded {
		t.Error("lead vehicle should not be excluded")
	}
	if lead.Status != model.StatusUnknown {
		t.Errorf("lead status = %q, want unknown", lead.Status)
	}
	if lead.ScheduledHeadwaySecs == nil || *lead.ScheduledHeadwaySecs != 600 {
		t.Errorf("lead scheduled = %v, want 600", lead.ScheduledHeadwaySecs)
	}

	follow := byRef["follow"]
	if follow.LeadVehicleRef == nil || *follow.LeadVehicleRef != "lead" {
		t.Errorf("LeadVehicleRef = %v, want lead", follow.LeadVehicleRef)
	}
	// Furthest shared stop is s6: 1400 - 1100 = 300.
	if follow.ActualHeadwaySecs == nil || *follow.ActualHeadwaySecs != 300 {
		t.Errorf("ActualHeadwaySecs = %v, want 300", follow.ActualHeadwaySecs)
	}
	if follow.Method != model.MethodPrediction {
		t.Errorf("Method = %q, want prediction", follow.Method)
	}
	if follow.HeadwayRatioPct == nil || math.Abs(*follow.HeadwayRatioPct-50) > 0.001 {
		t.Errorf("HeadwayRatioPct = %v, want 50", follow.HeadwayRatioPct)
	}
}

func TestCompute_DistanceFallback(t *testing.T) {
	e := NewEngine(engineStore(t), 1800)

	vehicles := []model.Vehicle{
		vehicle("lead", 2000),
		vehicle("follow", 1400),
	}
	// No shared stops: fall back to the 600m gap at 5 m/s.
	byRef := resultsByRef(e.Compute(vehicles, nil, noon))

	follow := byRef["follow"]
	if follow.ActualHeadwaySecs == nil || *follow.ActualHeadwaySecs != 120 {
		t.Errorf("ActualHeadwaySecs = %v, want 120", follow.ActualHeadwaySecs)
	}
	if follow.Method != model.MethodDistance {
		t.Errorf("Method = %q, want distance", follow.Method)
	}
	if follow.HeadwayRatioPct == nil || math.Abs(*follow.HeadwayRatioPct-20) > 0.001 {
		t.Errorf("HeadwayRatioPct = %v, want 20", follow.HeadwayRatioPct)
	}
}

func TestCompute_CapsHeadway(t *testing.T) {
	e := NewEngine(engineStore(t), 1800)

	vehicles := []model.Vehicle{
		vehicle("lead", 3000),
		vehicle("follow", 2000),
	}
	calls := map[string][]model.OnwardCall{
		"lead":   {{StopID: "s5", ExpectedArrival: 1000}},
		"follow": {{StopID: "s5", ExpectedArrival: 6000}},
	}

	byRef := resultsByRef(e.Compute(vehicles, calls, noon))
	follow := byRef["follow"]
	if follow.ActualHeadwaySecs == nil || *follow.ActualHeadwaySecs != 1800 {
		t.Errorf("ActualHeadwaySecs = %v, want capped 1800", follow.ActualHeadwaySecs)
	}
	// The ratio uses the capped value.
	if follow.HeadwayRatioPct == nil || math.Abs(*follow.HeadwayRatioPct-300) > 0.001 {
		t.Errorf("HeadwayRatioPct = %v, want 300", follow.HeadwayRatioPct)
	}
}

func TestCompute_Exclusions(t *testing.T) {
	e := NewEngine(engineStore(t), 1800)

	atTerminal := vehicle("at-terminal", 500)
	atTerminal.NextStopID = "terminal"
	inLayover := vehicle("in-layover", 800)
	inLayover.ProgressRate = model.ProgressLayover

	vehicles := []model.Vehicle{
		vehicle("not-started", 0),
		atTerminal,
		inLayover,
		vehicle("in-service", 2000),
	}

	byRef := resultsByRef(e.Compute(vehicles, nil, noon))

	for _, ref := range []string{"not-started", "at-terminal", "in-layover"} {
		r := byRef[ref]
		if !r.Excluded {
			t.Errorf("%s should be excluded", ref)
		}
		if r.Status != model.StatusUnknown || r.ActualHeadwaySecs != nil {
			t.Errorf("%s excluded result = %+v", ref, r)
		}
	}
	if byRef["in-service"].Excluded {
		t.Error("in-service vehicle should not be excluded")
	}
}

func TestCompute_NegativePredictionGapFallsBack(t *testing.T) {
	e := NewEngine(engineStore(t), 1800)

	vehicles := []model.Vehicle{
		vehicle("lead", 2000),
		vehicle("follow", 1500),
	}
	// The follower's only shared-stop ETA is earlier than the leader's, so
	// the prediction path yields no usable gap.
	calls := map[string][]model.OnwardCall{
		"lead":   {{StopID: "s5", ExpectedArrival: 2000}},
		"follow": {{StopID: "s5", ExpectedArrival: 1500}},
	}

	byRef := resultsByRef(e.Compute(vehicles, calls, noon))
	follow := byRef["follow"]
	if follow.Method != model.MethodDistance {
		t.Errorf("Method = %q, want distance fallback", follow.Method)
	}
	if follow.ActualHeadwaySecs == nil || *follow.ActualHeadwaySecs != 100 {
		t.Errorf("ActualHeadwaySecs = %v, want 100", follow.ActualHeadwaySecs)
	}
}

func TestCompute_RoutesDoNotMix(t *testing.T) {
	e := NewEngine(engineStore(t), 1800)

	other := vehicle("other-route", 2500)
	other.RouteID = "r2"

	vehicles := []model.Vehicle{
		vehicle("lead", 3000),
		other,
		vehicle("follow", 2000),
	}
	byRef := resultsByRef(e.Compute(vehicles, nil, noon))

	if r := byRef["other-route"]; r.LeadVehicleRef != nil {
		t.Errorf("other route vehicle paired across routes: %+v", r)
	}
	follow := byRef["follow"]
	if follow.LeadVehicleRef == nil || *follow.LeadVehicleRef != "lead" {
		t.Errorf("follow paired with %v, want lead", follow.LeadVehicleRef)
	}
}

func TestSharedStopGap_UsesFurthestSharedStop(t *testing.T) {
	leader := model.Vehicle{VehicleRef: "lead", NextStopID: "s1", ExpectedArrival: 500}
	follower := model.Vehicle{VehicleRef: "follow"}

	leaderCalls := []model.OnwardCall{
		{StopID: "s2", ExpectedArrival: 700},
		{StopID: "s3", ExpectedArrival: 900},
	}
	followerCalls := []model.OnwardCall{
		{StopID: "s1", ExpectedArrival: 800},
		{StopID: "s2", ExpectedArrival: 1000},
		{StopID: "s3", ExpectedArrival: 1150},
	}

	gap, ok := sharedStopGap(follower, leader, followerCalls, leaderCalls)
	if !ok || gap != 250 {
		t.Errorf("sharedStopGap = (%f, %v), want (250, true) from furthest stop s3", gap, ok)
	}
}

func TestSharedStopGap_AimedFallback(t *testing.T) {
	leader := model.Vehicle{VehicleRef: "lead"}
	follower := model.Vehicle{VehicleRef: "follow"}

	leaderCalls := []model.OnwardCall{{StopID: "s1", AimedArrival: 600}}
	followerCalls := []model.OnwardCall{{StopID: "s1", AimedArrival: 780}}

	gap, ok := sharedStopGap(follower, leader, followerCalls, leaderCalls)
	if !ok || gap != 180 {
		t.Errorf("sharedStopGap = (%f, %v), want (180, true) from aimed times", gap, ok)
	}
}

func TestDistanceFallback_NonPositiveGap(t *testing.T) {
	lead := vehicle("lead", 1000)
	follow := vehicle("follow", 1000)
	if got := distanceFallback(follow, lead); got != 0 {
		t.Errorf("distanceFallback = %f, want 0 for zero gap", got)
	}
}
