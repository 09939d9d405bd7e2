// Package headway computes headways between consecutive vehicles on the
// same route and direction and aggregates them into service metrics.
package headway

import (
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
)

// fallbackCruiseSpeed is the assumed cruising speed used by the
// distance-based fallback, in meters per second. A heuristic, not a modeled
// constant: 5 m/s is roughly 18 km/h, a plausible urban bus average across
// stops and lights.
const fallbackCruiseSpeed = 5.0

// Engine computes per-vehicle headway results against the static schedule.
type Engine struct {
	store   *gtfs.Store
	capSecs int
}

// NewEngine creates an engine. capSecs caps raw headways to damp outliers
// from bad predictions.
func NewEngine(store *gtfs.Store, capSecs int) *Engine {
	return &Engine{store: store, capSecs: capSecs}
}

// Compute groups vehicles by route+direction, ranks each group by progress
// along the route, and emits one result per vehicle.
//
// A vehicle is excluded from pairing when it has not meaningfully entered
// service: zero distance along the route, in layover, or its next stop is a
// route terminal (a first stop of some trip). Within a group the vehicle
// with the greatest distance is the lead; every other vehicle is paired with
// its immediate predecessor.
func (e *Engine) Compute(vehicles []model.Vehicle, calls map[string][]model.OnwardCall, now time.Time) []model.HeadwayResult {
	results := make([]model.HeadwayResult, 0, len(vehicles))

	groups := map[gtfs.RouteDir][]model.Vehicle{}
	for _, v := range vehicles {
		rd := gtfs.RouteDir{RouteID: v.RouteID, Direction: v.Direction}
		if v.DistanceAlongRoute == 0 || v.ProgressRate == model.ProgressLayover ||
			(v.NextStopID != "" && e.store.IsFirstStop(rd, v.NextStopID)) {
			results = append(results, unknownResult(v, true, nil))
			continue
		}
		groups[rd] = append(groups[rd], v)
	}

	for rd, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].DistanceAlongRoute > group[j].DistanceAlongRoute
		})

		var scheduled *int
		if secs, ok := e.store.ExpectedHeadway(rd, now); ok {
			scheduled = model.IntPtr(secs)
		}

		for i, v := range group {
			if i == 0 {
				results = append(results, unknownResult(v, false, scheduled))
				continue
			}
			leader := group[i-1]

			gap, ok := sharedStopGap(v, leader, calls[v.VehicleRef], calls[leader.VehicleRef])
			method := model.MethodPrediction
			if !ok {
				gap = distanceFallback(v, leader)
				method = model.MethodDistance
			}

			capped := gap
			if e.capSecs > 0 && capped > float64(e.capSecs) {
				capped = float64(e.capSecs)
			}

			var ratio *float64
			if scheduled != nil && *scheduled > 0 {
				ratio = model.Float64Ptr(capped / float64(*scheduled) * 100)
			}

			results = append(results, model.HeadwayResult{
				VehicleRef:           v.VehicleRef,
				RouteID:              rd.RouteID,
				Direction:            rd.Direction,
				LeadVehicleRef:       model.StringPtr(leader.VehicleRef),
				ActualHeadwaySecs:    model.Float64Ptr(capped),
				ScheduledHeadwaySecs: scheduled,
				HeadwayRatioPct:      ratio,
				Status:               model.StatusUnknown,
				Method:               method,
				Excluded:             false,
			})
		}
	}

	return results
}

func unknownResult(v model.Vehicle, excluded bool, scheduled *int) model.HeadwayResult {
	return model.HeadwayResult{
		VehicleRef:           v.VehicleRef,
		RouteID:              v.RouteID,
		Direction:            v.Direction,
		ScheduledHeadwaySecs: scheduled,
		Status:               model.StatusUnknown,
		Excluded:             excluded,
	}
}

// sharedStopGap finds the ETA gap between the follower and its leader at the
// furthest upcoming stop both share. The furthest common reference point is
// the most stable estimate: near-term ETAs churn with every position update.
//
// The leader's ETA map is seeded from its own next-stop fields, then
// overwritten by its onward calls so later predictions win on collisions.
// The follower's calls are walked from furthest to nearest; the first shared
// stop where the follower arrives strictly later than the leader yields the
// gap in seconds.
func sharedStopGap(follower, leader model.Vehicle, followerCalls, leaderCalls []model.OnwardCall) (float64, bool) {
	if len(followerCalls) == 0 {
		return 0, false
	}

	leaderETAs := map[string]int64{}
	if leader.NextStopID != "" && leader.ExpectedArrival != 0 {
		leaderETAs[leader.NextStopID] = leader.ExpectedArrival
	}
	for _, call := range leaderCalls {
		if call.StopID == "" {
			continue
		}
		eta := call.ExpectedArrival
		if eta == 0 {
			eta = call.AimedArrival
		}
		if eta != 0 {
			leaderETAs[call.StopID] = eta
		}
	}
	if len(leaderETAs) == 0 {
		return 0, false
	}

	for i := len(followerCalls) - 1; i >= 0; i-- {
		call := followerCalls[i]
		if call.StopID == "" {
			continue
		}
		leaderETA, ok := leaderETAs[call.StopID]
		if !ok {
			continue
		}
		eta := call.ExpectedArrival
		if eta == 0 {
			eta = call.AimedArrival
		}
		if eta == 0 {
			continue
		}
		if gap := eta - leaderETA; gap > 0 {
			return float64(gap), true
		}
	}
	return 0, false
}

// distanceFallback estimates headway from the along-route gap at an assumed
// constant speed. A non-positive gap (GPS noise placing the follower ahead)
// yields 0.
func distanceFallback(follower, leader model.Vehicle) float64 {
	gapMeters := leader.DistanceAlongRoute - follower.DistanceAlongRoute
	if gapMeters <= 0 {
		return 0
	}
	return gapMeters / fallbackCruiseSpeed
}
