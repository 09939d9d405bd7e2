package headway

import (
	"sort"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
)

// stopKey groups predicted arrivals per stop, route and direction.
type stopKey struct {
	StopID string
	gtfs.RouteDir
}

type stopArrival struct {
	vehicleRef string
	etaEpoch   int64
}

// ComputeStopHeadways reports, for every stop with at least two predicted
// arrivals on the same route+direction, the gap between the two soonest
// arrivals. Vehicles without onward calls contribute their next-stop ETA.
func (e *Engine) ComputeStopHeadways(vehicles []model.Vehicle, calls map[string][]model.OnwardCall, capSecs int) []model.StopHeadway {
	grouped := map[stopKey][]stopArrival{}
	var order []stopKey

	add := func(key stopKey, a stopArrival) {
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], a)
	}

	for _, v := range vehicles {
		rd := gtfs.RouteDir{RouteID: v.RouteID, Direction: v.Direction}
		if vcalls := calls[v.VehicleRef]; len(vcalls) > 0 {
			for _, call := range vcalls {
				if call.StopID == "" {
					continue
				}
				eta := call.ExpectedArrival
				if eta == 0 {
					eta = call.AimedArrival
				}
				if eta == 0 {
					continue
				}
				add(stopKey{StopID: call.StopID, RouteDir: rd}, stopArrival{v.VehicleRef, eta})
			}
		} else if v.NextStopID != "" && v.ExpectedArrival != 0 {
			add(stopKey{StopID: v.NextStopID, RouteDir: rd}, stopArrival{v.VehicleRef, v.ExpectedArrival})
		}
	}

	var results []model.StopHeadway
	for _, key := range order {
		group := grouped[key]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].etaEpoch < group[j].etaEpoch })

		gap := float64(group[1].etaEpoch - group[0].etaEpoch)
		if gap <= 0 {
			continue
		}
		if capSecs > 0 && gap > float64(capSecs) {
			gap = float64(capSecs)
		}
		stop, ok := e.store.Stops[key.StopID]
		if !ok {
			continue
		}
		results = append(results, model.StopHeadway{
			StopID:            stop.StopID,
			StopName:          stop.StopName,
			Lat:               stop.Lat,
			Lng:               stop.Lng,
			RouteID:           key.RouteID,
			Direction:         key.Direction,
			LeadVehicleRef:    group[0].vehicleRef,
			FollowVehicleRef:  group[1].vehicleRef,
			ActualHeadwaySecs: gap,
		})
	}
	return results
}
