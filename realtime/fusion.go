package realtime

import (
	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
)

// FusionResult is the normalized per-cycle vehicle model: every valid
// vehicle, plus onward-call lists keyed by vehicle reference for vehicles
// that have at least one prediction.
type FusionResult struct {
	Vehicles    []model.Vehicle
	OnwardCalls map[string][]model.OnwardCall
}

// Fuse joins live vehicle positions with trip-level stop-time predictions.
//
// Positions without a usable coordinate are skipped. Each remaining vehicle
// is resolved against the static store for route/trip metadata, snapped onto
// the route+direction's canonical shape for distance-along-route and
// bearing, and joined to its trip update. Predictions before the vehicle's
// current stop sequence are dropped; the prediction at the current sequence
// supplies the next-stop fields. A vehicle reported as stopped at a stop is
// marked as being in layover.
func Fuse(vps []VehiclePosition, tus []TripUpdate, store *gtfs.Store) FusionResult {
	res := FusionResult{OnwardCalls: map[string][]model.OnwardCall{}}

	updatesByTrip := make(map[string]TripUpdate, len(tus))
	for _, tu := range tus {
		updatesByTrip[tu.TripID] = tu
	}

	for _, vp := range vps {
		if !vp.HasPosition || vp.Lat == 0 || vp.Lng == 0 {
			continue
		}

		trip, hasTrip := store.Trips[vp.TripID]
		routeID := vp.RouteID
		if routeID == "" && hasTrip {
			routeID = trip.RouteID
		}
		direction := vp.Direction
		if !vp.HasDirection && hasTrip {
			direction = trip.Direction
		}
		vehicleRef := vp.VehicleID
		if vehicleRef == "" {
			vehicleRef = vp.TripID
		}
		if vehicleRef == "" {
			continue
		}

		rd := gtfs.RouteDir{RouteID: routeID, Direction: direction}

		var distance, bearing float64
		if shape := store.ShapeForRouteDir(rd); len(shape) > 0 {
			snap := gtfs.Snap(vp.Lat, vp.Lng, shape)
			distance = snap.DistanceAlongRoute
			bearing = snap.Bearing
		}

		v := model.Vehicle{
			VehicleRef:         vehicleRef,
			TripID:             vp.TripID,
			RouteID:            routeID,
			RouteShortName:     routeID,
			Direction:          direction,
			Lat:                vp.Lat,
			Lng:                vp.Lng,
			NextStopID:         vp.StopID,
			DistanceAlongRoute: distance,
			Bearing:            bearing,
			ProgressRate:       model.ProgressNormal,
		}
		if route, ok := store.Routes[routeID]; ok {
			v.RouteShortName = route.ShortName
		}
		if hasTrip {
			v.Headsign = trip.Headsign
		}
		if vp.StoppedAt {
			v.ProgressRate = model.ProgressLayover
		}

		var calls []model.OnwardCall
		if tu, ok := updatesByTrip[vp.TripID]; ok {
			for _, p := range tu.Predictions {
				if p.StopSequence < vp.CurrentSeq {
					continue
				}
				call := model.OnwardCall{
					StopID:            p.StopID,
					StopName:          store.StopName(p.StopID),
					ExpectedArrival:   p.ArrivalTime,
					ExpectedDeparture: p.DepartureTime,
				}
				if p.ArrivalTime != 0 && p.HasArrivalDelay {
					call.AimedArrival = p.ArrivalTime - p.ArrivalDelay
				}
				calls = append(calls, call)

				if p.StopSequence == vp.CurrentSeq {
					v.NextStopID = p.StopID
					v.NextStopName = call.StopName
					v.ExpectedArrival = call.ExpectedArrival
					v.AimedArrival = call.AimedArrival
				}
			}
		}
		if v.NextStopName == "" && v.NextStopID != "" {
			v.NextStopName = store.StopName(v.NextStopID)
		}

		res.Vehicles = append(res.Vehicles, v)
		if len(calls) > 0 {
			res.OnwardCalls[vehicleRef] = calls
		}
	}
	return res
}
