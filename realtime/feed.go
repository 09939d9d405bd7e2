// Package realtime fetches the live GTFS-RT feeds and fuses them with the
// static store into the per-cycle vehicle model.
package realtime

import (
	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// VehiclePosition is one decoded vehicle-position entity, keyed by trip.
type VehiclePosition struct {
	TripID       string
	RouteID      string
	Direction    int
	HasDirection bool
	VehicleID    string
	Lat          float64
	Lng          float64
	HasPosition  bool
	CurrentSeq   int
	StopID       string
	StoppedAt    bool
	Timestamp    int64
}

// StopTimePrediction is one stop-time update within a trip update. Zero
// epoch values mean the field was absent.
type StopTimePrediction struct {
	StopSequence    int
	StopID          string
	ArrivalTime     int64
	ArrivalDelay    int64
	HasArrivalDelay bool
	DepartureTime   int64
}

// TripUpdate is one decoded trip-update entity.
type TripUpdate struct {
	TripID      string
	RouteID     string
	Predictions []StopTimePrediction
}

// decodeVehiclePositions extracts the fields the fusion layer needs,
// nil-guarding every optional protobuf field.
func decodeVehiclePositions(fm *gtfsrtpb.FeedMessage) []VehiclePosition {
	if fm == nil {
		return nil
	}
	out := make([]VehiclePosition, 0, len(fm.Entity))
	for _, e := range fm.Entity {
		v := e.Vehicle
		if v == nil {
			continue
		}
		var vp VehiclePosition
		if v.Trip != nil {
			if v.Trip.TripId != nil {
				vp.TripID = *v.Trip.TripId
			}
			if v.Trip.RouteId != nil {
				vp.RouteID = *v.Trip.RouteId
			}
			if v.Trip.DirectionId != nil {
				vp.Direction = int(*v.Trip.DirectionId)
				vp.HasDirection = true
			}
		}
		if v.Vehicle != nil && v.Vehicle.Id != nil {
			vp.VehicleID = *v.Vehicle.Id
		}
		if v.Position != nil && v.Position.Latitude != nil && v.Position.Longitude != nil {
			vp.Lat = float64(*v.Position.Latitude)
			vp.Lng = float64(*v.Position.Longitude)
			vp.HasPosition = true
		}
		if v.CurrentStopSequence != nil {
			vp.CurrentSeq = int(*v.CurrentStopSequence)
		}
		if v.StopId != nil {
			vp.StopID = *v.StopId
		}
		if v.CurrentStatus != nil {
			vp.StoppedAt = *v.CurrentStatus == gtfsrtpb.VehiclePosition_STOPPED_AT
		}
		if v.Timestamp != nil {
			vp.Timestamp = int64(*v.Timestamp)
		}
		out = append(out, vp)
	}
	return out
}

func decodeTripUpdates(fm *gtfsrtpb.FeedMessage) []TripUpdate {
	if fm == nil {
		return nil
	}
	out := make([]TripUpdate, 0, len(fm.Entity))
	for _, e := range fm.Entity {
		tu := e.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}
		rec := TripUpdate{TripID: *tu.Trip.TripId}
		if tu.Trip.RouteId != nil {
			rec.RouteID = *tu.Trip.RouteId
		}
		for _, stu := range tu.StopTimeUpdate {
			if stu == nil || stu.StopId == nil {
				continue
			}
			p := StopTimePrediction{StopID: *stu.StopId}
			if stu.StopSequence != nil {
				p.StopSequence = int(*stu.StopSequence)
			}
			if stu.Arrival != nil {
				if stu.Arrival.Time != nil {
					p.ArrivalTime = *stu.Arrival.Time
				}
				if stu.Arrival.Delay != nil {
					p.ArrivalDelay = int64(*stu.Arrival.Delay)
					p.HasArrivalDelay = true
				}
			}
			if stu.Departure != nil && stu.Departure.Time != nil {
				p.DepartureTime = *stu.Departure.Time
			}
			rec.Predictions = append(rec.Predictions, p)
		}
		out = append(out, rec)
	}
	return out
}
