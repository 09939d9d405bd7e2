// Package model holds the ephemeral per-cycle domain types shared by the
// real-time fusion, headway engine, metrics aggregator and HTTP layer.
package model

import "time"

// Progress states for a vehicle.
const (
	ProgressNormal  = "normalProgress"
	ProgressLayover = "layover"
)

// Headway computation methods.
const (
	MethodPrediction = "prediction"
	MethodDistance   = "distance"
)

// Headway classification statuses.
const (
	StatusBunching = "bunching"
	StatusOnTime   = "on-time"
	StatusGapping  = "gapping"
	StatusUnknown  = "unknown"
)

// Threshold modes.
const (
	ModePct = "pct"
	ModeAbs = "abs"
)

// Vehicle is one observed vehicle in a poll cycle. Epoch-second fields use
// 0 for "unknown".
type Vehicle struct {
	VehicleRef         string  `json:"vehicleRef"`
	TripID             string  `json:"tripId"`
	RouteID            string  `json:"routeId"`
	RouteShortName     string  `json:"routeShortName"`
	Headsign           string  `json:"headsign"`
	Direction          int     `json:"directionId"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	NextStopID         string  `json:"nextStopId"`
	NextStopName       string  `json:"nextStopName"`
	ExpectedArrival    int64   `json:"expectedArrivalTime"`
	AimedArrival       int64   `json:"aimedArrivalTime"`
	DistanceAlongRoute float64 `json:"distanceAlongRoute"`
	Bearing            float64 `json:"bearing"`
	ProgressRate       string  `json:"progressRate"`
}

// OnwardCall is one predicted future stop visit for a vehicle's current
// trip, in stop order.
type OnwardCall struct {
	StopID            string `json:"stopPointRef"`
	StopName          string `json:"stopPointName"`
	ExpectedArrival   int64  `json:"expectedArrivalTime"`
	ExpectedDeparture int64  `json:"expectedDepartureTime"`
	AimedArrival      int64  `json:"aimedArrivalTime"`
}

// HeadwayResult is the computed headway for one vehicle against its
// immediate leader. Nullable numerics are pointers so JSON consumers can
// distinguish zero from unknown.
type HeadwayResult struct {
	VehicleRef           string   `json:"vehicleRef"`
	RouteID              string   `json:"routeId"`
	Direction            int      `json:"directionId"`
	LeadVehicleRef       *string  `json:"leadVehicleRef"`
	ActualHeadwaySecs    *float64 `json:"actualHeadwaySecs"`
	ScheduledHeadwaySecs *int     `json:"scheduledHeadwaySecs"`
	HeadwayRatioPct      *float64 `json:"headwayRatioPct"`
	Status               string   `json:"status"`
	Method               string   `json:"headwayMethod,omitempty"`
	Excluded             bool     `json:"excluded"`
}

// StopHeadway is the gap between the two soonest predicted arrivals at one
// stop for a route+direction.
type StopHeadway struct {
	StopID            string  `json:"stopId"`
	StopName          string  `json:"stopName"`
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	RouteID           string  `json:"routeId"`
	Direction         int     `json:"directionId"`
	LeadVehicleRef    string  `json:"leadVehicleRef"`
	FollowVehicleRef  string  `json:"followVehicleRef"`
	ActualHeadwaySecs float64 `json:"actualHeadwaySecs"`
}

// ThresholdParams selects the classification mode and its cutoffs.
type ThresholdParams struct {
	Mode         string  `json:"mode"`
	BunchingPct  float64 `json:"bunchingPct"`
	GappingPct   float64 `json:"gappingPct"`
	BunchingMins float64 `json:"bunchingMins"`
	GappingMins  float64 `json:"gappingMins"`
}

// Breakdown tallies classifications and their percentages of the total.
type Breakdown struct {
	Total         int     `json:"total"`
	BunchingCount int     `json:"bunchingCount"`
	OnTimeCount   int     `json:"onTimeCount"`
	GappingCount  int     `json:"gappingCount"`
	UnknownCount  int     `json:"unknownCount"`
	BunchingPct   float64 `json:"bunchingPct"`
	OnTimePct     float64 `json:"onTimePct"`
	GappingPct    float64 `json:"gappingPct"`
}

// RouteMetrics is one route+direction's breakdown with display fields.
type RouteMetrics struct {
	Breakdown
	RouteID        string `json:"routeId"`
	Direction      int    `json:"directionId"`
	RouteShortName string `json:"routeShortName"`
	RouteCategory  string `json:"routeCategory"`
	VehicleCount   int    `json:"vehicleCount"`
}

// MetricsSnapshot is the aggregated view over one cycle's headway results.
type MetricsSnapshot struct {
	FetchedAt    time.Time       `json:"fetchedAt"`
	Thresholds   ThresholdParams `json:"thresholds"`
	CityMetrics  Breakdown       `json:"cityMetrics"`
	RouteMetrics []RouteMetrics  `json:"routeMetrics"`
}

// Float64Ptr and friends keep call sites terse when building nullable fields.
func Float64Ptr(v float64) *float64 { return &v }
func IntPtr(v int) *int             { return &v }
func StringPtr(v string) *string    { return &v }
