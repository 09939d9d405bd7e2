package gtfs

import "regexp"

// RouteDir keys indexes by route and direction of travel. A struct key avoids
// the representation ambiguity of concatenated "route:direction" strings when
// route ids themselves contain separators.
type RouteDir struct {
	RouteID   string
	Direction int
}

// RouteDirService extends RouteDir with a calendar service id.
type RouteDirService struct {
	RouteDir
	ServiceID string
}

// Route is one row of routes.txt plus a derived display category.
type Route struct {
	RouteID   string `json:"routeId"`
	ShortName string `json:"routeShortName"`
	LongName  string `json:"routeLongName"`
	Color     string `json:"routeColor"`
	TextColor string `json:"routeTextColor"`
	Category  string `json:"routeCategory"`
}

// Stop is one row of stops.txt.
type Stop struct {
	StopID   string  `json:"stopId"`
	StopName string  `json:"stopName"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Trip is one row of trips.txt.
type Trip struct {
	TripID    string
	RouteID   string
	Direction int
	ShapeID   string
	ServiceID string
	Headsign  string
}

// ShapePoint is one ordered point along a route path. CumulativeMeters is the
// integrated great-circle distance from the start of the shape.
type ShapePoint struct {
	Lat              float64
	Lng              float64
	Sequence         int
	CumulativeMeters float64
}

// StopTime is the first stop-time row of a trip (lowest stop_sequence).
type StopTime struct {
	TripID        string
	StopID        string
	StopSequence  int
	ArrivalSecs   int
	DepartureSecs int
}

// FrequencyWindow is one row of frequencies.txt: a declared time-of-day
// interval during which the trip's route runs at a fixed headway.
type FrequencyWindow struct {
	TripID      string
	StartSecs   int
	EndSecs     int
	HeadwaySecs int
	ExactTimes  bool
}

// Calendar is one row of calendar.txt: a weekly active-day pattern with a
// validity date range (YYYYMMDD, inclusive).
type Calendar struct {
	ServiceID string
	Weekdays  [7]bool // indexed by time.Weekday (Sunday = 0)
	StartDate string
	EndDate   string
}

// CalendarDate is one row of calendar_dates.txt. ExceptionType 1 adds the
// service on the date, 2 removes it.
type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType int
}

// Route display categories used only for UI grouping.
const (
	CategoryRapidRide = "RapidRide"
	CategoryStreetcar = "Streetcar"
	CategoryFerry     = "Ferry"
	CategoryExpress   = "Express"
	CategoryCommunity = "Community"
	CategoryLocal     = "Local"
)

var (
	rapidRideName = regexp.MustCompile(`(?i)^[A-Z] Line$`)
	streetcarName = regexp.MustCompile(`(?i)streetcar`)
	communityName = regexp.MustCompile(`^9\d{2}$`)
)

// routeCategory classifies a route from its short name, color and GTFS
// route_type, mirroring how the operator brands its services.
func routeCategory(shortName, color, routeType string) string {
	switch {
	case rapidRideName.MatchString(shortName):
		return CategoryRapidRide
	case routeType == "0" || streetcarName.MatchString(shortName):
		return CategoryStreetcar
	case routeType == "4":
		return CategoryFerry
	case color == "2B376E" || color == "2b376e":
		return CategoryExpress
	case communityName.MatchString(shortName) || color == "":
		return CategoryCommunity
	default:
		return CategoryLocal
	}
}
