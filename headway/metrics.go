package headway

import (
	"sort"
	"time"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
)

// Classify maps one headway result to a service status under the given
// thresholds.
//
// Unknown headway is always "unknown". In percentage mode a known ratio is
// compared against the percent cutoffs; absolute mode, or percentage mode
// without a ratio (no scheduled headway was known), compares the raw headway
// against the minute cutoffs.
func Classify(r model.HeadwayResult, t model.ThresholdParams) string {
	if r.ActualHeadwaySecs == nil {
		return model.StatusUnknown
	}
	if t.Mode == model.ModeAbs || r.HeadwayRatioPct == nil {
		return classifyAbs(*r.ActualHeadwaySecs, t)
	}
	switch {
	case *r.HeadwayRatioPct < t.BunchingPct:
		return model.StatusBunching
	case *r.HeadwayRatioPct > t.GappingPct:
		return model.StatusGapping
	default:
		return model.StatusOnTime
	}
}

func classifyAbs(secs float64, t model.ThresholdParams) string {
	switch {
	case secs < t.BunchingMins*60:
		return model.StatusBunching
	case secs > t.GappingMins*60:
		return model.StatusGapping
	default:
		return model.StatusOnTime
	}
}

// Aggregate classifies every result with a known headway and rolls the
// classifications up into a city-wide breakdown plus one per route+direction,
// sorted by descending gapping percentage (stable on ties). Per-route vehicle
// counts include excluded vehicles.
func Aggregate(results []model.HeadwayResult, thresholds model.ThresholdParams, store *gtfs.Store, fetchedAt time.Time) model.MetricsSnapshot {
	vehicleCounts := map[gtfs.RouteDir]int{}
	for _, r := range results {
		vehicleCounts[gtfs.RouteDir{RouteID: r.RouteID, Direction: r.Direction}]++
	}

	var city model.Breakdown
	perRoute := map[gtfs.RouteDir]*model.Breakdown{}
	var order []gtfs.RouteDir

	for _, r := range results {
		if r.ActualHeadwaySecs == nil {
			continue
		}
		status := Classify(r, thresholds)

		tally(&city, status)

		rd := gtfs.RouteDir{RouteID: r.RouteID, Direction: r.Direction}
		b := perRoute[rd]
		if b == nil {
			b = &model.Breakdown{}
			perRoute[rd] = b
			order = append(order, rd)
		}
		tally(b, status)
	}
	finalize(&city)

	routeMetrics := make([]model.RouteMetrics, 0, len(order))
	for _, rd := range order {
		b := perRoute[rd]
		finalize(b)
		rm := model.RouteMetrics{
			Breakdown:      *b,
			RouteID:        rd.RouteID,
			Direction:      rd.Direction,
			RouteShortName: rd.RouteID,
			RouteCategory:  gtfs.CategoryLocal,
			VehicleCount:   vehicleCounts[rd],
		}
		if route, ok := store.Routes[rd.RouteID]; ok {
			rm.RouteShortName = route.ShortName
			rm.RouteCategory = route.Category
		}
		routeMetrics = append(routeMetrics, rm)
	}

	sort.SliceStable(routeMetrics, func(i, j int) bool {
		return routeMetrics[i].GappingPct > routeMetrics[j].GappingPct
	})

	return model.MetricsSnapshot{
		FetchedAt:    fetchedAt,
		Thresholds:   thresholds,
		CityMetrics:  city,
		RouteMetrics: routeMetrics,
	}
}

func tally(b *model.Breakdown, status string) {
	b.Total++
	switch status {
	case model.StatusBunching:
		b.BunchingCount++
	case model.StatusOnTime:
		b.OnTimeCount++
	case model.StatusGapping:
		b.GappingCount++
	default:
		b.UnknownCount++
	}
}

func finalize(b *model.Breakdown) {
	if b.Total <= 0 {
		return
	}
	b.BunchingPct = float64(b.BunchingCount) / float64(b.Total) * 100
	b.OnTimePct = float64(b.OnTimeCount) / float64(b.Total) * 100
	b.GappingPct = float64(b.GappingCount) / float64(b.Total) * 100
}
