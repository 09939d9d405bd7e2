package headwaymonitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/theoremus-urban-solutions/bus-headway-monitor/gtfs"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/headway"
	"github.com/theoremus-urban-solutions/bus-headway-monitor/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	store, p := s.deps()

	resp := map[string]any{
		"status":     "ok",
		"gtfsLoaded": store != nil,
	}
	if p != nil {
		resp["consecutiveFailures"] = p.ConsecutiveFailures()
		if snap := p.Snapshot(); snap != nil {
			resp["lastVehicleFetch"] = snap.FetchedAt.Format(time.RFC3339)
			resp["vehicleCount"] = len(snap.Vehicles)
			resp["headwayCount"] = len(snap.Headways)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	_, p := s.deps()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "static feed not loaded yet")
		return
	}
	snap := p.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no vehicle data yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStopHeadways(w http.ResponseWriter, r *http.Request) {
	_, p := s.deps()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "static feed not loaded yet")
		return
	}
	snap := p.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no vehicle data yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stopHeadways": snap.StopHeadways,
		"fetchedAt":    snap.FetchedAt,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	store, p := s.deps()
	if store == nil || p == nil {
		writeError(w, http.StatusServiceUnavailable, "static feed not loaded yet")
		return
	}
	snap := p.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no vehicle data yet")
		return
	}

	thresholds, err := s.parseThresholds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, headway.Aggregate(snap.Headways, thresholds, store, snap.FetchedAt))
}

// parseThresholds merges query overrides onto the configured defaults,
// clamping each numeric into its sane range. An unrecognized mode is the
// only rejected input; out-of-range numbers are clamped, not rejected.
func (s *Server) parseThresholds(r *http.Request) (model.ThresholdParams, error) {
	t := model.ThresholdParams{
		Mode:         s.cfg.Thresholds.Mode,
		BunchingPct:  s.cfg.Thresholds.BunchingPct,
		GappingPct:   s.cfg.Thresholds.GappingPct,
		BunchingMins: s.cfg.Thresholds.BunchingMins,
		GappingMins:  s.cfg.Thresholds.GappingMins,
	}

	q := r.URL.Query()
	if mode := q.Get("mode"); mode != "" {
		if mode != model.ModePct && mode != model.ModeAbs {
			return t, &badParamError{"mode", mode}
		}
		t.Mode = mode
	}
	if v, ok := queryFloat(q.Get("bunchingPct")); ok {
		t.BunchingPct = clamp(v, 1, 100)
	}
	if v, ok := queryFloat(q.Get("gappingPct")); ok {
		t.GappingPct = clamp(v, 100, 500)
	}
	if v, ok := queryFloat(q.Get("bunchingMins")); ok {
		t.BunchingMins = clamp(v, 0.5, 30)
	}
	if v, ok := queryFloat(q.Get("gappingMins")); ok {
		t.GappingMins = clamp(v, 1, 60)
	}
	return t, nil
}

type badParamError struct {
	param string
	value string
}

func (e *badParamError) Error() string {
	return "invalid " + e.param + ": " + e.value
}

func queryFloat(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GeoJSON shapes for the map endpoints. The static feed never changes after
// load, so both collections are built once and cached as encoded bytes.

type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   geoGeometry    `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoGeometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

type geoCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	store, _ := s.deps()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "static feed not loaded yet")
		return
	}
	s.buildGeoJSON(store)
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.routesGeo)
}

func (s *Server) handleStops(w http.ResponseWriter, r *http.Request) {
	store, _ := s.deps()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "static feed not loaded yet")
		return
	}
	s.buildGeoJSON(store)
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.stopsGeo)
}

func (s *Server) buildGeoJSON(store *gtfs.Store) {
	s.geoOnce.Do(func() {
		s.routesGeo = encodeCollection(routeFeatures(store))
		s.stopsGeo = encodeCollection(stopFeatures(store))
	})
}

func encodeCollection(features []geoFeature) []byte {
	b, err := json.Marshal(geoCollection{Type: "FeatureCollection", Features: features})
	if err != nil {
		log.Printf("[server] encode geojson: %v", err)
		return []byte(`{"type":"FeatureCollection","features":[]}`)
	}
	return b
}

func routeFeatures(store *gtfs.Store) []geoFeature {
	routeIDs := make([]string, 0, len(store.Routes))
	for id := range store.Routes {
		routeIDs = append(routeIDs, id)
	}
	sort.Strings(routeIDs)

	var features []geoFeature
	for _, id := range routeIDs {
		route := store.Routes[id]
		for dir := 0; dir <= 1; dir++ {
			shape := store.ShapeForRouteDir(gtfs.RouteDir{RouteID: id, Direction: dir})
			if len(shape) < 2 {
				continue
			}
			coords := make([][2]float64, len(shape))
			for i, pt := range shape {
				coords[i] = [2]float64{pt.Lng, pt.Lat}
			}
			features = append(features, geoFeature{
				Type:     "Feature",
				Geometry: geoGeometry{Type: "LineString", Coordinates: coords},
				Properties: map[string]any{
					"routeId":        route.RouteID,
					"routeShortName": route.ShortName,
					"routeLongName":  route.LongName,
					"routeColor":     route.Color,
					"routeCategory":  route.Category,
					"directionId":    dir,
				},
			})
		}
	}
	return features
}

func stopFeatures(store *gtfs.Store) []geoFeature {
	stopIDs := make([]string, 0, len(store.Stops))
	for id := range store.Stops {
		stopIDs = append(stopIDs, id)
	}
	sort.Strings(stopIDs)

	features := make([]geoFeature, 0, len(stopIDs))
	for _, id := range stopIDs {
		stop := store.Stops[id]
		features = append(features, geoFeature{
			Type:     "Feature",
			Geometry: geoGeometry{Type: "Point", Coordinates: [2]float64{stop.Lng, stop.Lat}},
			Properties: map[string]any{
				"stopId":   stop.StopID,
				"stopName": stop.StopName,
			},
		})
	}
	return features
}
