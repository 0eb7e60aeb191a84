package geofence

import (
	"math"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the clock-in radius around a site.
const DefaultRadiusMeters = 100.0

// Site is a fixed work location with its clock-in radius.
type Site struct {
	Name         string            `json:"name"`
	Location     models.Coordinate `json:"location"`
	RadiusMeters float64           `json:"radius_meters"`
}

// Distance returns the great-circle distance from c to the site in meters.
func (s Site) Distance(c models.Coordinate) float64 {
	return DistanceMeters(c, s.Location)
}

// Contains reports whether c lies inside the site radius.
func (s Site) Contains(c models.Coordinate) bool {
	return WithinRadius(c, s.Location, s.RadiusMeters)
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// DistanceMeters calculates the haversine distance between two points.
func DistanceMeters(a, b models.Coordinate) float64 {
	lat1 := degreesToRadians(a.Latitude)
	lat2 := degreesToRadians(b.Latitude)
	deltaLat := lat2 - lat1
	deltaLon := degreesToRadians(b.Longitude - a.Longitude)

	h := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(deltaLon/2), 2)

	// rounding can push h slightly outside [0,1] near antipodes
	h = math.Max(0, math.Min(1, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// WithinRadius reports whether current is at most radiusMeters from site.
func WithinRadius(current, site models.Coordinate, radiusMeters float64) bool {
	return DistanceMeters(current, site) <= radiusMeters
}
