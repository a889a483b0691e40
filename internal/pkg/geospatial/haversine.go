package geospatial

import (
	"math"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

const (
	earthRadiusM    = 6371000.0
	metersPerDegLat = 111320.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Distance is Haversine between two points.
func Distance(a, b domain.GeoPoint) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// BoundingBox returns boxes that together contain every point within
// radiusMeters of center. Near the poles the box widens to the full
// longitude range. A window that crosses the antimeridian is split in two,
// one box on each side.
func BoundingBox(center domain.GeoPoint, radiusMeters float64) []domain.Bounds {
	latDelta := radiusMeters / metersPerDegLat
	b := domain.Bounds{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MinLon: -180,
		MaxLon: 180,
	}

	cos := math.Cos(toRad(center.Lat))
	if cos <= 1e-9 {
		return []domain.Bounds{b}
	}
	lonDelta := radiusMeters / (metersPerDegLat * cos)
	if lonDelta >= 180 {
		return []domain.Bounds{b}
	}

	b.MinLon = center.Lon - lonDelta
	b.MaxLon = center.Lon + lonDelta
	switch {
	case b.MinLon < -180:
		east := b
		east.MinLon, east.MaxLon = b.MinLon+360, 180
		b.MinLon = -180
		return []domain.Bounds{b, east}
	case b.MaxLon > 180:
		west := b
		west.MinLon, west.MaxLon = -180, b.MaxLon-360
		b.MaxLon = 180
		return []domain.Bounds{b, west}
	}
	return []domain.Bounds{b}
}

// ValidPoint reports whether lat and lon are finite WGS 84 degrees.
func ValidPoint(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
