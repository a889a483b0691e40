package domain

// GeoPoint is a photo position in decimal degrees, WGS 84. South and west
// are negative.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LocationReport is where and when a photo was taken, as far as its embedded
// metadata tells. MapReference is set only when both coordinates resolved.
type LocationReport struct {
	CaptureDateStamp *string
	MapReference     *string

	// Decimal degrees. Not part of any serialized record.
	Latitude  *float64
	Longitude *float64
}

// Point returns the resolved position, or nil when either axis is missing.
// A coordinate of exactly 0 is still a position.
func (r LocationReport) Point() *GeoPoint {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &GeoPoint{Lat: *r.Latitude, Lon: *r.Longitude}
}

// Bounds is a latitude/longitude box, edges included. MinLon <= MaxLon;
// windows across the antimeridian are expressed as two Bounds.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}
