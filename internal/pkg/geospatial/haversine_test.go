package geospatial

import (
	"math"
	"testing"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, tolerance        float64
	}{
		{"same point", 43.263, -2.935, 43.263, -2.935, 0, 0.001},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 50},
		{"Bilbao to Madrid", 43.263, -2.935, 40.4168, -3.7038, 323000, 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Haversine = %.1f, want %.1f ± %.1f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func inside(boxes []domain.Bounds, p domain.GeoPoint) bool {
	for _, b := range boxes {
		if p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon {
			return true
		}
	}
	return false
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	center := domain.GeoPoint{Lat: 37.422, Lon: -122.084}
	boxes := BoundingBox(center, 1000)
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	b := boxes[0]

	// Points 1 km due north and due east must fall inside.
	north := domain.GeoPoint{Lat: center.Lat + 1000/111320.0*0.99, Lon: center.Lon}
	if !inside(boxes, north) {
		t.Errorf("box %+v misses %+v", b, north)
	}
	if b.MinLon >= center.Lon || b.MaxLon <= center.Lon {
		t.Errorf("box %+v does not straddle center", b)
	}
}

func TestBoundingBox_Pole(t *testing.T) {
	boxes := BoundingBox(domain.GeoPoint{Lat: 90, Lon: 10}, 5000)
	if len(boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(boxes))
	}
	b := boxes[0]
	if b.MinLon != -180 || b.MaxLon != 180 {
		t.Errorf("polar box lon range = [%v, %v], want full", b.MinLon, b.MaxLon)
	}
	if b.MaxLat != 90 {
		t.Errorf("MaxLat = %v, want clamped to 90", b.MaxLat)
	}
}

func TestBoundingBox_SplitsAtAntimeridian(t *testing.T) {
	east := domain.GeoPoint{Lat: -17, Lon: 179.999}
	west := domain.GeoPoint{Lat: -17, Lon: -179.999}
	if d := Distance(east, west); d > 1000 {
		t.Fatalf("test points are %.0f m apart", d)
	}

	for _, center := range []domain.GeoPoint{east, west} {
		boxes := BoundingBox(center, 1000)
		if len(boxes) != 2 {
			t.Fatalf("center %v: got %d boxes, want 2", center, len(boxes))
		}
		for _, b := range boxes {
			if b.MinLon < -180 || b.MaxLon > 180 || b.MinLon > b.MaxLon {
				t.Errorf("center %v: box %+v is not a valid longitude range", center, b)
			}
		}
		if !inside(boxes, east) || !inside(boxes, west) {
			t.Errorf("center %v: boxes %+v miss a point across the antimeridian", center, boxes)
		}
	}
}

func TestValidPoint(t *testing.T) {
	if !ValidPoint(0, 0) || !ValidPoint(-90, 180) {
		t.Error("valid points rejected")
	}
	if ValidPoint(91, 0) || ValidPoint(0, -181) || ValidPoint(math.NaN(), 0) {
		t.Error("invalid points accepted")
	}
}
