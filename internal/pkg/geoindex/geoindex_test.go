package geoindex

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/civiclens/internal/core/domain"
	"github.com/samirrijal/civiclens/internal/pkg/geospatial"
)

func TestIndex_Search(t *testing.T) {
	x := New()
	x.Insert("bilbao", domain.GeoPoint{Lat: 43.263, Lon: -2.935})
	x.Insert("getxo", domain.GeoPoint{Lat: 43.356, Lon: -3.011})
	x.Insert("madrid", domain.GeoPoint{Lat: 40.4168, Lon: -3.7038})
	x.Insert("null-island", domain.GeoPoint{Lat: 0, Lon: 0})

	ids := x.Search(geospatial.BoundingBox(domain.GeoPoint{Lat: 43.3, Lon: -2.97}, 20000)...)
	sort.Strings(ids)
	assert.Equal(t, []string{"bilbao", "getxo"}, ids)

	ids = x.Search(geospatial.BoundingBox(domain.GeoPoint{Lat: 0, Lon: 0}, 10)...)
	assert.Equal(t, []string{"null-island"}, ids)
}

func TestIndex_InsertMoves(t *testing.T) {
	x := New()
	x.Insert("a", domain.GeoPoint{Lat: 10, Lon: 10})
	x.Insert("a", domain.GeoPoint{Lat: -10, Lon: -10})

	require.Equal(t, 1, x.Len())
	assert.Empty(t, x.Search(geospatial.BoundingBox(domain.GeoPoint{Lat: 10, Lon: 10}, 1000)...))
	assert.Equal(t, []string{"a"}, x.Search(geospatial.BoundingBox(domain.GeoPoint{Lat: -10, Lon: -10}, 1000)...))
}

func TestIndex_ZeroAreaBox(t *testing.T) {
	x := New()
	x.Insert("p", domain.GeoPoint{Lat: 1, Lon: 1})
	ids := x.Search(domain.Bounds{MinLat: 1, MinLon: 1, MaxLat: 1, MaxLon: 1})
	assert.Equal(t, []string{"p"}, ids)
}

func TestIndex_SearchAcrossAntimeridian(t *testing.T) {
	x := New()
	x.Insert("east", domain.GeoPoint{Lat: -17, Lon: 179.999})
	x.Insert("west", domain.GeoPoint{Lat: -17, Lon: -179.999})
	x.Insert("greenwich", domain.GeoPoint{Lat: -17, Lon: 0})

	for _, lon := range []float64{179.999, -179.999} {
		ids := x.Search(geospatial.BoundingBox(domain.GeoPoint{Lat: -17, Lon: lon}, 1000)...)
		sort.Strings(ids)
		assert.Equal(t, []string{"east", "west"}, ids, "query at lon %v", lon)
	}
}

func TestIndex_SearchOverlappingBoxesDeduplicates(t *testing.T) {
	x := New()
	x.Insert("p", domain.GeoPoint{Lat: 1, Lon: 1})
	b := domain.Bounds{MinLat: 0, MinLon: 0, MaxLat: 2, MaxLon: 2}
	assert.Equal(t, []string{"p"}, x.Search(b, b))
	assert.Empty(t, x.Search())
}

func TestIndex_Concurrent(t *testing.T) {
	x := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				x.Insert(fmt.Sprintf("%d-%d", n, j), domain.GeoPoint{Lat: float64(n), Lon: float64(j)})
				_ = x.Search(domain.Bounds{MinLat: -1, MinLon: -1, MaxLat: 9, MaxLon: 51})
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 400, x.Len())
}
