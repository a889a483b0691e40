// Package geoindex keeps located issues in an in-memory R-tree so radius
// queries do not need a database round trip.
package geoindex

import (
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	// half-width in degrees of the box stored for each point
	tolerance = 1e-7
)

type item struct {
	id   string
	rect *rtreego.Rect
}

func (it *item) Bounds() *rtreego.Rect {
	return it.rect
}

// Index is a thread-safe R-tree of issue positions keyed by issue id.
type Index struct {
	mu    sync.RWMutex
	tree  *rtreego.Rtree
	items map[string]*item
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		tree:  rtreego.NewTree(dimensions, minChildren, maxChildren),
		items: make(map[string]*item),
	}
}

// Insert adds or moves the point stored for id.
func (x *Index) Insert(id string, p domain.GeoPoint) {
	it := &item{id: id, rect: rtreego.Point{p.Lat, p.Lon}.ToRect(tolerance)}

	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.items[id]; ok {
		x.tree.Delete(old)
	}
	x.items[id] = it
	x.tree.Insert(it)
}

// Search returns the ids of points inside any of boxes, each id once, in
// no particular order.
func (x *Index) Search(boxes ...domain.Bounds) []string {
	rects := make([]*rtreego.Rect, 0, len(boxes))
	for _, b := range boxes {
		rect, err := rtreego.NewRect(
			rtreego.Point{b.MinLat, b.MinLon},
			[]float64{side(b.MaxLat - b.MinLat), side(b.MaxLon - b.MinLon)},
		)
		if err != nil {
			continue
		}
		rects = append(rects, rect)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, rect := range rects {
		for _, r := range x.tree.SearchIntersect(rect) {
			id := r.(*item).id
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of indexed points.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

// rtreego rejects boxes with a zero-length side.
func side(d float64) float64 {
	return math.Max(d, 2*tolerance)
}
