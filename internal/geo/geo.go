package geo

import (
	"math"
	"sync"
	"time"

	"github.com/example/carpool/internal/models"
)

// TripPoint is a trip origin held in the spatial index, enough for the
// matcher to rank candidates without a storage round trip.
type TripPoint struct {
	TripID       int64
	Loc          models.Coord
	DriverRating float64
	Open         bool
	Updated      time.Time
}

// Geo is the minimal interface required by the matcher and handlers.
type Geo interface {
	Nearby(lat, lon float64, limit int) []TripPoint
	Upsert(p TripPoint)
	Remove(tripID int64)
}

type Index struct {
	mu    sync.RWMutex
	trips map[int64]TripPoint
}

func NewIndex() *Index {
	return &Index{trips: make(map[int64]TripPoint)}
}

func (g *Index) Upsert(p TripPoint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p.Updated = time.Now()
	g.trips[p.TripID] = p
}

// Remove drops a trip from the index once it leaves the open pool.
func (g *Index) Remove(tripID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.trips, tripID)
}

// naive scan; in prod use geo-hash or H3
func (g *Index) Nearby(lat, lon float64, limit int) []TripPoint {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		p    TripPoint
		dist float64
	}
	arr := make([]pair, 0, len(g.trips))
	for _, p := range g.trips {
		if !p.Open {
			continue
		}
		dist := Haversine(lat, lon, p.Loc.Lat, p.Loc.Lon)
		arr = append(arr, pair{p, dist})
	}
	// partial selection sort for top-N
	n := limit
	if n > len(arr) {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		minIdx := i
		for j := i + 1; j < len(arr); j++ {
			if arr[j].dist < arr[minIdx].dist {
				minIdx = j
			}
		}
		arr[i], arr[minIdx] = arr[minIdx], arr[i]
	}
	out := make([]TripPoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, arr[i].p)
	}
	return out
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
