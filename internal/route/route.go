package route

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/carpool/internal/geo"
	"github.com/example/carpool/internal/models"
)

// Step is one leg of a computed route, indexing into the coordinate list.
type Step struct {
	FromIndex   int    `json:"from_index"`
	ToIndex     int    `json:"to_index"`
	Instruction string `json:"instruction,omitempty"`
}

// Route is a computed path between two points.
type Route struct {
	DurationSec    float64        `json:"durationSec"`
	DistanceMeters float64        `json:"distanceMeters"`
	Coordinates    []models.Coord `json:"coordinates,omitempty"`
	Steps          []Step         `json:"steps,omitempty"`
}

// Planner is the interface used by the matcher and handlers to get routes.
type Planner interface {
	Directions(from, to models.Coord) (Route, error)
}

// Cache is a tiny in-memory cache for route lookups keyed by coords.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  Route
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Get returns cached value and true if present and not expired.
func (c *Cache) Get(a, b models.Coord) (Route, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return Route{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return Route{}, false
	}
	return e.v, true
}

// Set stores a value in the cache.
func (c *Cache) Set(a, b models.Coord, v Route) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}

// Estimate is the naive fallback: straight-line distance over an assumed
// speed. In prod the routing engine answers first; this covers outages.
func Estimate(from, to models.Coord, speedMps float64) Route {
	if speedMps <= 0 {
		speedMps = 8.0 // ~28.8 km/h default city speed
	}
	d := geo.Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
	return Route{
		DurationSec:    d / speedMps,
		DistanceMeters: d,
		Coordinates:    []models.Coord{from, to},
	}
}
