package geo

import (
	"testing"

	"github.com/example/carpool/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestNearbyOrdersByDistance(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(TripPoint{TripID: 1, Loc: models.Coord{Lat: 52.52, Lon: 13.40}, Open: true})  // Berlin
	idx.Upsert(TripPoint{TripID: 2, Loc: models.Coord{Lat: 48.85, Lon: 2.35}, Open: true})   // Paris
	idx.Upsert(TripPoint{TripID: 3, Loc: models.Coord{Lat: 52.23, Lon: 21.01}, Open: true})  // Warsaw
	idx.Upsert(TripPoint{TripID: 4, Loc: models.Coord{Lat: 52.50, Lon: 13.41}, Open: false}) // closed, ignored

	got := idx.Nearby(52.52, 13.41, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(got))
	}
	if got[0].TripID != 1 {
		t.Fatalf("expected trip 1 nearest, got %d", got[0].TripID)
	}
	if got[1].TripID != 3 {
		t.Fatalf("expected trip 3 second, got %d", got[1].TripID)
	}
}

func TestRemoveDropsTrip(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(TripPoint{TripID: 7, Loc: models.Coord{Lat: 1, Lon: 1}, Open: true})
	idx.Remove(7)
	if got := idx.Nearby(1, 1, 5); len(got) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(got))
	}
}
