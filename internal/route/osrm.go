package route

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/carpool/internal/models"
)

// OSRMClient performs route lookups against an OSRM HTTP server.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string) *OSRMClient {
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// Directions queries OSRM /route between points and returns duration,
// distance, geometry and turn instructions.
func (o *OSRMClient) Directions(from, to models.Coord) (Route, error) {
	// OSRM route query: /route/v1/driving/{lon1},{lat1};{lon2},{lat2}
	u := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson&steps=true",
		o.Endpoint, from.Lon, from.Lat, to.Lon, to.Lat)
	resp, err := o.Client.Get(u)
	if err != nil {
		return Route{}, err
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Legs []struct {
				Steps []struct {
					Name     string `json:"name"`
					Maneuver struct {
						Type string `json:"type"`
					} `json:"maneuver"`
					Geometry struct {
						Coordinates [][]float64 `json:"coordinates"`
					} `json:"geometry"`
				} `json:"steps"`
			} `json:"legs"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Route{}, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return Route{}, fmt.Errorf("osrm no route: %v", out.Code)
	}
	best := out.Routes[0]
	r := Route{DurationSec: best.Duration, DistanceMeters: best.Distance}
	for _, c := range best.Geometry.Coordinates {
		if len(c) == 2 {
			r.Coordinates = append(r.Coordinates, models.Coord{Lat: c[1], Lon: c[0]})
		}
	}
	idx := 0
	for _, leg := range best.Legs {
		for _, st := range leg.Steps {
			n := len(st.Geometry.Coordinates)
			if n == 0 {
				continue
			}
			step := Step{FromIndex: idx, ToIndex: idx + n - 1}
			if st.Maneuver.Type != "" {
				step.Instruction = st.Maneuver.Type
				if st.Name != "" {
					step.Instruction += " onto " + st.Name
				}
			}
			r.Steps = append(r.Steps, step)
			idx += n - 1
		}
	}
	return r, nil
}

// Geocoder resolves free-text locations against a Nominatim-style endpoint.
type Geocoder struct {
	Endpoint string
	Client   *http.Client
}

func NewGeocoder(endpoint string) *Geocoder {
	return &Geocoder{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// Geocode returns the best-ranked coordinate for a place name.
func (g *Geocoder) Geocode(place string) (models.Coord, error) {
	u := g.Endpoint + "/search?format=json&limit=1&q=" + url.QueryEscape(place)
	resp, err := g.Client.Get(u)
	if err != nil {
		return models.Coord{}, err
	}
	defer resp.Body.Close()
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coord{}, err
	}
	if len(out) == 0 {
		return models.Coord{}, fmt.Errorf("geocode: no result for %q", place)
	}
	var c models.Coord
	if _, err := fmt.Sscanf(out[0].Lat, "%f", &c.Lat); err != nil {
		return models.Coord{}, err
	}
	if _, err := fmt.Sscanf(out[0].Lon, "%f", &c.Lon); err != nil {
		return models.Coord{}, err
	}
	return c, nil
}
