package geo

import (
	"math"

	"consulaire/internal/domain"
)

const earthRadiusKm = 6371

// Point is a longitude/latitude pair in degrees.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// RankedMission is a directory mission annotated with its great-circle
// distance from the user, in kilometers.
type RankedMission struct {
	domain.Mission
	DistanceKm float64 `json:"distance_km"`
}

// Assignment names the mission administratively responsible for a user.
// A consulate general's consular jurisdiction supersedes the embassy's when
// both exist: embassies cede routine consular work to a consulate general.
type Assignment struct {
	NearestConsulateGeneral *RankedMission `json:"nearest_consulate_general,omitempty"`
	NearestEmbassy          *RankedMission `json:"nearest_embassy,omitempty"`
	Effective               *RankedMission `json:"effective,omitempty"`
}

// Distance returns the haversine distance between two points in kilometers.
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Rank annotates every mission with its distance from the user. Distances
// are recomputed in full on every call; there is no incremental update.
func Rank(user Point, missions []domain.Mission) []RankedMission {
	ranked := make([]RankedMission, 0, len(missions))
	for _, m := range missions {
		ranked = append(ranked, RankedMission{
			Mission:    m,
			DistanceKm: Distance(user, Point{Longitude: m.Longitude, Latitude: m.Latitude}),
		})
	}
	return ranked
}

// Resolve picks the nearest consulate general and the nearest embassy
// independently and derives the effective jurisdiction. Exact-distance ties
// go to the first mission encountered in input order. An empty input yields
// an empty assignment.
func Resolve(ranked []RankedMission) Assignment {
	var a Assignment
	for i := range ranked {
		m := &ranked[i]
		switch m.Kind {
		case domain.MissionConsulateGeneral:
			if a.NearestConsulateGeneral == nil || m.DistanceKm < a.NearestConsulateGeneral.DistanceKm {
				a.NearestConsulateGeneral = m
			}
		case domain.MissionEmbassy:
			if a.NearestEmbassy == nil || m.DistanceKm < a.NearestEmbassy.DistanceKm {
				a.NearestEmbassy = m
			}
		}
	}
	if a.NearestConsulateGeneral != nil {
		a.Effective = a.NearestConsulateGeneral
	} else if a.NearestEmbassy != nil {
		a.Effective = a.NearestEmbassy
	}
	return a
}
