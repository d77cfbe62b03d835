package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consulaire/internal/domain"
	"consulaire/internal/geo"
)

var (
	paris  = geo.Point{Longitude: 2.3522, Latitude: 48.8566}
	lyon   = geo.Point{Longitude: 4.8357, Latitude: 45.764}
	dakar  = geo.Point{Longitude: -17.4467, Latitude: 14.6928}
	sydney = geo.Point{Longitude: 151.2093, Latitude: -33.8688}
)

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][2]geo.Point{
		{paris, lyon},
		{paris, dakar},
		{dakar, sydney},
		{geo.Point{Longitude: -179.9, Latitude: 0}, geo.Point{Longitude: 179.9, Latitude: 0}},
	}
	for _, p := range pairs {
		assert.InDelta(t, geo.Distance(p[0], p[1]), geo.Distance(p[1], p[0]), 1e-9)
	}
}

func TestDistanceZero(t *testing.T) {
	for _, p := range []geo.Point{paris, dakar, sydney} {
		assert.Zero(t, geo.Distance(p, p))
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// Paris-Lyon is roughly 392 km as the crow flies.
	d := geo.Distance(paris, lyon)
	assert.InDelta(t, 392, d, 5)
}

func mission(id, kind string, p geo.Point) domain.Mission {
	return domain.Mission{ID: id, Kind: kind, Longitude: p.Longitude, Latitude: p.Latitude}
}

func TestResolvePrefersConsulateGeneralOverNearerEmbassy(t *testing.T) {
	user := paris
	// The embassy (~392 km) is far closer than the consulate general (~4200 km).
	ranked := geo.Rank(user, []domain.Mission{
		mission("emb-paris", domain.MissionEmbassy, lyon),
		mission("cg-dakar", domain.MissionConsulateGeneral, dakar),
	})
	a := geo.Resolve(ranked)
	require.NotNil(t, a.NearestEmbassy)
	require.NotNil(t, a.NearestConsulateGeneral)
	require.NotNil(t, a.Effective)
	assert.Less(t, a.NearestEmbassy.DistanceKm, a.NearestConsulateGeneral.DistanceKm)
	assert.Equal(t, "cg-dakar", a.Effective.ID)
}

func TestResolveFallsBackToEmbassy(t *testing.T) {
	ranked := geo.Rank(paris, []domain.Mission{
		mission("emb-1", domain.MissionEmbassy, lyon),
		mission("emb-2", domain.MissionEmbassy, dakar),
	})
	a := geo.Resolve(ranked)
	require.Nil(t, a.NearestConsulateGeneral)
	require.NotNil(t, a.Effective)
	assert.Equal(t, "emb-1", a.Effective.ID)
}

func TestResolveEmptyDirectory(t *testing.T) {
	a := geo.Resolve(nil)
	assert.Nil(t, a.NearestConsulateGeneral)
	assert.Nil(t, a.NearestEmbassy)
	assert.Nil(t, a.Effective)
}

func TestResolveIgnoresNonConsularKinds(t *testing.T) {
	ranked := geo.Rank(paris, []domain.Mission{
		mission("hc-1", domain.MissionHonoraryConsulate, paris),
		mission("pm-1", domain.MissionPermanentMission, paris),
		mission("emb-1", domain.MissionEmbassy, dakar),
	})
	a := geo.Resolve(ranked)
	require.NotNil(t, a.Effective)
	assert.Equal(t, "emb-1", a.Effective.ID)
}

func TestResolveTieFirstEncounteredWins(t *testing.T) {
	ranked := geo.Rank(paris, []domain.Mission{
		mission("cg-a", domain.MissionConsulateGeneral, lyon),
		mission("cg-b", domain.MissionConsulateGeneral, lyon),
	})
	a := geo.Resolve(ranked)
	require.NotNil(t, a.Effective)
	assert.Equal(t, "cg-a", a.Effective.ID)
}

func TestRankAnnotatesEveryMission(t *testing.T) {
	ms := []domain.Mission{
		mission("a", domain.MissionEmbassy, lyon),
		mission("b", domain.MissionConsulateGeneral, dakar),
		mission("c", domain.MissionHonoraryConsulate, sydney),
	}
	ranked := geo.Rank(paris, ms)
	require.Len(t, ranked, 3)
	for i, r := range ranked {
		assert.Equal(t, ms[i].ID, r.ID)
		assert.Positive(t, r.DistanceKm)
	}
}
