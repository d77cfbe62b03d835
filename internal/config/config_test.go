package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consulaire/internal/config"
	"consulaire/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default("org-sn")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "org-sn", cfg.Organization.ID)
	assert.NotEmpty(t, cfg.Directory.Missions)
	assert.NotEmpty(t, cfg.Services)
}

func TestFromYAMLRejectsUnknownMissionKind(t *testing.T) {
	_, err := config.FromYAML([]byte(`
organization:
  id: org-1
directory:
  missions:
    - id: m1
      kind: trade_office
      longitude: 0
      latitude: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestFromYAMLRejectsOutOfRangeCoordinates(t *testing.T) {
	_, err := config.FromYAML([]byte(`
organization:
  id: org-1
directory:
  missions:
    - id: m1
      kind: embassy
      longitude: 250
      latitude: 10
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "longitude out of range")
}

func TestFromYAMLRejectsDuplicateMissionIDs(t *testing.T) {
	_, err := config.FromYAML([]byte(`
organization:
  id: org-1
directory:
  missions:
    - id: m1
      kind: embassy
      longitude: 1
      latitude: 1
    - id: m1
      kind: consulate_general
      longitude: 2
      latitude: 2
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestMissionsPreserveFileOrder(t *testing.T) {
	cfg := config.Default("org-1")
	missions := cfg.Missions()
	require.NotEmpty(t, missions)
	assert.Equal(t, cfg.Directory.Missions[0].ID, missions[0].ID)
	for _, m := range missions {
		assert.NotEmpty(t, m.Kind)
	}
	// Directory includes both kinds that matter for jurisdiction.
	kinds := map[string]bool{}
	for _, m := range missions {
		kinds[m.Kind] = true
	}
	assert.True(t, kinds[domain.MissionEmbassy])
	assert.True(t, kinds[domain.MissionConsulateGeneral])
}

func TestRolePermissions(t *testing.T) {
	cfg := config.Default("org-1")
	perms := cfg.RolePermissions([]string{"agent"})
	assert.Contains(t, perms, "request.assign")
	assert.Empty(t, cfg.RolePermissions([]string{"nonexistent"}))
}
