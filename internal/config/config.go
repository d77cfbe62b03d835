package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"consulaire/internal/domain"
)

// Config models consulaire.yml.
type Config struct {
	Organization struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		CountryCode string `yaml:"country_code"`
	} `yaml:"organization"`
	Directory struct {
		Missions []MissionEntry `yaml:"missions"`
	} `yaml:"directory"`
	Services map[string]ServiceEntry `yaml:"services"`
	RBAC     struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Notifications struct {
		Webhooks []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notifications"`
}

type MissionEntry struct {
	ID          string  `yaml:"id"`
	Kind        string  `yaml:"kind"`
	CountryCode string  `yaml:"country_code"`
	City        string  `yaml:"city"`
	Longitude   float64 `yaml:"longitude"`
	Latitude    float64 `yaml:"latitude"`
}

type ServiceEntry struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

var missionKinds = map[string]bool{
	domain.MissionEmbassy:           true,
	domain.MissionConsulateGeneral:  true,
	domain.MissionHonoraryConsulate: true,
	domain.MissionPermanentMission:  true,
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with cns config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Organization.ID == "" {
		return fmt.Errorf("config.organization.id is required")
	}
	seen := map[string]bool{}
	for i, m := range c.Directory.Missions {
		if m.ID == "" {
			return fmt.Errorf("directory.missions[%d] has empty id", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("directory.missions contains duplicate id %s", m.ID)
		}
		seen[m.ID] = true
		if !missionKinds[m.Kind] {
			return fmt.Errorf("mission %s has unknown kind %s", m.ID, m.Kind)
		}
		if m.Latitude < -90 || m.Latitude > 90 {
			return fmt.Errorf("mission %s latitude out of range", m.ID)
		}
		if m.Longitude < -180 || m.Longitude > 180 {
			return fmt.Errorf("mission %s longitude out of range", m.ID)
		}
	}
	for id, svc := range c.Services {
		if id == "" {
			return fmt.Errorf("config.services contains empty service id")
		}
		if svc.Name == "" {
			return fmt.Errorf("service %s has empty name", id)
		}
	}
	for roleID, role := range c.RBAC.Roles {
		if roleID == "" {
			return fmt.Errorf("config.rbac.roles contains empty role id")
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
		}
	}
	for i, hook := range c.Notifications.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("notifications.webhooks[%d] has empty url", i)
		}
	}
	return nil
}

// Missions returns the static directory as domain missions, in file order.
func (c *Config) Missions() []domain.Mission {
	res := make([]domain.Mission, 0, len(c.Directory.Missions))
	for _, m := range c.Directory.Missions {
		res = append(res, domain.Mission{
			ID:          m.ID,
			Kind:        m.Kind,
			CountryCode: m.CountryCode,
			City:        m.City,
			Longitude:   m.Longitude,
			Latitude:    m.Latitude,
		})
	}
	return res
}

// RolePermissions flattens the role catalog into per-role permission sets.
func (c *Config) RolePermissions(roles []string) []string {
	var perms []string
	for _, role := range roles {
		r, ok := c.RBAC.Roles[role]
		if !ok {
			continue
		}
		perms = append(perms, r.Permissions...)
	}
	return perms
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "consulaire.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
}

// Default returns the default Config struct for an organization.
func Default(orgID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, orgID)), &cfg)
	cfg.Organization.ID = orgID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `organization:
  id: %s
  name: "Consular Affairs"
  country_code: SN

directory:
  missions:
    - id: emb-paris
      kind: embassy
      country_code: FR
      city: Paris
      longitude: 2.3522
      latitude: 48.8566
    - id: cg-marseille
      kind: consulate_general
      country_code: FR
      city: Marseille
      longitude: 5.3698
      latitude: 43.2965
    - id: emb-washington
      kind: embassy
      country_code: US
      city: Washington
      longitude: -77.0369
      latitude: 38.9072
    - id: cg-new-york
      kind: consulate_general
      country_code: US
      city: New York
      longitude: -74.006
      latitude: 40.7128

services:
  passport.renewal:
    name: "Passport renewal"
    category: passport
  visa.short-stay:
    name: "Short-stay visa"
    category: visa
  consular-card:
    name: "Consular card"
    category: card
  legalization:
    name: "Document legalization"
    category: legalization
  civil-registry.birth:
    name: "Birth act transcript"
    category: civil-registry

rbac:
  roles:
    citizen:
      description: "Applicant"
      permissions: [request.create, request.read, request.submit, mission.resolve]
    agent:
      description: "Consular agent"
      permissions:
        - request.read
        - request.list
        - request.review
        - request.assign
        - request.note
        - request.document
        - request.counts
        - mission.resolve
    admin:
      description: "Post administrator"
      permissions: ["*"]

notifications:
  webhooks: []
`
