package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models grievline.yml.
type Config struct {
	Municipality struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"municipality"`
	Departments map[string]Department `yaml:"departments"`
	RBAC        struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Escalation struct {
		// SLA response window in hours per escalation level.
		SLAHours map[string]int `yaml:"sla_hours"`
	} `yaml:"escalation"`
	Bulk struct {
		MaxItems int `yaml:"max_items"`
	} `yaml:"bulk"`
	Notifications struct {
		Webhooks []Webhook `yaml:"webhooks"`
	} `yaml:"notifications"`
}

type Department struct {
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type Webhook struct {
	URL     string   `yaml:"url"`
	Actions []string `yaml:"actions"`
	Secret  string   `yaml:"secret"`
}

const defaultMaxBulkItems = 100

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with gv config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
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
	if c.Municipality.ID == "" {
		return fmt.Errorf("config.municipality.id is required")
	}
	for id, dept := range c.Departments {
		if id == "" {
			return fmt.Errorf("config.departments contains empty department id")
		}
		if dept.Name == "" {
			return fmt.Errorf("department %s has empty name", id)
		}
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
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
	}
	for level, hours := range c.Escalation.SLAHours {
		switch level {
		case "supervisor", "manager", "director", "executive":
		default:
			return fmt.Errorf("config.escalation.sla_hours has unknown level %s", level)
		}
		if hours <= 0 {
			return fmt.Errorf("config.escalation.sla_hours.%s must be positive", level)
		}
	}
	if c.Bulk.MaxItems < 0 {
		return fmt.Errorf("config.bulk.max_items must not be negative")
	}
	if c.Bulk.MaxItems > defaultMaxBulkItems {
		return fmt.Errorf("config.bulk.max_items must not exceed %d", defaultMaxBulkItems)
	}
	for i, hook := range c.Notifications.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.notifications.webhooks[%d] has empty url", i)
		}
	}
	return nil
}

// MaxBulkItems returns the configured bulk cap, defaulting to 100.
func (c *Config) MaxBulkItems() int {
	if c == nil || c.Bulk.MaxItems == 0 {
		return defaultMaxBulkItems
	}
	return c.Bulk.MaxItems
}

// SLAHoursFor returns the response window for a level, defaulting by
// authority: supervisor 48h, manager 72h, director 120h, executive 168h.
func (c *Config) SLAHoursFor(level string) int {
	if c != nil {
		if h, ok := c.Escalation.SLAHours[level]; ok {
			return h
		}
	}
	switch level {
	case "supervisor":
		return 48
	case "manager":
		return 72
	case "director":
		return 120
	case "executive":
		return 168
	}
	return 72
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "grievline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(municipalityID string) string {
	return fmt.Sprintf(defaultTemplate, municipalityID)
}

// Default returns the default Config struct for a municipality.
func Default(municipalityID string) *Config {
	var cfg Config
	cfg.Municipality.ID = municipalityID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, municipalityID))).Decode(&cfg)
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

const defaultTemplate = `municipality:
  id: %s
  name: ""

departments:
  sanitation:
    name: "Sanitation"
    categories: [garbage, drainage]
  roads:
    name: "Roads & Transport"
    categories: [potholes, streetlights, signage]
  water:
    name: "Water Supply"
    categories: [leakage, contamination]
  parks:
    name: "Parks & Recreation"
    categories: [maintenance, encroachment]

rbac:
  roles:
    citizen:
      description: "Report submitter"
      permissions: [report.create, report.close, appeal.submit, escalation.submit]
    officer:
      description: "Field officer"
      permissions: [report.acknowledge, report.start, report.submit_verification, report.hold]
    admin:
      description: "Municipal administrator"
      permissions: ["*"]
    supervisor:
      description: "Escalation handler"
      permissions: [escalation.acknowledge, escalation.respond, escalation.resolve]

escalation:
  sla_hours:
    supervisor: 48
    manager: 72
    director: 120
    executive: 168

bulk:
  max_items: 100
`
