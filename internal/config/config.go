// Package config provides YAML-based configuration loading for seatplan.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level seatplan configuration, loaded from seatplan.yaml.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Grid        GridConfig        `yaml:"grid"`
	Emergency   EmergencyConfig   `yaml:"emergency"`
	Recommender RecommenderConfig `yaml:"recommender"`
	Notify      NotifyConfig      `yaml:"notify"`
	Stats       StatsConfig       `yaml:"stats"`
}

// DatabaseConfig holds connection settings. Driver "sqlite" uses Path and
// ignores the network fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host" env:"SEATPLAN_DB_HOST"`
	Port     int    `yaml:"port" env:"SEATPLAN_DB_PORT"`
	Name     string `yaml:"name" env:"SEATPLAN_DB_NAME"`
	User     string `yaml:"user" env:"SEATPLAN_DB_USER"`
	Password string `yaml:"password" env:"SEATPLAN_DB_PASSWORD"`
	Path     string `yaml:"path"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// GridConfig is the layout new arrangements start from.
type GridConfig struct {
	Rows       int    `yaml:"rows"`
	Capacities []int  `yaml:"capacities"`
	Zigzag     string `yaml:"zigzag"`
}

type EmergencyConfig struct {
	CrossRowEnabled   *bool  `yaml:"cross_row_enabled"`
	CrossRowThreshold int    `yaml:"cross_row_threshold"`
	UnavailableMode   string `yaml:"unavailable_mode"`
}

// RecommenderConfig points at the external recommendation service. An empty
// URL means only the local heuristic is used.
type RecommenderConfig struct {
	URL           string        `yaml:"url" env:"SEATPLAN_RECOMMENDER_URL"`
	Timeout       time.Duration `yaml:"timeout"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
}

type NotifyConfig struct {
	SlackWebhook     string `yaml:"slack_webhook" env:"SEATPLAN_SLACK_WEBHOOK"`
	DiscordToken     string `yaml:"discord_token" env:"SEATPLAN_DISCORD_TOKEN"`
	DiscordChannelID string `yaml:"discord_channel_id"`
}

// StatsConfig tunes preferred-seat learning.
type StatsConfig struct {
	Schedule        string  `yaml:"schedule"`
	MinAppearances  int     `yaml:"min_appearances"`
	HighConsistency float64 `yaml:"high_consistency"`
	ColTolerance    float64 `yaml:"col_tolerance"`
	Lookback        int     `yaml:"lookback"`
}

// CrossRow reports whether cross-row balancing is on. It defaults to true.
func (e EmergencyConfig) CrossRow() bool {
	return e.CrossRowEnabled == nil || *e.CrossRowEnabled
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes, applies SEATPLAN_* environment overrides and
// returns a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration an empty file produces.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		// Defaults are valid unless the environment overrides are not.
		cfg = &Config{}
		cfg.applyDefaults()
	}
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "seatplan"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Path == "" {
		c.Database.Path = "seatplan.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Grid.Rows == 0 {
		c.Grid.Rows = 6
	}
	if len(c.Grid.Capacities) == 0 {
		c.Grid.Capacities = make([]int, c.Grid.Rows)
		for i := range c.Grid.Capacities {
			c.Grid.Capacities[i] = 15
		}
	}
	if c.Grid.Zigzag == "" {
		c.Grid.Zigzag = "even"
	}
	if c.Emergency.CrossRowThreshold == 0 {
		c.Emergency.CrossRowThreshold = 2
	}
	if c.Emergency.UnavailableMode == "" {
		c.Emergency.UnavailableMode = "AUTO_PULL"
	}
	if c.Recommender.Timeout == 0 {
		c.Recommender.Timeout = 10 * time.Second
	}
	if c.Recommender.HealthTimeout == 0 {
		c.Recommender.HealthTimeout = 5 * time.Second
	}
	if c.Stats.Schedule == "" {
		c.Stats.Schedule = "0 3 * * 1"
	}
	if c.Stats.MinAppearances == 0 {
		c.Stats.MinAppearances = 3
	}
	if c.Stats.HighConsistency == 0 {
		c.Stats.HighConsistency = 0.8
	}
	if c.Stats.ColTolerance == 0 {
		c.Stats.ColTolerance = 2
	}
	if c.Stats.Lookback == 0 {
		c.Stats.Lookback = 12
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be mysql or sqlite, got %q", c.Database.Driver))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Grid.Rows < 4 || c.Grid.Rows > 8 {
		errs = append(errs, fmt.Sprintf("grid.rows must be between 4 and 8, got %d", c.Grid.Rows))
	}
	if len(c.Grid.Capacities) != c.Grid.Rows {
		errs = append(errs, fmt.Sprintf("grid.capacities has %d entries, want %d", len(c.Grid.Capacities), c.Grid.Rows))
	}
	for i, n := range c.Grid.Capacities {
		if n < 0 || n > 20 {
			errs = append(errs, fmt.Sprintf("grid.capacities[%d] must be between 0 and 20, got %d", i, n))
		}
	}
	switch c.Grid.Zigzag {
	case "none", "even", "odd":
	default:
		errs = append(errs, fmt.Sprintf("grid.zigzag must be none, even or odd, got %q", c.Grid.Zigzag))
	}
	if c.Emergency.CrossRowThreshold < 1 {
		errs = append(errs, "emergency.cross_row_threshold must be at least 1")
	}
	switch strings.ToUpper(c.Emergency.UnavailableMode) {
	case "LEAVE_EMPTY", "AUTO_PULL", "MANUAL":
	default:
		errs = append(errs, fmt.Sprintf("emergency.unavailable_mode %q is not LEAVE_EMPTY, AUTO_PULL or MANUAL", c.Emergency.UnavailableMode))
	}
	if c.Recommender.Timeout < 0 || c.Recommender.HealthTimeout < 0 {
		errs = append(errs, "recommender timeouts must not be negative")
	}
	if c.Notify.DiscordToken != "" && c.Notify.DiscordChannelID == "" {
		errs = append(errs, "notify.discord_channel_id is required with a discord token")
	}
	if _, err := cronParser.Parse(c.Stats.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("stats.schedule: %v", err))
	}
	if c.Stats.MinAppearances < 1 {
		errs = append(errs, "stats.min_appearances must be at least 1")
	}
	if c.Stats.HighConsistency <= 0 || c.Stats.HighConsistency > 1 {
		errs = append(errs, "stats.high_consistency must be in (0, 1]")
	}
	if c.Stats.ColTolerance < 0 {
		errs = append(errs, "stats.col_tolerance must not be negative")
	}
	if c.Stats.Lookback < 1 {
		errs = append(errs, "stats.lookback must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
