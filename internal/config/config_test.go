package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse_Empty_AppliesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("Database = %s:%d, want 127.0.0.1:3306", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if diff := cmp.Diff([]int{15, 15, 15, 15, 15, 15}, cfg.Grid.Capacities); diff != "" {
		t.Errorf("Grid.Capacities mismatch (-want +got):\n%s", diff)
	}
	if cfg.Grid.Zigzag != "even" {
		t.Errorf("Grid.Zigzag = %q, want even", cfg.Grid.Zigzag)
	}
	if !cfg.Emergency.CrossRow() {
		t.Error("CrossRow() = false, want true by default")
	}
	if cfg.Emergency.CrossRowThreshold != 2 {
		t.Errorf("CrossRowThreshold = %d, want 2", cfg.Emergency.CrossRowThreshold)
	}
	if cfg.Emergency.UnavailableMode != "AUTO_PULL" {
		t.Errorf("UnavailableMode = %q, want AUTO_PULL", cfg.Emergency.UnavailableMode)
	}
	if cfg.Recommender.Timeout != 10*time.Second || cfg.Recommender.HealthTimeout != 5*time.Second {
		t.Errorf("Recommender timeouts = %v/%v, want 10s/5s", cfg.Recommender.Timeout, cfg.Recommender.HealthTimeout)
	}
	want := StatsConfig{Schedule: "0 3 * * 1", MinAppearances: 3, HighConsistency: 0.8, ColTolerance: 2, Lookback: 12}
	if diff := cmp.Diff(want, cfg.Stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Fixture(t *testing.T) {
	cfg, err := Load("testdata/seatplan.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "db.choir.internal" || cfg.Database.Port != 3307 {
		t.Errorf("Database = %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "seatplan" {
		t.Errorf("Database.User = %q, want seatplan", cfg.Database.User)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Grid.Rows != 5 || cfg.Grid.Zigzag != "odd" {
		t.Errorf("Grid = %+v", cfg.Grid)
	}
	if cfg.Emergency.CrossRow() {
		t.Error("CrossRow() = true, want false")
	}
	if cfg.Emergency.UnavailableMode != "MANUAL" {
		t.Errorf("UnavailableMode = %q, want MANUAL", cfg.Emergency.UnavailableMode)
	}
	if cfg.Recommender.Timeout != 3*time.Second || cfg.Recommender.HealthTimeout != time.Second {
		t.Errorf("Recommender = %+v", cfg.Recommender)
	}
	if cfg.Notify.DiscordChannelID != "123456789" {
		t.Errorf("DiscordChannelID = %q", cfg.Notify.DiscordChannelID)
	}
	if cfg.Stats.Lookback != 20 || cfg.Stats.HighConsistency != 0.75 {
		t.Errorf("Stats = %+v", cfg.Stats)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("SEATPLAN_DB_HOST", "10.1.1.1")
	t.Setenv("SEATPLAN_DB_PORT", "3310")
	t.Setenv("SEATPLAN_DB_PASSWORD", "s3cret")
	t.Setenv("SEATPLAN_RECOMMENDER_URL", "http://ml:8000")
	t.Setenv("SEATPLAN_SLACK_WEBHOOK", "https://hooks.example/x")

	cfg, err := Parse([]byte("database:\n  host: yaml-host\n  port: 3306\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "10.1.1.1" || cfg.Database.Port != 3310 {
		t.Errorf("Database = %s:%d, want env override 10.1.1.1:3310", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("Password = %q, want s3cret", cfg.Database.Password)
	}
	if cfg.Recommender.URL != "http://ml:8000" {
		t.Errorf("Recommender.URL = %q", cfg.Recommender.URL)
	}
	if cfg.Notify.SlackWebhook != "https://hooks.example/x" {
		t.Errorf("SlackWebhook = %q", cfg.Notify.SlackWebhook)
	}
}

func TestParse_BadEnvValue(t *testing.T) {
	t.Setenv("SEATPLAN_DB_PORT", "not-a-port")
	_, err := Parse(nil)
	if err == nil || !strings.Contains(err.Error(), "config: parse env:") {
		t.Errorf("err = %v, want env parse error", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"driver", "database:\n  driver: postgres\n", "database.driver must be mysql or sqlite"},
		{"rows", "grid:\n  rows: 3\n  capacities: [1, 2, 3]\n", "grid.rows must be between 4 and 8"},
		{"capacity count", "grid:\n  rows: 4\n  capacities: [1, 2]\n", "grid.capacities has 2 entries, want 4"},
		{"capacity range", "grid:\n  rows: 4\n  capacities: [1, 2, 3, 21]\n", "grid.capacities[3] must be between 0 and 20"},
		{"zigzag", "grid:\n  zigzag: diagonal\n", "grid.zigzag must be none, even or odd"},
		{"threshold", "emergency:\n  cross_row_threshold: -1\n", "cross_row_threshold must be at least 1"},
		{"mode", "emergency:\n  unavailable_mode: SHUFFLE\n", "unavailable_mode \"SHUFFLE\""},
		{"cron", "stats:\n  schedule: every monday\n", "stats.schedule:"},
		{"consistency", "stats:\n  high_consistency: 1.5\n", "stats.high_consistency must be in (0, 1]"},
		{"discord", "notify:\n  discord_token: abc\n", "discord_channel_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
			if !strings.HasPrefix(err.Error(), "config: validation failed:") {
				t.Errorf("error = %q, want validation prefix", err.Error())
			}
		})
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: oracle\ngrid:\n  zigzag: spiral\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"database.driver", "grid.zigzag", "; "} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seatplan.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: sqlite\n  path: choir.db\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "choir.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/seatplan.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Database.Driver != "mysql" || cfg.Server.Port != 8080 {
		t.Errorf("Default() = %+v", cfg)
	}
}
