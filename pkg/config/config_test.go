// pkg/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.PhysicsConfig.FixedTimeStep != 1.0/60.0 {
		t.Errorf("fixed timestep = %v, expected 1/60", cfg.PhysicsConfig.FixedTimeStep)
	}
	if len(cfg.Planets) == 0 {
		t.Error("default config has no planets")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.json")

	original := DefaultConfig()
	original.MaxPlayers = 7
	original.Planets[0].Mass = 9.9e6

	if err := SaveConfig(original, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.MaxPlayers != 7 {
		t.Errorf("MaxPlayers = %d, expected 7", loaded.MaxPlayers)
	}
	if loaded.Planets[0].Mass != 9.9e6 {
		t.Errorf("planet mass = %v, expected 9.9e6", loaded.Planets[0].Mass)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/sim.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
	}{
		{name: "zero_timestep", mutate: func(c *SimConfig) { c.PhysicsConfig.FixedTimeStep = 0 }},
		{name: "negative_timestep", mutate: func(c *SimConfig) { c.PhysicsConfig.FixedTimeStep = -1 }},
		{name: "zero_players", mutate: func(c *SimConfig) { c.MaxPlayers = 0 }},
		{name: "zero_keyframe_interval", mutate: func(c *SimConfig) { c.NetworkConfig.TicksPerKeyframe = 0 }},
		{name: "zero_radius_planet", mutate: func(c *SimConfig) { c.Planets[0].Radius = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
