// pkg/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SimConfig contains the configuration for one simulation session.
type SimConfig struct {
	MaxPlayers    int            `json:"maxPlayers"`
	Planets       []PlanetConfig `json:"planets"`
	PhysicsConfig PhysicsConfig  `json:"physics"`
	NetworkConfig NetworkConfig  `json:"network"`
}

// PlanetConfig describes one massive body.
type PlanetConfig struct {
	Name             string  `json:"name"`
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Mass             float64 `json:"mass"`
	Radius           float64 `json:"radius"`
	AtmosphereHeight float64 `json:"atmosphereHeight"`
	SurfaceDensity   float64 `json:"surfaceDensity"`
	Seed             int64   `json:"seed"`
}

// PhysicsConfig contains the shared physics constants. FixedTimeStep is used
// by both the authoritative and observer schedulers; it is not negotiated at
// runtime.
type PhysicsConfig struct {
	FixedTimeStep      float64 `json:"fixedTimeStep"`      // seconds per tick
	Gravity            float64 `json:"gravity"`            // gravitational constant
	MinGravityDistance float64 `json:"minGravityDistance"` // r floor for G·M/r²
	DragCoefficient    float64 `json:"dragCoefficient"`    // quadratic drag scale
	AngularDragCoeff   float64 `json:"angularDragCoeff"`   // spin damping scale
	ThrustAccel        float64 `json:"thrustAccel"`        // craft thrust acceleration
	TurnRate           float64 `json:"turnRate"`           // radians/second while turning
	MaxSpeed           float64 `json:"maxSpeed"`           // speed clamp, 0 disables
	BodyMass           float64 `json:"bodyMass"`           // default craft mass
	SleepLinearSpeed   float64 `json:"sleepLinearSpeed"`   // |v| below which a body sleeps
	SleepAngularSpeed  float64 `json:"sleepAngularSpeed"`  // |ω| below which a body sleeps
	SpawnDistance      float64 `json:"spawnDistance"`      // spawn altitude above first planet
	OffloadedBackend   bool    `json:"offloadedBackend"`   // run observer physics on a worker goroutine
}

// NetworkConfig contains network-related configuration.
type NetworkConfig struct {
	ServerAddress    string `json:"serverAddress"`
	ServerPort       int    `json:"serverPort"`
	ObserverPort     int    `json:"observerPort"`     // websocket spectator gateway
	TicksPerKeyframe int    `json:"ticksPerKeyframe"` // full snapshot interval
}

// LoadConfig loads a configuration from a JSON file.
func LoadConfig(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config SimConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig saves a configuration to a JSON file.
func SaveConfig(config *SimConfig, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the simulation cannot run with.
func (c *SimConfig) Validate() error {
	if c.PhysicsConfig.FixedTimeStep <= 0 {
		return fmt.Errorf("fixedTimeStep must be positive, got %v", c.PhysicsConfig.FixedTimeStep)
	}
	if c.MaxPlayers <= 0 {
		return fmt.Errorf("maxPlayers must be positive, got %d", c.MaxPlayers)
	}
	if c.NetworkConfig.TicksPerKeyframe <= 0 {
		return fmt.Errorf("ticksPerKeyframe must be positive, got %d", c.NetworkConfig.TicksPerKeyframe)
	}
	for i, p := range c.Planets {
		if p.Radius <= 0 {
			return fmt.Errorf("planet %d (%s): radius must be positive", i, p.Name)
		}
	}
	return nil
}

// DefaultConfig returns a default simulation configuration: two planets, one
// with a dense atmosphere, at 60 ticks per second.
func DefaultConfig() *SimConfig {
	return &SimConfig{
		MaxPlayers: 16,
		Planets: []PlanetConfig{
			{
				Name:             "Auster",
				X:                0,
				Y:                0,
				Mass:             5e6,
				Radius:           300,
				AtmosphereHeight: 150,
				SurfaceDensity:   1.0,
				Seed:             1,
			},
			{
				Name:   "Boreal",
				X:      4000,
				Y:      0,
				Mass:   1.2e6,
				Radius: 140,
				Seed:   2,
			},
		},
		PhysicsConfig: PhysicsConfig{
			FixedTimeStep:      1.0 / 60.0,
			Gravity:            50,
			MinGravityDistance: 10,
			DragCoefficient:    0.0005,
			AngularDragCoeff:   0.8,
			ThrustAccel:        120,
			TurnRate:           3,
			MaxSpeed:           800,
			BodyMass:           10,
			SleepLinearSpeed:   0.05,
			SleepAngularSpeed:  0.01,
			SpawnDistance:      200,
		},
		NetworkConfig: NetworkConfig{
			ServerAddress:    "localhost",
			ServerPort:       4566,
			ObserverPort:     4567,
			TicksPerKeyframe: 30,
		},
	}
}
