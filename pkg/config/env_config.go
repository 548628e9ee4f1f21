// pkg/config/env_config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvironmentConfig holds deployment-level settings loaded from ORBIT_*
// environment variables. Session-level physics and planet layout stay in
// SimConfig; everything an operator tunes per deployment lives here.
type EnvironmentConfig struct {
	ServerAddr   string
	ServerPort   int
	MaxClients   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker configuration (client-side network operations).
	CircuitBreakerMaxRequests         int
	CircuitBreakerInterval            time.Duration
	CircuitBreakerTimeout             time.Duration
	CircuitBreakerMaxConsecutiveFails int

	// Resource management configuration.
	MaxMemoryMB           int64
	MaxGoroutines         int
	ShutdownTimeout       time.Duration
	ResourceCheckInterval time.Duration
}

// LoadConfigFromEnv loads the environment configuration, applying validated
// defaults for anything unset.
func LoadConfigFromEnv() (*EnvironmentConfig, error) {
	cfg := &EnvironmentConfig{}
	var err error

	cfg.ServerAddr = getEnvString("ORBIT_SERVER_ADDR", "localhost")
	if cfg.ServerPort, err = getEnvInt("ORBIT_SERVER_PORT", 4566); err != nil {
		return nil, err
	}
	if cfg.MaxClients, err = getEnvInt("ORBIT_MAX_CLIENTS", 32); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = getEnvDuration("ORBIT_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getEnvDuration("ORBIT_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.CircuitBreakerMaxRequests, err = getEnvInt("ORBIT_CB_MAX_REQUESTS", 3); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerInterval, err = getEnvDuration("ORBIT_CB_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerTimeout, err = getEnvDuration("ORBIT_CB_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CircuitBreakerMaxConsecutiveFails, err = getEnvInt("ORBIT_CB_MAX_CONSECUTIVE_FAILS", 5); err != nil {
		return nil, err
	}

	if cfg.MaxMemoryMB, err = getEnvInt64("ORBIT_MAX_MEMORY_MB", 500); err != nil {
		return nil, err
	}
	if cfg.MaxGoroutines, err = getEnvInt("ORBIT_MAX_GOROUTINES", 1000); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("ORBIT_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ResourceCheckInterval, err = getEnvDuration("ORBIT_RESOURCE_CHECK_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the environment configuration for unusable values.
func (c *EnvironmentConfig) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server port out of range: %d", c.ServerPort)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("max clients must be positive: %d", c.MaxClients)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive (read %v, write %v)", c.ReadTimeout, c.WriteTimeout)
	}
	if c.MaxMemoryMB <= 0 {
		return fmt.Errorf("max memory must be positive: %d", c.MaxMemoryMB)
	}
	if c.MaxGoroutines <= 0 {
		return fmt.Errorf("max goroutines must be positive: %d", c.MaxGoroutines)
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return parsed, nil
}
