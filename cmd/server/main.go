// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/engine"
	"github.com/opd-ai/go-orbit/pkg/event"
	"github.com/opd-ai/go-orbit/pkg/health"
	"github.com/opd-ai/go-orbit/pkg/logging"
	"github.com/opd-ai/go-orbit/pkg/network"
	"github.com/opd-ai/go-orbit/pkg/resource"
)

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.json", "Path to configuration file")
	createDefault := flag.Bool("default", false, "Create default configuration file")
	flag.Parse()

	if *createDefault {
		defaultConfig := config.DefaultConfig()
		if err := config.SaveConfig(defaultConfig, *configPath); err != nil {
			logger.Error(ctx, "Failed to create default configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default configuration file",
			"config_path", *configPath,
		)
		return
	}

	var simConfig *config.SimConfig

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Info(ctx, "Configuration file not found, using default configuration",
			"config_path", *configPath,
		)
		simConfig = config.DefaultConfig()
	} else {
		simConfig, err = config.LoadConfig(*configPath)
		if err != nil {
			logger.Error(ctx, "Failed to load configuration", err,
				"config_path", *configPath,
			)
			os.Exit(1)
		}
	}

	envConfig, err := config.LoadConfigFromEnv()
	if err != nil {
		logger.Error(ctx, "Failed to load environment configuration", err)
		os.Exit(1)
	}

	events := event.NewBus()
	sim := engine.NewSimulation(simConfig, events, logger)

	gateway := network.NewObserverGateway(sim, logger)
	server := network.NewSimServer(sim, simConfig.MaxPlayers, gateway, events, logger)

	resourceManager := resource.NewResourceManager(envConfig, logger)
	resourceManager.Start()

	healthChecker := health.NewHealthChecker()
	healthChecker.AddCheck(health.NewSimulationHealthCheck(
		sim.Running,
		sim.Tick,
	))
	healthChecker.AddCheck(health.NewTickRateHealthCheck(
		1/simConfig.PhysicsConfig.FixedTimeStep,
		server.StepsPerSecond,
	))
	healthChecker.AddCheck(health.NewNetworkHealthCheck(func() string {
		if addr := server.Addr(); addr != nil {
			return addr.String()
		}
		return ""
	}))
	healthChecker.AddCheck(health.NewMemoryHealthCheck(
		envConfig.MaxMemoryMB,
		resourceManager.CheckMemoryUsage,
	))
	healthChecker.AddCheck(resource.NewResourceHealthCheck(resourceManager))

	healthPort := "8080"
	if envPort := os.Getenv("ORBIT_HEALTH_PORT"); envPort != "" {
		if _, err := strconv.Atoi(envPort); err == nil {
			healthPort = envPort
		}
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", healthChecker.LivenessHandler)
	healthMux.HandleFunc("/ready", healthChecker.ReadinessHandler)

	healthServer := &http.Server{
		Addr:         ":" + healthPort,
		Handler:      healthMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting health check server",
			"port", healthPort,
		)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Health check server failed", err)
		}
	}()

	observerAddr := fmt.Sprintf("%s:%d",
		simConfig.NetworkConfig.ServerAddress,
		simConfig.NetworkConfig.ObserverPort,
	)
	observerMux := http.NewServeMux()
	observerMux.Handle("/observe", gateway)
	observerServer := &http.Server{
		Addr:        observerAddr,
		Handler:     observerMux,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting observer gateway",
			"address", observerAddr,
		)
		if err := observerServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Observer gateway failed", err)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d",
		simConfig.NetworkConfig.ServerAddress,
		simConfig.NetworkConfig.ServerPort,
	)
	logger.Info(ctx, "Starting server",
		"address", serverAddr,
		"max_players", simConfig.MaxPlayers,
		"tick_rate", 1/simConfig.PhysicsConfig.FixedTimeStep,
	)
	if err := server.Start(serverAddr); err != nil {
		logger.Error(ctx, "Failed to start server", err,
			"address", serverAddr,
		)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Health check server shutdown failed", err)
	}
	if err := observerServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Observer gateway shutdown failed", err)
	}
	gateway.Close()
	server.Stop()

	if err := resourceManager.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Resource manager shutdown failed", err)
	}
}
