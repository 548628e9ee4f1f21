// Package resource tracks and limits the server's memory and goroutine
// usage, and coordinates graceful shutdown of managed goroutines.
package resource

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-orbit/pkg/config"
	"github.com/opd-ai/go-orbit/pkg/logging"
)

// ResourceManager enforces memory and goroutine budgets for the orbit
// server and tracks managed goroutines through shutdown.
type ResourceManager struct {
	maxMemoryMB     int64
	maxGoroutines   int
	shutdownTimeout time.Duration
	checkInterval   time.Duration

	goroutineCount atomic.Int64
	memoryUsageMB  atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	running bool
	logger  *logging.Logger

	lastMemoryCheck    atomic.Int64
	lastGoroutineCheck atomic.Int64
}

// NewResourceManager creates a resource manager with limits from the
// environment configuration.
func NewResourceManager(envConfig *config.EnvironmentConfig, logger *logging.Logger) *ResourceManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ResourceManager{
		maxMemoryMB:     envConfig.MaxMemoryMB,
		maxGoroutines:   envConfig.MaxGoroutines,
		shutdownTimeout: envConfig.ShutdownTimeout,
		checkInterval:   envConfig.ResourceCheckInterval,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
		logger:          logger,
	}
}

// Start begins periodic resource monitoring. Calling Start on a running
// manager is a no-op.
func (rm *ResourceManager) Start() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.running {
		return
	}
	rm.running = true

	go rm.monitoringLoop()

	rm.logger.Info(rm.ctx, "resource manager started",
		"max_memory_mb", rm.maxMemoryMB,
		"max_goroutines", rm.maxGoroutines,
		"check_interval", rm.checkInterval)
}

// StartGoroutine launches fn as a managed goroutine. It fails when the
// goroutine budget is exhausted. Panics in fn are recovered and logged.
func (rm *ResourceManager) StartGoroutine(ctx context.Context, name string, fn func(context.Context)) error {
	current := rm.goroutineCount.Load()
	if current >= int64(rm.maxGoroutines) {
		return fmt.Errorf("goroutine limit reached: %d of %d", current, rm.maxGoroutines)
	}

	rm.goroutineCount.Add(1)

	go func() {
		defer func() {
			rm.goroutineCount.Add(-1)
			if r := recover(); r != nil {
				rm.logger.Error(rm.ctx, "managed goroutine panicked",
					fmt.Errorf("panic: %v", r),
					"goroutine", name)
			}
		}()

		fn(ctx)
	}()

	return nil
}

// CheckMemoryUsage samples the current heap allocation and records it.
func (rm *ResourceManager) CheckMemoryUsage() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usageMB := int64(m.Alloc / 1024 / 1024)
	rm.memoryUsageMB.Store(usageMB)
	rm.lastMemoryCheck.Store(time.Now().Unix())
	return usageMB
}

// GetGoroutineCount returns the number of live managed goroutines.
func (rm *ResourceManager) GetGoroutineCount() int64 {
	return rm.goroutineCount.Load()
}

// GetMemoryUsage returns the most recently sampled heap usage in MB.
func (rm *ResourceManager) GetMemoryUsage() int64 {
	return rm.memoryUsageMB.Load()
}

// MaxMemoryMB returns the configured memory limit.
func (rm *ResourceManager) MaxMemoryMB() int64 {
	return rm.maxMemoryMB
}

// MaxGoroutines returns the configured goroutine limit.
func (rm *ResourceManager) MaxGoroutines() int {
	return rm.maxGoroutines
}

// ResourceStats is a point-in-time snapshot of resource usage.
type ResourceStats struct {
	GoroutineCount     int64 `json:"goroutine_count"`
	MaxGoroutines      int   `json:"max_goroutines"`
	MemoryUsageMB      int64 `json:"memory_usage_mb"`
	MaxMemoryMB        int64 `json:"max_memory_mb"`
	LastMemoryCheck    int64 `json:"last_memory_check"`
	LastGoroutineCheck int64 `json:"last_goroutine_check"`
}

// GetResourceStats returns a snapshot of current usage against limits.
func (rm *ResourceManager) GetResourceStats() ResourceStats {
	return ResourceStats{
		GoroutineCount:     rm.goroutineCount.Load(),
		MaxGoroutines:      rm.maxGoroutines,
		MemoryUsageMB:      rm.memoryUsageMB.Load(),
		MaxMemoryMB:        rm.maxMemoryMB,
		LastMemoryCheck:    rm.lastMemoryCheck.Load(),
		LastGoroutineCheck: rm.lastGoroutineCheck.Load(),
	}
}

// Shutdown stops monitoring and waits for managed goroutines to exit,
// up to the configured shutdown timeout.
func (rm *ResourceManager) Shutdown(ctx context.Context) error {
	rm.mu.Lock()
	if !rm.running {
		rm.mu.Unlock()
		return nil
	}
	rm.running = false
	rm.mu.Unlock()

	rm.logger.Info(ctx, "resource manager shutting down",
		"active_goroutines", rm.goroutineCount.Load())

	rm.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, rm.shutdownTimeout)
	defer cancel()

	select {
	case <-rm.done:
	case <-shutdownCtx.Done():
		return fmt.Errorf("monitoring loop did not stop within %v", rm.shutdownTimeout)
	}

	if err := rm.waitForGoroutines(shutdownCtx); err != nil {
		return err
	}

	rm.logger.Info(ctx, "resource manager stopped")
	return nil
}

func (rm *ResourceManager) waitForGoroutines(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rm.goroutineCount.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d goroutines still running at shutdown deadline",
				rm.goroutineCount.Load())
		case <-ticker.C:
		}
	}
}

func (rm *ResourceManager) monitoringLoop() {
	defer close(rm.done)

	ticker := time.NewTicker(rm.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rm.ctx.Done():
			return
		case <-ticker.C:
			rm.performResourceChecks()
		}
	}
}

func (rm *ResourceManager) performResourceChecks() {
	usageMB := rm.CheckMemoryUsage()
	if usageMB > rm.maxMemoryMB {
		rm.logger.Warn(rm.ctx, "memory usage exceeds limit",
			"usage_mb", usageMB,
			"limit_mb", rm.maxMemoryMB)
	}

	count := rm.goroutineCount.Load()
	rm.lastGoroutineCheck.Store(time.Now().Unix())
	if count > int64(rm.maxGoroutines)*8/10 {
		rm.logger.Warn(rm.ctx, "goroutine count nearing limit",
			"count", count,
			"limit", rm.maxGoroutines)
	}
}
