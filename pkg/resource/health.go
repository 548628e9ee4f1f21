package resource

import (
	"context"
	"fmt"
)

// ResourceHealthCheck reports unhealthy when memory or goroutine usage
// approaches the manager's limits.
type ResourceHealthCheck struct {
	manager *ResourceManager
}

// NewResourceHealthCheck creates a health check over a resource manager.
func NewResourceHealthCheck(manager *ResourceManager) *ResourceHealthCheck {
	return &ResourceHealthCheck{manager: manager}
}

// Name returns the name of this health check.
func (r *ResourceHealthCheck) Name() string {
	return "resource"
}

// Check verifies memory usage is under the limit and goroutine count is
// under 80% of its limit.
func (r *ResourceHealthCheck) Check(ctx context.Context) error {
	usageMB := r.manager.GetMemoryUsage()
	if usageMB > r.manager.MaxMemoryMB() {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB",
			usageMB, r.manager.MaxMemoryMB())
	}

	count := r.manager.GetGoroutineCount()
	threshold := int64(r.manager.MaxGoroutines()) * 8 / 10
	if count > threshold {
		return fmt.Errorf("goroutine count %d exceeds threshold %d",
			count, threshold)
	}

	return nil
}
