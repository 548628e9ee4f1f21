package resource

import (
	"context"
	"testing"
)

func TestResourceHealthCheck(t *testing.T) {
	rm := testManager(10)
	check := NewResourceHealthCheck(rm)

	if check.Name() != "resource" {
		t.Errorf("Name() = %q, want resource", check.Name())
	}

	if err := check.Check(context.Background()); err != nil {
		t.Errorf("idle manager: unexpected error %v", err)
	}

	// Over the memory limit.
	rm.memoryUsageMB.Store(1024)
	if err := check.Check(context.Background()); err == nil {
		t.Error("memory over limit: expected error, got nil")
	}
	rm.memoryUsageMB.Store(0)

	// Over 80% of the goroutine limit.
	rm.goroutineCount.Store(9)
	if err := check.Check(context.Background()); err == nil {
		t.Error("goroutines over threshold: expected error, got nil")
	}
	rm.goroutineCount.Store(0)

	if err := check.Check(context.Background()); err != nil {
		t.Errorf("recovered manager: unexpected error %v", err)
	}
}
