package metrics

import "testing"

func TestDeviceCountersCache(t *testing.T) {
	deviceID := "test-cam-1"
	DeleteDeviceCounters(deviceID)

	if c := GetDeviceCounters(deviceID); c != nil {
		t.Error("expected nil for untracked device")
	}

	IncResolvePass(deviceID)
	IncResolvePass(deviceID)
	IncBackendReassignment(deviceID)
	IncValidationRejection(deviceID)

	c := GetDeviceCounters(deviceID)
	if c == nil {
		t.Fatal("expected non-nil counters")
	}
	if c.ResolvePasses != 2 {
		t.Errorf("ResolvePasses = %v, want 2", c.ResolvePasses)
	}
	if c.BackendReassignments != 1 {
		t.Errorf("BackendReassignments = %v, want 1", c.BackendReassignments)
	}
	if c.ValidationRejections != 1 {
		t.Errorf("ValidationRejections = %v, want 1", c.ValidationRejections)
	}

	// Returned copy is independent of the cache
	c.ResolvePasses = 999
	if c2 := GetDeviceCounters(deviceID); c2.ResolvePasses != 2 {
		t.Errorf("cache was modified, ResolvePasses = %v, want 2", c2.ResolvePasses)
	}

	DeleteDeviceCounters(deviceID)
	if deleted := GetDeviceCounters(deviceID); deleted != nil {
		t.Error("expected nil after delete")
	}
}
