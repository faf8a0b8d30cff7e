// Package metrics provides Prometheus metrics for the configuration
// resolution engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolvePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturecfg",
		Subsystem: "resolve",
		Name:      "passes_total",
		Help:      "Resolution passes run per device",
	}, []string{"device"})

	backendReassignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturecfg",
		Subsystem: "resolve",
		Name:      "backend_reassignments_total",
		Help:      "Encoder backend reassignments per device",
	}, []string{"device"})

	validationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturecfg",
		Subsystem: "resolve",
		Name:      "validation_rejections_total",
		Help:      "Commit-time device validation rejections per device",
	}, []string{"device"})

	probeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "capturecfg",
		Subsystem: "bitrate",
		Name:      "probe_cache_hits_total",
		Help:      "Bitrate suggestion cache hits",
	})

	probeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "capturecfg",
		Subsystem: "bitrate",
		Name:      "probe_cache_misses_total",
		Help:      "Bitrate suggestion cache misses",
	})

	liveTests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capturecfg",
		Subsystem: "encoders",
		Name:      "live_tests_total",
		Help:      "Live encode tests by verdict",
	}, []string{"verdict"})

	// Local cache so callers can read back counts without scraping.
	deviceCache   = make(map[string]*DeviceCounters)
	deviceCacheMu sync.RWMutex
)

// DeviceCounters holds current per-device counter values.
type DeviceCounters struct {
	ResolvePasses        float64
	BackendReassignments float64
	ValidationRejections float64
}

// IncResolvePass counts one resolution pass for a device.
func IncResolvePass(deviceID string) {
	resolvePasses.WithLabelValues(deviceID).Inc()
	updateCache(deviceID, func(c *DeviceCounters) { c.ResolvePasses++ })
}

// IncBackendReassignment counts one encoder backend reassignment.
func IncBackendReassignment(deviceID string) {
	backendReassignments.WithLabelValues(deviceID).Inc()
	updateCache(deviceID, func(c *DeviceCounters) { c.BackendReassignments++ })
}

// IncValidationRejection counts one commit-time validation rejection.
func IncValidationRejection(deviceID string) {
	validationRejections.WithLabelValues(deviceID).Inc()
	updateCache(deviceID, func(c *DeviceCounters) { c.ValidationRejections++ })
}

// IncProbeCacheHit counts one bitrate suggestion cache hit.
func IncProbeCacheHit() {
	probeCacheHits.Inc()
}

// IncProbeCacheMiss counts one bitrate suggestion cache miss.
func IncProbeCacheMiss() {
	probeCacheMisses.Inc()
}

// IncLiveTest counts one live encode test with its verdict
// (success, warning or failure).
func IncLiveTest(verdict string) {
	liveTests.WithLabelValues(verdict).Inc()
}

// GetDeviceCounters returns current counter values for a device.
func GetDeviceCounters(deviceID string) *DeviceCounters {
	deviceCacheMu.RLock()
	defer deviceCacheMu.RUnlock()
	if c, ok := deviceCache[deviceID]; ok {
		dup := *c
		return &dup
	}
	return nil
}

// DeleteDeviceCounters removes all metrics for a device.
func DeleteDeviceCounters(deviceID string) {
	resolvePasses.DeleteLabelValues(deviceID)
	backendReassignments.DeleteLabelValues(deviceID)
	validationRejections.DeleteLabelValues(deviceID)

	deviceCacheMu.Lock()
	delete(deviceCache, deviceID)
	deviceCacheMu.Unlock()
}

func updateCache(deviceID string, update func(*DeviceCounters)) {
	deviceCacheMu.Lock()
	defer deviceCacheMu.Unlock()
	c, ok := deviceCache[deviceID]
	if !ok {
		c = &DeviceCounters{}
		deviceCache[deviceID] = c
	}
	update(c)
}
