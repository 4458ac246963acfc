package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Protocol      protocol.Stats `json:"protocol"`
	Devices       DeviceMetrics  `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total       int            `json:"total"`
	ByTransport map[string]int `json:"by_transport"`
	WithSecret  int            `json:"with_secret"`
}

// handleMetrics returns runtime, registration and device statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	regStats := s.devices.GetStats()

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Protocol: s.support.Stats(),
		Devices: DeviceMetrics{
			Total:       regStats.TotalDevices,
			ByTransport: regStats.ByTransport,
			WithSecret:  regStats.WithSecret,
		},
	})
}
