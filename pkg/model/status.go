package model

// ServerStatus is the snapshot returned by GET /server-status/default.
// Uptime is the epoch-millis timestamp the server process started at;
// memory and disk figures are gigabytes.
type ServerStatus struct {
	Status             string         `json:"status"`
	Uptime             int64          `json:"uptime"`
	CPUUsage           float64        `json:"cpu_usage"`
	MemoryUsed         float64        `json:"memory_used"`
	MemoryAvailable    float64        `json:"memory_available"`
	DiskSpaceUsed      float64        `json:"disk_space_used"`
	DiskSpaceAvailable float64        `json:"disk_space_available"`
	Config             map[string]any `json:"config,omitempty"`
}

// RunStats aggregates run counts keyed "user|product|status", as
// returned by GET /run-stats/default. Statuses are the Report statuses
// plus "clones_processed" for per-clone throughput counters.
type RunStats struct {
	RunCounts map[string]int64 `json:"run_counts"`
}

// Version is the build metadata returned by GET /version.
type Version struct {
	Version string `json:"version"`
	Build   string `json:"build,omitempty"`
}
