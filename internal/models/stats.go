package models

import "time"

// GlobalStats is the singleton diagnostic counter row. It is maintained
// incrementally on every version/blob mutation and can be recomputed from the
// catalog tables for drift repair.
type GlobalStats struct {
	TotalVersions        int64     `json:"total_versions"`
	TotalRawBytes        int64     `json:"total_raw_bytes"`
	TotalCompressedBytes int64     `json:"total_compressed_bytes"`
	LastPriorityRunAt    time.Time `json:"last_priority_run_at,omitzero"`
}
