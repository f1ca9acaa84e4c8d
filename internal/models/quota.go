package models

import "time"

// DefaultScopeID keys the platform-wide default quota row. Per-owner scopes
// are seeded from it on first access.
const DefaultScopeID = ""

// QuotaScope is quota configuration plus the live usage counter for one
// owning scope, or for the platform default when ScopeID is empty.
type QuotaScope struct {
	ScopeID           string    `json:"scope_id"`
	MaxSizeBytes      int64     `json:"max_size_bytes"`
	HeadroomBytes     int64     `json:"headroom_bytes"`
	MaxDepth          int64     `json:"max_depth"`
	CurrentUsageBytes int64     `json:"current_usage_bytes"`
	Enabled           bool      `json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsDefault reports whether this is the platform-wide default row.
func (q QuotaScope) IsDefault() bool {
	return q.ScopeID == DefaultScopeID
}

// UsagePercent returns usage as a percentage of the configured maximum.
func (q QuotaScope) UsagePercent() float64 {
	if q.MaxSizeBytes <= 0 {
		return 0
	}
	return float64(q.CurrentUsageBytes) / float64(q.MaxSizeBytes) * 100
}

// AvailableBytes returns the bytes remaining below the hard maximum.
func (q QuotaScope) AvailableBytes() int64 {
	available := q.MaxSizeBytes - q.CurrentUsageBytes
	if available < 0 {
		return 0
	}
	return available
}

// OverHeadroom reports whether usage has crossed the cleanup trigger line
// (max minus headroom).
func (q QuotaScope) OverHeadroom() bool {
	return q.CurrentUsageBytes >= q.MaxSizeBytes-q.HeadroomBytes
}
