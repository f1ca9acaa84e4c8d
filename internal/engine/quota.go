package engine

import (
	"context"
	"fmt"

	"verso/internal/models"
	"verso/internal/store"
)

// targetReductionFactor adds a 10% buffer to the reclaim target so a pass
// does not immediately re-trigger.
const targetReductionFactor = 1.1

// ScopeDefaults is the seed configuration for the platform-wide default
// quota row.
type ScopeDefaults struct {
	MaxSizeBytes  int64
	HeadroomBytes int64
	MaxDepth      int64
	Enabled       bool
}

// QuotaLedger manages per-scope quota configuration and the live usage
// counters. The global default is the scope with the empty id; per-owner
// rows are seeded from it on first access.
type QuotaLedger struct {
	store    *store.Store
	defaults ScopeDefaults
}

// NewQuotaLedger constructs a QuotaLedger.
func NewQuotaLedger(st *store.Store, defaults ScopeDefaults) *QuotaLedger {
	return &QuotaLedger{store: st, defaults: defaults}
}

// GetScope returns the quota scope for scopeID, creating it on first access:
// the default row from configured defaults, per-owner rows copied from the
// default row.
func (l *QuotaLedger) GetScope(ctx context.Context, scopeID string) (models.QuotaScope, error) {
	scope, err := l.store.GetQuotaScope(ctx, scopeID)
	if err != nil {
		return models.QuotaScope{}, err
	}
	if scope != nil {
		return *scope, nil
	}

	if err := l.ensureDefaultScope(ctx); err != nil {
		return models.QuotaScope{}, err
	}
	if scopeID != models.DefaultScopeID {
		if err := l.store.SeedQuotaScope(ctx, scopeID); err != nil {
			return models.QuotaScope{}, fmt.Errorf("seed scope %q: %w", scopeID, err)
		}
	}

	scope, err = l.store.GetQuotaScope(ctx, scopeID)
	if err != nil {
		return models.QuotaScope{}, err
	}
	if scope == nil {
		return models.QuotaScope{}, fmt.Errorf("scope %q missing after seed: %w", scopeID, ErrNotFound)
	}
	return *scope, nil
}

// NeedsCleanup reports whether a scope is enabled and over its headroom
// line, with a human-readable reason.
func (l *QuotaLedger) NeedsCleanup(ctx context.Context, scopeID string) (bool, string, error) {
	scope, err := l.GetScope(ctx, scopeID)
	if err != nil {
		return false, "", err
	}
	if !scope.Enabled {
		return false, "quota disabled", nil
	}
	if !scope.OverHeadroom() {
		return false, "usage within headroom", nil
	}
	return true, fmt.Sprintf("usage %d over headroom line %d", scope.CurrentUsageBytes, scope.MaxSizeBytes-scope.HeadroomBytes), nil
}

// TargetReductionBytes returns how many bytes a reclaim pass should free:
// the overage past the headroom line plus a 10% buffer.
func (l *QuotaLedger) TargetReductionBytes(ctx context.Context, scopeID string) (int64, error) {
	scope, err := l.GetScope(ctx, scopeID)
	if err != nil {
		return 0, err
	}
	over := scope.CurrentUsageBytes - (scope.MaxSizeBytes - scope.HeadroomBytes)
	if over <= 0 {
		return 0, nil
	}
	return int64(float64(over) * targetReductionFactor), nil
}

// AdjustUsage applies a usage delta for primary-attributed creates and
// deletes. The update is a single atomic SQL statement clamped at zero.
func (l *QuotaLedger) AdjustUsage(ctx context.Context, scopeID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	// Make sure the row exists before adjusting it.
	if _, err := l.GetScope(ctx, scopeID); err != nil {
		return err
	}
	return l.store.AdjustScopeUsage(ctx, scopeID, delta)
}

// ScopeConfigUpdate carries named setters for a scope's configuration.
// Nil fields are left unchanged.
type ScopeConfigUpdate struct {
	MaxSizeBytes  *int64
	HeadroomBytes *int64
	MaxDepth      *int64
	Enabled       *bool
}

// UpdateScopeConfig applies named configuration changes to a scope,
// creating the scope first if needed.
func (l *QuotaLedger) UpdateScopeConfig(ctx context.Context, scopeID string, update ScopeConfigUpdate) (models.QuotaScope, error) {
	scope, err := l.GetScope(ctx, scopeID)
	if err != nil {
		return models.QuotaScope{}, err
	}

	if update.MaxSizeBytes != nil {
		if *update.MaxSizeBytes < 0 {
			return models.QuotaScope{}, fmt.Errorf("max_size_bytes must be >= 0")
		}
		scope.MaxSizeBytes = *update.MaxSizeBytes
	}
	if update.HeadroomBytes != nil {
		if *update.HeadroomBytes < 0 {
			return models.QuotaScope{}, fmt.Errorf("headroom_bytes must be >= 0")
		}
		scope.HeadroomBytes = *update.HeadroomBytes
	}
	if update.MaxDepth != nil {
		if *update.MaxDepth < 1 {
			return models.QuotaScope{}, fmt.Errorf("max_depth must be >= 1")
		}
		scope.MaxDepth = *update.MaxDepth
	}
	if update.Enabled != nil {
		scope.Enabled = *update.Enabled
	}
	if scope.HeadroomBytes > scope.MaxSizeBytes {
		return models.QuotaScope{}, fmt.Errorf("headroom_bytes must not exceed max_size_bytes")
	}

	if err := l.store.PutQuotaScope(ctx, &scope); err != nil {
		return models.QuotaScope{}, err
	}
	updated, err := l.store.GetQuotaScope(ctx, scopeID)
	if err != nil {
		return models.QuotaScope{}, err
	}
	if updated == nil {
		return models.QuotaScope{}, fmt.Errorf("scope %q missing after update: %w", scopeID, ErrNotFound)
	}
	return *updated, nil
}

// ListScopes lists all configured scopes, the default row first.
func (l *QuotaLedger) ListScopes(ctx context.Context) ([]models.QuotaScope, error) {
	if err := l.ensureDefaultScope(ctx); err != nil {
		return nil, err
	}
	return l.store.ListQuotaScopes(ctx)
}

func (l *QuotaLedger) ensureDefaultScope(ctx context.Context) error {
	existing, err := l.store.GetQuotaScope(ctx, models.DefaultScopeID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return l.store.PutQuotaScope(ctx, &models.QuotaScope{
		ScopeID:       models.DefaultScopeID,
		MaxSizeBytes:  l.defaults.MaxSizeBytes,
		HeadroomBytes: l.defaults.HeadroomBytes,
		MaxDepth:      l.defaults.MaxDepth,
		Enabled:       l.defaults.Enabled,
	})
}
