package engine

import (
	"context"

	"verso/internal/models"
)

// Quota status levels, ordered from healthy to exhausted.
const (
	StatusOK               = "ok"
	StatusApproachingLimit = "approaching_limit"
	StatusWarning          = "warning"
	StatusCritical         = "critical"
)

// ScopeStatus is a point-in-time view of one scope's quota health.
type ScopeStatus struct {
	Scope        models.QuotaScope `json:"scope"`
	Status       string            `json:"status"`
	UsagePercent float64           `json:"usage_percent"`
	NeedsCleanup bool              `json:"needs_cleanup"`
}

// QuotaMonitor reports quota health for scopes without mutating anything.
type QuotaMonitor struct {
	quotas *QuotaLedger
}

// NewQuotaMonitor constructs a QuotaMonitor.
func NewQuotaMonitor(quotas *QuotaLedger) *QuotaMonitor {
	return &QuotaMonitor{quotas: quotas}
}

// Status classifies one scope: critical at 95% of the maximum, warning at
// 90%, approaching_limit past the headroom line, otherwise ok.
func (m *QuotaMonitor) Status(ctx context.Context, scopeID string) (ScopeStatus, error) {
	scope, err := m.quotas.GetScope(ctx, scopeID)
	if err != nil {
		return ScopeStatus{}, err
	}
	return classify(scope), nil
}

// AllStatuses returns the health of every configured scope, default first.
func (m *QuotaMonitor) AllStatuses(ctx context.Context) ([]ScopeStatus, error) {
	scopes, err := m.quotas.ListScopes(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]ScopeStatus, 0, len(scopes))
	for _, scope := range scopes {
		statuses = append(statuses, classify(scope))
	}
	return statuses, nil
}

// ScopesNeedingCleanup filters for enabled scopes past their headroom line.
func (m *QuotaMonitor) ScopesNeedingCleanup(ctx context.Context) ([]models.QuotaScope, error) {
	scopes, err := m.quotas.ListScopes(ctx)
	if err != nil {
		return nil, err
	}
	var needing []models.QuotaScope
	for _, scope := range scopes {
		if scope.Enabled && scope.OverHeadroom() {
			needing = append(needing, scope)
		}
	}
	return needing, nil
}

func classify(scope models.QuotaScope) ScopeStatus {
	pct := scope.UsagePercent()
	status := StatusOK
	switch {
	case pct >= 95:
		status = StatusCritical
	case pct >= 90:
		status = StatusWarning
	case scope.Enabled && scope.OverHeadroom():
		status = StatusApproachingLimit
	}
	return ScopeStatus{
		Scope:        scope,
		Status:       status,
		UsagePercent: pct,
		NeedsCleanup: scope.Enabled && scope.OverHeadroom(),
	}
}
