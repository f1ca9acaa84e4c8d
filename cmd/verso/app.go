package main

import (
	"fmt"

	"verso/internal/blobstore"
	"verso/internal/compress"
	"verso/internal/config"
	"verso/internal/engine"
	"verso/internal/store"
)

// app wires the full service stack for one CLI invocation.
type app struct {
	store    *store.Store
	blobs    *engine.BlobService
	quotas   *engine.QuotaLedger
	stats    *engine.StatsService
	versions *engine.VersionService
	reclaim  *engine.ReclaimEngine
	monitor  *engine.QuotaMonitor
}

func openApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}

	objects, err := blobstore.NewLocalCAS(cfg.BlobRoot)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open blob root %s: %w", cfg.BlobRoot, err)
	}

	stats := engine.NewStatsService(st, nil)
	blobs := engine.NewBlobService(st, objects, compress.NewCodec(), stats)
	quotas := engine.NewQuotaLedger(st, engine.ScopeDefaults{
		MaxSizeBytes:  cfg.Quota.MaxSizeBytes,
		HeadroomBytes: cfg.Quota.HeadroomBytes,
		MaxDepth:      cfg.Quota.MaxDepth,
		Enabled:       cfg.Quota.Enabled,
	})
	versions := engine.NewVersionService(st, blobs, quotas, stats, cfg.MaxVersionBytes)

	return &app{
		store:    st,
		blobs:    blobs,
		quotas:   quotas,
		stats:    stats,
		versions: versions,
		reclaim:  engine.NewReclaimEngine(st, versions, blobs, quotas, stats),
		monitor:  engine.NewQuotaMonitor(quotas),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
