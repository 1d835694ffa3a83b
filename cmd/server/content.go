package main

import (
	"context"

	"github.com/rwaddinsall/hcf2025/internal/content"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/metrics"
	"github.com/rwaddinsall/hcf2025/internal/snapshot"
)

// loadContentFile activates the local snapshot if it is present and valid.
func loadContentFile(ctx context.Context, L log.Logger, mgr *content.Manager, path string, opts content.ValidationOptions) error {
	snap, err := content.LoadFile(path, L)
	if err != nil {
		return err
	}
	if err := content.ValidateSnapshot(snap, opts); err != nil {
		return err
	}
	mgr.Set(*snap)
	L.Info(ctx, "loaded local content snapshot",
		append([]any{"path", path, "hash", snap.Meta.SHA256, "fetched_at", snap.Meta.FetchedAt},
			snap.Store.Document().Summary().LogAttrs()...)...)
	return nil
}

// contentReport maps the active snapshot onto the content_* gauges.
func contentReport(snap *content.Snapshot) metrics.ContentSnapshot {
	doc := snap.Store.Document()
	items := make(map[string]int, len(snapshot.Collections)+len(snapshot.Singletons))
	for _, k := range snapshot.Collections {
		items[string(k)] = doc.Count(k)
	}
	for _, k := range snapshot.Singletons {
		items[string(k)] = doc.Count(k)
	}
	return metrics.ContentSnapshot{
		SHA256:    snap.Meta.SHA256,
		FetchedAt: snap.Meta.FetchedAt,
		Source:    string(snap.Meta.Source),
		LoadedAt:  snap.LoadedAt,
		Items:     items,
	}
}

func reportContent(m *metrics.ServerMetrics, mgr *content.Manager) {
	if snap, ok := mgr.Get(); ok {
		m.SetContentSnapshot(contentReport(snap))
	}
}
