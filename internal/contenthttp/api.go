// Package contenthttp exposes the loaded snapshot over JSON: its metadata
// and read-only lookups into the collections and single types.
package contenthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rwaddinsall/hcf2025/internal/content"
	"github.com/rwaddinsall/hcf2025/internal/httpmw"
	"github.com/rwaddinsall/hcf2025/internal/log"
)

// SnapshotProvider returns the active snapshot. *content.Manager
// implements it.
type SnapshotProvider interface {
	Get() (*content.Snapshot, bool)
}

type API struct {
	content SnapshotProvider
	logger  log.Logger
	now     func() time.Time
}

func NewAPI(provider SnapshotProvider, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{content: provider, logger: logger, now: time.Now}
}

// RegisterRoutes attaches the content endpoints.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/content", func(r chi.Router) {
		r.Use(httpmw.Scope("content"))
		r.Get("/metadata", api.HandleMetadata)
		r.Get("/collections/{collection}", api.HandleCollection)
		r.Get("/collections/{collection}/{slug}", api.HandleItem)
		r.Get("/singles/{name}", api.HandleSingle)
	})
}

// MetadataResponse describes the snapshot being served.
type MetadataResponse struct {
	content.Metadata
	Runtime RuntimeInfo `json:"runtime"`
}

type RuntimeInfo struct {
	Hash       string         `json:"hash,omitempty"`
	Source     content.Source `json:"source"`
	Location   string         `json:"location,omitempty"`
	Signed     bool           `json:"signed"`
	VerifiedAt *time.Time     `json:"verifiedAt,omitempty"`
	LoadedAt   time.Time      `json:"loadedAt"`
	ServerTime time.Time      `json:"serverTime"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleMetadata serves the snapshot totals plus where and when it was
// loaded from. It answers 503 before the first snapshot.
func (api *API) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, ok := api.snapshot(ctx, w)
	if !ok {
		return
	}

	resp := MetadataResponse{
		Metadata: snap.Store.Metadata(),
		Runtime: RuntimeInfo{
			Hash:       snap.Meta.SHA256,
			Source:     snap.Meta.Source,
			Location:   snap.Meta.Location,
			Signed:     snap.Meta.Signed,
			LoadedAt:   snap.LoadedAt.UTC().Truncate(time.Second),
			ServerTime: api.now().UTC().Truncate(time.Second),
		},
	}
	if !snap.Meta.VerifiedAt.IsZero() {
		v := snap.Meta.VerifiedAt.UTC().Truncate(time.Second)
		resp.Runtime.VerifiedAt = &v
	}
	api.writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleCollection serves every item of a collection. Both endpoint
// names (info-pages) and snapshot keys (infoPages) are accepted.
func (api *API) HandleCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "collection")
	if _, ok := content.CollectionKey(name); !ok {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "unknown collection"})
		return
	}
	snap, ok := api.snapshot(ctx, w)
	if !ok {
		return
	}
	items := snap.Store.All(name)
	if items == nil {
		items = []content.Item{}
	}
	api.writeJSON(ctx, w, http.StatusOK, map[string]any{"data": items})
}

// HandleItem serves one collection item by slug, falling back to
// documentId so artists (which have no slug field) can be addressed.
func (api *API) HandleItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, slug := chi.URLParam(r, "collection"), chi.URLParam(r, "slug")
	if _, ok := content.CollectionKey(name); !ok {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "unknown collection"})
		return
	}
	snap, ok := api.snapshot(ctx, w)
	if !ok {
		return
	}
	it, found := snap.Store.BySlug(name, slug)
	if !found {
		it, found = snap.Store.ByDocumentID(name, slug)
	}
	if !found {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, map[string]any{"data": it})
}

// HandleSingle serves a single type. A known type the CMS had no entry for
// is a 404, same as a missing collection item.
func (api *API) HandleSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	if _, ok := content.SingletonKey(name); !ok {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "unknown single type"})
		return
	}
	snap, ok := api.snapshot(ctx, w)
	if !ok {
		return
	}
	it, found := snap.Store.Single(name)
	if !found {
		api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, map[string]any{"data": it})
}

func (api *API) snapshot(ctx context.Context, w http.ResponseWriter) (*content.Snapshot, bool) {
	snap, ok := api.content.Get()
	if !ok {
		api.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "no content loaded"})
		return nil, false
	}
	return snap, true
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		api.logger.Error(ctx, err, "failed to encode content response")
	}
}
