package content

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/snapshot"
)

// collectionAliases maps CMS endpoint names and snapshot keys to the
// snapshot key they read from.
var collectionAliases = map[string]snapshot.Key{
	"info-pages":            snapshot.KeyInfoPages,
	"info-pages-navigation": snapshot.KeyInfoPagesForNavigation,
	"artists":               snapshot.KeyArtists,
	"general-pages":         snapshot.KeyGeneralPagesForFooter,
}

var singletonAliases = map[string]snapshot.Key{
	"scrolling-header-text":      snapshot.KeyScrollingHeaderText,
	"acknowledgement-of-country": snapshot.KeyAcknowledgementOfCountry,
	"big-link":                   snapshot.KeyBigLink,
	"applications-page":          snapshot.KeyApplicationsPage,
}

// CollectionKey resolves an endpoint name ("info-pages") or snapshot key
// ("infoPages") to a collection key.
func CollectionKey(name string) (snapshot.Key, bool) {
	if k, ok := collectionAliases[name]; ok {
		return k, true
	}
	if k := snapshot.Key(name); k.IsCollection() {
		return k, true
	}
	return "", false
}

// SingletonKey resolves an endpoint name or snapshot key to a singleton key.
func SingletonKey(name string) (snapshot.Key, bool) {
	if k, ok := singletonAliases[name]; ok {
		return k, true
	}
	if k := snapshot.Key(name); k.IsSingleton() {
		return k, true
	}
	return "", false
}

// Item is one CMS entry as stored in the snapshot. Slug and DocumentID are
// lifted out at construction for lookups; everything else stays in Raw.
type Item struct {
	Raw        json.RawMessage
	DocumentID string
	Slug       string
}

func (i Item) Decode(v any) error { return json.Unmarshal(i.Raw, v) }

func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) == 0 {
		return []byte("null"), nil
	}
	return i.Raw, nil
}

func newItem(raw json.RawMessage) Item {
	var ids struct {
		DocumentID any `json:"documentId"`
		Slug       any `json:"slug"`
	}
	_ = json.Unmarshal(raw, &ids)
	it := Item{Raw: raw}
	it.DocumentID, _ = ids.DocumentID.(string)
	it.Slug, _ = ids.Slug.(string)
	return it
}

// Metadata summarises the snapshot a Store was built from.
type Metadata struct {
	FetchedAt         string `json:"fetchedAt"`
	StrapiURL         string `json:"strapiUrl"`
	TotalInfoPages    int    `json:"totalInfoPages"`
	TotalArtists      int    `json:"totalArtists"`
	TotalGeneralPages int    `json:"totalGeneralPages"`
}

// Store is a read-only view of one snapshot. Methods are safe for
// concurrent use since nothing is mutated after NewStore.
type Store struct {
	doc         *snapshot.Document
	collections map[snapshot.Key][]Item
	singletons  map[snapshot.Key]Item
	logger      log.Logger
}

// NewStore indexes doc. A nil doc gives an empty store.
func NewStore(doc *snapshot.Document, logger log.Logger) *Store {
	if doc == nil {
		doc = &snapshot.Document{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Store{
		doc:         doc,
		collections: make(map[snapshot.Key][]Item, len(snapshot.Collections)),
		singletons:  make(map[snapshot.Key]Item, len(snapshot.Singletons)),
		logger:      logger,
	}
	for _, k := range snapshot.Collections {
		raws, _ := doc.Collection(k)
		items := make([]Item, 0, len(raws))
		for _, r := range raws {
			items = append(items, newItem(r))
		}
		s.collections[k] = items
	}
	for _, k := range snapshot.Singletons {
		if raw, _ := doc.Singleton(k); len(raw) > 0 && string(raw) != "null" {
			s.singletons[k] = newItem(raw)
		}
	}
	return s
}

// Document returns the underlying snapshot. Callers must not modify it.
func (s *Store) Document() *snapshot.Document { return s.doc }

// All returns every item of a collection in snapshot order. An unknown
// collection logs a warning and returns nil.
func (s *Store) All(collection string) []Item {
	k, ok := CollectionKey(collection)
	if !ok {
		s.logger.Warn(context.Background(), "collection not found in static content", "collection", collection)
		return nil
	}
	return s.collections[k]
}

// BySlug returns the first item whose slug equals slug.
func (s *Store) BySlug(collection, slug string) (Item, bool) {
	for _, it := range s.All(collection) {
		if it.Slug == slug {
			return it, true
		}
	}
	return Item{}, false
}

// ByDocumentID returns the first item whose documentId equals id.
func (s *Store) ByDocumentID(collection, id string) (Item, bool) {
	for _, it := range s.All(collection) {
		if it.DocumentID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Single returns a singleton entry. Unknown keys log a warning; a key the
// CMS had no entry for is simply not found.
func (s *Store) Single(name string) (Item, bool) {
	k, ok := SingletonKey(name)
	if !ok {
		s.logger.Warn(context.Background(), "single type not found in static content", "single_type", name)
		return Item{}, false
	}
	it, ok := s.singletons[k]
	return it, ok
}

func (s *Store) Metadata() Metadata {
	return Metadata{
		FetchedAt:         s.doc.FetchedAt,
		StrapiURL:         s.doc.StrapiURL,
		TotalInfoPages:    len(s.collections[snapshot.KeyInfoPages]),
		TotalArtists:      len(s.collections[snapshot.KeyArtists]),
		TotalGeneralPages: len(s.collections[snapshot.KeyGeneralPagesForFooter]),
	}
}

// MediaURL makes a CMS media path absolute. Absolute URLs are returned as
// is; relative ones are prefixed with the snapshot's Strapi URL.
func (s *Store) MediaURL(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "http") {
		return u
	}
	return strings.TrimRight(s.doc.StrapiURL, "/") + u
}

// ImageURL is MediaURL for an image field; nil gives "".
func (s *Store) ImageURL(m *Media) string {
	if m == nil {
		return ""
	}
	return s.MediaURL(m.URL)
}
