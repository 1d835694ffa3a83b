package content

import (
	"context"
	"sort"

	"github.com/rwaddinsall/hcf2025/internal/snapshot"
)

// decodeAll decodes every item of a collection into T. Items that do not
// fit T are logged and skipped so one bad entry cannot blank a page.
func decodeAll[T any](s *Store, collection string) []T {
	items := s.All(collection)
	out := make([]T, 0, len(items))
	for _, it := range items {
		var v T
		if err := it.Decode(&v); err != nil {
			s.logger.Warn(context.Background(), "skipping malformed content item",
				"collection", collection,
				"document_id", it.DocumentID,
				"error", err,
			)
			continue
		}
		out = append(out, v)
	}
	return out
}

func decodeOne[T any](s *Store, it Item, ok bool) (T, bool) {
	var v T
	if !ok {
		return v, false
	}
	if err := it.Decode(&v); err != nil {
		s.logger.Warn(context.Background(), "malformed content item",
			"document_id", it.DocumentID,
			"error", err,
		)
		return v, false
	}
	return v, true
}

func decodeSingle[T any](s *Store, key snapshot.Key) (*T, bool) {
	it, ok := s.singletons[key]
	v, ok := decodeOne[T](s, it, ok)
	if !ok {
		return nil, false
	}
	return &v, true
}

func (s *Store) InfoPages() []InfoPage {
	return decodeAll[InfoPage](s, string(snapshot.KeyInfoPages))
}

func (s *Store) InfoPageBySlug(slug string) (InfoPage, bool) {
	it, ok := s.BySlug(string(snapshot.KeyInfoPages), slug)
	return decodeOne[InfoPage](s, it, ok)
}

func (s *Store) NavigationPages() []NavigationPage {
	return decodeAll[NavigationPage](s, string(snapshot.KeyInfoPagesForNavigation))
}

func (s *Store) GeneralPages() []GeneralPage {
	return decodeAll[GeneralPage](s, string(snapshot.KeyGeneralPagesForFooter))
}

func (s *Store) GeneralPageBySlug(slug string) (GeneralPage, bool) {
	it, ok := s.BySlug(string(snapshot.KeyGeneralPagesForFooter), slug)
	return decodeOne[GeneralPage](s, it, ok)
}

// Artists returns the artists in display order. The CMS already sorts by
// displayOrder; the stable sort keeps that order for hand-edited snapshots.
func (s *Store) Artists() []Artist {
	out := decodeAll[Artist](s, string(snapshot.KeyArtists))
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

// ArtistBySlug matches on the slug derived from the artist's name.
func (s *Store) ArtistBySlug(slug string) (Artist, bool) {
	for _, a := range s.Artists() {
		if a.Slug() == slug {
			return a, true
		}
	}
	return Artist{}, false
}

func (s *Store) ScrollingHeaderText() (*ScrollingHeaderText, bool) {
	return decodeSingle[ScrollingHeaderText](s, snapshot.KeyScrollingHeaderText)
}

func (s *Store) AcknowledgementOfCountry() (*AcknowledgementOfCountry, bool) {
	return decodeSingle[AcknowledgementOfCountry](s, snapshot.KeyAcknowledgementOfCountry)
}

func (s *Store) BigLink() (*BigLink, bool) {
	return decodeSingle[BigLink](s, snapshot.KeyBigLink)
}

func (s *Store) ApplicationsPage() (*ApplicationsPage, bool) {
	return decodeSingle[ApplicationsPage](s, snapshot.KeyApplicationsPage)
}

// StaticPath pairs a URL slug with the page rendered at it.
type StaticPath[T any] struct {
	Slug string
	Page T
}

func (s *Store) InfoPagePaths() []StaticPath[InfoPage] {
	pages := s.InfoPages()
	out := make([]StaticPath[InfoPage], 0, len(pages))
	for _, p := range pages {
		if p.Slug == "" {
			continue
		}
		out = append(out, StaticPath[InfoPage]{Slug: p.Slug, Page: p})
	}
	return out
}

func (s *Store) GeneralPagePaths() []StaticPath[GeneralPage] {
	pages := s.GeneralPages()
	out := make([]StaticPath[GeneralPage], 0, len(pages))
	for _, p := range pages {
		if p.Slug == "" {
			continue
		}
		out = append(out, StaticPath[GeneralPage]{Slug: p.Slug, Page: p})
	}
	return out
}

func (s *Store) ArtistPaths() []StaticPath[Artist] {
	artists := s.Artists()
	out := make([]StaticPath[Artist], 0, len(artists))
	for _, a := range artists {
		out = append(out, StaticPath[Artist]{Slug: a.Slug(), Page: a})
	}
	return out
}
