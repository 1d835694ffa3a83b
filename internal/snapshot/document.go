// Package snapshot builds the static content document the site is generated
// from. A run queries every known Strapi collection and singleton once, in a
// fixed order, and writes the answers to a single JSON file.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"
)

// Key names a top-level entry of the document.
type Key string

const (
	KeyInfoPages                Key = "infoPages"
	KeyInfoPagesForNavigation   Key = "infoPagesForNavigation"
	KeyArtists                  Key = "artists"
	KeyScrollingHeaderText      Key = "scrollingHeaderText"
	KeyAcknowledgementOfCountry Key = "acknowledgementOfCountry"
	KeyBigLink                  Key = "bigLink"
	KeyApplicationsPage         Key = "applicationsPage"
	KeyGeneralPagesForFooter    Key = "generalPagesForFooter"
)

// Collections and Singletons list every key by shape.
var (
	Collections = []Key{KeyInfoPages, KeyInfoPagesForNavigation, KeyArtists, KeyGeneralPagesForFooter}
	Singletons  = []Key{KeyScrollingHeaderText, KeyAcknowledgementOfCountry, KeyBigLink, KeyApplicationsPage}
)

func (k Key) IsCollection() bool {
	for _, c := range Collections {
		if c == k {
			return true
		}
	}
	return false
}

func (k Key) IsSingleton() bool {
	for _, s := range Singletons {
		if s == k {
			return true
		}
	}
	return false
}

// TimeFormat is the fetchedAt layout: RFC 3339 in UTC with milliseconds.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Document is the snapshot file. Items are kept as raw JSON so every CMS
// field survives the round trip, including ones no Go type models.
// Collections are never nil after New or Decode; singletons are nil when the
// CMS had no entry.
type Document struct {
	FetchedAt string `json:"fetchedAt"`
	StrapiURL string `json:"strapiUrl"`

	InfoPages                []json.RawMessage `json:"infoPages"`
	Artists                  []json.RawMessage `json:"artists"`
	ScrollingHeaderText      json.RawMessage   `json:"scrollingHeaderText"`
	AcknowledgementOfCountry json.RawMessage   `json:"acknowledgementOfCountry"`
	BigLink                  json.RawMessage   `json:"bigLink"`
	ApplicationsPage         json.RawMessage   `json:"applicationsPage"`
	InfoPagesForNavigation   []json.RawMessage `json:"infoPagesForNavigation"`
	GeneralPagesForFooter    []json.RawMessage `json:"generalPagesForFooter"`
}

// New returns an empty document stamped with fetchedAt and the CMS URL.
func New(strapiURL string, fetchedAt time.Time) *Document {
	d := &Document{
		FetchedAt: fetchedAt.UTC().Format(TimeFormat),
		StrapiURL: strapiURL,
	}
	d.normalize()
	return d
}

func (d *Document) normalize() {
	for _, k := range Collections {
		if p := d.collection(k); *p == nil {
			*p = []json.RawMessage{}
		}
	}
	for _, k := range Singletons {
		if p := d.singleton(k); isNull(*p) {
			*p = nil
		}
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func (d *Document) collection(k Key) *[]json.RawMessage {
	switch k {
	case KeyInfoPages:
		return &d.InfoPages
	case KeyInfoPagesForNavigation:
		return &d.InfoPagesForNavigation
	case KeyArtists:
		return &d.Artists
	case KeyGeneralPagesForFooter:
		return &d.GeneralPagesForFooter
	default:
		return nil
	}
}

func (d *Document) singleton(k Key) *json.RawMessage {
	switch k {
	case KeyScrollingHeaderText:
		return &d.ScrollingHeaderText
	case KeyAcknowledgementOfCountry:
		return &d.AcknowledgementOfCountry
	case KeyBigLink:
		return &d.BigLink
	case KeyApplicationsPage:
		return &d.ApplicationsPage
	default:
		return nil
	}
}

// Collection returns the items under k. ok is false when k is not a
// collection key.
func (d *Document) Collection(k Key) (items []json.RawMessage, ok bool) {
	p := d.collection(k)
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Singleton returns the entry under k, nil when the CMS had none. ok is
// false when k is not a singleton key.
func (d *Document) Singleton(k Key) (raw json.RawMessage, ok bool) {
	p := d.singleton(k)
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Set stores a Strapi data payload under k. Collections must be a JSON
// array or null; singletons take any value, null clearing the entry.
func (d *Document) Set(k Key, data json.RawMessage) error {
	if p := d.collection(k); p != nil {
		if isNull(data) {
			*p = []json.RawMessage{}
			return nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("%s: expected an array of entries: %w", k, err)
		}
		if items == nil {
			items = []json.RawMessage{}
		}
		*p = items
		return nil
	}
	if p := d.singleton(k); p != nil {
		if isNull(data) {
			*p = nil
			return nil
		}
		*p = append(json.RawMessage(nil), data...)
		return nil
	}
	return fmt.Errorf("unknown snapshot key %q", k)
}

// FetchedTime parses FetchedAt. The zero time is returned if it is unset or
// malformed.
func (d *Document) FetchedTime() time.Time {
	for _, layout := range []string{TimeFormat, time.RFC3339Nano} {
		if t, err := time.Parse(layout, d.FetchedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Summary counts what a run collected.
type Summary struct {
	InfoPages        int  `json:"infoPages"`
	NavigationPages  int  `json:"navigationPages"`
	Artists          int  `json:"artists"`
	GeneralPages     int  `json:"generalPages"`
	ScrollingHeader  bool `json:"scrollingHeader"`
	Acknowledgement  bool `json:"acknowledgement"`
	BigLink          bool `json:"bigLink"`
	ApplicationsPage bool `json:"applicationsPage"`
}

func (d *Document) Summary() Summary {
	return Summary{
		InfoPages:        len(d.InfoPages),
		NavigationPages:  len(d.InfoPagesForNavigation),
		Artists:          len(d.Artists),
		GeneralPages:     len(d.GeneralPagesForFooter),
		ScrollingHeader:  !isNull(d.ScrollingHeaderText),
		Acknowledgement:  !isNull(d.AcknowledgementOfCountry),
		BigLink:          !isNull(d.BigLink),
		ApplicationsPage: !isNull(d.ApplicationsPage),
	}
}

// LogAttrs flattens the summary into logger key/value pairs.
func (s Summary) LogAttrs() []any {
	return []any{
		"info_pages", s.InfoPages,
		"navigation_pages", s.NavigationPages,
		"artists", s.Artists,
		"general_pages", s.GeneralPages,
		"scrolling_header", s.ScrollingHeader,
		"acknowledgement", s.Acknowledgement,
		"big_link", s.BigLink,
		"applications_page", s.ApplicationsPage,
	}
}

// Count is the number of entries under k: the collection length, or 1/0
// for a present/absent singleton.
func (d *Document) Count(k Key) int {
	if items, ok := d.Collection(k); ok {
		return len(items)
	}
	if raw, ok := d.Singleton(k); ok && !isNull(raw) {
		return 1
	}
	return 0
}
