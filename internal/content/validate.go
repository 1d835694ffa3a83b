package content

import (
	"net/url"

	"github.com/rwaddinsall/hcf2025/internal/snapshot"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// ValidationOptions controls which checks Validate performs beyond the
// required header fields.
type ValidationOptions struct {
	// MinInfoPages rejects documents with fewer info pages. 0 disables it.
	MinInfoPages int

	// RequireSignature rejects S3 snapshots that were not signature
	// verified. File snapshots are never signed and skip this check.
	RequireSignature bool
}

// DefaultValidationOptions checks only the header fields. A snapshot run
// keeps a collection as [] when its endpoint 404s, so empty collections and
// null singletons are valid content.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{}
}

// Validate checks a decoded document before it is served: fetchedAt must be
// a valid timestamp and strapiUrl an absolute URL.
func Validate(doc *snapshot.Document, opts ValidationOptions) error {
	if doc == nil {
		return xerrors.New("validate: document is nil")
	}
	if doc.FetchedAt == "" {
		return xerrors.New("validate: fetchedAt is missing")
	}
	if doc.FetchedTime().IsZero() {
		return xerrors.Newf("validate: fetchedAt %q is not a timestamp", doc.FetchedAt)
	}
	if doc.StrapiURL == "" {
		return xerrors.New("validate: strapiUrl is missing")
	}
	if u, err := url.Parse(doc.StrapiURL); err != nil || !u.IsAbs() {
		return xerrors.Newf("validate: strapiUrl %q is not an absolute URL", doc.StrapiURL)
	}
	if opts.MinInfoPages > 0 {
		if n := doc.Count(snapshot.KeyInfoPages); n < opts.MinInfoPages {
			return xerrors.Newf("validate: document has %d info pages, minimum is %d", n, opts.MinInfoPages)
		}
	}
	return nil
}

// ValidateSnapshot runs Validate on a loaded snapshot plus the checks that
// depend on where it came from.
func ValidateSnapshot(snap *Snapshot, opts ValidationOptions) error {
	if snap == nil {
		return xerrors.New("validate: snapshot is nil")
	}
	if snap.Store == nil {
		return xerrors.New("validate: snapshot has no store")
	}
	if err := Validate(snap.Store.Document(), opts); err != nil {
		return err
	}
	if opts.RequireSignature && snap.Meta.Source == SourceS3 && !snap.Meta.Signed {
		return xerrors.New("validate: signature required but snapshot is unsigned")
	}
	return nil
}
