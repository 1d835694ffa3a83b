package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/strapi"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// Request is one CMS query feeding one document key.
type Request struct {
	Key      Key
	Endpoint string
	Query    strapi.Query
}

// Requests is the fixed query plan of a snapshot run, in execution order.
var Requests = []Request{
	{KeyInfoPages, "info-pages", strapi.Query{
		strapi.Published(),
		strapi.Populate("[accordion][populate]", "*"),
		strapi.Sort("heading:asc"),
	}},
	{KeyInfoPagesForNavigation, "info-pages", strapi.Query{
		strapi.Published(),
		strapi.Fields("slug", "heading"),
		strapi.Sort("heading:asc"),
	}},
	{KeyArtists, "artists", strapi.Query{
		strapi.Published(),
		strapi.Populate("", "*"),
		strapi.Sort("displayOrder:asc"),
	}},
	{KeyScrollingHeaderText, "scrolling-header-text", nil},
	{KeyAcknowledgementOfCountry, "acknowledgement-of-country", nil},
	{KeyBigLink, "big-link", strapi.Query{
		strapi.Populate("[BigTicketLink]", "*"),
	}},
	{KeyApplicationsPage, "applications-page", strapi.Query{
		strapi.Populate("[Header]", "*"),
		strapi.Populate("[FAQ][populate][accordions]", "*"),
	}},
	{KeyGeneralPagesForFooter, "general-pages", strapi.Query{
		strapi.Published(),
		strapi.Fields("slug", "title", "subtitle", "content", "metaTitle", "metaDescription"),
		strapi.Sort("title:asc"),
	}},
}

// Source is the part of the Strapi client a run needs.
type Source interface {
	Fetch(ctx context.Context, endpoint string, q strapi.Query) (*strapi.Response, error)
	BaseURL() string
}

// Result records the outcome of one request.
type Result struct {
	Key      Key
	Endpoint string
	Count    int
	NotFound bool
	Duration time.Duration
}

type Fetcher struct {
	src    Source
	logger log.Logger
	now    func() time.Time
}

func NewFetcher(src Source, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Fetcher{src: src, logger: logger, now: time.Now}
}

// Fetch runs every request one after another. A 404 leaves the key at its
// empty default and the run continues. Any other failure stops the run and
// is returned naming the key and endpoint; no partial document is returned.
func (f *Fetcher) Fetch(ctx context.Context) (*Document, []Result, error) {
	doc := New(f.src.BaseURL(), f.now())
	results := make([]Result, 0, len(Requests))

	for _, req := range Requests {
		if err := ctx.Err(); err != nil {
			return nil, results, xerrors.Wrap(err, "snapshot cancelled")
		}

		start := f.now()
		resp, err := f.src.Fetch(ctx, req.Endpoint, req.Query)
		res := Result{Key: req.Key, Endpoint: req.Endpoint, Duration: f.now().Sub(start)}

		switch {
		case errors.Is(err, strapi.ErrNotFound):
			res.NotFound = true
			f.logger.Warn(ctx, "content type not found, leaving empty",
				"key", string(req.Key),
				"endpoint", req.Endpoint,
			)
		case err != nil:
			return nil, results, xerrors.Wrapf(err, "fetch %s (%s)", req.Key, req.Endpoint)
		default:
			if err := doc.Set(req.Key, resp.Data); err != nil {
				return nil, results, xerrors.Wrapf(err, "fetch %s (%s)", req.Key, req.Endpoint)
			}
			res.Count = doc.Count(req.Key)
			f.logger.Info(ctx, "fetched content",
				"key", string(req.Key),
				"endpoint", req.Endpoint,
				"items", res.Count,
				"duration_ms", res.Duration.Milliseconds(),
			)
		}
		results = append(results, res)
	}
	return doc, results, nil
}
