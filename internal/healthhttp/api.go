// Package healthhttp serves the public JSON health report at /api/health.
package healthhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rwaddinsall/hcf2025/internal/httpmw"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/strapi"
)

const (
	Path       = "/api/health"
	LegacyPath = "/.netlify/functions/health"

	// ReportVersion is the schema version of the report body.
	ReportVersion = "1.0.0"

	defaultPingTimeout = 5 * time.Second
)

// Service statuses.
const (
	StatusHealthy     = "healthy"
	StatusError       = "error"
	StatusUnreachable = "unreachable"
	StatusUnknown     = "unknown"
	StatusUnavailable = "unavailable"
)

// Pinger checks that the CMS answers. *strapi.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ContentState reports the snapshot being served. *content.Manager
// implements it.
type ContentState interface {
	FetchedAt() string
	ReadyErr() error
}

type Options struct {
	Logger log.Logger
	// Strapi is nil when no CMS URL is configured.
	Strapi    Pinger
	StrapiURL string
	SiteURL   string
	Content   ContentState

	Environment string
	Region      string
	DeployID    string

	PingTimeout time.Duration
	Now         func() time.Time
}

// API implements httpserver route registration for the health report.
type API struct {
	opts Options
}

func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Environment == "" {
		opts.Environment = "production"
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaultPingTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &API{opts: opts}
}

// RegisterRoutes mounts the report on both paths. Every method is routed
// here so that non-GET requests get the JSON 405 instead of chi's.
func (api *API) RegisterRoutes(r chi.Router) {
	h := httpmw.Chain(http.HandlerFunc(api.serve),
		httpmw.CORS(httpmw.CORSOptions{}),
		httpmw.Scope("health"),
	)
	r.Handle(Path, h)
	r.Handle(LegacyPath, h)
}

type Report struct {
	Status      string   `json:"status"`
	Timestamp   string   `json:"timestamp"`
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Services    Services `json:"services"`
	Checks      Checks   `json:"checks"`
}

type Services struct {
	Strapi  StrapiService   `json:"strapi"`
	Content ContentService  `json:"content"`
	Netlify PlatformService `json:"netlify"`
}

type StrapiService struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

type ContentService struct {
	Status    string `json:"status"`
	FetchedAt string `json:"fetchedAt,omitempty"`
}

// PlatformService keeps the key and fields the hosting platform's health
// function used so existing monitors keep parsing the body.
type PlatformService struct {
	Status   string `json:"status"`
	Region   string `json:"region"`
	DeployID string `json:"deployId"`
}

type Checks struct {
	EnvironmentVariables EnvChecks `json:"environmentVariables"`
}

type EnvChecks struct {
	StrapiURL bool `json:"strapiUrl"`
	SiteURL   bool `json:"siteUrl"`
}

type errorBody struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error"`
}

func (api *API) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(errorBody{Error: "Method not allowed"})
		return
	}

	ctx := r.Context()
	body, err := api.render(ctx)
	if err != nil {
		log.FromContext(ctx).Error(ctx, err, "health check failed")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorBody{
			Status:    "error",
			Timestamp: timestamp(api.opts.Now()),
			Error:     err.Error(),
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// render builds and encodes the report. A panic while checking is turned
// into an error so the caller can answer with the 500 body.
func (api *API) render(ctx context.Context) (body []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	rep := api.Check(ctx)
	return json.MarshalIndent(rep, "", "  ")
}

// Check assembles the report. The overall status is always healthy: the
// site is static and keeps serving while the CMS is down.
func (api *API) Check(ctx context.Context) Report {
	o := api.opts
	return Report{
		Status:      StatusHealthy,
		Timestamp:   timestamp(o.Now()),
		Version:     ReportVersion,
		Environment: o.Environment,
		Services: Services{
			Strapi:  api.strapiService(ctx),
			Content: api.contentService(),
			Netlify: PlatformService{
				Status:   StatusHealthy,
				Region:   orUnknown(o.Region),
				DeployID: orUnknown(o.DeployID),
			},
		},
		Checks: Checks{EnvironmentVariables: EnvChecks{
			StrapiURL: o.StrapiURL != "",
			SiteURL:   o.SiteURL != "",
		}},
	}
}

func (api *API) strapiService(ctx context.Context) StrapiService {
	o := api.opts
	if o.StrapiURL == "" || o.Strapi == nil {
		return StrapiService{Status: StatusUnknown, URL: "not-configured"}
	}
	svc := StrapiService{URL: strings.TrimRight(o.StrapiURL, "/")}

	ctx, cancel := context.WithTimeout(ctx, o.PingTimeout)
	defer cancel()
	err := o.Strapi.Ping(ctx)

	var se *strapi.StatusError
	switch {
	case err == nil:
		svc.Status = StatusHealthy
	case errors.As(err, &se):
		svc.Status = StatusError
	default:
		svc.Status = StatusUnreachable
	}
	if err != nil {
		log.FromContext(ctx).Warn(ctx, "strapi health ping failed", "status", svc.Status, "error", err.Error())
	}
	return svc
}

func (api *API) contentService() ContentService {
	c := api.opts.Content
	if c == nil {
		return ContentService{Status: StatusUnknown}
	}
	if c.ReadyErr() != nil {
		return ContentService{Status: StatusUnavailable}
	}
	return ContentService{Status: StatusHealthy, FetchedAt: c.FetchedAt()}
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func orUnknown(s string) string {
	if s == "" {
		return StatusUnknown
	}
	return s
}
