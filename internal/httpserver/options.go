package httpserver

import (
	"github.com/go-chi/chi/v5"

	"github.com/rwaddinsall/hcf2025/internal/health"
	"github.com/rwaddinsall/hcf2025/internal/httpmw"
	"github.com/rwaddinsall/hcf2025/internal/log"
)

// DefaultPort is where the public site listens when Options.Port is zero.
const DefaultPort = 8080

// RouteRegistrar adds a group of routes to the public router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Options struct {
	Logger log.Logger
	Port   int

	UseRecoverMW bool
	OnPanic      func()

	// MetricsMW and RateLimitMW are optional.
	MetricsMW   httpmw.Middleware
	RateLimitMW httpmw.Middleware

	ClientIPOpts httpmw.ClientIPOptions
	Security     httpmw.SecurityOptions
	AccessLog    *httpmw.AccessLogOptions // nil uses httpmw.DefaultAccessLogOptions

	// ContentInfo adds X-Content-Fetched-At and X-Content-Hash headers.
	ContentInfo httpmw.ContentInfo

	// Health and Readiness are mounted at /-/healthy and /-/ready when set.
	Health    health.Probe
	Readiness health.Probe

	// APIs register in order, before Site.
	APIs []RouteRegistrar
	// Site is registered last as the router's fallback.
	Site RouteRegistrar
}
