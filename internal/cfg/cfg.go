// Package cfg binds the command line configuration of the site server and
// the snapshot CLI. Flags carry their defaults inline; FillFromEnv lets any
// flag be set from a prefixed environment variable.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/snapshot"
	"github.com/rwaddinsall/hcf2025/internal/version"
)

// DefaultStrapiURL is the production CMS, used when PUBLIC_STRAPI_URL is unset.
const DefaultStrapiURL = "https://healing-dance-c1ea66b091.strapiapp.com"

// Env prefixes for FillFromEnv.
const (
	ServerEnvPrefix   = "HCF_"
	SnapshotEnvPrefix = "SNAPSHOT_"
)

// Logging is shared by both binaries.
type Logging struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
}

type Server struct {
	Logging

	HTTPPort        int
	AdminPort       int
	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	// site
	SiteDir     string
	StrapiURL   string
	SiteURL     string
	Environment string
	Region      string
	DeployID    string

	// content
	ContentFile          string
	WatchContentFile     bool
	EnableContentUpdates bool
	ContentSSMParam      string
	ContentS3Bucket      string
	ContentS3Prefix      string
	ContentSigningKeyARN string
	RequireSignature     bool
	ContentPollInterval  time.Duration
	MinInfoPages         int

	RateLimitRPS     float64
	RateLimitBurst   int
	TrustedProxyHops int
	HSTS             bool
	DrainDelay       time.Duration
}

type Snapshot struct {
	Logging

	StrapiURL   string
	StrapiToken string
	Out         string
	Timeout     time.Duration

	// publishing; all empty means write the local file only
	S3Bucket      string
	S3Prefix      string
	SSMParam      string
	SigningKeyARN string

	Pushgateway string
}

// envOr reads a well-known unprefixed variable for use as a flag default.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// LogOptions builds logger options for one binary. Call after Validate.
func (c Logging) LogOptions(component string) (log.Options, error) {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.Options{}, err
	}
	var stackLvl slog.Level
	if c.StacktraceLevel != "" {
		if stackLvl, err = log.ParseLevel(c.StacktraceLevel); err != nil {
			return log.Options{}, err
		}
	}
	vi := version.Get()
	return log.Options{
		App:               vi.AppName,
		Component:         component,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              c.LogJSON,
		IncludeErrorLinks: c.IncludeErrorLinks,
		MaxErrorLinks:     c.MaxErrorLinks,
	}, nil
}

func registerLogging(fs *flag.FlagSet, c *Logging, jsonDefault bool) {
	fs.BoolVar(&c.LogJSON, "log-json", jsonDefault, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
}

// Register binds all server config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *Server) {
	registerLogging(fs, &c.Logging, true)
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")

	fs.StringVar(&c.SiteDir, "site-dir", "dist", "directory holding the built static site")
	fs.StringVar(&c.StrapiURL, "strapi-url", envOr("PUBLIC_STRAPI_URL", ""), "CMS base URL checked by the health endpoint")
	fs.StringVar(&c.SiteURL, "site-url", envOr("PUBLIC_SITE_URL", ""), "public URL of the site")
	fs.StringVar(&c.Environment, "environment", envOr("NODE_ENV", "production"), "deployment environment reported by the health endpoint")
	fs.StringVar(&c.Region, "region", envOr("AWS_REGION", ""), "region reported by the health endpoint")
	fs.StringVar(&c.DeployID, "deploy-id", envOr("DEPLOY_ID", ""), "deploy identifier reported by the health endpoint")

	fs.StringVar(&c.ContentFile, "content-file", snapshot.DefaultPath, "local content snapshot to serve at startup")
	fs.BoolVar(&c.WatchContentFile, "watch-content-file", false, "Reload the local content snapshot when it changes")
	fs.BoolVar(&c.EnableContentUpdates, "enable-content-updates", false, "Enable refreshing content snapshots from S3/SSM")
	fs.StringVar(&c.ContentSSMParam, "content-ssm-param", "/app/hcf2025/content/release", "ssm parameter name holding the content snapshot hash")
	fs.StringVar(&c.ContentS3Bucket, "content-s3-bucket", "", "s3 bucket holding content snapshots")
	fs.StringVar(&c.ContentS3Prefix, "content-s3-prefix", "hcf2025/content/snapshots", "s3 prefix (key) of content snapshots")
	fs.StringVar(&c.ContentSigningKeyARN, "content-signing-key-arn", "", "KMS key ARN for content snapshot signature verification")
	fs.BoolVar(&c.RequireSignature, "require-signature", false, "Reject content snapshots without a valid signature")
	fs.DurationVar(&c.ContentPollInterval, "content-poll-interval", 30*time.Second, "how often to check SSM for a new snapshot")
	fs.IntVar(&c.MinInfoPages, "min-info-pages", 0, "reject content snapshots with fewer info pages (0 accepts empty collections)")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 10, "per-IP request rate on the site listener")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 40, "per-IP burst on the site listener")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 1, "proxies in front of the site whose X-Forwarded-For is trusted (0..5)")
	fs.BoolVar(&c.HSTS, "hsts", true, "send Strict-Transport-Security")
	fs.DurationVar(&c.DrainDelay, "drain-delay", 15*time.Second, "how long to fail readiness before closing listeners on shutdown")
}

// RegisterSnapshot binds the snapshot CLI flags. Every flag is optional; a
// bare run fetches from PUBLIC_STRAPI_URL and writes the default path.
func RegisterSnapshot(fs *flag.FlagSet, c *Snapshot) {
	registerLogging(fs, &c.Logging, false)
	fs.StringVar(&c.StrapiURL, "strapi-url", envOr("PUBLIC_STRAPI_URL", DefaultStrapiURL), "CMS base URL")
	fs.StringVar(&c.StrapiToken, "strapi-token", envOr("STRAPI_API_TOKEN", ""), "optional CMS API token")
	fs.StringVar(&c.Out, "out", snapshot.DefaultPath, "snapshot output path")
	fs.DurationVar(&c.Timeout, "timeout", 2*time.Minute, "overall run timeout")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "publish the snapshot to this s3 bucket")
	fs.StringVar(&c.S3Prefix, "s3-prefix", "hcf2025/content/snapshots", "s3 prefix (key) for published snapshots")
	fs.StringVar(&c.SSMParam, "ssm-param", "", "ssm parameter to point at the published snapshot")
	fs.StringVar(&c.SigningKeyARN, "signing-key-arn", "", "KMS key ARN to sign published snapshots with")
	fs.StringVar(&c.Pushgateway, "pushgateway", "", "prometheus pushgateway URL for run metrics")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

func validateLogging(c Logging) []error {
	var errs []error
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}
	return errs
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate checks that server config values are within expected ranges and
// formats. Returns an error describing all invalid fields, or nil.
func Validate(c Server) error {
	errs := validateLogging(c.Logging)

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}
	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.SiteDir == "" {
		errs = append(errs, fmt.Errorf("SITE_DIR is required"))
	}
	if c.StrapiURL != "" && !isHTTPURL(c.StrapiURL) {
		errs = append(errs, fmt.Errorf("STRAPI_URL must be an http(s) URL (got %q)", c.StrapiURL))
	}

	if c.EnableContentUpdates {
		if c.ContentSSMParam == "" {
			errs = append(errs, fmt.Errorf("CONTENT_SSM_PARAM is required when ENABLE_CONTENT_UPDATES=true"))
		}
		if c.ContentS3Bucket == "" {
			errs = append(errs, fmt.Errorf("CONTENT_S3_BUCKET is required when ENABLE_CONTENT_UPDATES=true"))
		}
		if c.ContentPollInterval < time.Second {
			errs = append(errs, fmt.Errorf("CONTENT_POLL_INTERVAL must be at least 1s (got %s)", c.ContentPollInterval))
		}
	}
	if c.RequireSignature && c.ContentSigningKeyARN == "" {
		errs = append(errs, fmt.Errorf("CONTENT_SIGNING_KEY_ARN is required when REQUIRE_SIGNATURE=true"))
	}

	if c.MinInfoPages < 0 {
		errs = append(errs, fmt.Errorf("MIN_INFO_PAGES must not be negative (got %d)", c.MinInfoPages))
	}

	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be positive (got %g)", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be at least 1 (got %d)", c.RateLimitBurst))
	}
	if c.TrustedProxyHops < 0 || c.TrustedProxyHops > 5 {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXY_HOPS must be 0..5 (got %d)", c.TrustedProxyHops))
	}
	if c.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("DRAIN_DELAY must not be negative (got %s)", c.DrainDelay))
	}

	return errors.Join(errs...)
}

// ValidateSnapshot checks the snapshot CLI config.
func ValidateSnapshot(c Snapshot) error {
	errs := validateLogging(c.Logging)

	if !isHTTPURL(c.StrapiURL) {
		errs = append(errs, fmt.Errorf("STRAPI_URL must be an http(s) URL (got %q)", c.StrapiURL))
	}
	if c.Out == "" {
		errs = append(errs, fmt.Errorf("OUT is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("TIMEOUT must be positive (got %s)", c.Timeout))
	}
	// bucket and pointer go together; a pointer without an object is useless
	if (c.S3Bucket == "") != (c.SSMParam == "") {
		errs = append(errs, fmt.Errorf("S3_BUCKET and SSM_PARAM must be set together"))
	}
	if c.SigningKeyARN != "" && c.S3Bucket == "" {
		errs = append(errs, fmt.Errorf("SIGNING_KEY_ARN requires S3_BUCKET"))
	}
	if c.Pushgateway != "" && !isHTTPURL(c.Pushgateway) {
		errs = append(errs, fmt.Errorf("PUSHGATEWAY must be an http(s) URL (got %q)", c.Pushgateway))
	}

	return errors.Join(errs...)
}

// Publishing reports whether the run should upload the snapshot.
func (c Snapshot) Publishing() bool { return c.S3Bucket != "" && c.SSMParam != "" }
