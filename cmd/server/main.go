package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rwaddinsall/hcf2025/internal/cfg"
	"github.com/rwaddinsall/hcf2025/internal/content"
	"github.com/rwaddinsall/hcf2025/internal/contenthttp"
	"github.com/rwaddinsall/hcf2025/internal/health"
	"github.com/rwaddinsall/hcf2025/internal/healthhttp"
	"github.com/rwaddinsall/hcf2025/internal/httpmw"
	"github.com/rwaddinsall/hcf2025/internal/httpserver"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/metrics"
	"github.com/rwaddinsall/hcf2025/internal/opshttp"
	"github.com/rwaddinsall/hcf2025/internal/otelx"
	"github.com/rwaddinsall/hcf2025/internal/prof"
	"github.com/rwaddinsall/hcf2025/internal/ratelimit"
	"github.com/rwaddinsall/hcf2025/internal/sitehandler"
	"github.com/rwaddinsall/hcf2025/internal/strapi"
	v "github.com/rwaddinsall/hcf2025/internal/version"
	"github.com/rwaddinsall/hcf2025/internal/webassets"
)

// readinessTimeout bounds the readiness probe, which stats the site dir.
const readinessTimeout = 2 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.Server
	var showVersion bool
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi, vi.CommitDate, vi.BuildID, vi.BuildDate, vi.GoVersion, vi.VCSDirty != nil && *vi.VCSDirty)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.ServerEnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logOpts, err := conf.LogOptions("server")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	L, err := log.New(logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer func() { _ = L.Sync() }()
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing server",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildID,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"site_dir", conf.SiteDir,
		"strapi_url", conf.StrapiURL,
		"environment", conf.Environment,
		"content_file", conf.ContentFile,
		"watch_content_file", conf.WatchContentFile,
		"enable_content_updates", conf.EnableContentUpdates,
		"content_ssm_param", conf.ContentSSMParam,
		"content_s3_bucket", conf.ContentS3Bucket,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_pprof", conf.EnablePprof,
	)

	m := metrics.NewServer()
	m.SetBuildInfo("server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       vi.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"component":   "server",
			"version":     vi.Version,
			"commit":      vi.Commit,
			"environment": conf.Environment,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)

	// the collector runs on localhost, so no TLS
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:     conf.EnableTracing,
		Endpoint:    conf.OTLPEndpoint,
		Insecure:    true,
		Sample:      conf.TraceSample,
		Service:     vi.AppName,
		Component:   "server",
		Version:     vi.Version,
		Environment: conf.Environment,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
		shutdownOTEL = func(context.Context) error { return nil }
	}

	contentMgr := content.NewManager()
	report := func(string, string) { reportContent(m, contentMgr) }

	validation := content.ValidationOptions{
		MinInfoPages:     conf.MinInfoPages,
		RequireSignature: conf.RequireSignature,
	}
	if err := loadContentFile(ctx, L, contentMgr, conf.ContentFile, validation); err != nil {
		L.Warn(ctx, "no local content snapshot loaded", "path", conf.ContentFile, "error", err.Error())
	}

	if conf.EnableContentUpdates {
		loader, err := content.NewLoader(ctx, content.LoaderOptions{
			Logger:           L,
			SSMParam:         conf.ContentSSMParam,
			S3Bucket:         conf.ContentS3Bucket,
			S3Prefix:         conf.ContentS3Prefix,
			SigningKeyARN:    conf.ContentSigningKeyARN,
			RequireSignature: conf.RequireSignature,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create content loader, content updates disabled")
		} else {
			if err := loader.LoadIntoManager(ctx, contentMgr, validation); err != nil {
				L.Error(ctx, err, "failed to load published snapshot, keeping local content")
			}
			watcher := content.NewWatcher(&content.WatcherOptions{
				Logger:       L,
				Loader:       loader,
				Manager:      contentMgr,
				PollInterval: conf.ContentPollInterval,
				Validation:   &validation,
				Metrics:      m,
				OnSwap:       report,
			})
			go func() { _ = watcher.Run(ctx) }()
		}
	}

	if conf.WatchContentFile {
		fw, err := content.NewFileWatcher(content.FileWatcherOptions{
			Logger:     L,
			Path:       conf.ContentFile,
			Manager:    contentMgr,
			Validation: validation,
			OnSwap:     report,
			OnReload:   m.IncFileReload,
		})
		if err != nil {
			L.Error(ctx, err, "failed to watch content file", "path", conf.ContentFile)
		} else {
			go func() { _ = fw.Run(ctx) }()
		}
	}
	reportContent(m, contentMgr)

	site := sitehandler.NewDirSite(conf.SiteDir)
	siteHandler, err := sitehandler.New(&sitehandler.Options{
		Logger:     L,
		Site:       site,
		FallbackFS: webassets.FallbackFS(),
	})
	if err != nil {
		L.Error(ctx, err, "failed to create site handler")
		os.Exit(1)
	}
	if _, ok := site.SiteFS(); !ok {
		L.Warn(ctx, "no built site found, serving maintenance page", "site_dir", conf.SiteDir)
	}

	var cms healthhttp.Pinger
	if conf.StrapiURL != "" {
		client, err := strapi.New(strapi.Options{BaseURL: conf.StrapiURL, Logger: L})
		if err != nil {
			L.Error(ctx, err, "invalid strapi url, health report will show it as unknown")
		} else {
			cms = client
		}
	}
	healthAPI := healthhttp.NewAPI(healthhttp.Options{
		Logger:      L,
		Strapi:      cms,
		StrapiURL:   conf.StrapiURL,
		SiteURL:     conf.SiteURL,
		Content:     contentMgr,
		Environment: conf.Environment,
		Region:      conf.Region,
		DeployID:    conf.DeployID,
	})
	contentAPI := contenthttp.NewAPI(contentMgr, L)

	var gate health.ShutdownGate
	readiness := health.Timeout(health.All(
		gate.Probe(),
		health.CheckFunc(func(context.Context) error { return contentMgr.ReadyErr() }),
		health.CheckFunc(func(context.Context) error {
			if _, ok := site.SiteFS(); !ok {
				return errors.New("no built site in " + site.Root())
			}
			return nil
		}),
	), readinessTimeout)

	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
		ratelimit.WithExempt(func(r *http.Request) bool {
			return r.URL.Path == "/-/healthy" || r.URL.Path == "/-/ready"
		}),
		ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
		// once per ip until it is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "client.address", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limiter at visitor capacity, letting new visitors through unlimited")
		}),
	)

	var imageOrigins []string
	if conf.StrapiURL != "" {
		imageOrigins = append(imageOrigins, conf.StrapiURL)
	}

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHTTPPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		Security:     httpmw.SecurityOptions{ImageOrigins: imageOrigins, HSTS: conf.HSTS},
		ContentInfo:  contentMgr,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		APIs:         []httpserver.RouteRegistrar{healthAPI, contentAPI},
		Site:         siteHandler,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start site http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// ops listener refuses public peers even if the network allows them in
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		Status:       http.HandlerFunc(contentAPI.HandleMetadata),
		UseRecoverMW: true,
		OnPanic:      m.IncHTTPPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	stop()
	L.Info(context.Background(), "shutdown signal received")

	gate.Set("draining")
	drain(L, conf.DrainDelay)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "site http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

// drain keeps the listeners open with readiness failing so the load
// balancer stops routing here. A second signal cuts it short.
func drain(L log.Logger, d time.Duration) {
	if d <= 0 {
		return
	}
	L.Info(context.Background(), "draining before shutdown", "drain_delay", d.String())
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(forceCh)

	select {
	case <-time.After(d):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

// notifySystemd sends READY=1 when started by systemd with Type=notify.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return errors.New("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: dial: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("systemd notify: write: %w", err)
	}
	return conn.Close()
}
