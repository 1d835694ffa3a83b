// Command snapshot fetches the site's CMS content into the JSON file the
// static build reads, and optionally publishes it for running servers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/rwaddinsall/hcf2025/internal/cfg"
	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/metrics"
	"github.com/rwaddinsall/hcf2025/internal/snapshot"
	"github.com/rwaddinsall/hcf2025/internal/strapi"
	v "github.com/rwaddinsall/hcf2025/internal/version"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: .env not loaded:", err)
	}

	var conf cfg.Snapshot
	var showVersion bool
	cfg.RegisterSnapshot(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(v.Get())
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.SnapshotEnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := cfg.ValidateSnapshot(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	logOpts, err := conf.LogOptions("snapshot")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	lg, err := log.New(logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	runID := uuid.NewString()
	L := lg.With("run_id", runID)

	ctx, cancel := context.WithTimeout(context.Background(), conf.Timeout)
	defer cancel()
	ctx = log.WithContext(ctx, L)

	m := metrics.NewSnapshot()
	start := time.Now()
	runErr := run(ctx, conf, L, m)
	m.Finish(runErr == nil, time.Since(start), time.Now())

	if conf.Pushgateway != "" {
		pushCtx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := m.Push(pushCtx, conf.Pushgateway, instanceName()); err != nil {
			L.Error(pushCtx, err, "failed to push run metrics", "pushgateway", conf.Pushgateway)
		}
		pcancel()
	}

	if runErr != nil {
		L.Error(ctx, runErr, "content snapshot failed", "duration_ms", time.Since(start).Milliseconds())
		_ = lg.Sync()
		os.Exit(1)
	}
	L.Info(ctx, "content snapshot complete", "duration_ms", time.Since(start).Milliseconds())
}

// run fetches every endpoint, writes the snapshot file and publishes it
// when configured. Any error means nothing was published.
func run(ctx context.Context, conf cfg.Snapshot, L log.Logger, m *metrics.SnapshotMetrics) error {
	client, err := strapi.New(strapi.Options{
		BaseURL: conf.StrapiURL,
		Token:   conf.StrapiToken,
		Logger:  L,
	})
	if err != nil {
		return err
	}
	L.Info(ctx, "fetching content from strapi", "strapi_url", client.BaseURL(), "out", conf.Out)

	doc, results, err := snapshot.NewFetcher(client, L).Fetch(ctx)
	for _, r := range results {
		m.ObserveRequest(r.Endpoint, requestResult(r), r.Duration)
	}
	if err != nil {
		return err
	}

	w, err := snapshot.WriteFile(conf.Out, doc)
	if err != nil {
		return err
	}
	m.SetOutputBytes(w.Bytes)
	for _, k := range append(append([]snapshot.Key{}, snapshot.Collections...), snapshot.Singletons...) {
		m.SetItems(string(k), doc.Count(k))
	}
	L.Info(ctx, "content snapshot written",
		append([]any{
			"path", w.Path,
			"size", humanize.Bytes(uint64(w.Bytes)),
			"sha256", w.SHA256,
			"fetched_at", doc.FetchedAt,
		}, doc.Summary().LogAttrs()...)...)

	if !conf.Publishing() {
		m.SetPublished(false)
		return nil
	}
	pub, err := newPublisher(ctx, conf, L)
	if err != nil {
		return err
	}
	out, err := pub.Publish(ctx, w.Data, doc.FetchedAt)
	if err != nil {
		return err
	}
	m.SetPublished(true)
	L.Info(ctx, "content snapshot published",
		"uri", out.URI(),
		"signed", out.SignatureKey != "",
		"ssm_param", conf.SSMParam,
	)
	return nil
}

func newPublisher(ctx context.Context, conf cfg.Snapshot, L log.Logger) (*snapshot.Publisher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	var signer snapshot.Signer
	if conf.SigningKeyARN != "" {
		signer = cryptoutil.NewKMSSigner(kms.NewFromConfig(awsCfg), conf.SigningKeyARN, kmstypes.SigningAlgorithmSpecEcdsaSha256)
	}
	return snapshot.NewPublisher(ctx, snapshot.PublisherOptions{
		Logger:    L,
		Bucket:    conf.S3Bucket,
		Prefix:    conf.S3Prefix,
		SSMParam:  conf.SSMParam,
		Signer:    signer,
		AWSConfig: &awsCfg,
	})
}

func requestResult(r snapshot.Result) string {
	if r.NotFound {
		return "not_found"
	}
	return "ok"
}

// instanceName groups pushed metrics per build host.
func instanceName() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
