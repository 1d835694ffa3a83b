package content

import (
	"context"
	"time"

	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

const (
	// DefaultPollInterval is how often the watcher reads the release pointer.
	DefaultPollInterval = 30 * time.Second

	defaultStaleThreshold = 30 * time.Minute
	maxBackoff            = 5 * time.Minute
)

type pollResult int

const (
	pollNoChange pollResult = iota
	pollSwapped
	pollSSMError
	pollLoadError
	pollValidationError
)

// errorLabel is the metrics label for a failed poll.
func (r pollResult) errorLabel() string {
	switch r {
	case pollSSMError:
		return "ssm"
	case pollLoadError:
		return "load"
	case pollValidationError:
		return "validation"
	}
	return ""
}

// SnapshotFetcher is what the Watcher needs from a Loader.
type SnapshotFetcher interface {
	FetchCurrentHash(ctx context.Context) (string, error)
	LoadHash(ctx context.Context, hash string) (*Snapshot, error)
}

// WatcherMetrics is implemented by the metrics package.
type WatcherMetrics interface {
	IncWatcherPolls()
	IncWatcherSwaps()
	IncWatcherError(errType string)
	ObserveSnapshotLoadDuration(seconds float64)
	SetWatcherLastSuccess(unixSeconds float64)
	SetWatcherStale(stale bool)
}

type nopWatcherMetrics struct{}

func (nopWatcherMetrics) IncWatcherPolls()                    {}
func (nopWatcherMetrics) IncWatcherSwaps()                    {}
func (nopWatcherMetrics) IncWatcherError(string)              {}
func (nopWatcherMetrics) ObserveSnapshotLoadDuration(float64) {}
func (nopWatcherMetrics) SetWatcherLastSuccess(float64)       {}
func (nopWatcherMetrics) SetWatcherStale(bool)                {}

type WatcherOptions struct {
	Logger       log.Logger
	Loader       SnapshotFetcher
	Manager      *Manager
	PollInterval time.Duration

	// Validation gates new snapshots. Nil uses DefaultValidationOptions().
	Validation *ValidationOptions

	// OnSwap runs on the poll goroutine after each swap. A panic in it is
	// logged and the swap stands.
	OnSwap func(hash, fetchedAt string)

	Metrics WatcherMetrics

	// StaleThreshold is how long the pointer may go unread before content
	// is reported stale. Zero means 30 minutes.
	StaleThreshold time.Duration
}

// Watcher polls the release pointer and swaps new snapshots into the
// manager. It is driven by a single goroutine, so its fields need no lock.
type Watcher struct {
	loader         SnapshotFetcher
	manager        *Manager
	logger         log.Logger
	metrics        WatcherMetrics
	onSwap         func(hash, fetchedAt string)
	validation     ValidationOptions
	interval       time.Duration
	staleThreshold time.Duration

	currentHash     string
	consecutiveErrs int
	lastSuccessAt   time.Time
	stale           bool
	polls, swaps    int64
}

func NewWatcher(opts *WatcherOptions) *Watcher {
	w := &Watcher{
		loader:         opts.Loader,
		manager:        opts.Manager,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		onSwap:         opts.OnSwap,
		validation:     DefaultValidationOptions(),
		interval:       opts.PollInterval,
		staleThreshold: opts.StaleThreshold,
		lastSuccessAt:  time.Now(),
	}
	if w.logger == nil {
		w.logger = log.Nop()
	}
	if w.metrics == nil {
		w.metrics = nopWatcherMetrics{}
	}
	if opts.Validation != nil {
		w.validation = *opts.Validation
	}
	if w.interval <= 0 {
		w.interval = DefaultPollInterval
	}
	if w.staleThreshold <= 0 {
		w.staleThreshold = defaultStaleThreshold
	}
	// the startup snapshot is already active; don't fetch it again
	if snap, ok := w.manager.Get(); ok {
		w.currentHash = snap.Meta.SHA256
	}
	return w
}

// Run polls until ctx is done. Pointer read failures back off
// exponentially; a good read restores the normal interval.
func (w *Watcher) Run(ctx context.Context) error {
	L := w.logger.With("component", "content_watcher")
	L.Info(ctx, "content watcher starting",
		"poll_interval", w.interval.String(),
		"current_hash", truncHash(w.currentHash),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			L.Info(ctx, "content watcher stopping", "polls", w.polls, "swaps", w.swaps)
			return ctx.Err()
		case <-ticker.C:
		}

		result := w.checkOnce(ctx)
		switch {
		case result == pollSSMError:
			w.consecutiveErrs++
			next := w.backoffDuration()
			L.Warn(ctx, "backing off", "consecutive_errors", w.consecutiveErrs, "next_poll_in", next.String())
			ticker.Reset(next)
		case w.consecutiveErrs > 0:
			L.Info(ctx, "pointer reads recovered", "after_errors", w.consecutiveErrs)
			w.consecutiveErrs = 0
			ticker.Reset(w.interval)
		}
		w.trackStaleness(ctx, result)
	}
}

// trackStaleness reports stale content once on entering the state and once
// on leaving it.
func (w *Watcher) trackStaleness(ctx context.Context, result pollResult) {
	if result != pollSSMError {
		if w.stale {
			w.stale = false
			w.metrics.SetWatcherStale(false)
			w.logger.Info(ctx, "content is fresh again")
		}
		return
	}
	since := time.Since(w.lastSuccessAt)
	if w.stale || since <= w.staleThreshold {
		return
	}
	w.stale = true
	w.metrics.SetWatcherStale(true)
	w.logger.Error(ctx, xerrors.Newf("no successful pointer read for %s", since.Truncate(time.Second)),
		"content may be stale")
}

func (w *Watcher) checkOnce(ctx context.Context) pollResult {
	w.polls++
	w.metrics.IncWatcherPolls()

	result, err := w.poll(ctx)
	if err != nil {
		w.metrics.IncWatcherError(result.errorLabel())
		w.logger.Error(ctx, err, "content poll failed",
			"stage", result.errorLabel(),
			"current_hash", truncHash(w.currentHash),
		)
	}
	return result
}

func (w *Watcher) poll(ctx context.Context) (pollResult, error) {
	hash, err := w.loader.FetchCurrentHash(ctx)
	if err != nil {
		return pollSSMError, err
	}
	now := time.Now()
	w.lastSuccessAt = now
	w.metrics.SetWatcherLastSuccess(float64(now.Unix()))

	if cryptoutil.HashEqual(hash, w.currentHash) {
		return pollNoChange, nil
	}

	start := time.Now()
	snap, err := w.loader.LoadHash(ctx, hash)
	w.metrics.ObserveSnapshotLoadDuration(time.Since(start).Seconds())
	if err != nil {
		return pollLoadError, xerrors.Wrapf(err, "load snapshot %s", truncHash(hash))
	}
	if err := ValidateSnapshot(snap, w.validation); err != nil {
		return pollValidationError, xerrors.Wrapf(err, "reject snapshot %s", truncHash(hash))
	}

	w.swap(ctx, hash, snap)
	return pollSwapped, nil
}

func (w *Watcher) swap(ctx context.Context, hash string, snap *Snapshot) {
	old := w.currentHash
	w.manager.Set(*snap)
	w.currentHash = hash
	w.swaps++
	w.metrics.IncWatcherSwaps()

	fetchedAt := w.manager.FetchedAt()
	w.logger.Info(ctx, "content snapshot swapped",
		"old_hash", truncHash(old),
		"new_hash", truncHash(hash),
		"fetched_at", fetchedAt,
	)
	w.notify(ctx, hash, fetchedAt)
}

func (w *Watcher) notify(ctx context.Context, hash, fetchedAt string) {
	if w.onSwap == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, xerrors.Newf("panic: %v", r), "swap callback panicked", "hash", truncHash(hash))
		}
	}()
	w.onSwap(hash, fetchedAt)
}

// backoffDuration doubles the interval per consecutive error up to maxBackoff.
func (w *Watcher) backoffDuration() time.Duration {
	d := w.interval
	for i := 0; i < w.consecutiveErrs; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// truncHash shortens a hash to 12 characters for logs.
func truncHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
