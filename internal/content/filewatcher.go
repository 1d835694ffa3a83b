package content

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rwaddinsall/hcf2025/internal/cryptoutil"
	"github.com/rwaddinsall/hcf2025/internal/log"
	"github.com/rwaddinsall/hcf2025/internal/xerrors"
)

// DefaultDebounce absorbs the burst of events an editor or an atomic
// rename produces for one logical write.
const DefaultDebounce = 500 * time.Millisecond

type FileWatcherOptions struct {
	Logger     log.Logger
	Path       string
	Manager    *Manager
	Debounce   time.Duration
	Validation ValidationOptions
	OnSwap     func(hash, fetchedAt string)

	// OnReload gets "swapped", "unchanged" or "error" after each reload.
	OnReload func(result string)
}

// FileWatcher reloads a local snapshot file when it changes. The parent
// directory is watched rather than the file so replacements by rename
// are seen.
type FileWatcher struct {
	path       string
	manager    *Manager
	logger     log.Logger
	debounce   time.Duration
	validation ValidationOptions
	onSwap     func(hash, fetchedAt string)
	onReload   func(result string)
	watcher    *fsnotify.Watcher
}

func NewFileWatcher(opts FileWatcherOptions) (*FileWatcher, error) {
	if opts.Path == "" {
		return nil, xerrors.New("Path is required")
	}
	if opts.Manager == nil {
		return nil, xerrors.New("Manager is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve snapshot path %s", opts.Path)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Wrap(err, "create file watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, xerrors.Wrapf(err, "watch directory %s", filepath.Dir(abs))
	}
	return &FileWatcher{
		path:       abs,
		manager:    opts.Manager,
		logger:     opts.Logger,
		debounce:   opts.Debounce,
		validation: opts.Validation,
		onSwap:     opts.OnSwap,
		onReload:   opts.OnReload,
		watcher:    w,
	}, nil
}

// Run processes file events until ctx is cancelled, then closes the
// underlying watcher.
func (fw *FileWatcher) Run(ctx context.Context) error {
	defer fw.watcher.Close()

	fw.logger.Info(ctx, "content file watcher starting", "path", fw.path)
	name := filepath.Base(fw.path)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info(ctx, "content file watcher stopping", "reason", ctx.Err())
			return ctx.Err()

		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				fw.logger.Debug(ctx, "content file change detected", "op", ev.Op.String())
				if timer == nil {
					timer = time.NewTimer(fw.debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(fw.debounce)
				}
				fire = timer.C
			case ev.Has(fsnotify.Remove):
				fw.logger.Warn(ctx, "content file removed, keeping current content", "path", fw.path)
			}

		case <-fire:
			fire = nil
			if err := fw.Reload(ctx); err != nil {
				fw.logger.Error(ctx, err, "content file reload failed, keeping current content", "path", fw.path)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Error(ctx, err, "content file watcher error")
		}
	}
}

// Reload reads, validates and activates the file. An unchanged file is a
// no-op.
func (fw *FileWatcher) Reload(ctx context.Context) error {
	result, err := fw.reload(ctx)
	if fw.onReload != nil {
		fw.onReload(result)
	}
	return err
}

func (fw *FileWatcher) reload(ctx context.Context) (string, error) {
	snap, err := LoadFile(fw.path, fw.logger)
	if err != nil {
		return "error", err
	}
	if cryptoutil.HashEqual(snap.Meta.SHA256, fw.manager.ContentHash()) {
		fw.logger.Debug(ctx, "content file unchanged", "hash", truncHash(snap.Meta.SHA256))
		return "unchanged", nil
	}
	if err := ValidateSnapshot(snap, fw.validation); err != nil {
		return "error", err
	}

	old := fw.manager.ContentHash()
	fw.manager.Set(*snap)
	fw.logger.Info(ctx, "content file reloaded",
		"old_hash", truncHash(old),
		"new_hash", truncHash(snap.Meta.SHA256),
		"fetched_at", snap.Meta.FetchedAt,
	)
	if fw.onSwap != nil {
		fw.onSwap(snap.Meta.SHA256, snap.Meta.FetchedAt)
	}
	return "swapped", nil
}
