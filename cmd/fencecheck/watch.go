package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fencecheck/internal/engine"
)

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [path...]",
	Short: "Re-validate examples whenever a page changes",
	Long: `Run check once, then watch the given pages and directories and run it again
after every change. With the result cache enabled, unchanged examples are not
recompiled.`,
	RunE: runWatch,
}

func init() {
	addRunFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	rf, err := readRunFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := applyFlagOverrides(cmd, &cfg, rf); err != nil {
		return err
	}
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer syncLogger(log)
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := engineOptions(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	ropts, err := buildRenderOptions(cmd, rf, os.Args[1:])
	if err != nil {
		return err
	}
	eng := engine.New(opts)

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()
	for _, root := range roots {
		if err := watchTree(watcher, root); err != nil {
			return err
		}
	}

	pass := func() error {
		pages, err := loadPages(roots, ".")
		if err != nil {
			return err
		}
		rep, err := eng.Run(ctx, pages)
		if err != nil {
			return err
		}
		if rf.output == "" && rf.format == "pretty" {
			fmt.Fprintf(cmd.OutOrStdout(), "\n[%s]\n", time.Now().Format("15:04:05"))
		}
		return writeReport(rf.output, rep, ropts)
	}
	if err := pass(); err != nil {
		if !reportable(err) {
			return err
		}
		log.Error("validation failed", zap.Error(err))
	}

	return watchLoop(ctx, watcher, log, cmd.ErrOrStderr(), func() {
		if err := pass(); err != nil {
			log.Error("validation failed", zap.Error(err))
		}
	})
}

// reportable errors end one pass but not the watch session.
func reportable(err error) bool {
	return engine.IsRunError(err)
}

// watchTree adds root and every non-skipped directory below it. Single
// files are watched through their directory.
func watchTree(w *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", root, err)
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %q: %w", path, err)
		}
		return nil
	})
}

// watchLoop calls rerun once per burst of page changes until ctx ends.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, log *zap.Logger, errOut io.Writer, rerun func()) error {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !skipDir(filepath.Base(ev.Name)) {
					if err := watchTree(w, ev.Name); err != nil {
						log.Warn("cannot watch new directory", zap.String("dir", ev.Name), zap.Error(err))
					}
				}
			}
			if !isPageFile(ev.Name) || (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) {
				continue
			}
			log.Debug("page changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			rerun()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(errOut, "watch:", err)
		}
	}
}
