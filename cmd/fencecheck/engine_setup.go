package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"fencecheck/internal/cache"
	"fencecheck/internal/config"
	"fencecheck/internal/engine"
	"fencecheck/internal/materialize"
	"fencecheck/internal/observ"
	"fencecheck/internal/toolchain"
)

// scratchRoot resolves engine.scratch_dir against the config directory.
func scratchRoot(cfg config.Config) string {
	dir := cfg.Engine.ScratchDir
	if dir == "" || filepath.IsAbs(dir) || cfg.Root() == "" {
		return dir
	}
	return filepath.Join(cfg.Root(), dir)
}

// cacheDir resolves cache.dir, falling back to the user cache directory.
func cacheDir(cfg config.Config) (string, error) {
	if cfg.Cache.Dir == "" {
		return cache.DefaultDir("fencecheck")
	}
	if filepath.IsAbs(cfg.Cache.Dir) || cfg.Root() == "" {
		return cfg.Cache.Dir, nil
	}
	return filepath.Join(cfg.Root(), cfg.Cache.Dir), nil
}

// engineOptions wires the configuration into engine collaborators. The
// cache and the probe are best effort: failures are logged and the run
// continues without them.
func engineOptions(ctx context.Context, cfg config.Config, log *zap.Logger, timer *observ.Timer) (engine.Options, error) {
	targets := cfg.Targets
	if cfg.Toolchain.ProbeTargets {
		installed, err := toolchain.Probe(ctx, cfg.Toolchain.Probe)
		if err != nil {
			log.Warn("target probe failed, using configured targets", zap.Error(err))
		} else {
			kept := targets.Installed(installed)
			for _, t := range targets {
				if !installed[t.Name] {
					log.Warn("target not installed, skipping", zap.String("target", t.Name))
				}
			}
			targets = kept
		}
	}
	if len(targets) == 0 {
		return engine.Options{}, fmt.Errorf("no usable targets: configure [[targets]] or install the toolchain targets")
	}

	var c *cache.Cache
	if cfg.Cache.Enabled {
		dir, err := cacheDir(cfg)
		if err == nil {
			c, err = cache.OpenSize(dir, cfg.Cache.MemoryEntries)
		}
		if err != nil {
			log.Warn("result cache unavailable", zap.Error(err))
			c = nil
		} else {
			log.Debug("result cache", zap.String("dir", c.Dir()))
		}
	}

	return engine.Options{
		Language: cfg.Engine.Language,
		Jobs:     cfg.Engine.Jobs,
		Targets:  targets,
		Materializer: &materialize.Materializer{
			Root:          scratchRoot(cfg),
			KeepOnFailure: cfg.Engine.KeepOnFailure,
			Edition:       cfg.Toolchain.Edition,
			Logger:        log.Named("materialize"),
		},
		Runner: &toolchain.Runner{
			Command:        cfg.Toolchain.Command,
			Timeout:        cfg.Timeout(),
			MaxOutputBytes: cfg.Engine.MaxOutputBytes,
			Env:            cfg.Toolchain.Env,
			Logger:         log.Named("toolchain"),
		},
		Cache:  c,
		Timer:  timer,
		Logger: log.Named("engine"),
	}, nil
}
