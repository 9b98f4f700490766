package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fencecheck/internal/cache"
	"fencecheck/internal/materialize"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Remove scratch projects and cached results",
	Long: `Remove the scratch directory where example projects are built (including
projects kept with --keep-on-failure) and, with --cache, the result cache.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().Bool("cache", false, "also drop cached compile results")
}

func runClean(cmd *cobra.Command, args []string) error {
	dropCache, err := cmd.Flags().GetBool("cache")
	if err != nil {
		return fmt.Errorf("failed to get cache flag: %w", err)
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	scratch := (&materialize.Materializer{Root: scratchRoot(cfg)}).ScratchRoot()
	info, err := os.Stat(scratch)
	switch {
	case errors.Is(err, os.ErrNotExist):
		_, _ = fmt.Fprintln(out, "scratch directory not found")
	case err != nil:
		return fmt.Errorf("failed to stat %q: %w", scratch, err)
	case !info.IsDir():
		return fmt.Errorf("%q is not a directory", scratch)
	default:
		if err := os.RemoveAll(scratch); err != nil {
			return fmt.Errorf("failed to remove %q: %w", scratch, err)
		}
		_, _ = fmt.Fprintf(out, "removed %s\n", scratch)
	}

	if !dropCache {
		return nil
	}
	dir, err := cacheDir(cfg)
	if err != nil {
		return err
	}
	c, err := cache.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if err := c.DropAll(); err != nil {
		return fmt.Errorf("failed to drop cache: %w", err)
	}
	_, _ = fmt.Fprintf(out, "dropped result cache %s\n", c.Dir())
	return nil
}
