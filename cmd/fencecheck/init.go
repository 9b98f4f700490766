package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fencecheck/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter fencecheck.toml",
	Long: `Create fencecheck.toml with the built-in defaults in [path] (the current
directory when omitted). Refuses to overwrite an existing file unless --force
is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing fencecheck.toml")
}

func runInit(cmd *cobra.Command, args []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}
	target := "."
	if len(args) > 0 && args[0] != "" {
		target = args[0]
	}
	if !filepath.IsAbs(target) {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = filepath.Join(wd, target)
	}
	if st, err := os.Stat(target); err == nil && !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	path, err := config.WriteTemplate(target, force)
	if errors.Is(err, config.ErrExists) {
		return fmt.Errorf("already initialized: %s exists (use --force to overwrite)", path)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
	return nil
}
