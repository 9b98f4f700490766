package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Template is written by `fencecheck init`.
const Template = `# fencecheck configuration
[engine]
language = "rust"
jobs = 0            # 0 = number of CPUs
timeout = "30s"
keep_on_failure = false
scratch_dir = ""    # default: <tmp>/fencecheck

[ci]
fail_on_skip = false
skip_threshold = 0

[toolchain]
command = ["cargo", "check", "--quiet", "--message-format=short", "--target", "{target}"]
probe = ["rustup", "target", "list", "--installed"]
probe_targets = false
edition = "2021"

[[targets]]
name = "x86_64-unknown-linux-gnu"
kind = "hosted"

[[targets]]
name = "thumbv7em-none-eabihf"
kind = "freestanding"
platforms = ["stm32f4", "stm32f3", "nrf52"]

[cache]
enabled = false
dir = ""            # default: $XDG_CACHE_HOME/fencecheck
memory_entries = 1024
`

// ErrExists is returned by WriteTemplate when the file is already there.
var ErrExists = errors.New(FileName + " already exists")

// WriteTemplate creates dir/fencecheck.toml unless force is false and the
// file exists.
func WriteTemplate(dir string, force bool) (string, error) {
	path := filepath.Join(dir, FileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, ErrExists
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(Template), 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
