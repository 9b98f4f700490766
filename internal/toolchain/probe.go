package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultProbeCommand lists the targets rustup has installed.
var DefaultProbeCommand = []string{"rustup", "target", "list", "--installed"}

const probeTimeout = 10 * time.Second

// ErrNoProbe means the probe command is empty.
var ErrNoProbe = errors.New("toolchain: empty probe command")

// Probe runs the probe command and returns the installed target triples.
func Probe(ctx context.Context, command []string) (map[string]bool, error) {
	if len(command) == 0 {
		return nil, ErrNoProbe
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	// #nosec G204 -- probe command comes from the user's configuration
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("probe %s: %w: %s", command[0], err, msg)
		}
		return nil, fmt.Errorf("probe %s: %w", command[0], err)
	}
	return parseProbe(out), nil
}

// parseProbe takes the first field of every non-empty line, so both
// `rustup target list --installed` and `rustup target list` (with
// "(installed)" suffixes) are understood.
func parseProbe(out []byte) map[string]bool {
	installed := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 1 && fields[1] != "(installed)" {
			continue
		}
		installed[fields[0]] = true
	}
	return installed
}
