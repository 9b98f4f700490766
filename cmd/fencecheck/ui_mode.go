package main

import (
	"fmt"
	"os"
	"strings"
)

// switchMode is the value of an auto|on|off flag (--ui, --color).
type switchMode string

const (
	modeAuto switchMode = "auto"
	modeOn   switchMode = "on"
	modeOff  switchMode = "off"
)

func parseSwitch(flag, value string) (switchMode, error) {
	switch m := switchMode(strings.TrimSpace(strings.ToLower(value))); m {
	case "":
		return modeAuto, nil
	case modeAuto, modeOn, modeOff:
		return m, nil
	default:
		return "", fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
	}
}

// resolve answers an explicit mode directly and asks auto otherwise.
func (m switchMode) resolve(auto func() bool) bool {
	switch m {
	case modeOn:
		return true
	case modeOff:
		return false
	default:
		return auto()
	}
}

// shouldUseTUI in auto mode wants an interactive stdout outside CI and a
// report that is not itself going to stdout as machine-readable data.
func shouldUseTUI(mode switchMode, machineOutputOnStdout bool) bool {
	return mode.resolve(func() bool {
		return !machineOutputOnStdout && isTerminal(os.Stdout) && os.Getenv("CI") == ""
	})
}
