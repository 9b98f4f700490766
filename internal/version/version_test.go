package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestPretty(t *testing.T) {
	orig, noColor := Version, color.NoColor
	t.Cleanup(func() { Version, color.NoColor = orig, noColor })
	color.NoColor = true

	for _, tc := range []struct {
		in, want string
	}{
		{"0.3.0-dev", "0.3.0-dev"},
		{"1.2.3", "1.2.3"},
		{"1.2.3-rc.1+build.123", "1.2.3-rc.1+build.123"},
		{"dev", "dev"},
		{"1.x", "1.x"},
	} {
		Version = tc.in
		if got := Pretty(); got != tc.want {
			t.Errorf("Pretty(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPrettyColors(t *testing.T) {
	orig, noColor := Version, color.NoColor
	t.Cleanup(func() { Version, color.NoColor = orig, noColor })
	color.NoColor = false

	Version = "1.2.3-dev"
	got := Pretty()
	if got == Version {
		t.Fatal("expected colored output")
	}
	if len(got) <= len(Version) {
		t.Errorf("expected escape codes in %q", got)
	}
}

func TestDefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}
