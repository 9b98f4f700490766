package materialize

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"

	"fencecheck/internal/classify"
	"fencecheck/internal/deps"
)

// Manifest mirrors the subset of Cargo.toml the generated projects use.
type Manifest struct {
	Package      Package             `toml:"package"`
	Dependencies map[string]DepSpec  `toml:"dependencies,omitempty"`
	Features     map[string][]string `toml:"features,omitempty"`
	Profile      map[string]Profile  `toml:"profile,omitempty"`
	Workspace    *struct{}           `toml:"workspace"`
}

type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Edition string `toml:"edition"`
	Publish bool   `toml:"publish"`
}

type DepSpec struct {
	Version         string   `toml:"version"`
	Features        []string `toml:"features,omitempty"`
	DefaultFeatures *bool    `toml:"default-features"`
	Optional        bool     `toml:"optional,omitempty"`
}

type Profile struct {
	Debug        bool   `toml:"debug"`
	OptLevel     string `toml:"opt-level"`
	LTO          bool   `toml:"lto,omitempty"`
	CodegenUnits int    `toml:"codegen-units,omitzero"`
	Panic        string `toml:"panic,omitempty"`
}

// NewManifest builds the manifest for one fragment.
func NewManifest(name, edition string, ctx classify.ExecutionContext, set *deps.Set) Manifest {
	m := Manifest{
		Package: Package{
			Name:    name,
			Version: "0.1.0",
			Edition: edition,
		},
		// an empty [workspace] keeps cargo from walking up into an enclosing workspace
		Workspace: &struct{}{},
	}
	list := set.List()
	if len(list) > 0 {
		m.Dependencies = make(map[string]DepSpec, len(list))
	}
	for _, d := range list {
		spec := DepSpec{Version: d.Version, Features: d.Features, Optional: d.Optional}
		if d.NoDefaultFeatures {
			off := false
			spec.DefaultFeatures = &off
		}
		m.Dependencies[d.Name] = spec
	}

	// fragment features become crate features enabled by default so
	// #[cfg(feature = "...")] blocks are type-checked
	var own []string
	for _, f := range ctx.Features() {
		if _, clash := set.Get(f); clash {
			continue
		}
		own = append(own, f)
	}
	if len(own) > 0 {
		m.Features = map[string][]string{"default": own}
		for _, f := range own {
			m.Features[f] = []string{}
		}
	}

	if classify.IsFreestanding(ctx) {
		m.Profile = map[string]Profile{
			"dev":     {Debug: true, OptLevel: "0", Panic: "abort"},
			"release": {Debug: false, OptLevel: "s", LTO: true, CodegenUnits: 1, Panic: "abort"},
		}
	}
	return m
}

// Encode renders the manifest as TOML.
func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encode Cargo.toml: %w", err)
	}
	return buf.Bytes(), nil
}

// CrateName turns a fragment id into a valid package name.
func CrateName(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "fragment"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "fragment_" + name
	}
	return name
}
