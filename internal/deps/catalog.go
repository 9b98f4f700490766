package deps

import (
	"slices"

	"fencecheck/internal/classify"
)

// Entry describes a crate the resolver knows how to pull in.
type Entry struct {
	Name    string
	Version string
	// Markers are code substrings (paths, type names, attributes) that imply the crate.
	Markers []string
	// Roots are the crate's names as they appear in `use` and `extern crate`.
	Roots []string
	// NoDefaultFeatures applies outside hosted contexts.
	NoDefaultFeatures bool
	// ContextFeatures adds features per context kind.
	ContextFeatures map[classify.Kind][]string
}

// Catalog is the static marker table, checked in order.
type Catalog []Entry

// DefaultCatalog covers the embedded and cryptography crates the
// documentation uses.
var DefaultCatalog = Catalog{
	{Name: "heapless", Version: "0.8", Roots: []string{"heapless"}, Markers: []string{"heapless::"}},
	// heapless::consts went away in 0.7; code using it needs the old line
	{Name: "heapless", Version: "0.6", Markers: []string{"heapless::consts::"}},
	{Name: "cortex-m", Version: "0.7", Roots: []string{"cortex_m"}, Markers: []string{"cortex_m::"}},
	{Name: "cortex-m-rt", Version: "0.7", Roots: []string{"cortex_m_rt"}, Markers: []string{"#[entry]", "cortex_m_rt::"}},
	{Name: "embedded-hal", Version: "1.0", Roots: []string{"embedded_hal"}, Markers: []string{"embedded_hal::"}},
	{Name: "panic-halt", Version: "0.2", Roots: []string{"panic_halt"}, Markers: []string{"panic_halt"}},
	{Name: "panic-abort", Version: "0.3", Roots: []string{"panic_abort"}, Markers: []string{"panic_abort"}},
	{
		Name: "zeroize", Version: "1.7", Roots: []string{"zeroize"},
		Markers: []string{"zeroize::", "Zeroize", "Zeroizing"},
		ContextFeatures: map[classify.Kind][]string{
			classify.KindHosted: {"derive"},
			classify.KindDomain: {"derive"},
		},
	},
	{Name: "aes", Version: "0.8", Roots: []string{"aes"}, Markers: []string{"aes::", "Aes128", "Aes256"}, NoDefaultFeatures: true},
	{Name: "sha2", Version: "0.10", Roots: []string{"sha2"}, Markers: []string{"sha2::", "Sha256", "Sha512"}, NoDefaultFeatures: true},
	{Name: "chacha20", Version: "0.9", Roots: []string{"chacha20"}, Markers: []string{"chacha20::", "ChaCha20"}, NoDefaultFeatures: true},
	{Name: "ed25519-dalek", Version: "2.0", Roots: []string{"ed25519_dalek"}, Markers: []string{"ed25519_dalek::"}, NoDefaultFeatures: true},
	{Name: "subtle", Version: "2.5", Roots: []string{"subtle"}, Markers: []string{"subtle::", "ConstantTimeEq"}, NoDefaultFeatures: true},
	{
		Name: "rand", Version: "0.8", Roots: []string{"rand"}, Markers: []string{"rand::"},
		ContextFeatures: map[classify.Kind][]string{
			classify.KindHosted:       {"std"},
			classify.KindFreestanding: {"small_rng"},
		},
	},
	{Name: "rand_core", Version: "0.6", Roots: []string{"rand_core"}, Markers: []string{"rand_core::", "RngCore"}, NoDefaultFeatures: true},
	{
		Name: "stm32f4xx-hal", Version: "0.19", Roots: []string{"stm32f4xx_hal"}, Markers: []string{"stm32f4xx_hal"},
		ContextFeatures: map[classify.Kind][]string{classify.KindHardware: {"stm32f407"}},
	},
	{
		Name: "stm32f3xx-hal", Version: "0.10", Roots: []string{"stm32f3xx_hal"}, Markers: []string{"stm32f3xx_hal"},
		ContextFeatures: map[classify.Kind][]string{classify.KindHardware: {"stm32f303xc"}},
	},
	{Name: "nrf52840-hal", Version: "0.16", Roots: []string{"nrf52840_hal"}, Markers: []string{"nrf52840_hal"}},
}

// byRoot finds the first entry declaring root as a crate name.
func (c Catalog) byRoot(root string) (Entry, bool) {
	for _, e := range c {
		if slices.Contains(e.Roots, root) {
			return e, true
		}
	}
	return Entry{}, false
}

// byName finds the first entry for a crate name.
func (c Catalog) byName(name string) (Entry, bool) {
	for _, e := range c {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Baseline returns the dependencies a context needs regardless of content.
// Freestanding binaries need a panic handler crate; hardware adds the
// Cortex-M runtime.
func Baseline(ctx classify.ExecutionContext) []Dependency {
	switch ctx.(type) {
	case classify.Freestanding:
		return []Dependency{{Name: "panic-halt", Version: "0.2", Origin: "freestanding baseline"}}
	case classify.HardwareGated:
		return []Dependency{
			{Name: "cortex-m", Version: "0.7", Origin: "hardware baseline"},
			{Name: "cortex-m-rt", Version: "0.7", Origin: "hardware baseline"},
			{Name: "panic-halt", Version: "0.2", Origin: "hardware baseline"},
		}
	}
	return nil
}
