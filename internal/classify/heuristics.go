package classify

import (
	"strings"
)

// Input is what a heuristic sees: the fragment body and the features
// collected from the annotation.
type Input struct {
	Body          string
	Features      FeatureSet
	DefaultTarget string
}

// Heuristic inspects fragment content. The first match wins.
type Heuristic struct {
	Name  string
	Match func(Input) (ExecutionContext, bool)
}

// Heuristics is the content-inspection order. Reordering it changes how
// existing fragments classify; classify_test pins the order.
var Heuristics = []Heuristic{
	{Name: "freestanding-markers", Match: matchFreestanding},
	{Name: "hardware-markers", Match: matchHardware},
	{Name: "fragment-markers", Match: matchSnippet},
	{Name: "crypto-markers", Match: matchCrypto},
}

var freestandingMarkers = []string{
	"#![no_std]",
	"#![no_main]",
	"#[panic_handler]",
	", no_std)]", // #![cfg_attr(..., no_std)]
}

func matchFreestanding(in Input) (ExecutionContext, bool) {
	code := scrub(in.Body)
	for _, m := range freestandingMarkers {
		if strings.Contains(code, m) {
			return Freestanding{Target: in.DefaultTarget, FeatureSet: in.Features}, true
		}
	}
	return nil, false
}

// platformMarkers is checked in order so stm32f4 beats the generic stm32.
var platformMarkers = []struct {
	marker   string
	platform string
}{
	{"stm32f4", "stm32f4"},
	{"stm32f3", "stm32f3"},
	{"stm32", "stm32"},
	{"nrf52", "nrf52"},
	{"esp32", "esp32"},
	{"rp2040", "rp2040"},
}

var genericHardwareMarkers = []string{
	"cortex_m::",
	"cortex_m_rt",
	"embedded_hal",
	"pac::",
	"gpio::",
	"#[entry]",
	"#[interrupt]",
}

// GenericPlatform is reported when hardware markers name no specific chip.
const GenericPlatform = "generic"

func matchHardware(in Input) (ExecutionContext, bool) {
	code := scrub(in.Body)
	lower := strings.ToLower(code)
	for _, pm := range platformMarkers {
		if strings.Contains(lower, pm.marker) {
			return HardwareGated{Platform: pm.platform, FeatureSet: in.Features.With("hardware")}, true
		}
	}
	for _, m := range genericHardwareMarkers {
		if strings.Contains(code, m) {
			return HardwareGated{Platform: GenericPlatform, FeatureSet: in.Features.With("hardware")}, true
		}
	}
	return nil, false
}

var fragmentComments = []string{
	"// snippet",
	"// fragment",
	"// ...",
	"/* ... */",
}

func matchSnippet(in Input) (ExecutionContext, bool) {
	if strings.TrimSpace(in.Body) == "" {
		return Snippet{Reason: "empty fragment"}, true
	}
	for _, line := range strings.Split(in.Body, "\n") {
		l := strings.ToLower(strings.TrimSpace(line))
		for _, m := range fragmentComments {
			if l == m || strings.HasPrefix(l, m+":") || strings.HasPrefix(l, m+" ") {
				return Snippet{Reason: "fragment marker comment"}, true
			}
		}
	}
	code := scrub(in.Body)
	if strings.TrimSpace(code) == "" {
		return Snippet{Reason: "comment-only fragment"}, true
	}
	if strings.Contains(code, "...") {
		return Snippet{Reason: "elided code"}, true
	}
	if !balanced(code) {
		return Snippet{Reason: "unbalanced delimiters"}, true
	}
	return nil, false
}

var cryptoMarkers = []string{
	"zeroize",
	"Zeroize",
	"aes::",
	"Aes128",
	"Aes256",
	"sha2::",
	"Sha256",
	"Sha512",
	"chacha20",
	"ChaCha20",
	"ed25519",
	"Ed25519",
	"hmac::",
	"Hmac",
	"subtle::",
	"constant_time",
	"ConstantTimeEq",
}

func matchCrypto(in Input) (ExecutionContext, bool) {
	code := scrub(in.Body)
	for _, m := range cryptoMarkers {
		if strings.Contains(code, m) {
			return DomainFocused{Topic: DefaultTopic, FeatureSet: in.Features.With(DefaultTopic)}, true
		}
	}
	return nil, false
}

// balanced checks (), [] and {} nesting on scrubbed code.
func balanced(code string) bool {
	var stack []byte
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 {
				return false
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (c == ')' && open != '(') || (c == ']' && open != '[') || (c == '}' && open != '{') {
				return false
			}
		}
	}
	return len(stack) == 0
}
