package classify

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fencecheck/internal/annotation"
	"fencecheck/internal/fragment"
)

func mustParse(t *testing.T, raw string) annotation.Annotation {
	t.Helper()
	a, err := annotation.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return a
}

func TestClassifyDirectives(t *testing.T) {
	body := "#![no_std]\nuse stm32f4xx_hal::pac;\nlet k = zeroize::Zeroizing::new(1);\n"
	tests := []struct {
		annot string
		want  ExecutionContext
	}{
		{"snippet", Snippet{Reason: "marked as snippet"}},
		{`snippet="needs setup"`, Snippet{Reason: "needs setup"}},
		{"ignore", Snippet{Reason: "marked ignore"}},
		{"no_compile,no_std", Snippet{Reason: "marked no_compile"}},
		{"hardware=STM32F4,no_std", HardwareGated{Platform: "stm32f4", FeatureSet: FeatureSet{"hardware"}}},
		{"no_std", Freestanding{Target: DefaultFreestandingTarget}},
		{"no_std,target=riscv32imac-unknown-none-elf", Freestanding{Target: "riscv32imac-unknown-none-elf"}},
		{"target=thumbv6m-none-eabi", Freestanding{Target: "thumbv6m-none-eabi"}},
		{"crypto,features=zeroize", DomainFocused{Topic: "crypto", FeatureSet: FeatureSet{"crypto", "zeroize"}}},
		{"algorithm=aes-gcm", DomainFocused{Topic: "crypto", FeatureSet: FeatureSet{"crypto"}}},
		{"topic=networking", DomainFocused{Topic: "networking", FeatureSet: FeatureSet{"networking"}}},
		{"std,features=b,a,a", Hosted{FeatureSet: FeatureSet{"a", "b"}}},
	}
	for _, tt := range tests {
		frag := fragment.CodeFragment{RawText: body, RawAnnotation: tt.annot}
		got := Classify(frag, mustParse(t, tt.annot))
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%q: context mismatch (-want +got):\n%s", tt.annot, diff)
		}
	}
}

// An explicit directive decides the context whatever the body contains.
func TestClassifyDirectiveIgnoresBody(t *testing.T) {
	bodies := []string{
		"",
		"#![no_std]\n#![no_main]",
		"use stm32f4xx_hal as hal;",
		"fn main() { ... }",
		"// snippet\nlet x = 1;",
		"use aes::Aes128;",
	}
	for _, body := range bodies {
		got := Classify(fragment.CodeFragment{RawText: body}, mustParse(t, "std"))
		if got.Kind() != KindHosted {
			t.Errorf("body %q: expected hosted, got %s", body, got)
		}
		got = Classify(fragment.CodeFragment{RawText: body, Unterminated: true}, mustParse(t, "no_std"))
		if got.Kind() != KindFreestanding {
			t.Errorf("body %q: expected freestanding, got %s", body, got)
		}
	}
}

func TestClassifyHeuristics(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ExecutionContext
	}{
		{"plain hosted", "fn main() {\n    println!(\"hi\");\n}", Hosted{}},
		{"bare statement stays hosted", "let x = 5;", Hosted{}},
		{"no_std attribute", "#![no_std]\nfn f() {}", Freestanding{Target: DefaultFreestandingTarget}},
		{"panic handler", "#[panic_handler]\nfn p(_: &core::panic::PanicInfo) -> ! { loop {} }", Freestanding{Target: DefaultFreestandingTarget}},
		{"specific platform", "use stm32f4xx_hal::pac;\nfn main() {}", HardwareGated{Platform: "stm32f4", FeatureSet: FeatureSet{"hardware"}}},
		{"generic hardware", "use embedded_hal::digital::OutputPin;\nfn f() {}", HardwareGated{Platform: GenericPlatform, FeatureSet: FeatureSet{"hardware"}}},
		{"marker comment", "// snippet\nkey.zeroize();", Snippet{Reason: "fragment marker comment"}},
		{"elision", "fn main() {\n    let cfg = Config { ... };\n}", Snippet{Reason: "elided code"}},
		{"unbalanced", "impl Drop for Key {\n    fn drop(&mut self) {", Snippet{Reason: "unbalanced delimiters"}},
		{"empty", "   \n", Snippet{Reason: "empty fragment"}},
		{"comments only", "// just prose\n/* more */", Snippet{Reason: "comment-only fragment"}},
		{"crypto", "use aes::Aes128;\nfn main() {}", DomainFocused{Topic: "crypto", FeatureSet: FeatureSet{"crypto"}}},
		{"markers in strings ignored", "fn main() { println!(\"#![no_std] stm32 ... Aes128 {{\"); }", Hosted{}},
		{"markers in comments ignored", "// uses stm32 in prod\nfn main() {}", Hosted{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(fragment.CodeFragment{RawText: tt.body}, annotation.Annotation{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("context mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Bodies that match several heuristics resolve by table order.
func TestHeuristicPriority(t *testing.T) {
	names := make([]string, len(Heuristics))
	for i, h := range Heuristics {
		names[i] = h.Name
	}
	want := []string{"freestanding-markers", "hardware-markers", "fragment-markers", "crypto-markers"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("heuristic order changed (-want +got):\n%s", diff)
	}

	tests := []struct {
		body string
		kind Kind
	}{
		{"#![no_std]\nuse stm32f4xx_hal::pac;", KindFreestanding},
		{"use stm32f4xx_hal::pac;\nfn main() { ... }", KindHardware},
		{"use aes::Aes128;\n// ...", KindSnippet},
		{"#![no_std]\nuse aes::Aes128;", KindFreestanding},
	}
	for _, tt := range tests {
		got := Classify(fragment.CodeFragment{RawText: tt.body}, annotation.Annotation{})
		if got.Kind() != tt.kind {
			t.Errorf("body %q: expected %s, got %s", tt.body, tt.kind, got)
		}
	}
}

func TestClassifyUnterminated(t *testing.T) {
	got := Classify(fragment.CodeFragment{RawText: "fn main() {}", Unterminated: true}, annotation.Annotation{})
	want := Snippet{Reason: "unterminated code fence"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("context mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyCustomDefaultTarget(t *testing.T) {
	c := Classifier{DefaultTarget: "thumbv6m-none-eabi"}
	got := c.Classify(fragment.CodeFragment{RawText: "#![no_std]"}, annotation.Annotation{})
	if got.Detail() != "thumbv6m-none-eabi" {
		t.Errorf("expected custom default target, got %s", got)
	}
}

func TestContextHelpers(t *testing.T) {
	if (Snippet{}).Compilable() {
		t.Errorf("snippets must not be compilable")
	}
	if !IsFreestanding(HardwareGated{Platform: "nrf52"}) {
		t.Errorf("hardware contexts build without std")
	}
	if IsFreestanding(DomainFocused{Topic: "crypto"}) {
		t.Errorf("domain contexts are hosted")
	}
	if s := (Freestanding{Target: "t", FeatureSet: NewFeatureSet("b", "a")}).String(); s != "freestanding(t) [a,b]" {
		t.Errorf("unexpected string %q", s)
	}
	k, err := ParseKind("hardware")
	if err != nil || k != KindHardware {
		t.Errorf("expected hardware kind, got %v (%v)", k, err)
	}
}

func TestScrub(t *testing.T) {
	src := "let s = \"a // b\"; // tail\nlet c = '{'; let r = r#\"x\"y\"#; /* a /* b */ c */ fn f<'a>(x: &'a str) {}"
	got := scrub(src)
	if len(got) != len(src) {
		t.Fatalf("expected length %d, got %d", len(src), len(got))
	}
	for _, bad := range []string{"tail", "a // b", "'{'", "x\"y"} {
		if strings.Contains(got, bad) {
			t.Errorf("expected %q to be scrubbed from %q", bad, got)
		}
	}
	if !strings.Contains(got, "fn f<'a>(x: &'a str) {}") {
		t.Errorf("lifetimes should survive scrubbing: %q", got)
	}
	if !balanced(got) {
		t.Errorf("expected scrubbed code to be balanced: %q", got)
	}
}
