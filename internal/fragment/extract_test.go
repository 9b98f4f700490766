package fragment

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"fencecheck/internal/source"
)

const samplePage = "# Keys\n" +
	"\n" +
	"```rust\n" +
	"fn main() {\n" +
	"    println!(\"hi\");\n" +
	"}\n" +
	"```\n" +
	"\n" +
	"```toml\n" +
	"[dependencies]\n" +
	"```\n" +
	"\n" +
	"```rust,no_std,target=thumbv7em-none-eabihf\n" +
	"#![no_std]\n" +
	"```\n" +
	"\n" +
	"  ~~~~rust features=crypto,hardware\n" +
	"  let k = [0u8; 32];\n" +
	"  ```\n" +
	"  ~~~~\n"

func TestExtractFindsTaggedBlocks(t *testing.T) {
	page := source.Page{Path: "docs/keys.md", Text: samplePage}
	got := NewExtractor("rust").All(page)

	want := []CodeFragment{
		{
			SourceFile: "docs/keys.md", Stem: "docs_keys", Line: 3, Index: 1, Lang: "rust",
			RawText: "fn main() {\n    println!(\"hi\");\n}",
		},
		{
			SourceFile: "docs/keys.md", Stem: "docs_keys", Line: 13, Index: 2, Lang: "rust",
			RawAnnotation: "no_std,target=thumbv7em-none-eabihf",
			RawText:       "#![no_std]",
		},
		{
			SourceFile: "docs/keys.md", Stem: "docs_keys", Line: 17, Index: 3, Lang: "rust",
			RawAnnotation: "features=crypto,hardware",
			RawText:       "let k = [0u8; 32];\n```",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fragments mismatch (-want +got):\n%s", diff)
	}
	if got[1].ID() != "docs_keys_2" {
		t.Errorf("expected id docs_keys_2, got %s", got[1].ID())
	}
}

func TestExtractIsRestartable(t *testing.T) {
	page := source.Page{Path: "a.md", Text: samplePage}
	seq := Extract(page)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 3 || second != 3 {
		t.Errorf("expected 3 fragments on both passes, got %d and %d", first, second)
	}
}

func TestExtractStopsEarly(t *testing.T) {
	page := source.Page{Path: "a.md", Text: samplePage}
	n := 0
	for f := range Extract(page) {
		n++
		if f.Index == 1 {
			break
		}
	}
	if n != 1 {
		t.Errorf("expected iteration to stop after first fragment, got %d", n)
	}
}

func TestExtractUnterminatedFence(t *testing.T) {
	page := source.Page{Path: "a.md", Text: "text\n```rust\nfn broken() {\n"}
	got := NewExtractor("").All(page)
	if len(got) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(got))
	}
	if !got[0].Unterminated {
		t.Errorf("expected fragment to be marked unterminated")
	}
	if got[0].RawText != "fn broken() {" {
		t.Errorf("unexpected body %q", got[0].RawText)
	}
}

func TestExtractOtherLanguage(t *testing.T) {
	page := source.Page{Path: "a.md", Text: samplePage}
	got := NewExtractor("TOML").All(page)
	if len(got) != 1 {
		t.Fatalf("expected 1 toml fragment, got %d", len(got))
	}
	if got[0].RawText != "[dependencies]" {
		t.Errorf("unexpected body %q", got[0].RawText)
	}
}

func TestParseOpenFence(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		lang  string
		annot string
	}{
		{"```", true, "", ""},
		{"```rust", true, "rust", ""},
		{"```rust,ignore", true, "rust", "ignore"},
		{"``` rust , no_std", true, "rust", "no_std"},
		{"``rust", false, "", ""},
		{"```rust`x", false, "", ""},
		{"~~~rust hardware=stm32f4", true, "rust", "hardware=stm32f4"},
		{"plain text", false, "", ""},
	}
	for _, tt := range tests {
		f, ok := parseOpenFence(tt.line)
		if ok != tt.ok {
			t.Errorf("%q: expected ok=%v, got %v", tt.line, tt.ok, ok)
			continue
		}
		if f.lang != tt.lang || f.annotation != tt.annot {
			t.Errorf("%q: expected (%q, %q), got (%q, %q)", tt.line, tt.lang, tt.annot, f.lang, f.annotation)
		}
	}
}
