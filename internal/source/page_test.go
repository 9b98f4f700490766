package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPageNormalizesContent(t *testing.T) {
	raw := []byte("\xEF\xBB\xBF# Title\r\n\r\n```rust\r\nfn main() {}\r\n```\r\n")
	page := NewPage("docs/intro.md", raw)

	want := "# Title\n\n```rust\nfn main() {}\n```\n"
	if page.Text != want {
		t.Errorf("expected %q, got %q", want, page.Text)
	}
	if page.Path != "docs/intro.md" {
		t.Errorf("expected path docs/intro.md, got %q", page.Path)
	}
}

func TestNormalizeCRLFKeepsLoneCR(t *testing.T) {
	out, changed := normalizeCRLF([]byte("a\rb\r\nc"))
	if !changed {
		t.Fatalf("expected change to be reported")
	}
	if string(out) != "a\rb\nc" {
		t.Errorf("expected lone \\r to survive, got %q", out)
	}
}

func TestPageStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"docs/ch01/intro.md", "docs_ch01_intro"},
		{"README", "README"},
		{"a/b.c.md", "a_b.c"},
		{"./intro.md", "intro"},
		{"../shared/keys.md", "shared_keys"},
		{"/abs/book/p.md", "abs_book_p"},
		{"src/crypto/README.md", "src_crypto_README"},
		{"", "page"},
	}
	for _, tt := range tests {
		got := Page{Path: tt.path}.Stem()
		if got != tt.want {
			t.Errorf("Stem(%q): expected %q, got %q", tt.path, tt.want, got)
		}
	}
}

func TestLocationOrdering(t *testing.T) {
	a := Location{File: "a.md", Line: 10}
	b := Location{File: "a.md", Line: 2}
	c := Location{File: "b.md", Line: 1}
	if !b.Less(a) {
		t.Errorf("expected line 2 before line 10")
	}
	if !a.Less(c) {
		t.Errorf("expected a.md before b.md")
	}
	if a.String() != "a.md:10" {
		t.Errorf("expected a.md:10, got %s", a.String())
	}
}

func TestRelativePathOutsideBaseFallsBackToAbsolute(t *testing.T) {
	tmp := t.TempDir()

	baseDir := filepath.Join(tmp, "base")
	otherDir := filepath.Join(tmp, "other")

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		t.Fatalf("failed to create base dir: %v", err)
	}
	if err := os.MkdirAll(otherDir, 0o755); err != nil {
		t.Fatalf("failed to create other dir: %v", err)
	}

	target := filepath.Join(otherDir, "page.md")

	got, err := RelativePath(target, baseDir)
	if err != nil {
		t.Fatalf("RelativePath returned error: %v", err)
	}

	want := normalizePath(target)
	if got != want {
		t.Fatalf("expected absolute fallback %q, got %q", want, got)
	}
}

func TestRelativePathInsideBaseStaysRelative(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "docs", "page.md")

	got, err := RelativePath(target, tmp)
	if err != nil {
		t.Fatalf("RelativePath returned error: %v", err)
	}
	if got != "docs/page.md" {
		t.Fatalf("expected docs/page.md, got %q", got)
	}
}
