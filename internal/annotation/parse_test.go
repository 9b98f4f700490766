package annotation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDirectives(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Directive
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "bare and valued",
			input: "no_std,target=thumbv7em-none-eabihf",
			want: []Directive{
				{Key: "no_std", Raw: "no_std"},
				{Key: "target", Raw: "target", Value: "thumbv7em-none-eabihf", HasValue: true},
			},
		},
		{
			name:  "features list absorbs items",
			input: "features=crypto,hardware",
			want: []Directive{
				{Key: "features", Raw: "features", Value: "crypto,hardware", HasValue: true},
			},
		},
		{
			name:  "list stops at build flag",
			input: "features=crypto,hardware,no_std",
			want: []Directive{
				{Key: "features", Raw: "features", Value: "crypto,hardware", HasValue: true},
				{Key: "no_std", Raw: "no_std"},
			},
		},
		{
			name:  "list stops at next key",
			input: "hardware=stm32f4,nrf52,features=hal",
			want: []Directive{
				{Key: "hardware", Raw: "hardware", Value: "stm32f4,nrf52", HasValue: true},
				{Key: "features", Raw: "features", Value: "hal", HasValue: true},
			},
		},
		{
			name:  "quoted value keeps commas",
			input: `snippet="needs context, see above",ignore`,
			want: []Directive{
				{Key: "snippet", Raw: "snippet", Value: "needs context, see above", HasValue: true},
				{Key: "ignore", Raw: "ignore"},
			},
		},
		{
			name:  "aliases and case",
			input: "No-Std, Crypto",
			want: []Directive{
				{Key: "no_std", Raw: "No-Std"},
				{Key: "crypto", Raw: "Crypto"},
			},
		},
		{
			name:  "trailing comma tolerated",
			input: "no_run,",
			want: []Directive{
				{Key: "no_run", Raw: "no_run"},
			},
		},
		{
			name:  "unknown key preserved",
			input: "mystery=42,shiny",
			want: []Directive{
				{Key: "mystery", Raw: "mystery", Value: "42", HasValue: true},
				{Key: "shiny", Raw: "shiny"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got.Directives()); diff != "" {
				t.Errorf("directives mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrorsKeepPartialResult(t *testing.T) {
	tests := []struct {
		input   string
		partial int
	}{
		{`no_std,snippet="oops`, 1},
		{`=value`, 0},
		{`no_std,two words`, 1},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%q: expected *ParseError, got %v", tt.input, err)
			continue
		}
		if got.Len() != tt.partial {
			t.Errorf("%q: expected %d directives before the error, got %d", tt.input, tt.partial, got.Len())
		}
	}
}

func TestAnnotationLookups(t *testing.T) {
	a, err := Parse("mystery,features=zeroize, crypto ,hardware=stm32f4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"zeroize", "crypto"}, a.List(KeyFeatures)); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
	if v, ok := a.Value(KeyHardware); !ok || v != "stm32f4" {
		t.Errorf("expected hardware=stm32f4, got %q (%v)", v, ok)
	}
	if !a.Has("Hardware") {
		t.Errorf("expected lookup to normalize keys")
	}
	if diff := cmp.Diff([]string{"mystery"}, a.Unknown()); diff != "" {
		t.Errorf("unknown mismatch (-want +got):\n%s", diff)
	}
	if a.String() != "mystery,features=zeroize,crypto,hardware=stm32f4" {
		t.Errorf("unexpected canonical form %q", a.String())
	}
}

func TestAlgorithmDirective(t *testing.T) {
	a, err := Parse("crypto,algorithm=AES-256-GCM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := a.Value(KeyAlgorithm); !ok || v != "AES-256-GCM" {
		t.Errorf("expected algorithm=AES-256-GCM, got %q (%v)", v, ok)
	}
	if len(a.Unknown()) != 0 {
		t.Errorf("expected no unknown keys, got %v", a.Unknown())
	}
}

func TestParseRoundTripsCanonicalForm(t *testing.T) {
	inputs := []string{
		"no_std,target=thumbv7em-none-eabihf,features=crypto,hardware",
		`snippet="a, b",deps=heapless@0.8,zeroize@1.7`,
	}
	for _, in := range inputs {
		a, err := Parse(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		b, err := Parse(a.String())
		if err != nil {
			t.Fatalf("%q: reparse error: %v", a.String(), err)
		}
		if diff := cmp.Diff(a.Directives(), b.Directives(), cmp.Comparer(func(x, y Directive) bool {
			return x.Key == y.Key && x.Value == y.Value && x.HasValue == y.HasValue
		})); diff != "" {
			t.Errorf("%q: round trip mismatch (-first +second):\n%s", in, diff)
		}
	}
}
