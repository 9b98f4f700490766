package annotation

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Directive keys understood by the classifier and resolver.
const (
	KeyNoStd       = "no_std"
	KeyStd         = "std"
	KeySnippet     = "snippet"
	KeyIgnore      = "ignore"
	KeyNoRun       = "no_run"
	KeyNoCompile   = "no_compile"
	KeyCompileFail = "compile_fail"
	KeyShouldPanic = "should_panic"
	KeyTestHarness = "test_harness"
	KeyCrypto      = "crypto"
	KeyAlgorithm   = "algorithm"
	KeyTopic       = "topic"
	KeyTarget      = "target"
	KeyHardware    = "hardware"
	KeyFeatures    = "features"
	KeyDeps        = "deps"
	KeyEdition     = "edition"
)

type keyKind uint8

const (
	keyBare keyKind = iota + 1
	keyValued
	keyList
	keyEither
)

var knownKeys = map[string]keyKind{
	KeyNoStd:       keyBare,
	KeyStd:         keyBare,
	KeySnippet:     keyEither,
	KeyIgnore:      keyBare,
	KeyNoRun:       keyBare,
	KeyNoCompile:   keyBare,
	KeyCompileFail: keyBare,
	KeyShouldPanic: keyBare,
	KeyTestHarness: keyBare,
	KeyCrypto:      keyEither,
	KeyAlgorithm:   keyValued,
	KeyTopic:       keyValued,
	KeyTarget:      keyValued,
	KeyHardware:    keyList,
	KeyFeatures:    keyList,
	KeyDeps:        keyList,
	KeyEdition:     keyValued,
	"edition2015":  keyBare,
	"edition2018":  keyBare,
	"edition2021":  keyBare,
	"edition2024":  keyBare,
}

var keyAliases = map[string]string{
	"no-std":       KeyNoStd,
	"nostd":        KeyNoStd,
	"no-run":       KeyNoRun,
	"no-compile":   KeyNoCompile,
	"compile-fail": KeyCompileFail,
	"should-panic": KeyShouldPanic,
	"feature":      KeyFeatures,
	"dep":          KeyDeps,
}

// IsKnown reports whether key (in any accepted spelling) is recognized.
func IsKnown(key string) bool {
	_, ok := knownKeys[normalizeKey(key)]
	return ok
}

func isListKey(key string) bool {
	return knownKeys[key] == keyList
}

// stopsList reports whether a bare item ends a list value instead of joining it.
// Flags that change how a fragment is built never read as list items;
// "crypto" and "hardware" are feature names as often as they are directives.
func stopsList(key string) bool {
	switch knownKeys[key] {
	case keyBare:
		return true
	case keyEither:
		return key == KeySnippet
	}
	return false
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(norm.NFC.String(key)))
	if alias, ok := keyAliases[key]; ok {
		return alias
	}
	return key
}
