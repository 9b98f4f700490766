package classify

import (
	"strings"

	"fencecheck/internal/annotation"
	"fencecheck/internal/fragment"
)

// DefaultFreestandingTarget is used for no_std fragments without target=.
const DefaultFreestandingTarget = "thumbv7em-none-eabihf"

// DefaultTopic names the domain picked by a bare crypto directive.
const DefaultTopic = "crypto"

// Classifier maps a fragment to its ExecutionContext. The zero value
// uses DefaultFreestandingTarget and the Heuristics table.
type Classifier struct {
	DefaultTarget string
	Heuristics    []Heuristic
}

// Classify runs the default classifier.
func Classify(frag fragment.CodeFragment, ann annotation.Annotation) ExecutionContext {
	var c Classifier
	return c.Classify(frag, ann)
}

// Classify never fails: directives win, then the unterminated-fence check,
// then heuristics in table order, then Hosted.
func (c *Classifier) Classify(frag fragment.CodeFragment, ann annotation.Annotation) ExecutionContext {
	feats := NewFeatureSet(ann.List(annotation.KeyFeatures)...)

	if ctx, ok := c.fromDirectives(ann, feats); ok {
		return ctx
	}
	if frag.Unterminated {
		return Snippet{Reason: "unterminated code fence"}
	}

	in := Input{Body: frag.RawText, Features: feats, DefaultTarget: c.defaultTarget()}
	heuristics := c.Heuristics
	if heuristics == nil {
		heuristics = Heuristics
	}
	for _, h := range heuristics {
		if ctx, ok := h.Match(in); ok {
			return ctx
		}
	}
	return Hosted{FeatureSet: feats}
}

func (c *Classifier) defaultTarget() string {
	if c.DefaultTarget != "" {
		return c.DefaultTarget
	}
	return DefaultFreestandingTarget
}

// fromDirectives applies explicit directives, highest precedence first:
// snippet, ignore/no_compile, hardware, no_std/target, crypto/topic, std.
func (c *Classifier) fromDirectives(ann annotation.Annotation, feats FeatureSet) (ExecutionContext, bool) {
	if ann.Has(annotation.KeySnippet) {
		reason, _ := ann.Value(annotation.KeySnippet)
		if strings.TrimSpace(reason) == "" {
			reason = "marked as snippet"
		}
		return Snippet{Reason: reason}, true
	}
	if ann.Has(annotation.KeyIgnore) {
		return Snippet{Reason: "marked ignore"}, true
	}
	if ann.Has(annotation.KeyNoCompile) {
		return Snippet{Reason: "marked no_compile"}, true
	}
	if platforms := ann.List(annotation.KeyHardware); len(platforms) > 0 {
		return HardwareGated{
			Platform:   strings.ToLower(platforms[0]),
			FeatureSet: feats.With("hardware"),
		}, true
	}
	target, hasTarget := ann.Value(annotation.KeyTarget)
	target = strings.TrimSpace(target)
	if ann.Has(annotation.KeyNoStd) || (hasTarget && IsBareMetalTriple(target)) {
		if target == "" {
			target = c.defaultTarget()
		}
		return Freestanding{Target: target, FeatureSet: feats}, true
	}
	if topic, ok := topicDirective(ann); ok {
		return DomainFocused{Topic: topic, FeatureSet: feats.With(topic)}, true
	}
	if ann.Has(annotation.KeyStd) {
		return Hosted{FeatureSet: feats}, true
	}
	return nil, false
}

func topicDirective(ann annotation.Annotation) (string, bool) {
	// crypto=<algorithm> and algorithm=<name> only document the algorithm;
	// the topic stays crypto
	if ann.Has(annotation.KeyCrypto) || ann.Has(annotation.KeyAlgorithm) {
		return DefaultTopic, true
	}
	if v, ok := ann.Value(annotation.KeyTopic); ok && strings.TrimSpace(v) != "" {
		return strings.ToLower(strings.TrimSpace(v)), true
	}
	return "", false
}

// IsBareMetalTriple reports whether a target triple has no OS component.
func IsBareMetalTriple(triple string) bool {
	return strings.Contains(triple, "-none")
}
