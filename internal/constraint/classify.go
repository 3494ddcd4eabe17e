// Package constraint computes which option values a shopper may select and
// how a size chosen on the main product constrains the add-on products.
package constraint

import "strings"

// OptionKind is the semantic kind of an option dimension.
type OptionKind string

const (
	KindSize  OptionKind = "size"
	KindColor OptionKind = "color"
	KindOther OptionKind = "other"
)

// Classifier decides what an option dimension represents.
type Classifier interface {
	Classify(name string, values []string) OptionKind
}

// Vocabulary is the keyword data driving classification and size matching.
type Vocabulary struct {
	SizeKeywords     []string
	SizeOptionNames  []string
	ColorOptionNames []string
	ColorKeywords    []string
}

// KeywordClassifier classifies options by matching names and values against
// a Vocabulary.
type KeywordClassifier struct {
	sizeNames  []string
	colorNames []string
	colors     *keywordSet
	sizes      *SizeMatcher
}

// NewKeywordClassifier builds a classifier from vocab.
func NewKeywordClassifier(vocab Vocabulary, sizes *SizeMatcher) *KeywordClassifier {
	return &KeywordClassifier{
		sizeNames:  normalizeAll(vocab.SizeOptionNames),
		colorNames: normalizeAll(vocab.ColorOptionNames),
		colors:     newKeywordSet(vocab.ColorKeywords),
		sizes:      sizes,
	}
}

// Classify returns KindSize when the option name denotes a size or any value
// looks like a size, KindColor on the same rules for colors, else KindOther.
// Name matches win over value matches.
func (k *KeywordClassifier) Classify(name string, values []string) OptionKind {
	n := normalize(name)
	if containsAny(n, k.sizeNames) {
		return KindSize
	}
	if containsAny(n, k.colorNames) {
		return KindColor
	}
	for _, v := range values {
		if k.sizes.IsSizeValue(v) {
			return KindSize
		}
	}
	for _, v := range values {
		if len(k.colors.find(v)) > 0 {
			return KindColor
		}
	}
	return KindOther
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
