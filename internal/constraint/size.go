package constraint

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MatchKind records which rule made two size values equivalent.
type MatchKind string

const (
	MatchNone       MatchKind = ""
	MatchExact      MatchKind = "exact"
	MatchDimensions MatchKind = "dimensions"
	MatchKeyword    MatchKind = "keyword"
)

var dimensionPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*[xX×*]\s*(\d+(?:[.,]\d+)?)`)

// Dimensions is a parsed "<W> x <H>" size.
type Dimensions struct {
	Width  decimal.Decimal
	Height decimal.Decimal
}

// Equal reports whether both width and height match.
func (d Dimensions) Equal(o Dimensions) bool {
	return d.Width.Equal(o.Width) && d.Height.Equal(o.Height)
}

// ParseDimensions extracts the first "<W> x <H>" pattern from s.
// A decimal comma is accepted ("1,6 x 2").
func ParseDimensions(s string) (Dimensions, bool) {
	m := dimensionPattern.FindStringSubmatch(s)
	if m == nil {
		return Dimensions{}, false
	}
	w, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return Dimensions{}, false
	}
	h, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", "."))
	if err != nil {
		return Dimensions{}, false
	}
	return Dimensions{Width: w, Height: h}, true
}

// SizeMatcher decides whether two option values denote the same size.
type SizeMatcher struct {
	keywords *keywordSet
}

// NewSizeMatcher builds a matcher over the given size keyword vocabulary.
func NewSizeMatcher(keywords []string) *SizeMatcher {
	return &SizeMatcher{keywords: newKeywordSet(keywords)}
}

// IsSizeValue reports whether v contains a size keyword or a W x H pattern.
func (m *SizeMatcher) IsSizeValue(v string) bool {
	if _, ok := ParseDimensions(v); ok {
		return true
	}
	return len(m.keywords.find(v)) > 0
}

// Keywords returns the size keywords found in v, longest match first.
func (m *SizeMatcher) Keywords(v string) []string {
	return m.keywords.find(v)
}

// Equivalent applies the matching rules in order: exact (case-insensitive),
// then dimensions, then a shared keyword. When both values carry dimensions
// the dimension comparison is final.
func (m *SizeMatcher) Equivalent(a, b string) MatchKind {
	if normalize(a) == normalize(b) {
		return MatchExact
	}
	da, okA := ParseDimensions(a)
	db, okB := ParseDimensions(b)
	if okA && okB {
		if da.Equal(db) {
			return MatchDimensions
		}
		return MatchNone
	}
	ka := m.keywords.find(a)
	if len(ka) == 0 {
		return MatchNone
	}
	kb := m.keywords.find(b)
	for _, x := range ka {
		for _, y := range kb {
			if x == y {
				return MatchKeyword
			}
		}
	}
	return MatchNone
}

// keywordSet finds whole-word keywords in text. Longer keywords are matched
// first and masked, so "super king" does not also count as "king".
type keywordSet struct {
	words    []string
	patterns []*regexp.Regexp
}

func newKeywordSet(words []string) *keywordSet {
	ws := normalizeAll(words)
	sort.SliceStable(ws, func(i, j int) bool { return len(ws[i]) > len(ws[j]) })
	ks := &keywordSet{words: ws, patterns: make([]*regexp.Regexp, len(ws))}
	for i, w := range ws {
		ks.patterns[i] = regexp.MustCompile(`(?:^|[^\pL\pN])(` + regexp.QuoteMeta(w) + `)(?:$|[^\pL\pN])`)
	}
	return ks
}

func (k *keywordSet) find(text string) []string {
	s := strings.ToLower(text)
	var found []string
	for i, re := range k.patterns {
		hit := false
		for {
			loc := re.FindStringSubmatchIndex(s)
			if loc == nil {
				break
			}
			hit = true
			s = s[:loc[2]] + strings.Repeat(" ", loc[3]-loc[2]) + s[loc[3]:]
		}
		if hit {
			found = append(found, k.words[i])
		}
	}
	return found
}
