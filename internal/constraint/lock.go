package constraint

import (
	"fmt"

	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

// Engine bundles the option classifier and size matcher used by the lock
// rules. It holds no per-session state.
type Engine struct {
	classifier Classifier
	sizes      *SizeMatcher
}

// NewEngine builds an engine with a KeywordClassifier over vocab.
func NewEngine(vocab Vocabulary) *Engine {
	sizes := NewSizeMatcher(vocab.SizeKeywords)
	return &Engine{
		classifier: NewKeywordClassifier(vocab, sizes),
		sizes:      sizes,
	}
}

// WithClassifier returns a copy of the engine using c for option kinds.
func (e *Engine) WithClassifier(c Classifier) *Engine {
	cp := *e
	cp.classifier = c
	return &cp
}

// Sizes returns the engine's size matcher.
func (e *Engine) Sizes() *SizeMatcher {
	return e.sizes
}

// Kinds classifies every option of p.
func (e *Engine) Kinds(p *models.Product) []OptionKind {
	out := make([]OptionKind, len(p.Options))
	for i, o := range p.Options {
		out[i] = e.classifier.Classify(o.Name, o.Values)
	}
	return out
}

// SizeDimension returns the index of the first size-like option of p, or -1.
func (e *Engine) SizeDimension(p *models.Product) int {
	for i, o := range p.Options {
		if e.classifier.Classify(o.Name, o.Values) == KindSize {
			return i
		}
	}
	return -1
}

// DetectLock finds the first dimension of the main product whose name denotes
// a size or whose selected value looks like one, and returns that value.
func (e *Engine) DetectLock(p *models.Product, selected []string) (dim int, value string, ok bool) {
	for i, o := range p.Options {
		if i >= len(selected) || selected[i] == "" {
			continue
		}
		if e.classifier.Classify(o.Name, []string{selected[i]}) == KindSize {
			return i, selected[i], true
		}
	}
	return -1, "", false
}

// LockResult describes how a locked size applies to one product.
type LockResult struct {
	// Dim is the product's size dimension, -1 when it has none.
	Dim int
	// Allowed lists the values equivalent to the lock in declared order.
	Allowed []string
	// Variant is the variant to select for the slot.
	Variant *models.Variant
	// Satisfied is false when no available variant matches the lock.
	Satisfied bool
	Match     MatchKind
}

// Applicable reports whether the lock constrains the product at all.
func (r LockResult) Applicable() bool {
	return r.Dim >= 0
}

// Restriction returns the selectable-value restriction for the product, or
// nil when the lock does not apply or cannot be satisfied.
func (r LockResult) Restriction() Restriction {
	if !r.Applicable() || !r.Satisfied {
		return nil
	}
	allowed := make(map[string]bool, len(r.Allowed))
	for _, v := range r.Allowed {
		allowed[v] = true
	}
	return Restriction{r.Dim: allowed}
}

// ApplyLock resolves the variant of p that honors lock. Among equivalent
// values the first in declared order with an available variant wins; within
// that value the variant agreeing most with preferred is chosen. When nothing
// matches, the first available variant is returned along with an error
// wrapping utils.ErrConstraintUnsatisfiable.
func (e *Engine) ApplyLock(p *models.Product, lock string, preferred []string) (LockResult, error) {
	dim := e.SizeDimension(p)
	res := LockResult{Dim: dim}
	if dim < 0 || lock == "" {
		res.Dim = -1
		res.Satisfied = true
		res.Variant = ResolveVariant(p, preferred, -1, nil)
		return res, nil
	}

	for _, val := range p.Options[dim].Values {
		kind := e.sizes.Equivalent(lock, val)
		if kind == MatchNone {
			continue
		}
		res.Allowed = append(res.Allowed, val)
		if res.Variant != nil {
			continue
		}
		checked := withValue(preferred, len(p.Options), dim, val)
		if v := resolve(p, checked, dim, nil); v != nil {
			res.Variant = v
			res.Match = kind
		}
	}

	if res.Variant != nil {
		res.Satisfied = true
		return res, nil
	}
	res.Variant = p.FirstAvailable()
	return res, fmt.Errorf("%w: product %q has no available %q matching %q",
		utils.ErrConstraintUnsatisfiable, p.Handle, p.Options[dim].Name, lock)
}

func withValue(base []string, n, dim int, value string) []string {
	out := make([]string, n)
	copy(out, base)
	out[dim] = value
	return out
}
