package constraint

import "github.com/GTDGit/gtd_bundle/internal/models"

// ValueState is one option value as presented to the shopper.
type ValueState struct {
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
	Checked bool   `json:"checked"`
}

// OptionState is one option dimension with the state of each of its values.
type OptionState struct {
	Name   string       `json:"name"`
	Kind   OptionKind   `json:"kind,omitempty"`
	Locked bool         `json:"locked,omitempty"`
	Values []ValueState `json:"values"`
}

// Restriction limits the selectable values of a dimension. A nil entry for a
// dimension means unrestricted.
type Restriction map[int]map[string]bool

func (r Restriction) allows(dim int, value string) bool {
	allowed, ok := r[dim]
	if !ok || allowed == nil {
		return true
	}
	return allowed[value]
}

// Admits reports whether every restricted dimension of v holds an allowed value.
func (r Restriction) Admits(v *models.Variant) bool {
	for dim := range r {
		if dim < len(v.Options) && !r.allows(dim, v.Options[dim]) {
			return false
		}
	}
	return true
}

// Availability computes, for every dimension d, which values of d appear in
// at least one available variant consistent with the checked values of all
// other dimensions. Values outside restrict are disabled as well. The checked
// value of each dimension is always reported enabled.
func Availability(p *models.Product, checked []string, restrict Restriction) []OptionState {
	out := make([]OptionState, len(p.Options))
	for d, opt := range p.Options {
		state := OptionState{Name: opt.Name, Values: make([]ValueState, len(opt.Values))}
		for i, val := range opt.Values {
			isChecked := d < len(checked) && checked[d] == val
			enabled := isChecked || (restrict.allows(d, val) && selectable(p, checked, d, val))
			state.Values[i] = ValueState{Value: val, Enabled: enabled, Checked: isChecked}
		}
		out[d] = state
	}
	return out
}

// selectable reports whether an available variant has value at dim and agrees
// with every other checked dimension.
func selectable(p *models.Product, checked []string, dim int, value string) bool {
	for i := range p.Variants {
		v := &p.Variants[i]
		if !v.Available || dim >= len(v.Options) || v.Options[dim] != value {
			continue
		}
		if agreesExcept(v, checked, dim) {
			return true
		}
	}
	return false
}

func agreesExcept(v *models.Variant, checked []string, skip int) bool {
	for e, c := range checked {
		if e == skip || c == "" {
			continue
		}
		if e >= len(v.Options) || v.Options[e] != c {
			return false
		}
	}
	return true
}

// ResolveVariant returns the variant for the checked values. Preference order:
// the exact available match; the available variant that keeps the changed
// dimension's value and agrees with the most other dimensions; the first
// available variant. Candidates must satisfy restrict when any can.
// changed is -1 when no dimension was just changed.
func ResolveVariant(p *models.Product, checked []string, changed int, restrict Restriction) *models.Variant {
	if v := resolve(p, checked, changed, restrict); v != nil {
		return v
	}
	if len(restrict) > 0 {
		if v := resolve(p, checked, changed, nil); v != nil {
			return v
		}
	}
	return p.FirstAvailable()
}

func resolve(p *models.Product, checked []string, changed int, restrict Restriction) *models.Variant {
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.Available && restrict.Admits(v) && agreesExcept(v, checked, -1) && len(checked) == len(v.Options) {
			return v
		}
	}

	var best *models.Variant
	bestScore := -1
	for i := range p.Variants {
		v := &p.Variants[i]
		if !v.Available || !restrict.Admits(v) {
			continue
		}
		if changed >= 0 && changed < len(checked) && (changed >= len(v.Options) || v.Options[changed] != checked[changed]) {
			continue
		}
		score := 0
		for e, c := range checked {
			if e < len(v.Options) && v.Options[e] == c {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = v, score
		}
	}
	return best
}
