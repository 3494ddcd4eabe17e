package models

// Step enumerates the configurator steps.
type Step string

const (
	StepMainVariant Step = "main_variant"
	StepAddOnConfig Step = "addon_config"
	StepSummary     Step = "summary"
)

// SelectionRecord is the confirmed choice for one bundle slot.
// Slot 0 is the main product, slots 1..N are add-ons.
type SelectionRecord struct {
	Slot           int      `json:"slot"`
	ProductID      int64    `json:"productId"`
	ProductHandle  string   `json:"productHandle"`
	ProductTitle   string   `json:"productTitle"`
	VariantID      int64    `json:"variantId"`
	VariantTitle   string   `json:"variantTitle"`
	Options        []string `json:"options"`
	Price          int64    `json:"price"`
	CompareAtPrice int64    `json:"compareAtPrice"`
	Quantity       int      `json:"quantity"`
}

// Confirmed reports whether the record holds a chosen variant.
func (r *SelectionRecord) Confirmed() bool {
	return r != nil && r.VariantID != 0
}

// BundleState is the authoritative configurator state for one session.
type BundleState struct {
	CurrentStep       Step               `json:"currentStep"`
	CurrentSlotIndex  int                `json:"currentSlotIndex"`
	BundleQuantity    int                `json:"bundleQuantity"`
	LockedOptionValue string             `json:"lockedOptionValue,omitempty"`
	Selections        []*SelectionRecord `json:"selections"`

	// Checked holds the option values currently checked per slot.
	Checked [][]string `json:"checked"`
}

// NewBundleState returns the initial state for a bundle with the given
// number of slots (main + add-ons).
func NewBundleState(slots int) *BundleState {
	return &BundleState{
		CurrentStep:    StepMainVariant,
		BundleQuantity: 1,
		Selections:     make([]*SelectionRecord, slots),
		Checked:        make([][]string, slots),
	}
}

// ActiveSlot returns the selection slot the shopper is looking at.
func (s *BundleState) ActiveSlot() int {
	switch s.CurrentStep {
	case StepAddOnConfig:
		return s.CurrentSlotIndex + 1
	default:
		return 0
	}
}

// ConfirmedSelections returns the records that hold a chosen variant, in slot
// order.
func (s *BundleState) ConfirmedSelections() []SelectionRecord {
	out := make([]SelectionRecord, 0, len(s.Selections))
	for _, r := range s.Selections {
		if r.Confirmed() {
			out = append(out, *r)
		}
	}
	return out
}

// HasAddOnSelection reports whether any add-on slot has a recorded variant.
func (s *BundleState) HasAddOnSelection() bool {
	for i := 1; i < len(s.Selections); i++ {
		if s.Selections[i].Confirmed() {
			return true
		}
	}
	return false
}
