package bundle

import "github.com/GTDGit/gtd_bundle/internal/models"

// EventKind names a shopper action.
type EventKind string

const (
	// EventSelectOption checks Value for the option named Option on the
	// active slot.
	EventSelectOption EventKind = "select_option"
	// EventSelectVariant checks every option of VariantID at once.
	EventSelectVariant EventKind = "select_variant"
	// EventNext confirms the active slot and moves forward.
	EventNext EventKind = "next"
	// EventBack moves to the previous slot.
	EventBack EventKind = "back"
	// EventSkip jumps to the summary. From an add-on slot the slot is left
	// unrecorded.
	EventSkip EventKind = "skip"
	// EventEdit jumps from the summary to Slot.
	EventEdit EventKind = "edit"
	// EventSetQuantity sets the bundle quantity to Quantity.
	EventSetQuantity EventKind = "set_quantity"
	// EventRetry re-runs the action that left an inline error.
	EventRetry EventKind = "retry"
)

// Guard pins an event to the position it was issued from. An event whose
// guard no longer matches is discarded as stale.
type Guard struct {
	Step models.Step `json:"step"`
	Slot int         `json:"slot"`
}

// Event is a typed shopper action consumed by Controller.Dispatch.
type Event struct {
	Kind      EventKind `json:"type"`
	Option    string    `json:"option,omitempty"`
	Value     string    `json:"value,omitempty"`
	VariantID int64     `json:"variantId,omitempty"`
	Slot      int       `json:"slot,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Guard     *Guard    `json:"guard,omitempty"`
}
