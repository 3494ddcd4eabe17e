package sse

import (
	"time"

	"github.com/GTDGit/gtd_bundle/internal/models"
)

// CheckoutNotifier is the interface services use to emit checkout events.
type CheckoutNotifier interface {
	NotifyCheckout(row *models.BundleCheckout)
}

// HubNotifier implements CheckoutNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifyCheckout(row *models.BundleCheckout) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(checkoutToEvent(row, n.now()))
}

func checkoutToEvent(row *models.BundleCheckout, at time.Time) *CheckoutEvent {
	event := EventCheckoutAdded
	if row.Status == models.CheckoutStatusFailed {
		event = EventCheckoutFailed
	}
	return &CheckoutEvent{
		Event:               event,
		GroupID:             row.GroupID,
		SessionID:           row.SessionID,
		BundleTitle:         row.BundleTitle,
		BundleQuantity:      row.BundleQuantity,
		FinalPrice:          row.FinalPrice,
		SupplementalPercent: row.SupplementalPercent,
		VoucherCode:         row.VoucherCode,
		DiscountApplied:     row.DiscountApplied,
		FailedReason:        row.FailedReason,
		Timestamp:           at,
	}
}
