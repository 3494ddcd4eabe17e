package models

import (
	"encoding/json"
	"time"
)

// CheckoutStatus enumerates checkout outcomes stored in the audit log.
type CheckoutStatus string

const (
	CheckoutStatusAdded  CheckoutStatus = "added"
	CheckoutStatusFailed CheckoutStatus = "failed"
)

// BundleCheckout is the audit record of one bundle submission.
// Fields are tagged for both DB scanning and JSON serialization.
type BundleCheckout struct {
	ID                  int             `db:"id" json:"id"`
	GroupID             string          `db:"group_id" json:"groupId"`
	SessionID           string          `db:"session_id" json:"sessionId"`
	BundleTitle         string          `db:"bundle_title" json:"bundleTitle"`
	Status              CheckoutStatus  `db:"status" json:"status"`
	Lines               json.RawMessage `db:"lines" json:"lines"`
	BundleQuantity      int             `db:"bundle_quantity" json:"bundleQuantity"`
	TotalOriginal       int64           `db:"total_original" json:"totalOriginal"`
	FinalPrice          int64           `db:"final_price" json:"finalPrice"`
	SupplementalPercent int64           `db:"supplemental_percent" json:"supplementalPercent"`
	VoucherCode         *string         `db:"voucher_code" json:"voucherCode,omitempty"`
	DiscountApplied     bool            `db:"discount_applied" json:"discountApplied"`
	FailedReason        *string         `db:"failed_reason" json:"failedReason,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
}
