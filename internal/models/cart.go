package models

import "time"

// Line item property keys written on every bundle line. Keys prefixed with an
// underscore are hidden from the shopper by storefront themes.
const (
	PropBundleGroupID = "_bundle_group_id"
	PropBundleTitle   = "_bundle_title"
	PropSlotProduct   = "_slot_product"
	PropSlotVariant   = "_slot_variant"
	PropVoucher       = "_voucher"
)

// CartLine is one line submitted to the cart collaborator.
type CartLine struct {
	VariantID  int64             `json:"variantId"`
	Quantity   int               `json:"quantity"`
	Properties map[string]string `json:"properties"`
}

// CartItem is a line as reported back by the cart.
type CartItem struct {
	Key        string            `json:"key"`
	VariantID  int64             `json:"variantId"`
	Quantity   int               `json:"quantity"`
	Title      string            `json:"title"`
	Price      int64             `json:"price"`
	LinePrice  int64             `json:"linePrice"`
	Properties map[string]string `json:"properties,omitempty"`
}

// CartSnapshot is the cart state returned after a mutation or read.
type CartSnapshot struct {
	Token         string     `json:"token"`
	ItemCount     int        `json:"itemCount"`
	TotalPrice    int64      `json:"totalPrice"`
	OriginalTotal int64      `json:"originalTotal"`
	TotalDiscount int64      `json:"totalDiscount"`
	Currency      string     `json:"currency"`
	DiscountCodes []string   `json:"discountCodes,omitempty"`
	Items         []CartItem `json:"items"`
	RetrievedAt   time.Time  `json:"retrievedAt"`
}

// ItemsInGroup returns the cart items tagged with the given bundle group id.
func (c *CartSnapshot) ItemsInGroup(groupID string) []CartItem {
	var out []CartItem
	for _, it := range c.Items {
		if it.Properties[PropBundleGroupID] == groupID {
			out = append(out, it)
		}
	}
	return out
}
