package storefront

import (
	"encoding/json"
	"fmt"
)

// Product is a product payload normalized from /products/{handle}.js or the
// .json variant of the same endpoint.
type Product struct {
	ID       int64
	Handle   string
	Title    string
	Options  []ProductOption
	Variants []ProductVariant
}

// ProductOption is one option dimension with its values in declared order.
type ProductOption struct {
	Name   string
	Values []string
}

// ProductVariant carries prices in minor units.
type ProductVariant struct {
	ID             int64
	Title          string
	Options        []string
	Price          int64
	CompareAtPrice *int64
	Available      bool
	FeaturedImage  string
}

// Cart represents the /cart.js payload.
type Cart struct {
	Token              string         `json:"token"`
	ItemCount          int            `json:"item_count"`
	TotalPrice         int64          `json:"total_price"`
	OriginalTotalPrice int64          `json:"original_total_price"`
	TotalDiscount      int64          `json:"total_discount"`
	Currency           string         `json:"currency"`
	Items              []CartItem     `json:"items"`
	DiscountCodes      []DiscountCode `json:"discount_codes"`
}

// CartItem is one line of the cart.
type CartItem struct {
	Key        string                 `json:"key"`
	VariantID  int64                  `json:"variant_id"`
	Quantity   int                    `json:"quantity"`
	Title      string                 `json:"title"`
	Price      int64                  `json:"price"`
	LinePrice  int64                  `json:"line_price"`
	Properties map[string]interface{} `json:"properties"`
}

// DiscountCode reports whether a code entered on the cart applies to it.
type DiscountCode struct {
	Code       string `json:"code"`
	Applicable bool   `json:"applicable"`
}

// AddResponse is the /cart/add.js payload.
type AddResponse struct {
	Items []CartItem `json:"items"`

	// Token is the cart cookie issued with the response, if any.
	Token string `json:"-"`
}

// APIError is the storefront's error payload, e.g.
// {"status":422,"message":"Cart Error","description":"All 1 Queen are in your cart."}.
type APIError struct {
	Status      int    `json:"-"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("storefront status %d: %s: %s", e.Status, e.Message, e.Description)
	}
	return fmt.Sprintf("storefront status %d: %s", e.Status, e.Message)
}

// parseAPIError decodes an error payload. Bodies that are not JSON keep the
// HTTP status text as the message.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = statusText(status)
	}
	apiErr.Status = status
	return apiErr
}
