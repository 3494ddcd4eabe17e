package storefront

// LineItem is one line submitted to /cart/add.js.
type LineItem struct {
	ID         int64             `json:"id"`
	Quantity   int               `json:"quantity"`
	Properties map[string]string `json:"properties,omitempty"`
}

// AddRequest is the batch payload for /cart/add.js. The storefront adds all
// items or none.
type AddRequest struct {
	Items []LineItem `json:"items"`
}

// UpdateRequest is the payload for /cart/update.js.
type UpdateRequest struct {
	Discount string `json:"discount"`
}

// ChangeRequest is the payload for /cart/change.js. ID is the line key.
type ChangeRequest struct {
	ID         string            `json:"id"`
	Quantity   int               `json:"quantity"`
	Properties map[string]string `json:"properties,omitempty"`
}
