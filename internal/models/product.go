package models

// Option is one option dimension of a product (e.g. "Size") with its values
// in the order the storefront declares them.
type Option struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Variant is a purchasable combination of option values.
// Prices are integer minor-currency units.
type Variant struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Options        []string `json:"options"`
	Price          int64    `json:"price"`
	CompareAtPrice *int64   `json:"compareAtPrice,omitempty"`
	Available      bool     `json:"available"`
	FeaturedImage  string   `json:"featuredImage,omitempty"`
}

// OriginalPrice returns the pre-discount price. A missing compare-at price,
// or one below the selling price, falls back to the selling price.
func (v *Variant) OriginalPrice() int64 {
	if v.CompareAtPrice == nil || *v.CompareAtPrice < v.Price {
		return v.Price
	}
	return *v.CompareAtPrice
}

// Product represents a catalog product as normalized from the storefront.
// Products are immutable once cached.
type Product struct {
	ID       int64     `json:"id"`
	Handle   string    `json:"handle"`
	Title    string    `json:"title"`
	Options  []Option  `json:"options"`
	Variants []Variant `json:"variants"`
}

// VariantByID returns the variant with the given id, or nil.
func (p *Product) VariantByID(id int64) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// FirstAvailable returns the first available variant in declaration order.
// When nothing is available the first variant is returned; nil only for a
// product without variants.
func (p *Product) FirstAvailable() *Variant {
	for i := range p.Variants {
		if p.Variants[i].Available {
			return &p.Variants[i]
		}
	}
	if len(p.Variants) > 0 {
		return &p.Variants[0]
	}
	return nil
}

// OptionIndex returns the index of the option with the given name, or -1.
func (p *Product) OptionIndex(name string) int {
	for i, o := range p.Options {
		if o.Name == name {
			return i
		}
	}
	return -1
}
