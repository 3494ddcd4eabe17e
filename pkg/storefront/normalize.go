package storefront

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrMalformedProduct is returned when a product payload cannot be normalized.
var ErrMalformedProduct = errors.New("malformed product payload")

// ParseProduct normalizes a product payload. Both storefront shapes are
// accepted: the .js form (options as strings or objects, variant "options"
// arrays, integer minor-unit prices, "available") and the .json form wrapped
// in "product" (option1..option3, decimal string prices, no availability).
func ParseProduct(body []byte) (*Product, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedProduct)
	}
	root := gjson.ParseBytes(body)
	if wrapped := root.Get("product"); wrapped.IsObject() {
		root = wrapped
	}
	if !root.IsObject() || !root.Get("variants").IsArray() {
		return nil, fmt.Errorf("%w: missing variants", ErrMalformedProduct)
	}

	p := &Product{
		ID:     root.Get("id").Int(),
		Handle: root.Get("handle").String(),
		Title:  root.Get("title").String(),
	}

	for _, o := range root.Get("options").Array() {
		if o.IsObject() {
			opt := ProductOption{Name: o.Get("name").String()}
			for _, v := range o.Get("values").Array() {
				opt.Values = append(opt.Values, v.String())
			}
			p.Options = append(p.Options, opt)
			continue
		}
		p.Options = append(p.Options, ProductOption{Name: o.String()})
	}

	for i, v := range root.Get("variants").Array() {
		variant, err := parseVariant(v, len(p.Options))
		if err != nil {
			return nil, fmt.Errorf("%w: variant %d: %v", ErrMalformedProduct, i, err)
		}
		p.Variants = append(p.Variants, variant)
	}

	// Options given as bare names take their values from the variants in
	// first-seen order.
	for d := range p.Options {
		if len(p.Options[d].Values) > 0 {
			continue
		}
		seen := make(map[string]bool)
		for _, v := range p.Variants {
			if d < len(v.Options) && !seen[v.Options[d]] {
				seen[v.Options[d]] = true
				p.Options[d].Values = append(p.Options[d].Values, v.Options[d])
			}
		}
	}
	return p, nil
}

func parseVariant(v gjson.Result, optionCount int) (ProductVariant, error) {
	out := ProductVariant{
		ID:        v.Get("id").Int(),
		Title:     v.Get("title").String(),
		Available: true,
	}
	if out.ID == 0 {
		return out, errors.New("missing id")
	}
	if a := v.Get("available"); a.Exists() {
		out.Available = a.Bool()
	}

	if opts := v.Get("options"); opts.IsArray() {
		for _, o := range opts.Array() {
			out.Options = append(out.Options, o.String())
		}
	} else {
		for i := 1; i <= optionCount && i <= 3; i++ {
			if o := v.Get(fmt.Sprintf("option%d", i)); o.Exists() && o.Type != gjson.Null {
				out.Options = append(out.Options, o.String())
			}
		}
	}

	price, ok, err := minorUnits(v.Get("price"))
	if err != nil {
		return out, fmt.Errorf("price: %w", err)
	}
	if !ok {
		return out, errors.New("missing price")
	}
	out.Price = price

	compare, ok, err := minorUnits(v.Get("compare_at_price"))
	if err != nil {
		return out, fmt.Errorf("compare_at_price: %w", err)
	}
	if ok {
		out.CompareAtPrice = &compare
	}

	img := v.Get("featured_image")
	switch {
	case img.IsObject():
		out.FeaturedImage = img.Get("src").String()
	case img.Type == gjson.String:
		out.FeaturedImage = img.String()
	}
	return out, nil
}

// minorUnits reads a price. Numbers are already minor units; strings are
// decimal major units ("2600.00") and are scaled by 100.
func minorUnits(r gjson.Result) (int64, bool, error) {
	switch r.Type {
	case gjson.Number:
		return r.Int(), true, nil
	case gjson.String:
		s := strings.TrimSpace(r.String())
		if s == "" {
			return 0, false, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, false, err
		}
		return d.Shift(2).Round(0).IntPart(), true, nil
	default:
		return 0, false, nil
	}
}
