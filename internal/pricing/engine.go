// Package pricing computes the two-tier bundle discount.
//
// The first tier is each variant's own markdown (compare-at price vs price).
// The second tier is a whole-percent supplemental discount chosen so that the
// compounded price lands as close as possible to the configured target
// discount off the original total.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/utils"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Line is one priced slot.
type Line struct {
	Price          int64
	CompareAtPrice int64
	Quantity       int
}

// original returns the pre-discount unit price, never below Price.
func (l Line) original() int64 {
	if l.CompareAtPrice < l.Price {
		return l.Price
	}
	return l.CompareAtPrice
}

// Input is everything the engine needs.
type Input struct {
	Lines                 []Line
	BundleQuantity        int
	TargetDiscountPercent decimal.Decimal
}

// Quote is the priced bundle. Amounts are in minor currency units and kept
// exact; use Minor to round for display.
//
// SupplementalRounded is the rounded exact percent as computed. The percent
// actually applied, SupplementalDiscountPct, is that value clamped to 0..100,
// since a discount code cannot carry anything else. When the markdown already
// beats the target the two differ and the final price is the marked-down
// total rather than a price raised back up to the target.
type Quote struct {
	TotalOriginalPerBundle  decimal.Decimal `json:"totalOriginalPerBundle"`
	TotalAfterFirstDiscount decimal.Decimal `json:"totalAfterFirstDiscount"`
	IdealTargetPrice        decimal.Decimal `json:"idealTargetPrice"`
	SupplementalExact       decimal.Decimal `json:"supplementalExact"`
	FinalPricePerBundle     decimal.Decimal `json:"finalPricePerBundle"`
	TotalOriginalDisplayed  decimal.Decimal `json:"totalOriginalDisplayed"`
	FinalPriceDisplayed     decimal.Decimal `json:"finalPriceDisplayed"`
	Savings                 decimal.Decimal `json:"savings"`
	SupplementalRounded     int64           `json:"supplementalRounded"`
	SupplementalDiscountPct int64           `json:"supplementalDiscountPercent"`
	BundleQuantity          int             `json:"bundleQuantity"`
}

// LinesFromSelections converts confirmed selection records into pricing lines.
func LinesFromSelections(records []models.SelectionRecord) []Line {
	out := make([]Line, 0, len(records))
	for _, r := range records {
		if !r.Confirmed() {
			continue
		}
		q := r.Quantity
		if q < 1 {
			q = 1
		}
		out = append(out, Line{Price: r.Price, CompareAtPrice: r.CompareAtPrice, Quantity: q})
	}
	return out
}

// Calculate prices the bundle. It is a pure function of in.
// It fails with utils.ErrNoValidPricingData when no line carries a positive
// price or compare-at price.
func Calculate(in Input) (Quote, error) {
	valid := false
	totalOriginal := decimal.Zero
	totalAfterFirst := decimal.Zero
	for _, l := range in.Lines {
		if l.Price > 0 || l.CompareAtPrice > 0 {
			valid = true
		}
		q := decimal.NewFromInt(int64(l.Quantity))
		totalOriginal = totalOriginal.Add(decimal.NewFromInt(l.original()).Mul(q))
		totalAfterFirst = totalAfterFirst.Add(decimal.NewFromInt(l.Price).Mul(q))
	}
	if !valid {
		return Quote{}, utils.ErrNoValidPricingData
	}

	bundleQty := in.BundleQuantity
	if bundleQty < 1 {
		bundleQty = 1
	}

	ideal := totalOriginal.Mul(one.Sub(in.TargetDiscountPercent.Div(hundred)))

	exact := decimal.Zero
	if !totalAfterFirst.IsZero() {
		exact = totalAfterFirst.Sub(ideal).Div(totalAfterFirst).Mul(hundred)
	}
	rounded := RoundHalfAwayFromZero(exact)
	applied := rounded
	if applied < 0 {
		applied = 0
	}
	if applied > 100 {
		applied = 100
	}

	finalPer := totalAfterFirst.Mul(one.Sub(decimal.NewFromInt(applied).Div(hundred)))
	bq := decimal.NewFromInt(int64(bundleQty))
	originalShown := totalOriginal.Mul(bq)
	finalShown := finalPer.Mul(bq)

	return Quote{
		TotalOriginalPerBundle:  totalOriginal,
		TotalAfterFirstDiscount: totalAfterFirst,
		IdealTargetPrice:        ideal,
		SupplementalExact:       exact,
		FinalPricePerBundle:     finalPer,
		TotalOriginalDisplayed:  originalShown,
		FinalPriceDisplayed:     finalShown,
		Savings:                 originalShown.Sub(finalShown),
		SupplementalRounded:     rounded,
		SupplementalDiscountPct: applied,
		BundleQuantity:          bundleQty,
	}, nil
}

// Clamped reports whether the applied percent differs from the computed one.
func (q Quote) Clamped() bool {
	return q.SupplementalRounded != q.SupplementalDiscountPct
}

// RoundHalfAwayFromZero rounds d to the nearest integer, ties away from zero.
func RoundHalfAwayFromZero(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Minor rounds an exact amount to whole minor units, ties away from zero.
func Minor(d decimal.Decimal) int64 {
	return RoundHalfAwayFromZero(d)
}
