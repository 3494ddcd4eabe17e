package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders minor-unit amounts in the store's single currency.
type Formatter struct {
	Symbol   string
	Decimals int32
	printer  *message.Printer
}

// NewFormatter builds a formatter for the given locale tag ("vi", "en-US").
// Unknown tags fall back to English grouping.
func NewFormatter(symbol string, decimals int, locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{
		Symbol:   symbol,
		Decimals: int32(decimals),
		printer:  message.NewPrinter(tag),
	}
}

// Format renders an exact minor-unit amount, e.g. 2548000 -> "2.548.000₫"
// for Vietnamese or 12345 -> "$123.45" for en-US with two decimals.
func (f *Formatter) Format(minor decimal.Decimal) string {
	major := minor.Shift(-f.Decimals).Round(f.Decimals)
	var body string
	if f.Decimals == 0 {
		body = f.printer.Sprintf("%d", major.IntPart())
	} else {
		v, _ := major.Float64()
		body = f.printer.Sprintf(fmt.Sprintf("%%.%df", f.Decimals), v)
	}
	if strings.HasPrefix(f.Symbol, "$") || strings.HasPrefix(f.Symbol, "£") || strings.HasPrefix(f.Symbol, "€") {
		return f.Symbol + body
	}
	return body + f.Symbol
}

// FormatInt renders an integer minor-unit amount.
func (f *Formatter) FormatInt(minor int64) string {
	return f.Format(decimal.NewFromInt(minor))
}
