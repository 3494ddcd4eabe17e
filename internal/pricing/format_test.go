package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatter(t *testing.T) {
	vnd := NewFormatter("₫", 0, "vi")
	assert.Equal(t, "2.548.000₫", vnd.FormatInt(2548000))
	assert.Equal(t, "2.548.001₫", vnd.Format(decimal.RequireFromString("2548000.5")))
	assert.Equal(t, "0₫", vnd.FormatInt(0))

	usd := NewFormatter("$", 2, "en-US")
	assert.Equal(t, "$123.45", usd.FormatInt(12345))
	assert.Equal(t, "$0.50", usd.FormatInt(50))
}

func TestFormatterUnknownLocale(t *testing.T) {
	f := NewFormatter("₫", 0, "%%")
	assert.Equal(t, "1,000₫", f.FormatInt(1000))
}
