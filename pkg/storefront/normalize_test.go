package storefront

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProductJSONShape(t *testing.T) {
	body := []byte(`{"product":{
		"id": 7, "handle": "soft-pillow", "title": "Soft Pillow",
		"options": [{"name": "Size", "values": ["Standard", "King"]}, {"name": "Color", "values": ["White"]}],
		"variants": [
			{"id": 71, "title": "Standard / White", "option1": "Standard", "option2": "White", "option3": null, "price": "450000.00", "compare_at_price": "500000.00"},
			{"id": 72, "title": "King / White", "option1": "King", "option2": "White", "option3": null, "price": "550000.00", "compare_at_price": ""}
		]}}`)

	p, err := ParseProduct(body)
	require.NoError(t, err)
	assert.Equal(t, "soft-pillow", p.Handle)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, []string{"Standard", "White"}, p.Variants[0].Options)
	assert.Equal(t, int64(45000000), p.Variants[0].Price)
	require.NotNil(t, p.Variants[0].CompareAtPrice)
	assert.Equal(t, int64(50000000), *p.Variants[0].CompareAtPrice)
	assert.Nil(t, p.Variants[1].CompareAtPrice)
	assert.True(t, p.Variants[1].Available)
}

func TestParseProductOptionNamesOnly(t *testing.T) {
	body := []byte(`{"id": 9, "handle": "duvet", "options": ["Size"],
		"variants": [
			{"id": 91, "options": ["Twin"], "price": 100, "available": true},
			{"id": 92, "options": ["Queen"], "price": 200, "available": true},
			{"id": 93, "options": ["Twin"], "price": 100, "available": false}
		]}`)

	p, err := ParseProduct(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"Twin", "Queen"}, p.Options[0].Values)
}

func TestParseProductRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `<html>`,
		"no variants":   `{"id": 1, "handle": "x"}`,
		"no variant id": `{"id": 1, "variants": [{"price": 1}]}`,
		"no price":      `{"id": 1, "variants": [{"id": 2}]}`,
		"bad price":     `{"id": 1, "variants": [{"id": 2, "price": "abc"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProduct([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedProduct)
		})
	}
}
