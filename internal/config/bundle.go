package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// BundleConfig is the immutable bundle definition. It is read once at start-up
// and never re-read during a session.
type BundleConfig struct {
	Enabled               bool        `mapstructure:"enabled"`
	Title                 string      `mapstructure:"title"`
	MainHandle            string      `mapstructure:"main_handle"`
	AddOnHandles          []string    `mapstructure:"addon_handles"`
	TargetDiscountPercent float64     `mapstructure:"target_discount_percent"`
	SlotQuantities        map[int]int `mapstructure:"slot_quantities"`
	VoucherCode           string      `mapstructure:"voucher_code"`
	QuantityChoices       []int       `mapstructure:"quantity_choices"`

	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`
	Currency   CurrencyConfig   `mapstructure:"currency"`
}

// VocabularyConfig is the keyword data used to classify option dimensions and
// to match sizes across products.
type VocabularyConfig struct {
	SizeKeywords     []string `mapstructure:"size_keywords"`
	SizeOptionNames  []string `mapstructure:"size_option_names"`
	ColorOptionNames []string `mapstructure:"color_option_names"`
	ColorKeywords    []string `mapstructure:"color_keywords"`
}

// CurrencyConfig describes the single display currency.
type CurrencyConfig struct {
	Code     string `mapstructure:"code"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int    `mapstructure:"decimals"`
	Locale   string `mapstructure:"locale"`
}

// SlotCount returns the number of bundle slots (main product + add-ons).
func (b *BundleConfig) SlotCount() int {
	return 1 + len(b.AddOnHandles)
}

// SlotQuantity returns the configured quantity for a slot, 1 by default.
func (b *BundleConfig) SlotQuantity(slot int) int {
	if q, ok := b.SlotQuantities[slot]; ok && q > 0 {
		return q
	}
	return 1
}

// AllowsQuantity reports whether q is one of the enumerated bundle quantities.
func (b *BundleConfig) AllowsQuantity(q int) bool {
	for _, c := range b.QuantityChoices {
		if c == q {
			return true
		}
	}
	return false
}

// Handles returns the main handle followed by the add-on handles.
func (b *BundleConfig) Handles() []string {
	out := make([]string, 0, b.SlotCount())
	if b.MainHandle != "" {
		out = append(out, b.MainHandle)
	}
	return append(out, b.AddOnHandles...)
}

// LoadBundle reads the bundle definition file at path. Values can be
// overridden with BUNDLE_* environment variables (e.g. BUNDLE_VOUCHER_CODE).
func LoadBundle(path string) (*BundleConfig, error) {
	v := newBundleViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read bundle config %s: %w", path, err)
	}
	return decodeBundle(v)
}

// ParseBundle reads a YAML bundle definition from r.
func ParseBundle(r io.Reader) (*BundleConfig, error) {
	v := newBundleViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("parse bundle config: %w", err)
	}
	return decodeBundle(v)
}

// DefaultBundle returns the built-in definition with no products, as used
// by tools that only need the vocabulary and currency.
func DefaultBundle() (*BundleConfig, error) {
	return decodeBundle(newBundleViper())
}

func newBundleViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("BUNDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("enabled", true)
	v.SetDefault("title", "Bundle")
	v.SetDefault("target_discount_percent", 0)
	v.SetDefault("quantity_choices", []int{1, 2, 3, 4, 5})
	v.SetDefault("vocabulary.size_keywords", DefaultSizeKeywords)
	v.SetDefault("vocabulary.size_option_names", []string{"size", "kích thước", "kich thuoc", "dimension"})
	v.SetDefault("vocabulary.color_option_names", []string{"color", "colour", "màu", "mau"})
	v.SetDefault("vocabulary.color_keywords", []string{"white", "black", "grey", "gray", "beige", "blue", "pink", "green", "brown", "cream"})
	v.SetDefault("currency.code", "VND")
	v.SetDefault("currency.symbol", "₫")
	v.SetDefault("currency.decimals", 0)
	v.SetDefault("currency.locale", "vi")
	return v
}

// DefaultSizeKeywords are bed and mattress size tokens.
var DefaultSizeKeywords = []string{
	"single", "twin", "twin xl", "double", "full", "queen", "king",
	"super king", "california king", "cal king", "emperor",
}

func decodeBundle(v *viper.Viper) (*BundleConfig, error) {
	var b BundleConfig
	if err := v.Unmarshal(&b); err != nil {
		return nil, fmt.Errorf("decode bundle config: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks the bundle definition for values the engines cannot use.
func (b *BundleConfig) Validate() error {
	if b.TargetDiscountPercent < 0 || b.TargetDiscountPercent > 100 {
		return fmt.Errorf("target_discount_percent must be within 0-100, got %v", b.TargetDiscountPercent)
	}
	if len(b.QuantityChoices) == 0 {
		return errors.New("quantity_choices must not be empty")
	}
	for _, q := range b.QuantityChoices {
		if q < 1 {
			return fmt.Errorf("quantity_choices must be >= 1, got %d", q)
		}
	}
	for slot, q := range b.SlotQuantities {
		if slot < 0 || slot >= b.SlotCount() {
			return fmt.Errorf("slot_quantities: slot %d out of range", slot)
		}
		if q < 1 {
			return fmt.Errorf("slot_quantities: slot %d quantity must be >= 1", slot)
		}
	}
	for i, h := range b.AddOnHandles {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("addon_handles[%d] is empty", i)
		}
	}
	if b.Currency.Decimals < 0 {
		return errors.New("currency.decimals must be >= 0")
	}
	return nil
}
