package bundle

import (
	"github.com/GTDGit/gtd_bundle/internal/config"
	"github.com/GTDGit/gtd_bundle/internal/constraint"
	"github.com/GTDGit/gtd_bundle/internal/pricing"
)

// NewEngine builds the constraint engine from the bundle's vocabulary.
func NewEngine(cfg *config.BundleConfig) *constraint.Engine {
	return constraint.NewEngine(constraint.Vocabulary{
		SizeKeywords:     cfg.Vocabulary.SizeKeywords,
		SizeOptionNames:  cfg.Vocabulary.SizeOptionNames,
		ColorOptionNames: cfg.Vocabulary.ColorOptionNames,
		ColorKeywords:    cfg.Vocabulary.ColorKeywords,
	})
}

// NewFormatter builds the money formatter for the bundle's currency.
func NewFormatter(cfg *config.BundleConfig) *pricing.Formatter {
	return pricing.NewFormatter(cfg.Currency.Symbol, cfg.Currency.Decimals, cfg.Currency.Locale)
}
