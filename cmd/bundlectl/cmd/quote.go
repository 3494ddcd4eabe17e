package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/GTDGit/gtd_bundle/internal/bundle"
	"github.com/GTDGit/gtd_bundle/internal/pricing"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a bundle from explicit lines",
	Example: `  bundlectl quote --line 800000:1000000 --line 1800000:2000000 --quantity 2
  bundlectl quote --line 800000:1000000:2 --target 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBundle(false)
		if err != nil {
			return err
		}
		rawLines, _ := cmd.Flags().GetStringArray("line")
		if len(rawLines) == 0 {
			return fmt.Errorf("at least one --line is required")
		}
		lines := make([]pricing.Line, 0, len(rawLines))
		for _, raw := range rawLines {
			l, err := parseLine(raw)
			if err != nil {
				return err
			}
			lines = append(lines, l)
		}

		target := cfg.TargetDiscountPercent
		if cmd.Flags().Changed("target") {
			target, _ = cmd.Flags().GetFloat64("target")
		}
		qty, _ := cmd.Flags().GetInt("quantity")

		q, err := pricing.Calculate(pricing.Input{
			Lines:                 lines,
			BundleQuantity:        qty,
			TargetDiscountPercent: decimal.NewFromFloat(target),
		})
		if err != nil {
			return err
		}
		printQuote(cmd.OutOrStdout(), bundle.NewFormatter(cfg), q, target)
		return nil
	},
}

func init() {
	quoteCmd.Flags().StringArray("line", nil, "slot line as price[:compareAt[:quantity]] in minor units")
	quoteCmd.Flags().Int("quantity", 1, "bundle quantity")
	quoteCmd.Flags().Float64("target", 0, "target discount percent (defaults to the bundle definition)")
	rootCmd.AddCommand(quoteCmd)
}

// parseLine reads "price[:compareAt[:quantity]]".
func parseLine(raw string) (pricing.Line, error) {
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return pricing.Line{}, fmt.Errorf("invalid line %q", raw)
	}
	nums := []int64{0, 0, 1}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return pricing.Line{}, fmt.Errorf("invalid line %q: %q is not a non-negative integer", raw, p)
		}
		nums[i] = n
	}
	l := pricing.Line{Price: nums[0], CompareAtPrice: nums[1], Quantity: int(nums[2])}
	if len(parts) < 2 {
		l.CompareAtPrice = l.Price
	}
	if l.Quantity < 1 {
		l.Quantity = 1
	}
	return l, nil
}

func printQuote(w io.Writer, money *pricing.Formatter, q pricing.Quote, target float64) {
	fmt.Fprintf(w, "original per bundle      %s\n", money.Format(q.TotalOriginalPerBundle))
	fmt.Fprintf(w, "after variant discounts  %s\n", money.Format(q.TotalAfterFirstDiscount))
	fmt.Fprintf(w, "ideal at %v%%           %s\n", target, money.Format(q.IdealTargetPrice))
	fmt.Fprintf(w, "supplemental discount    %d%% (exact %s%%)\n", q.SupplementalDiscountPct, q.SupplementalExact.StringFixed(4))
	if q.Clamped() {
		fmt.Fprintf(w, "                         clamped from %d%%\n", q.SupplementalRounded)
	}
	fmt.Fprintf(w, "final per bundle         %s\n", money.Format(q.FinalPricePerBundle))
	fmt.Fprintf(w, "bundle quantity          %d\n", q.BundleQuantity)
	fmt.Fprintf(w, "total original           %s\n", money.Format(q.TotalOriginalDisplayed))
	fmt.Fprintf(w, "total final              %s\n", money.Format(q.FinalPriceDisplayed))
	fmt.Fprintf(w, "savings                  %s\n", money.Format(q.Savings))
}
