package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GTDGit/gtd_bundle/internal/bundle"
	"github.com/GTDGit/gtd_bundle/internal/constraint"
	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/pricing"
	"github.com/GTDGit/gtd_bundle/internal/service"
	"github.com/GTDGit/gtd_bundle/pkg/storefront"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [handle]...",
	Short: "Fetch bundle products and show how the lock applies to them",
	Long: `inspect fetches products from the storefront, classifies their options and
shows which add-on variants the main product's size would select. Without
arguments the handles of the bundle definition are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBundle(len(args) == 0)
		if err != nil {
			return err
		}
		store := viper.GetString("store")
		if store == "" {
			return fmt.Errorf("--store or BUNDLECTL_STORE is required")
		}
		handles := args
		if len(handles) == 0 {
			handles = cfg.Handles()
		}
		lock, _ := cmd.Flags().GetString("lock")

		timeout := viper.GetDuration("timeout")
		catalog := service.NewStorefrontCatalog(storefront.NewClient(store, timeout, storefront.DefaultRetryMax))
		engine := bundle.NewEngine(cfg)
		money := bundle.NewFormatter(cfg)

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout*time.Duration(len(handles)+1))
		defer cancel()

		for i, h := range handles {
			p, err := catalog.FetchProduct(ctx, h)
			if err != nil {
				return err
			}
			if i == 0 && lock == "" {
				if first := p.FirstAvailable(); first != nil {
					if _, v, ok := engine.DetectLock(p, first.Options); ok {
						lock = v
					}
				}
			}
			printProduct(cmd.OutOrStdout(), engine, money, p, lock, i > 0)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().String("store", "", "storefront base URL")
	inspectCmd.Flags().String("lock", "", "size lock to apply to add-ons (defaults to the first product's size)")
	inspectCmd.Flags().Duration("timeout", 10*time.Second, "per-request timeout")
	_ = viper.BindPFlag("store", inspectCmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("timeout", inspectCmd.Flags().Lookup("timeout"))
	rootCmd.AddCommand(inspectCmd)
}

func printProduct(w io.Writer, engine *constraint.Engine, money *pricing.Formatter, p *models.Product, lock string, addOn bool) {
	fmt.Fprintf(w, "%s (%s)\n", p.Title, p.Handle)
	kinds := engine.Kinds(p)
	for i, o := range p.Options {
		fmt.Fprintf(w, "  %-12s %-8s %s\n", o.Name, kinds[i], strings.Join(o.Values, ", "))
	}
	for _, v := range p.Variants {
		mark := " "
		if !v.Available {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %-10d %-32s %s / %s\n", mark, v.ID, v.Title, money.FormatInt(v.Price), money.FormatInt(v.OriginalPrice()))
	}
	if !addOn || lock == "" {
		fmt.Fprintln(w)
		return
	}
	res, err := engine.ApplyLock(p, lock, nil)
	switch {
	case !res.Applicable():
		fmt.Fprintf(w, "  lock %q: no size option, unrestricted\n", lock)
	case err != nil:
		fmt.Fprintf(w, "  lock %q: unsatisfiable, falls back to %s\n", lock, variantTitle(res.Variant))
	default:
		fmt.Fprintf(w, "  lock %q: allows %s, selects %s (%s)\n", lock, strings.Join(res.Allowed, ", "), variantTitle(res.Variant), res.Match)
	}
	fmt.Fprintln(w)
}

func variantTitle(v *models.Variant) string {
	if v == nil {
		return "nothing"
	}
	return v.Title
}
