package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GTDGit/gtd_bundle/internal/bundle"
	"github.com/GTDGit/gtd_bundle/internal/constraint"
)

var matchCmd = &cobra.Command{
	Use:     "match <locked-value> <candidate>...",
	Short:   "Check which candidate sizes are equivalent to a locked size",
	Example: `  bundlectl match "Queen 160x200" "160x200" "180x200" "Queen"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadBundle(false)
		if err != nil {
			return err
		}
		sizes := bundle.NewEngine(cfg).Sizes()
		lock := args[0]
		for _, candidate := range args[1:] {
			kind := sizes.Equivalent(lock, candidate)
			result := "no match"
			if kind != constraint.MatchNone {
				result = string(kind)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-24q %s\n", candidate, result)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
