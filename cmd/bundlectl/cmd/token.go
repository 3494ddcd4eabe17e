package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GTDGit/gtd_bundle/internal/utils"
)

var tokenCmd = &cobra.Command{
	Use:     "operator-token <name>",
	Short:   "Sign an operator token for the checkout audit endpoints",
	Example: `  BUNDLECTL_OPERATOR_SECRET=... bundlectl operator-token alice --ttl 12h`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := viper.GetString("operator_secret")
		if secret == "" {
			return errors.New("operator secret not set (--secret or BUNDLECTL_OPERATOR_SECRET)")
		}
		tok, err := utils.GenerateOperatorToken(secret, args[0], viper.GetDuration("ttl"))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "OPERATOR_SECRET of the API")
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "token lifetime")
	_ = viper.BindPFlag("operator_secret", tokenCmd.Flags().Lookup("secret"))
	_ = viper.BindPFlag("ttl", tokenCmd.Flags().Lookup("ttl"))
	rootCmd.AddCommand(tokenCmd)
}
