package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/paramtrail/internal/codec"
	"github.com/conneroisu/paramtrail/internal/config"
)

var keygenEnv bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an obfuscation secret key",
	Long: `Generate a random secret for obfuscation.secret_key.

Examples:
  paramtrail keygen        # Print the key
  paramtrail keygen --env  # Print as an environment assignment`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().BoolVar(&keygenEnv, "env", false, "Print as PARAMTRAIL_OBFUSCATION_SECRET_KEY=...")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := codec.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	if keygenEnv {
		fmt.Fprintf(cmd.OutOrStdout(), "%s_OBFUSCATION_SECRET_KEY=%s\n", config.EnvPrefix, key)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
