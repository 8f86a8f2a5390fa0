package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/paramtrail/internal/compose"
	"github.com/conneroisu/paramtrail/internal/params"
)

var composeCmd = &cobra.Command{
	Use:   "compose URL [name=value...]",
	Short: "Append tracked parameter values to a URL",
	Long: `Compose a link the way rendered pages do: untracked names are dropped,
short aliases are used where configured and values are obfuscated when
obfuscation is enabled. With no values, configured fallbacks are used.

Examples:
  paramtrail compose https://example.com/pricing quelle=newsletter
  paramtrail compose "/signup?plan=pro" campaign=spring`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)
}

func runCompose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}
	composer := compose.New(params.NewSource(reg), nil)

	assignments, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	var out string
	if len(assignments) == 0 {
		out = composer.FromStore(args[0], nil)
	} else {
		pairs := make([]compose.Pair, 0, len(assignments))
		for _, a := range assignments {
			pairs = append(pairs, compose.Pair{Name: a[0], Value: a[1]})
		}
		out = composer.Compose(args[0], pairs)
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
