package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/paramtrail/internal/capture"
	"github.com/conneroisu/paramtrail/internal/forms"
	"github.com/conneroisu/paramtrail/internal/params"
	"github.com/conneroisu/paramtrail/internal/session"
)

var formCmd = &cobra.Command{
	Use:   "form NAME [name=value...]",
	Short: "Build a prefilled third-party form URL",
	Long: `Build the prefilled URL of a configured form. Values are given by
parameter name or alias and go through the same decoding and sanitizing
as captured query parameters; missing values use configured fallbacks.

Examples:
  paramtrail form signup quelle=newsletter
  paramtrail form signup q=ad campaign=spring`,
	Args: cobra.MinimumNArgs(1),
	RunE: runForm,
}

func init() {
	rootCmd.AddCommand(formCmd)
}

func runForm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}
	formSet, err := cfg.BuildForms()
	if err != nil {
		return err
	}

	form, ok := formSet[args[0]]
	if !ok {
		names := make([]string, 0, len(formSet))
		for name := range formSet {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown form %q (configured: %s)", args[0], strings.Join(names, ", "))
	}

	assignments, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	source := params.NewSource(reg)
	pipeline := capture.NewPipeline(source, capture.WithLogger(newLogger(cfg)))
	store := session.NewStore()
	for _, a := range assignments {
		if !pipeline.Assign(context.Background(), store, a[0], a[1]) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: ignoring %s (untracked or empty)\n", a[0])
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), forms.NewBuilder(source, nil).Build(form, store))
	return nil
}
