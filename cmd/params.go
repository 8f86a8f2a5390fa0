package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/paramtrail/internal/params"
)

var paramsCmd = &cobra.Command{
	Use:     "params",
	Aliases: []string{"ls"},
	Short:   "List tracked parameters",
	Long: `List the tracked parameters from the configuration, with their short
aliases, fallbacks and redirect targets.

Examples:
  paramtrail params             # Table
  paramtrail params -f json     # JSON
  paramtrail params -f yaml     # YAML`,
	Args: cobra.NoArgs,
	RunE: runParams,
}

var paramsFlags *StandardFlags

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsFlags = AddStandardFlags(paramsCmd, "output")
}

// paramsOutput is the json/yaml shape of one tracked parameter.
type paramsOutput struct {
	Name        string `json:"name" yaml:"name"`
	Short       string `json:"short,omitempty" yaml:"short,omitempty"`
	Fallback    string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty" yaml:"redirect_url,omitempty"`
	URLKey      string `json:"url_key" yaml:"url_key"`
}

func runParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := cfg.BuildRegistry()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tracked := reg.Parameters()
	if len(tracked) == 0 && paramsFlags.Format == "table" {
		fmt.Fprintln(out, "No tracked parameters configured.")
		return nil
	}

	switch strings.ToLower(paramsFlags.Format) {
	case "json":
		return outputParamsJSON(out, tracked)
	case "yaml":
		return outputParamsYAML(out, tracked)
	case "table":
		return outputParamsTable(out, tracked, reg.ObfuscationEnabled())
	default:
		return fmt.Errorf("unsupported format: %s", paramsFlags.Format)
	}
}

func toParamsOutput(tracked []params.TrackedParameter) []paramsOutput {
	out := make([]paramsOutput, 0, len(tracked))
	for _, p := range tracked {
		out = append(out, paramsOutput{
			Name:        p.Name,
			Short:       p.ShortAlias,
			Fallback:    p.Fallback,
			RedirectURL: p.RedirectURL,
			URLKey:      p.Key(),
		})
	}
	return out
}

func outputParamsJSON(w io.Writer, tracked []params.TrackedParameter) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(toParamsOutput(tracked))
}

func outputParamsYAML(w io.Writer, tracked []params.TrackedParameter) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(toParamsOutput(tracked))
}

func outputParamsTable(w io.Writer, tracked []params.TrackedParameter, obfuscated bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "NAME\tSHORT\tFALLBACK\tREDIRECT")
	for _, p := range tracked {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, dash(p.ShortAlias), dash(p.Fallback), dash(p.RedirectURL))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal: %d parameters, obfuscation %s\n", len(tracked), onOff(obfuscated))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
