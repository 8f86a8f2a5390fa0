package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/paramtrail/internal/codec"
)

var (
	codecKey     string
	decodeStrict bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode VALUE...",
	Short: "Obfuscate values for use in URLs",
	Long: `Encode values into URL-safe tokens with the obfuscation secret.
The key defaults to obfuscation.secret_key from the configuration.

Examples:
  paramtrail encode newsletter
  paramtrail encode --key s3cret spring summer`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode TOKEN...",
	Short: "Reverse obfuscated tokens",
	Long: `Decode tokens produced by 'encode'. A token that does not decode with
the key is printed unchanged, as the capture pipeline would store it,
unless --strict is given.

Examples:
  paramtrail decode --key s3cret bmV3c2xldHRlch9zM2NyZXQ.
  paramtrail decode --strict --key s3cret TOKEN`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)

	for _, c := range []*cobra.Command{encodeCmd, decodeCmd} {
		c.Flags().StringVarP(&codecKey, "key", "k", "", "secret key (default obfuscation.secret_key)")
	}
	decodeCmd.Flags().BoolVar(&decodeStrict, "strict", false, "fail on tokens that do not decode")
}

func resolveKey() (string, error) {
	if codecKey != "" {
		return codecKey, nil
	}
	if key := viper.GetString("obfuscation.secret_key"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no secret key: pass --key or set obfuscation.secret_key")
}

func runEncode(cmd *cobra.Command, args []string) error {
	key, err := resolveKey()
	if err != nil {
		return err
	}
	c := codec.New(key)
	for _, value := range args {
		fmt.Fprintln(cmd.OutOrStdout(), c.Encode(value))
	}
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	key, err := resolveKey()
	if err != nil {
		return err
	}
	for _, token := range args {
		value, ok := codec.TryDecode(token, key)
		if !ok && decodeStrict {
			return fmt.Errorf("token %q does not decode with the given key", token)
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}
