// Command encode-cli converts values between hex, base64 and base58.
package main

import (
	"fmt"
	"os"

	"github.com/Bren2010/kamui/encode"
	"github.com/spf13/cobra"
)

const exitDataErr = 65

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
		os.Exit(exitDataErr)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "encode-cli",
		Short:         "Convert values between hex, base64 and base58 encodings",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		converter("base64-to-hex", "Convert a base64 value to hex", encode.Base64ToHex),
		converter("hex-to-base64", "Convert a hex value to base64", encode.HexToBase64),
		converter("base58-to-hex", "Convert a base58 value to hex", encode.Base58ToHex),
		converter("hex-to-base58", "Convert a hex value to base58", encode.HexToBase58),
	)
	return root
}

func converter(use, short string, fn func(string) (string, error)) *cobra.Command {
	var value string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := fn(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "The value to convert.")
	cmd.MarkFlagRequired("value")
	return cmd
}
