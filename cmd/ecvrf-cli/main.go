// Command ecvrf-cli generates ECVRF keys, and creates and verifies proofs.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/spf13/cobra"
)

// exitDataErr is EX_DATAERR from sysexits.h.
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
		Use:           "ecvrf-cli",
		Short:         "Elliptic Curve Verifiable Random Function (ECVRF) over Ristretto255",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair for proving and verification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := keygen()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}

	var proveArgs struct{ input, secretKey string }
	prove := &cobra.Command{
		Use:   "prove",
		Short: "Create an output and a proof",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := prove(proveArgs.input, proveArgs.secretKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
	prove.Flags().StringVarP(&proveArgs.input, "input", "i", "", "The hex encoded input string.")
	prove.Flags().StringVarP(&proveArgs.secretKey, "secret-key", "s", "", "Hex encoding of the 32 byte secret key.")
	prove.MarkFlagRequired("input")
	prove.MarkFlagRequired("secret-key")

	var verifyArgs struct{ output, proof, input, publicKey string }
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify an output and a proof",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := verify(verifyArgs.output, verifyArgs.proof, verifyArgs.input, verifyArgs.publicKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
	verify.Flags().StringVarP(&verifyArgs.output, "output", "o", "", "Hex encoding of the 64 byte output.")
	verify.Flags().StringVarP(&verifyArgs.proof, "proof", "p", "", "Hex encoding of the 80 byte proof.")
	verify.Flags().StringVarP(&verifyArgs.input, "input", "i", "", "Hex encoding of the input the proof was made over.")
	verify.Flags().StringVarP(&verifyArgs.publicKey, "public-key", "k", "", "Hex encoding of the prover's public key.")
	for _, name := range []string{"output", "proof", "input", "public-key"} {
		verify.MarkFlagRequired(name)
	}

	root.AddCommand(keygen, prove, verify)
	return root
}

func keygen() (string, error) {
	priv, err := ristretto255.NewPrivateKey(ristretto255.GeneratePrivateKey())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Secret key: %x\nPublic key: %x", priv.Bytes(), priv.PublicKey().Bytes()), nil
}

func prove(input, secretKey string) (string, error) {
	rawKey, err := hex.DecodeString(secretKey)
	if err != nil {
		return "", errors.New("Invalid private key.")
	}
	alpha, err := hex.DecodeString(input)
	if err != nil {
		return "", errors.New("Invalid input string.")
	}
	priv, err := ristretto255.NewPrivateKey(rawKey)
	if err != nil {
		return "", errors.New("Invalid private key.")
	}

	output, proof := priv.Prove(alpha)
	return fmt.Sprintf("Proof:  %x\nOutput: %x", proof, output), nil
}

func verify(output, proof, input, publicKey string) (string, error) {
	rawKey, err := hex.DecodeString(publicKey)
	if err != nil {
		return "", errors.New("Invalid public key.")
	}
	alpha, err := hex.DecodeString(input)
	if err != nil {
		return "", errors.New("Invalid input string.")
	}
	rawProof, err := hex.DecodeString(proof)
	if err != nil {
		return "", errors.New("Invalid proof string.")
	}
	rawOutput, err := hex.DecodeString(output)
	if err != nil {
		return "", errors.New("Invalid output string.")
	} else if len(rawOutput) != ristretto255.OutputSize {
		return "", errors.New("Output must be 64 bytes.")
	}
	pub, err := ristretto255.NewPublicKey(rawKey)
	if err != nil {
		return "", errors.New("Invalid public key.")
	}

	if err := pub.VerifyOutput(alpha, rawProof, rawOutput); err != nil {
		return "", errors.New("Proof is not correct.")
	}
	return "Proof verified correctly!", nil
}
