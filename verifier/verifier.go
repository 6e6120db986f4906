// Package verifier implements a program that checks a single VRF proof and
// logs its output.
package verifier

import (
	"encoding/hex"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
)

type Program struct{}

func (Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(accounts) < 1 {
		return ledger.ErrNotEnoughAccountKeys
	}
	in, err := structs.NewVerifyVrfInput(data)
	if err != nil {
		return ledger.ErrInvalidInstructionData
	}
	if len(in.Proof) != ristretto255.ProofSize {
		ctx.Log("Invalid proof length: %d", len(in.Proof))
		return ledger.ErrInvalidArgument
	} else if len(in.PublicKey) != ristretto255.PublicKeySize {
		ctx.Log("Invalid public key length: %d", len(in.PublicKey))
		return ledger.ErrInvalidArgument
	}

	pk, err := ristretto255.NewPublicKey(in.PublicKey)
	if err != nil {
		ctx.Log("Invalid public key: %v", err)
		return ledger.ErrInvalidArgument
	}
	output, err := pk.Verify(in.Alpha, in.Proof)
	if err != nil {
		ctx.Log("VRF verification failed: %v", err)
		return ledger.ErrInvalidArgument
	}
	ctx.Log("VRF output: %s", hex.EncodeToString(output))
	return nil
}

// NewVerify returns an instruction that verifies `proof` over `alpha`.
func NewVerify(programID, payer pubkey.Pubkey, alpha, proof, publicKey []byte) (ledger.Instruction, error) {
	data, err := borsh.Marshal(&structs.VerifyVrfInput{Alpha: alpha, Proof: proof, PublicKey: publicKey})
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: programID,
		Accounts:  []ledger.AccountMeta{ledger.Readonly(payer, true)},
		Data:      data,
	}, nil
}
