package coordinator

import (
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
)

func instruction(programID pubkey.Pubkey, ix structs.Instruction, metas ...ledger.AccountMeta) (ledger.Instruction, error) {
	data, err := structs.MarshalInstruction(ix)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{ProgramID: programID, Accounts: metas, Data: data}, nil
}

// NewCreateSubscription creates `subscription`, a fresh keypair account, paid
// for by `owner`.
func NewCreateSubscription(programID, owner, subscription pubkey.Pubkey, minBalance uint64, confirmations uint8) (ledger.Instruction, error) {
	return instruction(programID,
		&structs.CreateSubscription{MinBalance: minBalance, Confirmations: confirmations},
		ledger.Writable(owner, true),
		ledger.Writable(subscription, true),
		ledger.Readonly(ledger.SystemProgramID, false),
	)
}

func NewFundSubscription(programID, funder, subscription pubkey.Pubkey, amount uint64) (ledger.Instruction, error) {
	return instruction(programID,
		&structs.FundSubscription{Amount: amount},
		ledger.Writable(funder, true),
		ledger.Writable(subscription, false),
		ledger.Readonly(ledger.SystemProgramID, false),
	)
}

// NewRequestRandomness requests randomness against `subscription`, whose
// current nonce must be `nonce`. If `callback` is not zero, that program is
// invoked on fulfillment. It also returns the address of the request.
func NewRequestRandomness(programID, requester, subscription pubkey.Pubkey, nonce uint64, params *structs.RequestRandomness, callback pubkey.Pubkey) (ledger.Instruction, pubkey.Pubkey, error) {
	request, _, err := RequestAddress(programID, subscription, nonce)
	if err != nil {
		return ledger.Instruction{}, pubkey.Zero, err
	}
	metas := []ledger.AccountMeta{
		ledger.Writable(requester, true),
		ledger.Writable(request, false),
		ledger.Writable(subscription, false),
		ledger.Readonly(ledger.SystemProgramID, false),
	}
	if !callback.IsZero() {
		metas = append(metas, ledger.Readonly(callback, false))
	}
	ix, err := instruction(programID, params, metas...)
	return ix, request, err
}

// NewFulfillRandomness delivers a proof for the request stored at `request`.
// The callback accounts are passed on to the request's callback program.
func NewFulfillRandomness(programID, oracle, request pubkey.Pubkey, req *structs.RandomnessRequest, proof, vrfKey []byte, callbackAccounts ...ledger.AccountMeta) (ledger.Instruction, error) {
	result, _, err := VrfResultAddress(programID, request)
	if err != nil {
		return ledger.Instruction{}, err
	}
	config, _, err := OracleConfigAddress(programID, oracle)
	if err != nil {
		return ledger.Instruction{}, err
	}
	metas := []ledger.AccountMeta{
		ledger.Writable(oracle, true),
		ledger.Writable(request, false),
		ledger.Writable(result, false),
		ledger.Writable(req.Subscription, false),
		ledger.Readonly(config, false),
		ledger.Readonly(ledger.SystemProgramID, false),
	}
	if req.HasCallback() {
		metas = append(metas, ledger.Readonly(req.CallbackProgram, false))
		metas = append(metas, callbackAccounts...)
	}
	return instruction(programID, &structs.FulfillRandomness{Proof: proof, PublicKey: vrfKey}, metas...)
}

func NewCancelRequest(programID, owner, request, subscription pubkey.Pubkey) (ledger.Instruction, error) {
	return instruction(programID,
		&structs.CancelRequest{},
		ledger.Readonly(owner, true),
		ledger.Writable(request, false),
		ledger.Writable(subscription, false),
	)
}

func NewRegisterOracle(programID, admin, oracle pubkey.Pubkey, vrfKey [32]byte) (ledger.Instruction, error) {
	config, _, err := OracleConfigAddress(programID, oracle)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return instruction(programID,
		&structs.RegisterOracle{OracleKey: oracle, VrfKey: vrfKey},
		ledger.Writable(admin, true),
		ledger.Writable(config, false),
		ledger.Readonly(ledger.SystemProgramID, false),
	)
}

func NewDeactivateOracle(programID, admin, oracle pubkey.Pubkey) (ledger.Instruction, error) {
	config, _, err := OracleConfigAddress(programID, oracle)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return instruction(programID,
		&structs.DeactivateOracle{OracleKey: oracle},
		ledger.Readonly(admin, true),
		ledger.Writable(config, false),
	)
}
