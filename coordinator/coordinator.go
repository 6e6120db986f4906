// Package coordinator implements the VRF coordinator program: subscriptions
// pay for randomness requests, registered oracles fulfill them with a VRF
// proof, and consumer programs receive the result through a callback.
package coordinator

import (
	"bytes"
	"math"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/crypto/commitments"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
	"go.uber.org/zap"
)

// Program is the coordinator. Oracles can only be managed by the admin.
type Program struct {
	id    pubkey.Pubkey
	admin pubkey.Pubkey
}

func New(id, admin pubkey.Pubkey) *Program {
	return &Program{id: id, admin: admin}
}

func (p *Program) ID() pubkey.Pubkey { return p.id }

func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	ix, err := structs.NewInstruction(data)
	if err != nil {
		ctx.Log("VRF Coordinator: Error - %v", err)
		return ErrInvalidInstruction
	}

	switch ix := ix.(type) {
	case *structs.CreateSubscription:
		return p.createSubscription(ctx, accounts, ix)
	case *structs.FundSubscription:
		return p.fundSubscription(ctx, accounts, ix)
	case *structs.RequestRandomness:
		return p.requestRandomness(ctx, accounts, ix)
	case *structs.FulfillRandomness:
		return p.fulfillRandomness(ctx, accounts, ix)
	case *structs.CancelRequest:
		return p.cancelRequest(ctx, accounts)
	case *structs.RegisterOracle:
		return p.registerOracle(ctx, accounts, ix)
	case *structs.DeactivateOracle:
		return p.deactivateOracle(ctx, accounts, ix)
	default:
		return ErrInvalidInstruction
	}
}

func emit(ctx *ledger.InvokeContext, ev structs.Event) {
	ctx.Log("%s", structs.FormatEvent(ev))
}

func (p *Program) loadSubscription(info *ledger.AccountInfo) (*structs.Subscription, error) {
	if info.Owner != p.id {
		return nil, ledger.ErrIllegalOwner
	}
	sub, err := structs.NewSubscription(info.Data)
	if err != nil {
		return nil, ledger.ErrInvalidAccountData
	}
	return sub, nil
}

func (p *Program) loadRequest(info *ledger.AccountInfo) (*structs.RandomnessRequest, error) {
	if info.Owner != p.id {
		return nil, ledger.ErrIllegalOwner
	}
	req, err := structs.NewRandomnessRequest(info.Data)
	if err != nil {
		return nil, ledger.ErrInvalidAccountData
	}
	return req, nil
}

func (p *Program) loadOracleConfig(info *ledger.AccountInfo) (*structs.OracleConfig, error) {
	if info.Owner != p.id {
		return nil, ledger.ErrIllegalOwner
	}
	oc, err := structs.NewOracleConfig(info.Data)
	if err != nil {
		return nil, ledger.ErrInvalidAccountData
	}
	return oc, nil
}

// createAccount allocates a rent-exempt account owned by the coordinator and
// fills it with `x`.
func (p *Program) createAccount(ctx *ledger.InvokeContext, payer, target *ledger.AccountInfo, x borsh.Marshaller, seeds [][]byte) error {
	size, err := structs.Size(x)
	if err != nil {
		return err
	}
	lamports := ledger.MinimumBalance(uint64(size))
	ix := ledger.CreateAccount(payer.Key, target.Key, lamports, uint64(size), p.id)

	if seeds != nil {
		err = ctx.Invoke(ix, seeds)
	} else {
		err = ctx.Invoke(ix)
	}
	if err != nil {
		return err
	}
	return structs.Store(target.Data, x)
}

func (p *Program) createSubscription(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix *structs.CreateSubscription) error {
	ctx.Log("VRF Coordinator: Creating subscription...")
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	owner, subAcct := accounts[0], accounts[1]

	if !owner.IsSigner || !subAcct.IsSigner {
		ctx.Log("VRF Coordinator: Error - Missing signature")
		return ledger.ErrMissingSignature
	} else if ix.Confirmations < structs.MinimumRequestConfirmations {
		return ErrInvalidRequestConfirmations
	}

	sub := &structs.Subscription{
		Owner:         owner.Key,
		MinBalance:    ix.MinBalance,
		Confirmations: ix.Confirmations,
	}
	if err := p.createAccount(ctx, owner, subAcct, sub, nil); err != nil {
		return err
	}
	ctx.Log("VRF Coordinator: Subscription account: %v", subAcct.Key)

	emit(ctx, &structs.SubscriptionCreated{
		Subscription: subAcct.Key,
		Owner:        owner.Key,
		MinBalance:   ix.MinBalance,
	})
	return nil
}

func (p *Program) fundSubscription(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix *structs.FundSubscription) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	funder, subAcct := accounts[0], accounts[1]

	if !funder.IsSigner {
		return ledger.ErrMissingSignature
	}
	sub, err := p.loadSubscription(subAcct)
	if err != nil {
		return err
	} else if sub.Balance > math.MaxUint64-ix.Amount {
		return ledger.ErrArithmeticOverflow
	}

	if err := ctx.Invoke(ledger.Transfer(funder.Key, subAcct.Key, ix.Amount)); err != nil {
		return err
	}
	sub.Balance += ix.Amount
	if err := structs.Store(subAcct.Data, sub); err != nil {
		return err
	}

	emit(ctx, &structs.SubscriptionFunded{
		Subscription: subAcct.Key,
		Funder:       funder.Key,
		Amount:       ix.Amount,
	})
	return nil
}

func validateRequest(ix *structs.RequestRandomness) error {
	if ix.NumWords < 1 || ix.NumWords > structs.MaximumRandomWords {
		return ErrInvalidNumberOfWords
	} else if ix.MinimumConfirmations < structs.MinimumRequestConfirmations {
		return ErrInvalidRequestConfirmations
	} else if ix.CallbackGasLimit < structs.MinimumCallbackGasLimit || ix.CallbackGasLimit > structs.MaximumCallbackGasLimit {
		return ErrInvalidCallbackGasLimit
	}
	return nil
}

func (p *Program) requestRandomness(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix *structs.RequestRandomness) error {
	if len(accounts) < 4 {
		return ledger.ErrNotEnoughAccountKeys
	}
	requester, reqAcct, subAcct := accounts[0], accounts[1], accounts[2]

	if !requester.IsSigner {
		return ledger.ErrMissingSignature
	} else if err := validateRequest(ix); err != nil {
		return err
	}
	sub, err := p.loadSubscription(subAcct)
	if err != nil {
		return err
	}

	seeds := requestSeeds(subAcct.Key, sub.Nonce)
	expected, bump, err := pubkey.FindProgramAddress(seeds, p.id)
	if err != nil {
		return err
	} else if expected != reqAcct.Key {
		return ledger.ErrInvalidSeeds
	} else if reqAcct.Lamports > 0 || len(reqAcct.Data) > 0 {
		return ledger.ErrAccountAlreadyInUse
	} else if sub.Balance < sub.MinBalance {
		ctx.Log("VRF Coordinator: Error - balance %d below minimum %d", sub.Balance, sub.MinBalance)
		return ErrInsufficientBalance
	} else if sub.Nonce == math.MaxUint64 {
		return ledger.ErrArithmeticOverflow
	}

	var callback pubkey.Pubkey
	if len(accounts) > 4 {
		if !accounts[4].Executable {
			return ErrInvalidRequestParameters
		}
		callback = accounts[4].Key
	}

	confirmations := ix.MinimumConfirmations
	if sub.Confirmations > confirmations {
		confirmations = sub.Confirmations
	}
	req := &structs.RandomnessRequest{
		Subscription:     subAcct.Key,
		Seed:             ix.Seed,
		Requester:        requester.Key,
		CallbackProgram:  callback,
		CallbackData:     ix.CallbackData,
		RequestSlot:      ctx.Slot(),
		Status:           structs.StatusPending,
		NumWords:         ix.NumWords,
		CallbackGasLimit: ix.CallbackGasLimit,
		Confirmations:    confirmations,
		Nonce:            sub.Nonce,
	}
	req.Commitment = commitments.Commit(CommitmentDomain, req.CommitmentBody())

	if err := p.createAccount(ctx, requester, reqAcct, req, withBump(seeds, bump)); err != nil {
		return err
	}

	// The fee is reserved now and paid to the oracle on fulfillment.
	sub.Balance -= sub.MinBalance
	sub.Nonce++
	if err := structs.Store(subAcct.Data, sub); err != nil {
		return err
	}

	ctx.Logger().Debug("randomness requested",
		zap.Stringer("request", reqAcct.Key),
		zap.Uint64("nonce", req.Nonce),
		zap.Uint8("confirmations", confirmations),
	)
	emit(ctx, &structs.RandomnessRequested{
		RequestID:    reqAcct.Key,
		Requester:    requester.Key,
		Subscription: subAcct.Key,
		Seed:         ix.Seed,
	})
	return nil
}

func (p *Program) fulfillRandomness(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix *structs.FulfillRandomness) error {
	if len(accounts) < 6 {
		return ledger.ErrNotEnoughAccountKeys
	}
	oracle, reqAcct, resultAcct, subAcct, configAcct := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if !oracle.IsSigner {
		return ErrInvalidOracleSigner
	}

	// Oracle authorization.
	expectedConfig, _, err := OracleConfigAddress(p.id, oracle.Key)
	if err != nil {
		return err
	} else if expectedConfig != configAcct.Key {
		return ErrInvalidOracle
	}
	config, err := p.loadOracleConfig(configAcct)
	if err != nil {
		return err
	} else if !config.IsActive || config.OracleKey != oracle.Key {
		return ErrInvalidOracle
	} else if !bytes.Equal(ix.PublicKey, config.VrfKey[:]) {
		ctx.Log("VRF Coordinator: Error - VRF key does not match oracle registration")
		return ErrInvalidOracle
	}

	// Request state.
	req, err := p.loadRequest(reqAcct)
	if err != nil {
		return err
	}
	switch req.Status {
	case structs.StatusPending:
	case structs.StatusFulfilled:
		return ErrRequestAlreadyFulfilled
	default:
		return ErrInvalidRequestStatus
	}
	if req.Subscription != subAcct.Key {
		return ErrInvalidRequestParameters
	}
	slot := ctx.Slot()
	if slot >= req.ExpiredAt() {
		return ErrRequestExpired
	} else if slot < req.ReadyAt() {
		ctx.Log("VRF Coordinator: Error - request ready at slot %d, current slot %d", req.ReadyAt(), slot)
		return ErrInsufficientConfirmations
	} else if !commitments.Verify(CommitmentDomain, req.CommitmentBody(), req.Commitment[:]) {
		return ErrInvalidCommitment
	}

	// Proof.
	vrfKey, err := ristretto255.NewPublicKey(ix.PublicKey)
	if err != nil {
		return ErrInvalidVrfProof
	}
	output, err := vrfKey.Verify(req.Commitment[:], ix.Proof)
	if err != nil {
		ctx.Log("VRF Coordinator: Error - %v", err)
		return ErrInvalidVrfProof
	}
	randomness := DeriveRandomness(output, req.NumWords)

	// Fee.
	sub, err := p.loadSubscription(subAcct)
	if err != nil {
		return err
	}
	fee := sub.MinBalance
	if subAcct.Lamports < fee || subAcct.Lamports-fee < ledger.MinimumBalance(uint64(len(subAcct.Data))) {
		return ErrNotRentExempt
	}

	// Result account.
	seeds := vrfResultSeeds(reqAcct.Key)
	expectedResult, bump, err := pubkey.FindProgramAddress(seeds, p.id)
	if err != nil {
		return err
	} else if expectedResult != resultAcct.Key {
		return ledger.ErrInvalidSeeds
	} else if resultAcct.Lamports > 0 || len(resultAcct.Data) > 0 {
		return ErrRequestAlreadyFulfilled
	}
	result := &structs.VrfResult{
		Randomness: randomness,
		Proof:      ix.Proof,
		ProofSlot:  slot,
	}
	if err := p.createAccount(ctx, oracle, resultAcct, result, withBump(seeds, bump)); err != nil {
		return err
	}

	req.Status = structs.StatusFulfilled
	if err := structs.Store(reqAcct.Data, req); err != nil {
		return err
	}
	subAcct.Lamports -= fee
	oracle.Lamports += fee

	emit(ctx, &structs.RandomnessFulfilled{
		RequestID:  reqAcct.Key,
		Requester:  req.Requester,
		Randomness: randomness[0],
	})

	if !req.HasCallback() {
		return nil
	} else if len(accounts) < 7 || accounts[6].Key != req.CallbackProgram {
		return ErrInvalidRequestParameters
	}
	callback := ledger.Instruction{
		ProgramID: req.CallbackProgram,
		Accounts: []ledger.AccountMeta{
			ledger.Readonly(resultAcct.Key, false),
			ledger.Readonly(reqAcct.Key, false),
		},
		Data: req.CallbackData,
	}
	for _, extra := range accounts[7:] {
		callback.Accounts = append(callback.Accounts, ledger.AccountMeta{
			Pubkey:     extra.Key,
			IsWritable: extra.IsWritable,
		})
	}
	ctx.Log("VRF Coordinator: Making CPI call to %v", req.CallbackProgram)
	if err := ctx.Invoke(callback); err != nil {
		ctx.Log("VRF Coordinator: Error - callback failed: %v", err)
		return ErrCallbackFailed
	}
	return nil
}

func (p *Program) cancelRequest(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	owner, reqAcct, subAcct := accounts[0], accounts[1], accounts[2]

	if !owner.IsSigner {
		return ledger.ErrMissingSignature
	}
	req, err := p.loadRequest(reqAcct)
	if err != nil {
		return err
	} else if req.Status != structs.StatusPending {
		return ErrInvalidRequestStatus
	} else if req.Subscription != subAcct.Key {
		return ErrInvalidRequestParameters
	}
	sub, err := p.loadSubscription(subAcct)
	if err != nil {
		return err
	} else if sub.Owner != owner.Key {
		return ErrInvalidSubscriptionOwner
	} else if sub.Balance > math.MaxUint64-sub.MinBalance {
		return ledger.ErrArithmeticOverflow
	}

	sub.Balance += sub.MinBalance
	req.Status = structs.StatusCancelled
	if err := structs.Store(subAcct.Data, sub); err != nil {
		return err
	} else if err := structs.Store(reqAcct.Data, req); err != nil {
		return err
	}

	emit(ctx, &structs.RequestCancelled{
		RequestID:    reqAcct.Key,
		Subscription: subAcct.Key,
	})
	return nil
}

func (p *Program) checkAdmin(admin *ledger.AccountInfo) error {
	if !admin.IsSigner {
		return ledger.ErrMissingSignature
	} else if admin.Key != p.admin {
		return ErrInvalidOracleSigner
	}
	return nil
}

func (p *Program) registerOracle(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix *structs.RegisterOracle) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	admin, configAcct := accounts[0], accounts[1]

	if err := p.checkAdmin(admin); err != nil {
		return err
	} else if _, err := ristretto255.NewPublicKey(ix.VrfKey[:]); err != nil {
		return ErrInvalidOracle
	}
	seeds := oracleSeeds(ix.OracleKey)
	expected, bump, err := pubkey.FindProgramAddress(seeds, p.id)
	if err != nil {
		return err
	} else if expected != configAcct.Key {
		return ledger.ErrInvalidSeeds
	}
	config := &structs.OracleConfig{
		OracleKey: ix.OracleKey,
		VrfKey:    ix.VrfKey,
		IsActive:  true,
	}

	// A deactivated oracle is re-registered in place.
	if configAcct.Owner == p.id {
		if _, err := p.loadOracleConfig(configAcct); err != nil {
			return err
		}
		return structs.Store(configAcct.Data, config)
	}
	if err := p.createAccount(ctx, admin, configAcct, config, withBump(seeds, bump)); err != nil {
		return err
	}
	ctx.Log("VRF Coordinator: Registered oracle %v", ix.OracleKey)
	return nil
}

func (p *Program) deactivateOracle(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, ix *structs.DeactivateOracle) error {
	if len(accounts) < 2 {
		return ledger.ErrNotEnoughAccountKeys
	}
	admin, configAcct := accounts[0], accounts[1]

	if err := p.checkAdmin(admin); err != nil {
		return err
	}
	config, err := p.loadOracleConfig(configAcct)
	if err != nil {
		return err
	} else if config.OracleKey != ix.OracleKey {
		return ErrInvalidOracle
	}
	config.IsActive = false
	if err := structs.Store(configAcct.Data, config); err != nil {
		return err
	}
	ctx.Log("VRF Coordinator: Deactivated oracle %v", ix.OracleKey)
	return nil
}
