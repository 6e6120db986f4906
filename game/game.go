// Package game implements an example consumer of the VRF coordinator. Each
// game keeps a number between 1 and 100 that is redrawn from verified
// randomness on request.
package game

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
)

type instructionTag uint8

const (
	tagInitialize instructionTag = iota
	tagRequestNewNumber
	tagConsumeRandomness
)

const callbackGasLimit = 200_000

type Program struct {
	id          pubkey.Pubkey
	coordinator pubkey.Pubkey
}

// New returns the game program at `id`, accepting randomness only from the
// coordinator at `coordinatorID`.
func New(id, coordinatorID pubkey.Pubkey) *Program {
	return &Program{id: id, coordinator: coordinatorID}
}

func (p *Program) ID() pubkey.Pubkey { return p.id }

func (p *Program) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) != 1 {
		ctx.Log("Game Program: Failed to deserialize instruction")
		return ledger.ErrInvalidInstructionData
	}
	switch instructionTag(data[0]) {
	case tagInitialize:
		return p.initialize(ctx, accounts)
	case tagRequestNewNumber:
		return p.requestNewNumber(ctx, accounts)
	case tagConsumeRandomness:
		return p.consumeRandomness(ctx, accounts)
	default:
		return ledger.ErrInvalidInstructionData
	}
}

func (p *Program) initialize(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	if len(accounts) < 5 {
		return ledger.ErrNotEnoughAccountKeys
	}
	owner, stateAcct, subAcct, payer := accounts[0], accounts[1], accounts[2], accounts[3]

	if !owner.IsSigner || !payer.IsSigner {
		ctx.Log("Game Program: Error - Missing signature")
		return ledger.ErrMissingSignature
	}
	seeds := stateSeeds(owner.Key)
	expected, bump, err := pubkey.FindProgramAddress(seeds, p.id)
	if err != nil {
		return err
	} else if expected != stateAcct.Key {
		ctx.Log("Game Program: Error - Invalid game state PDA")
		return ledger.ErrInvalidSeeds
	}

	create := ledger.CreateAccount(payer.Key, stateAcct.Key, ledger.MinimumBalance(StateSize), StateSize, p.id)
	if err := ctx.Invoke(create, append(seeds, []byte{bump})); err != nil {
		return err
	}
	state := &State{Owner: owner.Key, Subscription: subAcct.Key}
	return state.store(stateAcct.Data)
}

// requestSeed derives the seed for the next request of a game.
func requestSeed(owner pubkey.Pubkey, nonce uint64) [structs.SeedSize]byte {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], nonce)

	h := sha256.New()
	h.Write(owner[:])
	h.Write(le[:])

	var out [structs.SeedSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (p *Program) loadState(info *ledger.AccountInfo) (*State, error) {
	if info.Owner != p.id {
		return nil, ledger.ErrIllegalOwner
	}
	state, err := NewState(info.Data)
	if err != nil {
		return nil, ledger.ErrInvalidAccountData
	}
	expected, _, err := StateAddress(p.id, state.Owner)
	if err != nil {
		return nil, err
	} else if expected != info.Key {
		return nil, ledger.ErrInvalidSeeds
	}
	return state, nil
}

func (p *Program) requestNewNumber(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	if len(accounts) < 6 {
		return ledger.ErrNotEnoughAccountKeys
	}
	owner, stateAcct, reqAcct, subAcct, coordAcct := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if !owner.IsSigner {
		return ledger.ErrMissingSignature
	} else if coordAcct.Key != p.coordinator {
		return ErrInvalidVrfCoordinator
	}
	state, err := p.loadState(stateAcct)
	if err != nil {
		return err
	} else if state.Owner != owner.Key {
		return ErrInvalidOwner
	} else if state.IsPending {
		return ErrAlreadyPending
	} else if state.Subscription != subAcct.Key {
		return ledger.ErrInvalidArgument
	}
	sub, err := structs.NewSubscription(subAcct.Data)
	if err != nil {
		return ledger.ErrInvalidAccountData
	}

	ix, _, err := coordinator.NewRequestRandomness(p.coordinator, owner.Key, subAcct.Key, sub.Nonce,
		&structs.RequestRandomness{
			Seed:                 requestSeed(owner.Key, sub.Nonce),
			CallbackData:         []byte{byte(tagConsumeRandomness)},
			NumWords:             1,
			MinimumConfirmations: 1,
			CallbackGasLimit:     callbackGasLimit,
		},
		p.id,
	)
	if err != nil {
		return err
	} else if ix.Accounts[1].Pubkey != reqAcct.Key {
		return ledger.ErrInvalidSeeds
	}
	if err := ctx.Invoke(ix); err != nil {
		return err
	}

	state.IsPending = true
	state.PendingRequest = reqAcct.Key
	return state.store(stateAcct.Data)
}

func (p *Program) consumeRandomness(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	if len(accounts) < 3 {
		return ledger.ErrNotEnoughAccountKeys
	}
	resultAcct, reqAcct, stateAcct := accounts[0], accounts[1], accounts[2]

	state, err := p.loadState(stateAcct)
	if err != nil {
		return err
	} else if resultAcct.Owner != p.coordinator || reqAcct.Owner != p.coordinator {
		ctx.Log("Game Program: Error - VRF accounts are not owned by %v", p.coordinator)
		return ErrInvalidVrfCoordinator
	} else if !state.IsPending {
		return ErrNotPending
	} else if reqAcct.Key != state.PendingRequest {
		ctx.Log("Game Program: Error - expected randomness for request %v", state.PendingRequest)
		return ErrInvalidVrfRequest
	}
	expected, _, err := coordinator.VrfResultAddress(p.coordinator, reqAcct.Key)
	if err != nil {
		return err
	} else if expected != resultAcct.Key {
		return ErrInvalidVrfResult
	}

	req, err := structs.NewRandomnessRequest(reqAcct.Data)
	if err != nil || req.Requester != state.Owner || req.CallbackProgram != p.id {
		return ErrInvalidVrfRequest
	}
	result, err := structs.NewVrfResult(resultAcct.Data)
	if err != nil || len(result.Randomness) == 0 {
		return ErrInvalidVrfResult
	}

	value := binary.LittleEndian.Uint64(result.Randomness[0][:8])
	state.CurrentNumber = uint8(value%100) + 1
	state.IsPending = false
	state.PendingRequest = pubkey.Zero
	ctx.Log("Game Program: New random number: %d", state.CurrentNumber)

	return state.store(stateAcct.Data)
}

// NewInitialize creates the game state of `owner`, paid for by `payer`.
func NewInitialize(programID, owner, subscription, payer pubkey.Pubkey) (ledger.Instruction, error) {
	state, _, err := StateAddress(programID, owner)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Readonly(owner, true),
			ledger.Writable(state, false),
			ledger.Readonly(subscription, false),
			ledger.Writable(payer, true),
			ledger.Readonly(ledger.SystemProgramID, false),
		},
		Data: []byte{byte(tagInitialize)},
	}, nil
}

// NewRequestNewNumber asks the coordinator for a new number. `nonce` must be
// the subscription's current nonce. It also returns the request address.
func NewRequestNewNumber(programID, coordinatorID, owner, subscription pubkey.Pubkey, nonce uint64) (ledger.Instruction, pubkey.Pubkey, error) {
	state, _, err := StateAddress(programID, owner)
	if err != nil {
		return ledger.Instruction{}, pubkey.Zero, err
	}
	request, _, err := coordinator.RequestAddress(coordinatorID, subscription, nonce)
	if err != nil {
		return ledger.Instruction{}, pubkey.Zero, err
	}
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(owner, true),
			ledger.Writable(state, false),
			ledger.Writable(request, false),
			ledger.Writable(subscription, false),
			ledger.Readonly(coordinatorID, false),
			ledger.Readonly(ledger.SystemProgramID, false),
		},
		Data: []byte{byte(tagRequestNewNumber)},
	}, request, nil
}

// CallbackAccounts returns the accounts the coordinator must pass to the
// game's callback for a request made by `requester`.
func CallbackAccounts(programID, requester pubkey.Pubkey) ([]ledger.AccountMeta, error) {
	state, _, err := StateAddress(programID, requester)
	if err != nil {
		return nil, err
	}
	return []ledger.AccountMeta{ledger.Writable(state, false)}, nil
}
