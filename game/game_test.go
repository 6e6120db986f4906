package game

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/Bren2010/kamui/coordinator"
	"github.com/Bren2010/kamui/coordinator/structs"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/db/memory"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type env struct {
	t             *testing.T
	ledger        *ledger.Ledger
	coordinatorID pubkey.Pubkey
	gameID        pubkey.Pubkey

	admin, oracle, owner *pubkey.Keypair
	vrfKey               *ristretto255.PrivateKey
	subscription         pubkey.Pubkey
}

func newEnv(t *testing.T) *env {
	e := &env{
		t:             t,
		ledger:        ledger.New(memory.NewLedgerStore(), zaptest.NewLogger(t)),
		coordinatorID: pubkey.NewUnique(),
		gameID:        pubkey.NewUnique(),
		admin:         pubkey.NewKeypair(),
		oracle:        pubkey.NewKeypair(),
		owner:         pubkey.NewKeypair(),
	}
	var err error
	e.vrfKey, err = ristretto255.NewPrivateKey(ristretto255.GeneratePrivateKey())
	require.NoError(t, err)

	require.NoError(t, e.ledger.RegisterProgram(e.coordinatorID, coordinator.New(e.coordinatorID, e.admin.Pubkey())))
	require.NoError(t, e.ledger.RegisterProgram(e.gameID, New(e.gameID, e.coordinatorID)))
	for _, kp := range []*pubkey.Keypair{e.admin, e.oracle, e.owner} {
		require.NoError(t, e.ledger.Airdrop(kp.Pubkey(), 10*ledger.LamportsPerSol))
	}

	var vrfKey [32]byte
	copy(vrfKey[:], e.vrfKey.PublicKey().Bytes())
	ix, err := coordinator.NewRegisterOracle(e.coordinatorID, e.admin.Pubkey(), e.oracle.Pubkey(), vrfKey)
	e.mustSubmit(ix, err, e.admin)

	sub := pubkey.NewKeypair()
	ix, err = coordinator.NewCreateSubscription(e.coordinatorID, e.owner.Pubkey(), sub.Pubkey(), 1_000_000, 1)
	e.mustSubmit(ix, err, e.owner, sub)
	e.subscription = sub.Pubkey()
	ix, err = coordinator.NewFundSubscription(e.coordinatorID, e.owner.Pubkey(), e.subscription, 10_000_000)
	e.mustSubmit(ix, err, e.owner)

	return e
}

func (e *env) submit(ix ledger.Instruction, err error, signers ...*pubkey.Keypair) error {
	require.NoError(e.t, err)
	slot, err := e.ledger.Slot()
	require.NoError(e.t, err)
	tx, err := ledger.NewTransaction(slot, []ledger.Instruction{ix}, signers...)
	require.NoError(e.t, err)
	_, err = e.ledger.ProcessTransaction(context.Background(), tx)
	return err
}

func (e *env) mustSubmit(ix ledger.Instruction, err error, signers ...*pubkey.Keypair) {
	require.NoError(e.t, e.submit(ix, err, signers...))
}

func (e *env) state() *State {
	key, _, err := StateAddress(e.gameID, e.owner.Pubkey())
	require.NoError(e.t, err)
	acct, err := e.ledger.GetAccount(key)
	require.NoError(e.t, err)
	state, err := NewState(acct.Data)
	require.NoError(e.t, err)
	return state
}

func (e *env) nonce() uint64 {
	acct, err := e.ledger.GetAccount(e.subscription)
	require.NoError(e.t, err)
	sub, err := structs.NewSubscription(acct.Data)
	require.NoError(e.t, err)
	return sub.Nonce
}

func (e *env) requestNumber() (pubkey.Pubkey, error) {
	ix, request, err := NewRequestNewNumber(e.gameID, e.coordinatorID, e.owner.Pubkey(), e.subscription, e.nonce())
	return request, e.submit(ix, err, e.owner)
}

func (e *env) fulfill(request pubkey.Pubkey) []byte {
	acct, err := e.ledger.GetAccount(request)
	require.NoError(e.t, err)
	req, err := structs.NewRandomnessRequest(acct.Data)
	require.NoError(e.t, err)

	output, proof := e.vrfKey.Prove(req.Commitment[:])
	extra, err := CallbackAccounts(e.gameID, req.Requester)
	require.NoError(e.t, err)
	ix, err := coordinator.NewFulfillRandomness(e.coordinatorID, e.oracle.Pubkey(), request, req, proof, e.vrfKey.PublicKey().Bytes(), extra...)
	e.mustSubmit(ix, err, e.oracle)
	return output
}

func TestGame(t *testing.T) {
	e := newEnv(t)

	ix, err := NewInitialize(e.gameID, e.owner.Pubkey(), e.subscription, e.owner.Pubkey())
	e.mustSubmit(ix, err, e.owner)
	assert.Equal(t, &State{Owner: e.owner.Pubkey(), Subscription: e.subscription}, e.state())

	request, err := e.requestNumber()
	require.NoError(t, err)
	assert.True(t, e.state().IsPending)
	assert.Equal(t, request, e.state().PendingRequest)

	acct, err := e.ledger.GetAccount(request)
	require.NoError(t, err)
	req, err := structs.NewRandomnessRequest(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, e.gameID, req.CallbackProgram)
	assert.Equal(t, e.owner.Pubkey(), req.Requester)
	assert.Equal(t, []byte{byte(tagConsumeRandomness)}, req.CallbackData)
	assert.Equal(t, requestSeed(e.owner.Pubkey(), 0), req.Seed)

	_, err = e.requestNumber()
	assert.ErrorIs(t, err, ErrAlreadyPending)

	_, err = e.ledger.AdvanceSlot(1)
	require.NoError(t, err)
	output := e.fulfill(request)

	state := e.state()
	assert.False(t, state.IsPending)
	assert.Equal(t, pubkey.Zero, state.PendingRequest)
	assert.Equal(t, uint8(binary.LittleEndian.Uint64(output[:8])%100)+1, state.CurrentNumber)
	assert.GreaterOrEqual(t, state.CurrentNumber, uint8(1))
	assert.LessOrEqual(t, state.CurrentNumber, uint8(100))

	// A second round uses the next nonce.
	request, err = e.requestNumber()
	require.NoError(t, err)
	_, err = e.ledger.AdvanceSlot(1)
	require.NoError(t, err)
	e.fulfill(request)
	assert.False(t, e.state().IsPending)
}

func TestInitializeWrongAddress(t *testing.T) {
	e := newEnv(t)
	ix, err := NewInitialize(e.gameID, e.owner.Pubkey(), e.subscription, e.owner.Pubkey())
	require.NoError(t, err)
	ix.Accounts[1].Pubkey = pubkey.NewUnique()
	assert.ErrorIs(t, e.submit(ix, nil, e.owner), ledger.ErrInvalidSeeds)
}

func TestConsumeRequiresCoordinatorAccounts(t *testing.T) {
	e := newEnv(t)
	ix, err := NewInitialize(e.gameID, e.owner.Pubkey(), e.subscription, e.owner.Pubkey())
	e.mustSubmit(ix, err, e.owner)

	stateKey, _, err := StateAddress(e.gameID, e.owner.Pubkey())
	require.NoError(t, err)
	fake := pubkey.NewKeypair()
	require.NoError(t, e.ledger.Airdrop(fake.Pubkey(), 1))

	// Anyone can call the callback directly, but not with forged accounts.
	err = e.submit(ledger.Instruction{
		ProgramID: e.gameID,
		Accounts: []ledger.AccountMeta{
			ledger.Readonly(fake.Pubkey(), false),
			ledger.Readonly(fake.Pubkey(), false),
			ledger.Writable(stateKey, false),
		},
		Data: []byte{byte(tagConsumeRandomness)},
	}, nil, e.owner)
	assert.ErrorIs(t, err, ErrInvalidVrfCoordinator)
}

func TestConsumeRejectsStaleResult(t *testing.T) {
	e := newEnv(t)
	ix, err := NewInitialize(e.gameID, e.owner.Pubkey(), e.subscription, e.owner.Pubkey())
	e.mustSubmit(ix, err, e.owner)
	stateKey, _, err := StateAddress(e.gameID, e.owner.Pubkey())
	require.NoError(t, err)

	first, err := e.requestNumber()
	require.NoError(t, err)
	_, err = e.ledger.AdvanceSlot(1)
	require.NoError(t, err)
	e.fulfill(first)
	number := e.state().CurrentNumber

	resultKey, _, err := coordinator.VrfResultAddress(e.coordinatorID, first)
	require.NoError(t, err)
	replay := ledger.Instruction{
		ProgramID: e.gameID,
		Accounts: []ledger.AccountMeta{
			ledger.Readonly(resultKey, false),
			ledger.Readonly(first, false),
			ledger.Writable(stateKey, false),
		},
		Data: []byte{byte(tagConsumeRandomness)},
	}

	// Replaying a consumed result while nothing is pending.
	assert.ErrorIs(t, e.submit(replay, nil, e.owner), ErrNotPending)

	// Replaying it while a newer request is pending.
	second, err := e.requestNumber()
	require.NoError(t, err)
	assert.ErrorIs(t, e.submit(replay, nil, e.owner), ErrInvalidVrfRequest)

	state := e.state()
	assert.True(t, state.IsPending)
	assert.Equal(t, second, state.PendingRequest)
	assert.Equal(t, number, state.CurrentNumber)
}

func TestRequestNewNumberWrongOwner(t *testing.T) {
	e := newEnv(t)
	ix, err := NewInitialize(e.gameID, e.owner.Pubkey(), e.subscription, e.owner.Pubkey())
	e.mustSubmit(ix, err, e.owner)

	// Point a stranger's request at the owner's game state.
	stranger := pubkey.NewKeypair()
	require.NoError(t, e.ledger.Airdrop(stranger.Pubkey(), ledger.LamportsPerSol))
	ix, _, err = NewRequestNewNumber(e.gameID, e.coordinatorID, stranger.Pubkey(), e.subscription, e.nonce())
	require.NoError(t, err)
	stateKey, _, err := StateAddress(e.gameID, e.owner.Pubkey())
	require.NoError(t, err)
	ix.Accounts[1].Pubkey = stateKey
	assert.ErrorIs(t, e.submit(ix, nil, stranger), ErrInvalidOwner)
}

func TestStateCodec(t *testing.T) {
	s := &State{
		Owner:          pubkey.NewUnique(),
		Subscription:   pubkey.NewUnique(),
		CurrentNumber:  42,
		IsPending:      true,
		PendingRequest: pubkey.NewUnique(),
	}
	dst := make([]byte, StateSize)
	require.NoError(t, s.store(dst))
	decoded, err := NewState(dst)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	dst[0] = 'X'
	_, err = NewState(dst)
	assert.Error(t, err)
}
