package structs

import (
	"bytes"
	"encoding/base64"
	"io"
	"testing"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionLayout(t *testing.T) {
	sub := &Subscription{
		Owner:         pubkey.Pubkey{1},
		Balance:       2,
		MinBalance:    3,
		Confirmations: 4,
		Nonce:         5,
	}
	raw, err := borsh.Marshal(sub)
	require.NoError(t, err)
	require.Len(t, raw, SubscriptionSize)
	assert.Equal(t, []byte("SUBSCRIP"), raw[:8])
	assert.Equal(t, byte(1), raw[8])
	assert.Equal(t, byte(2), raw[40])
	assert.Equal(t, byte(3), raw[48])
	assert.Equal(t, byte(4), raw[56])
	assert.Equal(t, byte(5), raw[57])

	decoded, err := NewSubscription(raw)
	require.NoError(t, err)
	assert.Equal(t, sub, decoded)

	_, err = NewSubscription(raw[:len(raw)-1])
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	raw[0] = 'X'
	_, err = NewSubscription(raw)
	assert.ErrorIs(t, err, ErrDiscriminator)
}

func TestRandomnessRequest(t *testing.T) {
	req := &RandomnessRequest{
		Subscription:     pubkey.NewUnique(),
		Seed:             [32]byte{9},
		Requester:        pubkey.NewUnique(),
		CallbackProgram:  pubkey.NewUnique(),
		CallbackData:     []byte{2},
		RequestSlot:      17,
		Status:           StatusFulfilled,
		NumWords:         3,
		CallbackGasLimit: 200_000,
		Confirmations:    2,
		Nonce:            4,
		Commitment:       [32]byte{1, 2},
	}
	raw, err := borsh.Marshal(req)
	require.NoError(t, err)
	size, err := Size(req)
	require.NoError(t, err)
	assert.Equal(t, len(raw), size)

	decoded, err := NewRandomnessRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, req, decoded)
	assert.True(t, decoded.HasCallback())
	assert.Equal(t, uint64(19), decoded.ReadyAt())
	assert.Equal(t, uint64(10_017), decoded.ExpiredAt())
	assert.Equal(t, "fulfilled", decoded.Status.String())

	// The commitment body ignores status and the commitment itself.
	other := *req
	other.Status = StatusCancelled
	other.Commitment = [32]byte{}
	assert.Equal(t, req.CommitmentBody(), other.CommitmentBody())
	other.Nonce++
	assert.NotEqual(t, req.CommitmentBody(), other.CommitmentBody())

	// Status byte out of range.
	statusOffset := 8 + 32 + 32 + 32 + 32 + 4 + 1 + 8
	raw[statusOffset] = 3
	_, err = NewRandomnessRequest(raw)
	assert.Error(t, err)
}

func TestVrfResult(t *testing.T) {
	res := &VrfResult{
		Randomness: [][RandomnessSize]byte{{1}, {2}},
		Proof:      bytes.Repeat([]byte{7}, 80),
		ProofSlot:  12,
	}
	raw, err := borsh.Marshal(res)
	require.NoError(t, err)
	assert.Len(t, raw, 8+4+2*64+4+80+8)

	decoded, err := NewVrfResult(raw)
	require.NoError(t, err)
	assert.Equal(t, res, decoded)

	dst := make([]byte, len(raw))
	require.NoError(t, Store(dst, res))
	assert.Equal(t, raw, dst)
	assert.Error(t, Store(make([]byte, len(raw)+1), res))
}

func TestOracleConfig(t *testing.T) {
	oc := &OracleConfig{OracleKey: pubkey.NewUnique(), VrfKey: [32]byte{3}, IsActive: true}
	raw, err := borsh.Marshal(oc)
	require.NoError(t, err)
	assert.Len(t, raw, OracleConfigSize)
	assert.Equal(t, []byte("ORACLE\x00\x00"), raw[:8])

	decoded, err := NewOracleConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, oc, decoded)

	_, err = NewSubscription(raw)
	assert.ErrorIs(t, err, ErrDiscriminator)
}

func TestInstructions(t *testing.T) {
	for _, ix := range []Instruction{
		&CreateSubscription{MinBalance: 1_000_000, Confirmations: 1},
		&FundSubscription{Amount: 5},
		&RequestRandomness{
			Seed:                 [32]byte{1},
			CallbackData:         []byte{2},
			NumWords:             1,
			MinimumConfirmations: 1,
			CallbackGasLimit:     200_000,
		},
		&FulfillRandomness{Proof: make([]byte, 80), PublicKey: make([]byte, 32)},
		&CancelRequest{},
		&RegisterOracle{OracleKey: pubkey.NewUnique(), VrfKey: [32]byte{4}},
		&DeactivateOracle{OracleKey: pubkey.NewUnique()},
	} {
		raw, err := MarshalInstruction(ix)
		require.NoError(t, err)
		assert.Equal(t, byte(ix.Tag()), raw[0])

		decoded, err := NewInstruction(raw)
		require.NoError(t, err)
		assert.Equal(t, ix, decoded)

		_, err = NewInstruction(append(raw, 0))
		assert.ErrorIs(t, err, borsh.ErrTrailingData)
	}

	raw, err := MarshalInstruction(&CreateSubscription{MinBalance: 1, Confirmations: 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 0, 0, 0, 0, 0, 0, 2}, raw)

	_, err = NewInstruction([]byte{7})
	assert.Error(t, err)
	_, err = NewInstruction(nil)
	assert.Error(t, err)
}

func TestVerifyVrfInput(t *testing.T) {
	in := &VerifyVrfInput{Alpha: []byte("a"), Proof: []byte("p"), PublicKey: []byte("k")}
	raw, err := borsh.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 'a', 1, 0, 0, 0, 'p', 1, 0, 0, 0, 'k'}, raw)

	decoded, err := NewVerifyVrfInput(raw)
	require.NoError(t, err)
	assert.Equal(t, in, decoded)
}

func TestEvents(t *testing.T) {
	for _, ev := range []Event{
		&RandomnessRequested{RequestID: pubkey.NewUnique(), Requester: pubkey.NewUnique(), Subscription: pubkey.NewUnique(), Seed: [32]byte{1}},
		&RandomnessFulfilled{RequestID: pubkey.NewUnique(), Requester: pubkey.NewUnique(), Randomness: [64]byte{2}},
		&SubscriptionCreated{Subscription: pubkey.NewUnique(), Owner: pubkey.NewUnique(), MinBalance: 3},
		&SubscriptionFunded{Subscription: pubkey.NewUnique(), Funder: pubkey.NewUnique(), Amount: 4},
		&RequestCancelled{RequestID: pubkey.NewUnique(), Subscription: pubkey.NewUnique()},
	} {
		line := "Program log: " + FormatEvent(ev)
		parsed, err := ParseEvent(line)
		require.NoError(t, err)
		assert.Equal(t, ev, parsed)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("Program log: VRF Coordinator: Creating subscription...")
	assert.NoError(t, err)
	assert.Nil(t, ev)

	_, err = ParseEvent("VRF_EVENT:not base64!")
	assert.Error(t, err)

	_, err = ParseEvent("VRF_EVENT:" + base64.StdEncoding.EncodeToString([]byte{9}))
	assert.Error(t, err)

	// Tag 0 needs more than 64 bytes of body.
	_, err = ParseEvent("VRF_EVENT:" + base64.StdEncoding.EncodeToString(make([]byte, 65)))
	assert.Error(t, err)

	// Tag 4 is RequestCancelled, and 64 zero bytes decode as two zero keys.
	raw := append([]byte{4}, make([]byte, 64)...)
	ev, err = ParseEvent("VRF_EVENT:" + base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, &RequestCancelled{}, ev)
}
