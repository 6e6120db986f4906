package structs

import (
	"bytes"
	"errors"
	"io"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/pubkey"
)

type RequestStatus uint8

const (
	StatusPending RequestStatus = iota
	StatusFulfilled
	StatusCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SubscriptionSize is the length of a subscription account's data.
const SubscriptionSize = DiscriminatorSize + 32 + 8 + 8 + 1 + 8

// Subscription pays for the requests made against it.
type Subscription struct {
	Owner         pubkey.Pubkey
	Balance       uint64
	MinBalance    uint64
	Confirmations uint8
	Nonce         uint64
}

func NewSubscription(data []byte) (*Subscription, error) {
	buf := bytes.NewBuffer(data)
	if err := readDiscriminator(buf, SubscriptionDiscriminator); err != nil {
		return nil, err
	}
	s := &Subscription{}
	var err error
	if s.Owner, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if s.Balance, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	} else if s.MinBalance, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	} else if s.Confirmations, err = borsh.ReadU8(buf); err != nil {
		return nil, err
	} else if s.Nonce, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	} else if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subscription) Marshal(buf *bytes.Buffer) error {
	buf.Write(SubscriptionDiscriminator[:])
	borsh.WritePubkey(buf, s.Owner)
	borsh.WriteU64(buf, s.Balance)
	borsh.WriteU64(buf, s.MinBalance)
	buf.WriteByte(s.Confirmations)
	borsh.WriteU64(buf, s.Nonce)
	return nil
}

// RandomnessRequest is a pending or settled request for randomness.
type RandomnessRequest struct {
	Subscription     pubkey.Pubkey
	Seed             [SeedSize]byte
	Requester        pubkey.Pubkey
	CallbackProgram  pubkey.Pubkey // Zero if there is no callback.
	CallbackData     []byte
	RequestSlot      uint64
	Status           RequestStatus
	NumWords         uint32
	CallbackGasLimit uint64
	Confirmations    uint8
	Nonce            uint64
	Commitment       [32]byte
}

func NewRandomnessRequest(data []byte) (*RandomnessRequest, error) {
	buf := bytes.NewBuffer(data)
	if err := readDiscriminator(buf, RequestDiscriminator); err != nil {
		return nil, err
	}
	r := &RandomnessRequest{}
	var (
		err    error
		status uint8
	)
	if r.Subscription, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if r.Seed, err = readArray32(buf); err != nil {
		return nil, err
	} else if r.Requester, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if r.CallbackProgram, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if r.CallbackData, err = borsh.ReadBytes(buf); err != nil {
		return nil, err
	} else if r.RequestSlot, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	} else if status, err = borsh.ReadU8(buf); err != nil {
		return nil, err
	} else if status > uint8(StatusCancelled) {
		return nil, errors.New("invalid request status")
	} else if r.NumWords, err = borsh.ReadU32(buf); err != nil {
		return nil, err
	} else if r.CallbackGasLimit, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	} else if r.Confirmations, err = borsh.ReadU8(buf); err != nil {
		return nil, err
	} else if r.Nonce, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	} else if r.Commitment, err = readArray32(buf); err != nil {
		return nil, err
	} else if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	r.Status = RequestStatus(status)
	return r, nil
}

func (r *RandomnessRequest) Marshal(buf *bytes.Buffer) error {
	buf.Write(RequestDiscriminator[:])
	borsh.WritePubkey(buf, r.Subscription)
	buf.Write(r.Seed[:])
	borsh.WritePubkey(buf, r.Requester)
	borsh.WritePubkey(buf, r.CallbackProgram)
	if err := borsh.WriteBytes(buf, r.CallbackData, "callback data"); err != nil {
		return err
	}
	borsh.WriteU64(buf, r.RequestSlot)
	buf.WriteByte(uint8(r.Status))
	borsh.WriteU32(buf, r.NumWords)
	borsh.WriteU64(buf, r.CallbackGasLimit)
	buf.WriteByte(r.Confirmations)
	borsh.WriteU64(buf, r.Nonce)
	buf.Write(r.Commitment[:])
	return nil
}

// CommitmentBody returns the request parameters bound by the commitment. The
// status and the commitment itself are excluded.
func (r *RandomnessRequest) CommitmentBody() []byte {
	buf := &bytes.Buffer{}
	borsh.WritePubkey(buf, r.Subscription)
	buf.Write(r.Seed[:])
	borsh.WritePubkey(buf, r.Requester)
	borsh.WritePubkey(buf, r.CallbackProgram)
	borsh.WriteBytes(buf, r.CallbackData, "callback data")
	borsh.WriteU64(buf, r.RequestSlot)
	borsh.WriteU32(buf, r.NumWords)
	borsh.WriteU64(buf, r.CallbackGasLimit)
	buf.WriteByte(r.Confirmations)
	borsh.WriteU64(buf, r.Nonce)
	return buf.Bytes()
}

// HasCallback reports whether a program should be invoked on fulfillment.
func (r *RandomnessRequest) HasCallback() bool { return !r.CallbackProgram.IsZero() }

// ReadyAt returns the first slot in which the request may be fulfilled.
func (r *RandomnessRequest) ReadyAt() uint64 {
	return r.RequestSlot + uint64(r.Confirmations)
}

// ExpiredAt returns the first slot in which the request can no longer be
// fulfilled.
func (r *RandomnessRequest) ExpiredAt() uint64 {
	return r.RequestSlot + RequestLifetime
}

// VrfResult holds the randomness delivered for a request.
type VrfResult struct {
	Randomness [][RandomnessSize]byte
	Proof      []byte
	ProofSlot  uint64
}

func NewVrfResult(data []byte) (*VrfResult, error) {
	buf := bytes.NewBuffer(data)
	if err := readDiscriminator(buf, VrfResultDiscriminator); err != nil {
		return nil, err
	}
	n, err := borsh.ReadLen(buf, RandomnessSize)
	if err != nil {
		return nil, err
	}
	res := &VrfResult{Randomness: make([][RandomnessSize]byte, n)}
	for i := range res.Randomness {
		if buf.Len() < RandomnessSize {
			return nil, io.ErrUnexpectedEOF
		}
		copy(res.Randomness[i][:], buf.Next(RandomnessSize))
	}
	if res.Proof, err = borsh.ReadBytes(buf); err != nil {
		return nil, err
	} else if res.ProofSlot, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	} else if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	return res, nil
}

func (v *VrfResult) Marshal(buf *bytes.Buffer) error {
	buf.Write(VrfResultDiscriminator[:])
	borsh.WriteU32(buf, uint32(len(v.Randomness)))
	for _, word := range v.Randomness {
		buf.Write(word[:])
	}
	if err := borsh.WriteBytes(buf, v.Proof, "proof"); err != nil {
		return err
	}
	borsh.WriteU64(buf, v.ProofSlot)
	return nil
}

// OracleConfigSize is the length of an oracle config account's data.
const OracleConfigSize = DiscriminatorSize + 32 + 32 + 1

// OracleConfig authorizes an oracle to fulfill requests with a VRF key.
type OracleConfig struct {
	OracleKey pubkey.Pubkey
	VrfKey    [32]byte
	IsActive  bool
}

func NewOracleConfig(data []byte) (*OracleConfig, error) {
	buf := bytes.NewBuffer(data)
	if err := readDiscriminator(buf, OracleDiscriminator); err != nil {
		return nil, err
	}
	oc := &OracleConfig{}
	var err error
	if oc.OracleKey, err = borsh.ReadPubkey(buf); err != nil {
		return nil, err
	} else if oc.VrfKey, err = readArray32(buf); err != nil {
		return nil, err
	} else if oc.IsActive, err = borsh.ReadBool(buf); err != nil {
		return nil, err
	} else if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	return oc, nil
}

func (oc *OracleConfig) Marshal(buf *bytes.Buffer) error {
	buf.Write(OracleDiscriminator[:])
	borsh.WritePubkey(buf, oc.OracleKey)
	buf.Write(oc.VrfKey[:])
	borsh.WriteBool(buf, oc.IsActive)
	return nil
}
