package structs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/pubkey"
)

type InstructionTag uint8

const (
	TagCreateSubscription InstructionTag = iota
	TagFundSubscription
	TagRequestRandomness
	TagFulfillRandomness
	TagCancelRequest
	TagRegisterOracle
	TagDeactivateOracle
)

// Instruction is one of the coordinator's instructions.
type Instruction interface {
	Tag() InstructionTag
	marshalBody(buf *bytes.Buffer) error
}

type CreateSubscription struct {
	MinBalance    uint64
	Confirmations uint8
}

func (*CreateSubscription) Tag() InstructionTag { return TagCreateSubscription }

func (ix *CreateSubscription) marshalBody(buf *bytes.Buffer) error {
	borsh.WriteU64(buf, ix.MinBalance)
	return buf.WriteByte(ix.Confirmations)
}

type FundSubscription struct {
	Amount uint64
}

func (*FundSubscription) Tag() InstructionTag { return TagFundSubscription }

func (ix *FundSubscription) marshalBody(buf *bytes.Buffer) error {
	borsh.WriteU64(buf, ix.Amount)
	return nil
}

type RequestRandomness struct {
	Seed                 [SeedSize]byte
	CallbackData         []byte
	NumWords             uint32
	MinimumConfirmations uint8
	CallbackGasLimit     uint64
}

func (*RequestRandomness) Tag() InstructionTag { return TagRequestRandomness }

func (ix *RequestRandomness) marshalBody(buf *bytes.Buffer) error {
	buf.Write(ix.Seed[:])
	if err := borsh.WriteBytes(buf, ix.CallbackData, "callback data"); err != nil {
		return err
	}
	borsh.WriteU32(buf, ix.NumWords)
	buf.WriteByte(ix.MinimumConfirmations)
	borsh.WriteU64(buf, ix.CallbackGasLimit)
	return nil
}

type FulfillRandomness struct {
	Proof     []byte
	PublicKey []byte
}

func (*FulfillRandomness) Tag() InstructionTag { return TagFulfillRandomness }

func (ix *FulfillRandomness) marshalBody(buf *bytes.Buffer) error {
	if err := borsh.WriteBytes(buf, ix.Proof, "proof"); err != nil {
		return err
	}
	return borsh.WriteBytes(buf, ix.PublicKey, "public key")
}

type CancelRequest struct{}

func (*CancelRequest) Tag() InstructionTag            { return TagCancelRequest }
func (*CancelRequest) marshalBody(*bytes.Buffer) error { return nil }

type RegisterOracle struct {
	OracleKey pubkey.Pubkey
	VrfKey    [32]byte
}

func (*RegisterOracle) Tag() InstructionTag { return TagRegisterOracle }

func (ix *RegisterOracle) marshalBody(buf *bytes.Buffer) error {
	borsh.WritePubkey(buf, ix.OracleKey)
	buf.Write(ix.VrfKey[:])
	return nil
}

type DeactivateOracle struct {
	OracleKey pubkey.Pubkey
}

func (*DeactivateOracle) Tag() InstructionTag { return TagDeactivateOracle }

func (ix *DeactivateOracle) marshalBody(buf *bytes.Buffer) error {
	borsh.WritePubkey(buf, ix.OracleKey)
	return nil
}

// MarshalInstruction returns the instruction data for `ix`.
func MarshalInstruction(ix Instruction) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte(uint8(ix.Tag()))
	if err := ix.marshalBody(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewInstruction decodes instruction data.
func NewInstruction(data []byte) (Instruction, error) {
	buf := bytes.NewBuffer(data)
	tag, err := borsh.ReadU8(buf)
	if err != nil {
		return nil, err
	}

	var ix Instruction
	switch InstructionTag(tag) {
	case TagCreateSubscription:
		out := &CreateSubscription{}
		if out.MinBalance, err = borsh.ReadU64(buf); err != nil {
			return nil, err
		} else if out.Confirmations, err = borsh.ReadU8(buf); err != nil {
			return nil, err
		}
		ix = out

	case TagFundSubscription:
		out := &FundSubscription{}
		if out.Amount, err = borsh.ReadU64(buf); err != nil {
			return nil, err
		}
		ix = out

	case TagRequestRandomness:
		out := &RequestRandomness{}
		if out.Seed, err = readArray32(buf); err != nil {
			return nil, err
		} else if out.CallbackData, err = borsh.ReadBytes(buf); err != nil {
			return nil, err
		} else if out.NumWords, err = borsh.ReadU32(buf); err != nil {
			return nil, err
		} else if out.MinimumConfirmations, err = borsh.ReadU8(buf); err != nil {
			return nil, err
		} else if out.CallbackGasLimit, err = borsh.ReadU64(buf); err != nil {
			return nil, err
		}
		ix = out

	case TagFulfillRandomness:
		out := &FulfillRandomness{}
		if out.Proof, err = borsh.ReadBytes(buf); err != nil {
			return nil, err
		} else if out.PublicKey, err = borsh.ReadBytes(buf); err != nil {
			return nil, err
		}
		ix = out

	case TagCancelRequest:
		ix = &CancelRequest{}

	case TagRegisterOracle:
		out := &RegisterOracle{}
		if out.OracleKey, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if out.VrfKey, err = readArray32(buf); err != nil {
			return nil, err
		}
		ix = out

	case TagDeactivateOracle:
		out := &DeactivateOracle{}
		if out.OracleKey, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		}
		ix = out

	default:
		return nil, fmt.Errorf("unknown instruction tag %d", tag)
	}

	if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	return ix, nil
}

// VerifyVrfInput is the instruction data of the standalone verifier program.
type VerifyVrfInput struct {
	Alpha     []byte
	Proof     []byte
	PublicKey []byte
}

func NewVerifyVrfInput(data []byte) (*VerifyVrfInput, error) {
	buf := bytes.NewBuffer(data)
	in := &VerifyVrfInput{}
	var err error
	if in.Alpha, err = borsh.ReadBytes(buf); err != nil {
		return nil, err
	} else if in.Proof, err = borsh.ReadBytes(buf); err != nil {
		return nil, err
	} else if in.PublicKey, err = borsh.ReadBytes(buf); err != nil {
		return nil, err
	} else if err := borsh.Finish(buf); err != nil {
		return nil, errors.New("verify input has trailing data")
	}
	return in, nil
}

func (in *VerifyVrfInput) Marshal(buf *bytes.Buffer) error {
	if err := borsh.WriteBytes(buf, in.Alpha, "alpha"); err != nil {
		return err
	} else if err := borsh.WriteBytes(buf, in.Proof, "proof"); err != nil {
		return err
	}
	return borsh.WriteBytes(buf, in.PublicKey, "public key")
}
