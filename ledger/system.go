package ledger

import (
	"bytes"
	"math"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/pubkey"
)

// SystemProgramID is the address of the system program, which owns every
// account that has not been assigned to another program.
var SystemProgramID = pubkey.Zero

// MaxAccountDataSize bounds the space CreateAccount may allocate.
const MaxAccountDataSize = 10 * 1024 * 1024

type systemInstruction uint32

const (
	systemCreateAccount systemInstruction = iota
	systemAssign
	systemTransfer
)

// CreateAccount returns an instruction that funds `to` with `lamports`,
// allocates `space` zeroed bytes for it and assigns it to `owner`. Both
// accounts must sign.
func CreateAccount(from, to pubkey.Pubkey, lamports, space uint64, owner pubkey.Pubkey) Instruction {
	buf := &bytes.Buffer{}
	borsh.WriteU32(buf, uint32(systemCreateAccount))
	borsh.WriteU64(buf, lamports)
	borsh.WriteU64(buf, space)
	borsh.WritePubkey(buf, owner)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{Writable(from, true), Writable(to, true)},
		Data:      buf.Bytes(),
	}
}

// Assign returns an instruction that gives a system account to `owner`.
func Assign(account, owner pubkey.Pubkey) Instruction {
	buf := &bytes.Buffer{}
	borsh.WriteU32(buf, uint32(systemAssign))
	borsh.WritePubkey(buf, owner)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{Writable(account, true)},
		Data:      buf.Bytes(),
	}
}

// Transfer returns an instruction that moves lamports between accounts. The
// source must be a system account and must sign.
func Transfer(from, to pubkey.Pubkey, lamports uint64) Instruction {
	buf := &bytes.Buffer{}
	borsh.WriteU32(buf, uint32(systemTransfer))
	borsh.WriteU64(buf, lamports)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{Writable(from, true), Writable(to, false)},
		Data:      buf.Bytes(),
	}
}

type systemProgram struct{}

func (systemProgram) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	buf := bytes.NewBuffer(data)
	tag, err := borsh.ReadU32(buf)
	if err != nil {
		return ErrInvalidInstructionData
	}

	switch systemInstruction(tag) {
	case systemCreateAccount:
		lamports, err := borsh.ReadU64(buf)
		if err != nil {
			return ErrInvalidInstructionData
		}
		space, err := borsh.ReadU64(buf)
		if err != nil {
			return ErrInvalidInstructionData
		}
		owner, err := borsh.ReadPubkey(buf)
		if err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return createAccount(ctx, accounts[0], accounts[1], lamports, space, owner)

	case systemAssign:
		owner, err := borsh.ReadPubkey(buf)
		if err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		acct := accounts[0]
		if !acct.IsSigner {
			return ErrMissingSignature
		} else if acct.Owner != SystemProgramID {
			return ErrInvalidArgument
		}
		acct.Owner = owner
		return nil

	case systemTransfer:
		lamports, err := borsh.ReadU64(buf)
		if err != nil {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return transfer(ctx, accounts[0], accounts[1], lamports)

	default:
		return ErrInvalidInstructionData
	}
}

func createAccount(ctx *InvokeContext, from, to *AccountInfo, lamports, space uint64, owner pubkey.Pubkey) error {
	if !to.IsSigner {
		return ErrMissingSignature
	} else if to.Lamports > 0 || len(to.Data) > 0 || to.Owner != SystemProgramID {
		ctx.Log("Create Account: account %v already in use", to.Key)
		return ErrAccountAlreadyInUse
	} else if space > MaxAccountDataSize {
		return ErrInvalidArgument
	}
	to.Data = make([]byte, space)
	to.Owner = owner
	return transfer(ctx, from, to, lamports)
}

func transfer(ctx *InvokeContext, from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return ErrMissingSignature
	} else if len(from.Data) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return ErrInvalidArgument
	} else if from.Lamports < lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return ErrInsufficientFunds
	} else if from.Key == to.Key {
		return nil
	} else if to.Lamports > math.MaxUint64-lamports {
		return ErrArithmeticOverflow
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
