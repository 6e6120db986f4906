package ledger

import (
	"bytes"
	"errors"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/mr-tron/base58"
)

type AccountMeta struct {
	Pubkey     pubkey.Pubkey
	IsSigner   bool
	IsWritable bool
}

func Writable(pk pubkey.Pubkey, signer bool) AccountMeta {
	return AccountMeta{Pubkey: pk, IsSigner: signer, IsWritable: true}
}

func Readonly(pk pubkey.Pubkey, signer bool) AccountMeta {
	return AccountMeta{Pubkey: pk, IsSigner: signer}
}

// Instruction is a call to a single program.
type Instruction struct {
	ProgramID pubkey.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

func newInstruction(buf *bytes.Buffer) (*Instruction, error) {
	programID, err := borsh.ReadPubkey(buf)
	if err != nil {
		return nil, err
	}
	n, err := borsh.ReadLen(buf, pubkey.Size+2)
	if err != nil {
		return nil, err
	}
	ix := &Instruction{ProgramID: programID, Accounts: make([]AccountMeta, n)}
	for i := range ix.Accounts {
		meta := &ix.Accounts[i]
		if meta.Pubkey, err = borsh.ReadPubkey(buf); err != nil {
			return nil, err
		} else if meta.IsSigner, err = borsh.ReadBool(buf); err != nil {
			return nil, err
		} else if meta.IsWritable, err = borsh.ReadBool(buf); err != nil {
			return nil, err
		}
	}
	if ix.Data, err = borsh.ReadBytes(buf); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Instruction) Marshal(buf *bytes.Buffer) error {
	borsh.WritePubkey(buf, ix.ProgramID)
	borsh.WriteU32(buf, uint32(len(ix.Accounts)))
	for _, meta := range ix.Accounts {
		borsh.WritePubkey(buf, meta.Pubkey)
		borsh.WriteBool(buf, meta.IsSigner)
		borsh.WriteBool(buf, meta.IsWritable)
	}
	return borsh.WriteBytes(buf, ix.Data, "instruction data")
}

// Transaction is an atomic list of instructions, signed by every account that
// any instruction marks as a signer.
type Transaction struct {
	Signers []pubkey.Pubkey
	// RecentSlot binds the transaction to a window of MaxTransactionAge slots,
	// within which the ledger executes it at most once.
	RecentSlot   uint64
	Instructions []Instruction
	Signatures   [][]byte
}

// NewTransaction builds a transaction from the given instructions and signs it
// with each keypair. The first keypair is the fee payer by convention.
// `recentSlot` should be the ledger's current slot.
func NewTransaction(recentSlot uint64, instructions []Instruction, signers ...*pubkey.Keypair) (*Transaction, error) {
	if len(signers) == 0 {
		return nil, errors.New("transaction needs at least one signer")
	}
	tx := &Transaction{RecentSlot: recentSlot, Instructions: instructions}
	for _, kp := range signers {
		tx.Signers = append(tx.Signers, kp.Pubkey())
	}
	msg, err := tx.Message()
	if err != nil {
		return nil, err
	}
	for _, kp := range signers {
		tx.Signatures = append(tx.Signatures, kp.Sign(msg))
	}
	return tx, nil
}

// Message returns the bytes covered by the signatures.
func (tx *Transaction) Message() ([]byte, error) {
	buf := &bytes.Buffer{}
	borsh.WriteU32(buf, uint32(len(tx.Signers)))
	for _, signer := range tx.Signers {
		borsh.WritePubkey(buf, signer)
	}
	borsh.WriteU64(buf, tx.RecentSlot)
	borsh.WriteU32(buf, uint32(len(tx.Instructions)))
	for i := range tx.Instructions {
		if err := tx.Instructions[i].Marshal(buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// ID returns the base58 encoding of the first signature.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return base58.Encode(tx.Signatures[0])
}

// Verify checks that every signer produced a valid signature and that every
// signer account referenced by an instruction is among the signers.
func (tx *Transaction) Verify() error {
	if len(tx.Signers) == 0 {
		return ErrMissingSignature
	} else if len(tx.Signers) != len(tx.Signatures) {
		return ErrInvalidSignature
	}
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	signed := make(map[pubkey.Pubkey]bool)
	for i, signer := range tx.Signers {
		if !pubkey.Verify(signer, msg, tx.Signatures[i]) {
			return ErrInvalidSignature
		}
		signed[signer] = true
	}
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !signed[meta.Pubkey] {
				return ErrMissingSignature
			}
		}
	}
	return nil
}

func NewTransactionFrom(buf *bytes.Buffer) (*Transaction, error) {
	tx := &Transaction{}

	n, err := borsh.ReadLen(buf, pubkey.Size)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		signer, err := borsh.ReadPubkey(buf)
		if err != nil {
			return nil, err
		}
		tx.Signers = append(tx.Signers, signer)
	}
	if tx.RecentSlot, err = borsh.ReadU64(buf); err != nil {
		return nil, err
	}

	if n, err = borsh.ReadLen(buf, pubkey.Size+8); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		ix, err := newInstruction(buf)
		if err != nil {
			return nil, err
		}
		tx.Instructions = append(tx.Instructions, *ix)
	}

	if n, err = borsh.ReadLen(buf, 4); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		sig, err := borsh.ReadBytes(buf)
		if err != nil {
			return nil, err
		}
		tx.Signatures = append(tx.Signatures, sig)
	}

	if err := borsh.Finish(buf); err != nil {
		return nil, err
	}
	return tx, nil
}

func (tx *Transaction) Marshal(buf *bytes.Buffer) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	buf.Write(msg)
	borsh.WriteU32(buf, uint32(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		if err := borsh.WriteBytes(buf, sig, "signature"); err != nil {
			return err
		}
	}
	return nil
}
