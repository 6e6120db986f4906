package ledger

import (
	"bytes"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/pubkey"
)

const (
	// accountStorageOverhead is the number of bytes charged for every account
	// on top of its data when computing rent.
	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThreshold     = 2

	LamportsPerSol = 1_000_000_000
)

// MinimumBalance returns the number of lamports an account holding `space`
// bytes of data needs to be rent exempt.
func MinimumBalance(space uint64) uint64 {
	return (accountStorageOverhead + space) * lamportsPerByteYear * exemptionThreshold
}

// IsRentExempt reports whether the account holds enough lamports for its data.
func IsRentExempt(lamports, space uint64) bool {
	return lamports >= MinimumBalance(space)
}

// Account is the state stored at an address. A missing account reads as the
// zero value: no lamports, no data, owned by the system program.
type Account struct {
	Owner    pubkey.Pubkey `json:"owner"`
	Lamports uint64        `json:"lamports"`
	Data     []byte        `json:"data"`

	// Executable is set for registered programs. It is never persisted.
	Executable bool `json:"executable"`
}

func NewAccount(buf *bytes.Buffer) (*Account, error) {
	owner, err := borsh.ReadPubkey(buf)
	if err != nil {
		return nil, err
	}
	lamports, err := borsh.ReadU64(buf)
	if err != nil {
		return nil, err
	}
	data, err := borsh.ReadBytes(buf)
	if err != nil {
		return nil, err
	}
	return &Account{Owner: owner, Lamports: lamports, Data: data}, nil
}

func (a *Account) Marshal(buf *bytes.Buffer) error {
	borsh.WritePubkey(buf, a.Owner)
	borsh.WriteU64(buf, a.Lamports)
	return borsh.WriteBytes(buf, a.Data, "account data")
}

func (a *Account) clone() *Account {
	return &Account{
		Owner:      a.Owner,
		Lamports:   a.Lamports,
		Data:       append([]byte{}, a.Data...),
		Executable: a.Executable,
	}
}

func (a *Account) equal(other *Account) bool {
	return a.Owner == other.Owner && a.Lamports == other.Lamports &&
		bytes.Equal(a.Data, other.Data)
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
