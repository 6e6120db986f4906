// Package api implements the HTTP interface to a ledger: the request and
// response types, the handlers, and the sequencer that applies transactions
// one at a time.
package api

import (
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
)

const (
	SignatureAlgorithm = "ed25519"
	VRFAlgorithm       = "ecvrf-ristretto255-sha512"
)

type MetaResponse struct {
	SignatureAlgorithm string          `json:"signature_algorithm"`
	VRFAlgorithm       string          `json:"vrf_algorithm"`
	Programs           devnet.Programs `json:"programs"`
	Admin              pubkey.Pubkey   `json:"admin"`
	SlotDurationMillis int64           `json:"slot_duration_ms"`
	Airdrop            bool            `json:"airdrop"`

	// Set when the server runs its own oracle.
	Oracle *pubkey.Pubkey `json:"oracle,omitempty"`
	VRFKey []byte         `json:"vrf_key,omitempty"`
}

type SlotResponse struct {
	Slot      uint64 `json:"slot"`
	Timestamp int64  `json:"timestamp"`
	TxCount   uint64 `json:"txs"`
	LogSize   uint64 `json:"logs"`
}

type TransactionRequest struct {
	Transaction []byte `json:"transaction"` // Wire encoding of a signed transaction.
}

type AirdropRequest struct {
	Pubkey   pubkey.Pubkey `json:"pubkey"`
	Lamports uint64        `json:"lamports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	// Index of the failing instruction, when a transaction was executed.
	Instruction *int            `json:"instruction,omitempty"`
	Receipt     *ledger.Receipt `json:"receipt,omitempty"`
}
