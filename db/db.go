// Package db implements database wrappers that match a common interface.
package db

// LogStore is the interface the ledger uses to store program log lines, keyed
// by sequence number.
type LogStore interface {
	BatchGet(keys []uint64) (data map[uint64][]byte, err error)
	BatchPut(data map[uint64][]byte) error
}

// LedgerHead records the progress of the ledger.
type LedgerHead struct {
	Slot      uint64 `json:"slot"`
	LogSize   uint64 `json:"logs"`
	TxCount   uint64 `json:"txs"`
	Timestamp int64  `json:"ts"`
}

// LedgerStore is the interface the ledger uses to communicate with its
// database. Writes are buffered until Commit.
type LedgerStore interface {
	// Clone returns a read-only clone of the current ledger store, suitable
	// for distributing to child goroutines. Clones only observe committed
	// writes.
	Clone() LedgerStore

	// GetHead returns the most recent ledger head, or the zero value of
	// LedgerHead if nothing has been committed yet.
	GetHead() (*LedgerHead, error)
	// SetHead sets the input value as the most recent ledger head.
	SetHead(*LedgerHead) error

	// GetAccount returns the encoded account stored at `key`, or nil if it
	// doesn't exist.
	GetAccount(key []byte) ([]byte, error)
	PutAccount(key, data []byte) error
	DeleteAccount(key []byte) error

	LogStore() LogStore

	Commit() error
	// Discard drops every write made since the last Commit.
	Discard()
}
