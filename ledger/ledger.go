// Package ledger implements a minimal account-based runtime: accounts owned by
// programs, signed transactions that execute atomically, cross-program
// invocation with program derived signers, slots and program logs.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Bren2010/kamui/borsh"
	"github.com/Bren2010/kamui/db"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MaxLogBatch is the largest number of log entries returned by one call to
// Logs.
const MaxLogBatch = 1000

// MaxTransactionAge is the number of slots after its recent slot that a
// transaction may still be executed in.
const MaxTransactionAge = 150

// LogEntry is one line of program output, numbered in the order it was
// committed.
type LogEntry struct {
	Seq  uint64 `json:"seq"`
	Slot uint64 `json:"slot"`
	TxID string `json:"tx"`
	Line string `json:"line"`
}

// Receipt describes the execution of a transaction.
type Receipt struct {
	TxID     string   `json:"tx"`
	Slot     uint64   `json:"slot"`
	FirstLog uint64   `json:"firstLog"`
	Logs     []string `json:"logs"`
}

// Ledger executes transactions against a LedgerStore. It is safe for
// concurrent use; transactions are applied one at a time, and queries read
// committed state from a clone of the store without waiting on them.
type Ledger struct {
	mu    sync.Mutex
	store db.LedgerStore

	// processed maps the IDs of recently committed transactions to their
	// recent slot. It is rebuilt from the logs on first use.
	processed map[string]uint64

	progMu   sync.RWMutex
	programs map[pubkey.Pubkey]Program

	logger *zap.Logger
}

// New returns a ledger backed by `store` with the system program registered.
func New(store db.LedgerStore, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		programs: map[pubkey.Pubkey]Program{SystemProgramID: systemProgram{}},
		logger:   logger,
	}
}

// RegisterProgram makes `program` callable at address `id`.
func (l *Ledger) RegisterProgram(id pubkey.Pubkey, program Program) error {
	l.progMu.Lock()
	defer l.progMu.Unlock()

	if _, ok := l.programs[id]; ok {
		return fmt.Errorf("program already registered at %v", id)
	}
	l.programs[id] = program
	return nil
}

func (l *Ledger) program(id pubkey.Pubkey) (Program, bool) {
	l.progMu.RLock()
	defer l.progMu.RUnlock()
	program, ok := l.programs[id]
	return program, ok
}

func (l *Ledger) loadAccount(store db.LedgerStore, key pubkey.Pubkey) (*Account, error) {
	raw, err := store.GetAccount(key[:])
	if err != nil {
		return nil, errors.Wrapf(err, "loading account %v", key)
	}
	acct := &Account{}
	if raw != nil {
		if acct, err = NewAccount(bytes.NewBuffer(raw)); err != nil {
			return nil, errors.Wrapf(err, "decoding account %v", key)
		}
	}
	if _, ok := l.program(key); ok {
		acct.Executable = true
	}
	return acct, nil
}

func (l *Ledger) storeAccount(key pubkey.Pubkey, acct *Account) error {
	if acct.Lamports == 0 {
		return l.store.DeleteAccount(key[:])
	}
	raw, err := borsh.Marshal(acct)
	if err != nil {
		return err
	}
	return l.store.PutAccount(key[:], raw)
}

// commit applies `write` to the store and commits it. On failure the
// uncommitted writes are discarded.
func (l *Ledger) commit(write func() error) error {
	if err := write(); err != nil {
		l.store.Discard()
		return err
	} else if err := l.store.Commit(); err != nil {
		l.store.Discard()
		return err
	}
	return nil
}

// GetAccount returns the account stored at `key`. Missing accounts are
// returned as the zero Account.
func (l *Ledger) GetAccount(key pubkey.Pubkey) (*Account, error) {
	return l.loadAccount(l.store.Clone(), key)
}

// Head returns the most recently committed ledger head.
func (l *Ledger) Head() (*db.LedgerHead, error) {
	return l.store.Clone().GetHead()
}

// Slot returns the slot the next transaction will execute in.
func (l *Ledger) Slot() (uint64, error) {
	head, err := l.Head()
	if err != nil {
		return 0, err
	}
	return head.Slot, nil
}

// AdvanceSlot moves the ledger forward by `n` slots and returns the new slot.
func (l *Ledger) AdvanceSlot(n uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.store.GetHead()
	if err != nil {
		return 0, err
	} else if head.Slot > math.MaxUint64-n {
		return 0, ErrArithmeticOverflow
	}
	head.Slot += n
	head.Timestamp = time.Now().UnixMilli()
	if err := l.commit(func() error { return l.store.SetHead(head) }); err != nil {
		return 0, err
	}
	return head.Slot, nil
}

// Airdrop credits `lamports` to an account out of thin air.
func (l *Ledger) Airdrop(key pubkey.Pubkey, lamports uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.program(key); ok {
		return ErrExecutableModified
	}
	acct, err := l.loadAccount(l.store, key)
	if err != nil {
		return err
	} else if acct.Lamports > math.MaxUint64-lamports {
		return ErrArithmeticOverflow
	}
	acct.Lamports += lamports
	return l.commit(func() error { return l.storeAccount(key, acct) })
}

// Logs returns up to `limit` log entries starting at sequence number `since`.
func (l *Ledger) Logs(since uint64, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > MaxLogBatch {
		limit = MaxLogBatch
	}

	store := l.store.Clone()
	head, err := store.GetHead()
	if err != nil {
		return nil, err
	}
	end := since + uint64(limit)
	if end > head.LogSize || end < since {
		end = head.LogSize
	}
	if since >= end {
		return nil, nil
	}
	keys := make([]uint64, 0, end-since)
	for i := since; i < end; i++ {
		keys = append(keys, i)
	}
	raw, err := store.LogStore().BatchGet(keys)
	if err != nil {
		return nil, err
	}

	out := make([]LogEntry, 0, len(keys))
	for _, key := range keys {
		data, ok := raw[key]
		if !ok {
			return nil, fmt.Errorf("log entry %d not found", key)
		}
		var entry LogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, errors.Wrapf(err, "decoding log entry %d", key)
		}
		out = append(out, entry)
	}
	return out, nil
}

// loadProcessed recovers the transactions committed within the last
// MaxTransactionAge slots from the log. The slot a transaction executed in
// stands in for its recent slot, which is never earlier.
func (l *Ledger) loadProcessed(head *db.LedgerHead) error {
	processed := make(map[string]uint64)
	for end := head.LogSize; end > 0; {
		start := uint64(0)
		if end > MaxLogBatch {
			start = end - MaxLogBatch
		}
		keys := make([]uint64, 0, end-start)
		for i := start; i < end; i++ {
			keys = append(keys, i)
		}
		raw, err := l.store.LogStore().BatchGet(keys)
		if err != nil {
			return err
		}
		for i := end; i > start; i-- {
			data, ok := raw[i-1]
			if !ok {
				return fmt.Errorf("log entry %d not found", i-1)
			}
			var entry LogEntry
			if err := json.Unmarshal(data, &entry); err != nil {
				return errors.Wrapf(err, "decoding log entry %d", i-1)
			} else if head.Slot-entry.Slot > MaxTransactionAge {
				l.processed = processed
				return nil
			}
			processed[entry.TxID] = entry.Slot
		}
		end = start
	}
	l.processed = processed
	return nil
}

// checkRecent rejects transactions outside of their slot window and those
// committed before, forgetting transactions whose window has passed.
func (l *Ledger) checkRecent(head *db.LedgerHead, txID string, recentSlot uint64) error {
	if l.processed == nil {
		if err := l.loadProcessed(head); err != nil {
			return err
		}
	}
	slot := head.Slot
	for id, recent := range l.processed {
		if slot-recent > MaxTransactionAge {
			delete(l.processed, id)
		}
	}
	if recentSlot > slot || slot-recentSlot > MaxTransactionAge {
		return ErrTransactionExpired
	} else if _, ok := l.processed[txID]; ok {
		return ErrAlreadyProcessed
	}
	return nil
}

// ProcessTransaction verifies and executes a transaction. Either every
// instruction succeeds and all of its effects are committed, or nothing is.
// The returned receipt carries the program logs in both cases.
func (l *Ledger) ProcessTransaction(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if err := tx.Verify(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.store.GetHead()
	if err != nil {
		return nil, err
	}
	txID := tx.ID()
	if err := l.checkRecent(head, txID, tx.RecentSlot); err != nil {
		return nil, err
	}
	ts := &txState{
		ctx:    ctx,
		ledger: l,
		slot:   head.Slot,
		logger: l.logger.With(zap.String("tx", txID)),

		accounts: make(map[pubkey.Pubkey]*Account),
		original: make(map[pubkey.Pubkey]*Account),
	}
	receipt := &Receipt{TxID: txID, Slot: head.Slot}

	for i := range tx.Instructions {
		if err := ts.invoke(&tx.Instructions[i], 1); err != nil {
			receipt.Logs = ts.logs
			return receipt, &InstructionError{Index: i, Err: err}
		}
	}
	receipt.Logs = ts.logs
	receipt.FirstLog = head.LogSize

	err = l.commit(func() error {
		for key, acct := range ts.accounts {
			if acct.Executable || acct.equal(ts.original[key]) {
				continue
			} else if err := l.storeAccount(key, acct); err != nil {
				return err
			}
		}

		entries := make(map[uint64][]byte, len(ts.logs))
		for i, line := range ts.logs {
			seq := head.LogSize + uint64(i)
			raw, err := json.Marshal(LogEntry{Seq: seq, Slot: head.Slot, TxID: txID, Line: line})
			if err != nil {
				return err
			}
			entries[seq] = raw
		}
		if err := l.store.LogStore().BatchPut(entries); err != nil {
			return err
		}
		head.LogSize += uint64(len(ts.logs))
		head.TxCount++
		return l.store.SetHead(head)
	})
	if err != nil {
		return nil, err
	}
	l.processed[txID] = tx.RecentSlot

	l.logger.Debug("processed transaction",
		zap.String("tx", txID),
		zap.Uint64("slot", head.Slot),
		zap.Int("instructions", len(tx.Instructions)),
		zap.Int("logs", len(ts.logs)),
	)
	return receipt, nil
}
