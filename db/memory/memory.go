// Package memory provides in-memory implementations of the database interfaces.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Bren2010/kamui/db"
)

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// committed is the state shared between a LedgerStore and its clones.
type committed struct {
	mu       sync.RWMutex
	head     db.LedgerHead
	accounts map[string][]byte
	logs     map[uint64][]byte
}

// LedgerStore keeps the whole ledger in maps. Writes are buffered until Commit,
// and clones only observe committed state.
type LedgerStore struct {
	state    *committed
	readonly bool

	// Pending writes. A nil account marks a deletion.
	head     *db.LedgerHead
	accounts map[string][]byte
	logs     map[uint64][]byte
}

func NewLedgerStore() *LedgerStore {
	state := &committed{
		accounts: make(map[string][]byte),
		logs:     make(map[uint64][]byte),
	}
	ls := &LedgerStore{state: state}
	ls.reset()
	return ls
}

func (ls *LedgerStore) reset() {
	ls.head = nil
	ls.accounts = make(map[string][]byte)
	ls.logs = make(map[uint64][]byte)
}

func (ls *LedgerStore) Clone() db.LedgerStore {
	clone := &LedgerStore{state: ls.state, readonly: true}
	clone.reset()
	return clone
}

func (ls *LedgerStore) checkWritable() error {
	if ls.readonly {
		return errors.New("ledger store is readonly")
	}
	return nil
}

func (ls *LedgerStore) GetHead() (*db.LedgerHead, error) {
	if ls.head != nil {
		head := *ls.head
		return &head, nil
	}
	ls.state.mu.RLock()
	defer ls.state.mu.RUnlock()
	head := ls.state.head
	return &head, nil
}

func (ls *LedgerStore) SetHead(head *db.LedgerHead) error {
	if err := ls.checkWritable(); err != nil {
		return err
	}
	copied := *head
	ls.head = &copied
	return nil
}

func (ls *LedgerStore) GetAccount(key []byte) ([]byte, error) {
	id := fmt.Sprintf("%x", key)
	if data, ok := ls.accounts[id]; ok {
		return dup(data), nil
	}
	ls.state.mu.RLock()
	defer ls.state.mu.RUnlock()
	return dup(ls.state.accounts[id]), nil
}

func (ls *LedgerStore) PutAccount(key, data []byte) error {
	if err := ls.checkWritable(); err != nil {
		return err
	} else if data == nil {
		return errors.New("unable to store nil account")
	}
	ls.accounts[fmt.Sprintf("%x", key)] = dup(data)
	return nil
}

func (ls *LedgerStore) DeleteAccount(key []byte) error {
	if err := ls.checkWritable(); err != nil {
		return err
	}
	ls.accounts[fmt.Sprintf("%x", key)] = nil
	return nil
}

func (ls *LedgerStore) LogStore() db.LogStore { return logStore{ls} }

func (ls *LedgerStore) Commit() error {
	if err := ls.checkWritable(); err != nil {
		return err
	}
	ls.state.mu.Lock()
	defer ls.state.mu.Unlock()

	if ls.head != nil {
		ls.state.head = *ls.head
	}
	for key, data := range ls.accounts {
		if data == nil {
			delete(ls.state.accounts, key)
		} else {
			ls.state.accounts[key] = data
		}
	}
	for key, data := range ls.logs {
		ls.state.logs[key] = data
	}
	ls.reset()
	return nil
}

func (ls *LedgerStore) Discard() { ls.reset() }

// logStore reads and writes the log entries of a LedgerStore, with the same
// buffering as its accounts.
type logStore struct {
	ls *LedgerStore
}

func (s logStore) BatchGet(keys []uint64) (map[uint64][]byte, error) {
	s.ls.state.mu.RLock()
	defer s.ls.state.mu.RUnlock()

	out := make(map[uint64][]byte)
	for _, key := range keys {
		if d, ok := s.ls.logs[key]; ok {
			out[key] = dup(d)
		} else if d, ok := s.ls.state.logs[key]; ok {
			out[key] = dup(d)
		}
	}
	return out, nil
}

func (s logStore) BatchPut(data map[uint64][]byte) error {
	if err := s.ls.checkWritable(); err != nil {
		return err
	}
	for key, value := range data {
		if value == nil {
			return errors.New("unable to store nil value")
		}
		s.ls.logs[key] = dup(value)
	}
	return nil
}
