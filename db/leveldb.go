package db

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

const leveldbHeadKey = "ledger-head"

func dup(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// ldbConn is a wrapper around a base LevelDB database that handles batching
// writes between commits transparently. A nil value in the batch marks a
// deletion.
type ldbConn struct {
	conn     *leveldb.DB
	readonly bool
	batch    map[string][]byte
}

func newLDBConn(conn *leveldb.DB, readonly bool) *ldbConn {
	return &ldbConn{conn, readonly, make(map[string][]byte)}
}

func (c *ldbConn) Get(key string) ([]byte, error) {
	if value, ok := c.batch[key]; ok {
		if value == nil {
			return nil, leveldb.ErrNotFound
		}
		return dup(value), nil
	}
	return c.conn.Get([]byte(key), nil)
}

func (c *ldbConn) Put(key string, value []byte) {
	if c.readonly {
		panic("connection is readonly")
	}
	c.batch[key] = dup(value)
}

func (c *ldbConn) Delete(key string) {
	if c.readonly {
		panic("connection is readonly")
	}
	c.batch[key] = nil
}

func (c *ldbConn) Commit() error {
	if c.readonly {
		panic("connection is readonly")
	}

	b := new(leveldb.Batch)
	for key, value := range c.batch {
		if value == nil {
			b.Delete([]byte(key))
		} else {
			b.Put([]byte(key), value)
		}
	}
	if err := c.conn.Write(b, &opt.WriteOptions{Sync: true}); err != nil {
		return err
	}

	c.batch = make(map[string][]byte)
	return nil
}

func (c *ldbConn) Discard() {
	c.batch = make(map[string][]byte)
}

// ldbLedgerStore implements the LedgerStore interface over a LevelDB
// database.
type ldbLedgerStore struct {
	conn *ldbConn
}

func NewLDBLedgerStore(file string) (LedgerStore, error) {
	conn, err := leveldb.OpenFile(file, nil)
	if lerrors.IsCorrupted(err) {
		conn, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening ledger database %q", file)
	}
	return &ldbLedgerStore{newLDBConn(conn, false)}, nil
}

// NewLDBMemLedgerStore returns a LevelDB-backed store that lives in memory.
func NewLDBMemLedgerStore() (LedgerStore, error) {
	conn, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory ledger database")
	}
	return &ldbLedgerStore{newLDBConn(conn, false)}, nil
}

func (ldb *ldbLedgerStore) Clone() LedgerStore {
	return &ldbLedgerStore{newLDBConn(ldb.conn.conn, true)}
}

func (ldb *ldbLedgerStore) GetHead() (*LedgerHead, error) {
	raw, err := ldb.conn.Get(leveldbHeadKey)
	if err == leveldb.ErrNotFound {
		return &LedgerHead{}, nil
	} else if err != nil {
		return nil, err
	}
	head := &LedgerHead{}
	if err := json.Unmarshal(raw, head); err != nil {
		return nil, errors.Wrap(err, "decoding ledger head")
	}
	return head, nil
}

func (ldb *ldbLedgerStore) SetHead(head *LedgerHead) error {
	raw, err := json.Marshal(head)
	if err != nil {
		return err
	}
	ldb.conn.Put(leveldbHeadKey, raw)
	return nil
}

func (ldb *ldbLedgerStore) GetAccount(key []byte) ([]byte, error) {
	raw, err := ldb.conn.Get("a" + fmt.Sprintf("%x", key))
	if err == leveldb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return raw, nil
}

func (ldb *ldbLedgerStore) PutAccount(key, data []byte) error {
	if data == nil {
		return errors.New("unable to store nil account")
	}
	ldb.conn.Put("a"+fmt.Sprintf("%x", key), data)
	return nil
}

func (ldb *ldbLedgerStore) DeleteAccount(key []byte) error {
	ldb.conn.Delete("a" + fmt.Sprintf("%x", key))
	return nil
}

func (ldb *ldbLedgerStore) LogStore() LogStore {
	return &ldbLogStore{ldb.conn}
}

func (ldb *ldbLedgerStore) Commit() error {
	return ldb.conn.Commit()
}

func (ldb *ldbLedgerStore) Discard() { ldb.conn.Discard() }

// ldbLogStore implements the LogStore interface over LevelDB.
type ldbLogStore struct {
	conn *ldbConn
}

func (ls *ldbLogStore) BatchGet(keys []uint64) (map[uint64][]byte, error) {
	out := make(map[uint64][]byte)

	for _, key := range keys {
		value, err := ls.conn.Get("l" + fmt.Sprint(key))
		if err == leveldb.ErrNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		out[key] = value
	}

	return out, nil
}

func (ls *ldbLogStore) BatchPut(data map[uint64][]byte) error {
	for key, value := range data {
		if value == nil {
			return errors.New("unable to store nil log entry")
		}
		ls.conn.Put("l"+fmt.Sprint(key), value)
	}
	return nil
}
