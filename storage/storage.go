// Package storage defines the key-value adapter interface the consensus
// core persists claims, transactions, and account state behind, and a
// default LevelDB-backed implementation, grounded on
// `tolelom/tolchain/storage/leveldb.go`'s `DB`/`LevelDB` shape and
// `crates/storage/vrrbdb`'s column-family split (accounts, claims,
// transactions each keyed under a distinct prefix rather than a distinct
// database/table, since goleveldb is a single flat keyspace).
package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("storage: key not found")

// ColumnFamily namespaces keys within the flat LevelDB keyspace, standing
// in for the original's separate per-entity Jellyfish Merkle trees.
type ColumnFamily string

const (
	ColumnAccounts     ColumnFamily = "accounts"
	ColumnClaims       ColumnFamily = "claims"
	ColumnTransactions ColumnFamily = "txns"
	ColumnBlocks       ColumnFamily = "blocks"
)

// KV is the minimal key-value contract every component depends on,
// letting tests swap in an in-memory implementation without standing up
// a LevelDB instance.
type KV interface {
	Get(column ColumnFamily, key []byte) ([]byte, error)
	Put(column ColumnFamily, key, value []byte) error
	Delete(column ColumnFamily, key []byte) error
	Iterate(column ColumnFamily, fn func(key, value []byte) bool) error
	Close() error
}

func prefixedKey(column ColumnFamily, key []byte) []byte {
	out := make([]byte, 0, len(column)+1+len(key))
	out = append(out, column...)
	out = append(out, ':')
	out = append(out, key...)
	return out
}

// LevelDB implements KV on top of `github.com/syndtr/goleveldb`.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(column ColumnFamily, key []byte) ([]byte, error) {
	val, err := l.db.Get(prefixedKey(column, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (l *LevelDB) Put(column ColumnFamily, key, value []byte) error {
	return l.db.Put(prefixedKey(column, key), value, nil)
}

func (l *LevelDB) Delete(column ColumnFamily, key []byte) error {
	return l.db.Delete(prefixedKey(column, key), nil)
}

// Iterate walks every key within column in ascending order, calling fn
// for each; fn returning false stops iteration early.
func (l *LevelDB) Iterate(column ColumnFamily, fn func(key, value []byte) bool) error {
	prefix := append([]byte(column), ':')
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	for it.Next() {
		key := it.Key()[len(prefix):]
		if !fn(key, it.Value()) {
			break
		}
	}
	return it.Error()
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

// MemKV is an in-memory KV used by package tests that don't need to
// exercise the LevelDB adapter itself.
type MemKV struct {
	data map[string][]byte
}

// NewMemKV returns an empty in-memory store.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Get(column ColumnFamily, key []byte) ([]byte, error) {
	v, ok := m.data[string(prefixedKey(column, key))]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemKV) Put(column ColumnFamily, key, value []byte) error {
	m.data[string(prefixedKey(column, key))] = append([]byte(nil), value...)
	return nil
}

func (m *MemKV) Delete(column ColumnFamily, key []byte) error {
	delete(m.data, string(prefixedKey(column, key)))
	return nil
}

func (m *MemKV) Iterate(column ColumnFamily, fn func(key, value []byte) bool) error {
	prefix := string(column) + ":"
	for k, v := range m.data {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		if !fn([]byte(k[len(prefix):]), v) {
			break
		}
	}
	return nil
}

func (m *MemKV) Close() error {
	return nil
}
