package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// blockKeyPrefix namespaces block blobs within the database,
// mirroring the teacher's utxo-/block key prefixing scheme.
const blockKeyPrefix = "block-"

// BadgerStore persists blocks in an embedded badger database,
// continuing the teacher's blockchain.go storage choice.
type BadgerStore struct {
	db *badger.DB
}

// Options returns the badger options the teacher's getBadgerOptions
// used, tuned for an embedded single-node validator.
func Options(path string) badger.Options {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ValueLogFileSize = 16 << 20
	opts.MemTableSize = 8 << 20
	opts.BlockCacheSize = 1 << 20
	opts.NumVersionsToKeep = 1
	opts.VerifyValueChecksum = true
	opts.DetectConflicts = true
	return opts
}

// OpenBadgerStore opens (or creates) a badger database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	db, err := badger.Open(Options(path))
	if err != nil {
		return nil, fmt.Errorf("storage: open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func blockKey(index uint64) []byte {
	key := make([]byte, len(blockKeyPrefix)+8)
	copy(key, blockKeyPrefix)
	binary.BigEndian.PutUint64(key[len(blockKeyPrefix):], index)
	return key
}

// Put stores blob under index.
func (s *BadgerStore) Put(index uint64, blob []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(index), blob)
	})
}

// Get returns the blob stored under index, if any.
func (s *BadgerStore) Get(index uint64) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(index))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("storage: get index %d: %w", index, err)
	}
	return out, out != nil, nil
}

// Height returns the highest stored index by scanning the block key
// prefix, matching the teacher's iterator-based traversal pattern.
func (s *BadgerStore) Height() (uint64, bool, error) {
	var (
		height uint64
		found  bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(blockKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			idx := binary.BigEndian.Uint64(key[len(blockKeyPrefix):])
			if !found || idx > height {
				height = idx
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("storage: scan height: %w", err)
	}
	return height, found, nil
}
