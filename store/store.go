package store

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Config configures a content store.
type Config struct {
	// Path is the directory holding the badger database. Ignored when
	// InMemory is set.
	Path string

	// InMemory keeps all blobs in memory. Used by tests and the seed
	// exerciser.
	InMemory bool

	Logger *logrus.Logger
}

// Store is a digest-addressed blob store backed by badger. It knows
// nothing about names, tags, or reference counts: callers decide when a
// blob may be deleted.
type Store struct {
	db  *badger.DB
	log *logrus.Logger
}

// Open opens or creates a content store.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening content store: %w", err)
	}

	return &Store{db: db, log: cfg.Logger}, nil
}

// Put stores data and returns its digest. Put is idempotent: identical
// bytes always yield the same digest, and resubmitting content that is
// already stored does not grow the store.
func (s *Store) Put(data []byte) (Digest, error) {
	d := DigestOf(data)
	key := blobKey(d)

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil // already stored
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if isSpaceError(err) {
			return Digest{}, fmt.Errorf("%w: %v", ErrOutOfSpace, err)
		}
		return Digest{}, fmt.Errorf("storing blob %s: %w", d, err)
	}
	return d, nil
}

// isSpaceError reports whether a badger write failure is a capacity
// problem rather than corruption or a closed database.
func isSpaceError(err error) bool {
	return errors.Is(err, badger.ErrTxnTooBig) || errors.Is(err, syscall.ENOSPC)
}

// Get returns the content stored under the given digest.
func (s *Store) Get(d Digest) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(d))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, d)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", d, err)
	}
	return data, nil
}

// Has reports whether content for the digest is stored.
func (s *Store) Has(d Digest) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(blobKey(d))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking blob %s: %w", d, err)
	}
	return true, nil
}

// Size returns the stored size of a blob without reading its content.
func (s *Store) Size(d Digest) (int64, error) {
	var size int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(d))
		if err != nil {
			return err
		}
		size = item.ValueSize()
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, d)
	}
	if err != nil {
		return 0, fmt.Errorf("sizing blob %s: %w", d, err)
	}
	return size, nil
}

// Delete releases the content stored under the digest. Deleting a digest
// that is not stored is not an error. Callers must not delete a digest
// that any file node still references.
func (s *Store) Delete(d Digest) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blobKey(d))
	})
	if err != nil {
		return fmt.Errorf("deleting blob %s: %w", d, err)
	}
	return nil
}

// Stats reports the number of stored blobs and their total uncompressed
// size.
func (s *Store) Stats() (count int, bytes int64, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("b/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
			bytes += it.Item().ValueSize()
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("scanning store: %w", err)
	}
	return count, bytes, nil
}

// Each calls fn for every stored blob. Used by the check command to
// verify blob integrity. Iteration stops at the first error.
func (s *Store) Each(fn func(Digest, []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("b/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			d, err := digestFromKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(d, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing content store: %w", err)
	}
	return nil
}
