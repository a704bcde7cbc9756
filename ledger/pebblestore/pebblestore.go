// Package pebblestore is a durable ledger.Store on Pebble.
package pebblestore

import (
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"

	"xdao.co/introledger/address"
	"xdao.co/introledger/ledger"
)

var prefix = []byte("acct/")

// Store keeps one key per account: "acct/" + 32 address bytes.
type Store struct {
	db *pebble.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens or creates a store in directory.
func Open(directory string) (*Store, error) {
	if directory == "" {
		return nil, errors.New("pebblestore: directory is required")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(directory, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func makeKey(a address.Address) []byte {
	k := make([]byte, 0, len(prefix)+address.Size)
	k = append(k, prefix...)
	return append(k, a[:]...)
}

func (s *Store) Get(addr address.Address) (ledger.Account, bool, error) {
	value, closer, err := s.db.Get(makeKey(addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return ledger.Account{}, false, nil
	} else if err != nil {
		return ledger.Account{}, false, err
	}
	defer closer.Close()

	// DecodeAccount copies what it keeps, so value may be released after.
	acct, err := ledger.DecodeAccount(value)
	if err != nil {
		return ledger.Account{}, false, fmt.Errorf("pebblestore: %s: %w", addr, err)
	}
	return acct, true, nil
}

// Commit writes all accounts in one synced batch.
func (s *Store) Commit(accounts []ledger.Account) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, a := range accounts {
		if a.IsEmpty() {
			if err := batch.Delete(makeKey(a.Key), nil); err != nil {
				return err
			}
			continue
		}
		if err := batch.Set(makeKey(a.Key), a.Encode(), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) Range(fn func(ledger.Account) error) error {
	upper := append(append([]byte(nil), prefix[:len(prefix)-1]...), prefix[len(prefix)-1]+1)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		acct, err := ledger.DecodeAccount(iter.Value())
		if err != nil {
			return fmt.Errorf("pebblestore: %x: %w", iter.Key(), err)
		}
		if err := fn(acct); err != nil {
			return err
		}
	}
	return iter.Error()
}
