package ledger

import (
	"sort"
	"sync"

	"xdao.co/introledger/address"
)

// Store persists accounts.
//
// Contract:
// - Commit MUST apply all accounts or none.
// - Committing an empty account (see Account.IsEmpty) deletes it.
// - Range MUST visit accounts in ascending address order.
type Store interface {
	Get(addr address.Address) (Account, bool, error)
	Commit(accounts []Account) error
	Range(fn func(Account) error) error
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[address.Address]Account
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{accounts: map[address.Address]Account{}}
}

func (s *MemStore) Get(addr address.Address) (Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[addr]
	if !ok {
		return Account{}, false, nil
	}
	return a.clone(), true, nil
}

func (s *MemStore) Commit(accounts []Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		if a.IsEmpty() {
			delete(s.accounts, a.Key)
			continue
		}
		s.accounts[a.Key] = a.clone()
	}
	return nil
}

func (s *MemStore) Range(fn func(Account) error) error {
	s.mu.RLock()
	keys := make([]address.Address, 0, len(s.accounts))
	for k := range s.accounts {
		keys = append(keys, k)
	}
	snapshot := make(map[address.Address]Account, len(keys))
	for _, k := range keys {
		snapshot[k] = s.accounts[k].clone()
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	for _, k := range keys {
		if err := fn(snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}
