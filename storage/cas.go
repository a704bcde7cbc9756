// Package storage defines the content-addressed store ledger snapshots are
// archived to.
package storage

import (
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/introledger/cidutil"
)

// CAS is a content-addressable object store.
//
// Contract:
// - Put MUST be idempotent and return the CID of the bytes (cidutil.Sum).
// - Stored objects MUST be immutable.
// - Get MUST return ErrNotFound when the CID is absent and MUST verify that
//   returned bytes hash to the requested CID.
type CAS interface {
	Put(data []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// MemCAS is an in-memory CAS.
type MemCAS struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

var _ CAS = (*MemCAS)(nil)

func NewMemCAS() *MemCAS {
	return &MemCAS{objects: map[cid.Cid][]byte{}}
}

func (m *MemCAS) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; !ok {
		m.objects[id] = append([]byte(nil), data...)
	}
	return id, nil
}

func (m *MemCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	b, ok := m.objects[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemCAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok
}
