// Package ledgertest holds conformance checks shared by ledger.Store
// implementations.
package ledgertest

import (
	"bytes"
	"errors"
	"testing"

	"xdao.co/introledger/address"
	"xdao.co/introledger/ledger"
)

// NewStore constructs a fresh, empty Store for one subtest.
type NewStore func(t *testing.T) ledger.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	owner := address.FromLabel("owner")

	t.Run("CommitGet", func(t *testing.T) {
		s := newStore(t)
		a := ledger.Account{Key: address.FromLabel("a"), Owner: owner, Lamports: 5, Data: []byte{1, 2, 3}}
		if err := s.Commit([]ledger.Account{a}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		got, ok, err := s.Get(a.Key)
		if err != nil || !ok {
			t.Fatalf("Get: ok=%v err=%v", ok, err)
		}
		if got.Owner != owner || got.Lamports != 5 || !bytes.Equal(got.Data, a.Data) {
			t.Fatalf("unexpected account %+v", got)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Get(address.FromLabel("nope"))
		if err != nil || ok {
			t.Fatalf("Get missing: ok=%v err=%v", ok, err)
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s := newStore(t)
		a := ledger.Account{Key: address.FromLabel("a"), Lamports: 1, Data: []byte{7}}
		if err := s.Commit([]ledger.Account{a}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		got, _, _ := s.Get(a.Key)
		got.Data[0] = 9
		again, _, _ := s.Get(a.Key)
		if again.Data[0] != 7 {
			t.Fatalf("mutating a fetched account changed the store")
		}
	})

	t.Run("EmptyDeletes", func(t *testing.T) {
		s := newStore(t)
		k := address.FromLabel("a")
		if err := s.Commit([]ledger.Account{{Key: k, Lamports: 1}}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if err := s.Commit([]ledger.Account{{Key: k}}); err != nil {
			t.Fatalf("Commit empty: %v", err)
		}
		if _, ok, _ := s.Get(k); ok {
			t.Fatalf("empty account should be deleted")
		}
	})

	t.Run("RangeOrdered", func(t *testing.T) {
		s := newStore(t)
		var batch []ledger.Account
		for _, label := range []string{"c", "a", "b", "d"} {
			batch = append(batch, ledger.Account{Key: address.FromLabel(label), Lamports: 1})
		}
		if err := s.Commit(batch); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		var prev *address.Address
		n := 0
		err := s.Range(func(a ledger.Account) error {
			if prev != nil && prev.Compare(a.Key) >= 0 {
				t.Fatalf("Range out of order: %s then %s", prev, a.Key)
			}
			k := a.Key
			prev = &k
			n++
			return nil
		})
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if n != 4 {
			t.Fatalf("Range visited %d accounts", n)
		}
	})

	t.Run("RangeStopsOnError", func(t *testing.T) {
		s := newStore(t)
		_ = s.Commit([]ledger.Account{{Key: address.FromLabel("a"), Lamports: 1}, {Key: address.FromLabel("b"), Lamports: 1}})
		stop := errors.New("stop")
		calls := 0
		err := s.Range(func(ledger.Account) error { calls++; return stop })
		if !errors.Is(err, stop) || calls != 1 {
			t.Fatalf("Range: calls=%d err=%v", calls, err)
		}
	})
}
