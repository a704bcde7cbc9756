package ledger

import (
	"errors"
	"testing"

	"xdao.co/introledger/address"
	"xdao.co/introledger/storage"
	"xdao.co/introledger/wire"
)

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	src := NewMemStore()
	accounts := []Account{
		{Key: address.FromLabel("a"), Lamports: 10},
		{Key: address.FromLabel("b"), Owner: address.FromLabel("p"), Lamports: 20, Data: []byte("record")},
	}
	if err := src.Commit(accounts); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cas := storage.NewMemCAS()
	id, err := Snapshot(src, cas)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	again, err := Snapshot(src, cas)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !id.Equals(again) {
		t.Fatalf("equal states must snapshot to the same CID")
	}

	dst := NewMemStore()
	if err := Restore(cas, id, dst); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for _, want := range accounts {
		got, ok, err := dst.Get(want.Key)
		if err != nil || !ok || !got.equal(want) {
			t.Fatalf("restored %s: %+v ok=%v err=%v", want.Key, got, ok, err)
		}
	}
}

func TestSnapshot_ChangesWithState(t *testing.T) {
	s := NewMemStore()
	cas := storage.NewMemCAS()
	_ = s.Commit([]Account{{Key: address.FromLabel("a"), Lamports: 1}})
	first, err := Snapshot(s, cas)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	_ = s.Commit([]Account{{Key: address.FromLabel("a"), Lamports: 2}})
	second, err := Snapshot(s, cas)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if first.Equals(second) {
		t.Fatalf("different states share a snapshot CID")
	}
}

func TestRestore_RejectsForeignObject(t *testing.T) {
	cas := storage.NewMemCAS()
	id, err := cas.Put([]byte("not a manifest"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := Restore(cas, id, NewMemStore()); err == nil {
		t.Fatalf("expected Restore to reject a non-manifest object")
	}
}

func TestRestore_RejectsOversizedCount(t *testing.T) {
	e := wire.NewEncoder(0)
	e.String(manifestTag)
	e.U32(0xFFFFFFFF)
	cas := storage.NewMemCAS()
	id, err := cas.Put(e.Result())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	err = Restore(cas, id, NewMemStore())
	if !errors.Is(err, wire.ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer for an impossible entry count, got %v", err)
	}
}

func TestRestore_RequiresEmptyStore(t *testing.T) {
	src := NewMemStore()
	_ = src.Commit([]Account{{Key: address.FromLabel("a"), Lamports: 1}})
	cas := storage.NewMemCAS()
	id, err := Snapshot(src, cas)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	dst := NewMemStore()
	stale := Account{Key: address.FromLabel("stale"), Lamports: 9}
	if err := dst.Commit([]Account{stale}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := Restore(cas, id, dst); !errors.Is(err, ErrStoreNotEmpty) {
		t.Fatalf("expected ErrStoreNotEmpty, got %v", err)
	}
	if _, ok, _ := dst.Get(address.FromLabel("a")); ok {
		t.Fatalf("rejected restore wrote accounts")
	}
}
