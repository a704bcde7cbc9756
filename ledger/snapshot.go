package ledger

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/introledger/address"
	"xdao.co/introledger/storage"
	"xdao.co/introledger/wire"
)

const manifestTag = "introledger-snapshot-v1"

// Snapshot archives every account of store into cas and returns the CID of
// the manifest. The manifest lists (address, account CID) in address order,
// so equal states always yield the same CID.
func Snapshot(store Store, cas storage.CAS) (cid.Cid, error) {
	e := wire.NewEncoder(0)
	e.String(manifestTag)
	var entries []struct {
		key address.Address
		id  cid.Cid
	}
	err := store.Range(func(a Account) error {
		id, err := cas.Put(a.Encode())
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", a.Key, err)
		}
		entries = append(entries, struct {
			key address.Address
			id  cid.Cid
		}{a.Key, id})
		return nil
	})
	if err != nil {
		return cid.Undef, err
	}
	e.U32(uint32(len(entries)))
	for _, en := range entries {
		e.Fixed(en.key[:])
		e.Bytes(en.id.Bytes())
	}
	return cas.Put(e.Result())
}

// ErrStoreNotEmpty is returned by Restore when the target store already holds
// accounts.
var ErrStoreNotEmpty = errors.New("ledger: restore target is not empty")

// manifestEntryMin is the smallest encoded manifest entry: an address and an
// empty length-prefixed CID.
const manifestEntryMin = address.Size + 4

// Restore loads the snapshot with manifest id from cas into store in one
// commit. The store must be empty.
func Restore(cas storage.CAS, id cid.Cid, store Store) error {
	empty := true
	err := store.Range(func(Account) error {
		empty = false
		return ErrStoreNotEmpty
	})
	if err != nil && !errors.Is(err, ErrStoreNotEmpty) {
		return err
	}
	if !empty {
		return ErrStoreNotEmpty
	}

	b, err := cas.Get(id)
	if err != nil {
		return fmt.Errorf("snapshot manifest: %w", err)
	}
	d := wire.NewDecoder(b)
	tag, err := d.String()
	if err != nil || tag != manifestTag {
		return fmt.Errorf("snapshot manifest: not a ledger snapshot")
	}
	n, err := d.U32()
	if err != nil {
		return fmt.Errorf("snapshot manifest: %w", err)
	}
	if uint64(n)*manifestEntryMin > uint64(d.Remaining()) {
		return fmt.Errorf("snapshot manifest: %d entries do not fit in %d bytes: %w", n, d.Remaining(), wire.ErrShortBuffer)
	}
	accounts := make([]Account, 0, n)
	for i := uint32(0); i < n; i++ {
		k, err := d.Fixed(address.Size)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		raw, err := d.Bytes()
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		objID, err := cid.Cast(raw)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		obj, err := cas.Get(objID)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		acct, err := DecodeAccount(obj)
		if err != nil {
			return fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		var key address.Address
		copy(key[:], k)
		if acct.Key != key {
			return fmt.Errorf("snapshot entry %d: manifest names %s, object holds %s", i, key, acct.Key)
		}
		accounts = append(accounts, acct)
	}
	if err := d.Finish(); err != nil {
		return fmt.Errorf("snapshot manifest: %w", err)
	}
	return store.Commit(accounts)
}

// Snapshot archives the ledger's committed state.
func (l *Ledger) Snapshot(cas storage.CAS) (cid.Cid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot(l.store, cas)
}
