package storage

import "errors"

// Sentinels returned by CAS implementations. Callers compare with errors.Is;
// snapshot restore wraps them with the manifest or account being read.
var (
	// ErrNotFound reports a snapshot object absent from the store.
	ErrNotFound = errors.New("storage: snapshot object not in store")
	// ErrInvalidCID reports an undefined object id.
	ErrInvalidCID = errors.New("storage: object id is undefined")
	// ErrCIDMismatch reports stored bytes that no longer hash to their id.
	ErrCIDMismatch = errors.New("storage: object bytes do not match their cid")
	// ErrImmutable reports a Put that would replace an object with other bytes.
	ErrImmutable = errors.New("storage: refusing to overwrite object with different bytes")
)

// IsNotFound reports whether err means the requested object is missing.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
