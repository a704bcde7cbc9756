// Package address implements ledger addresses and deterministic derivation.
//
// An Address is 32 bytes. Identity addresses are Ed25519 public keys; derived
// addresses are hashes of seeds and a program identity that are guaranteed not
// to be valid curve points, so no private key exists for them. A program
// authorizes operations on a derived address by presenting the seeds and bump
// that produced it (a Proof) instead of a signature.
package address

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	// Size is the byte length of an Address.
	Size = 32
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32
)

const derivedMarker = "ProgramDerivedAddress"

// Address identifies an account on the ledger.
type Address [Size]byte

// Zero is the all-zero address. The system allocation service lives here.
var Zero Address

// FromBytes copies b into an Address.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("address must be %d bytes, got %d", Size, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// FromPublicKey returns the address of an Ed25519 identity.
func FromPublicKey(pub ed25519.PublicKey) (Address, error) {
	return FromBytes(pub)
}

// FromLabel hashes a human label into an address. It is used for well-known
// program identities and makes no curve guarantees.
func FromLabel(label string) Address {
	return Address(sha256.Sum256([]byte(label)))
}

// Parse decodes the base58 text form.
func Parse(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid base58 address %q: %w", s, err)
	}
	return FromBytes(b)
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

func (a Address) IsZero() bool { return a == Zero }

func (a Address) Compare(b Address) int { return bytes.Compare(a[:], b[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// IsOnCurve reports whether b is the encoding of an Ed25519 curve point.
func IsOnCurve(b []byte) bool {
	if len(b) != Size {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
