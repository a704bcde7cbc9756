package address

import (
	"crypto/sha256"

	"xdao.co/introledger/errcode"
)

// Create computes the derived address for the exact seeds given.
//
// The result is sha256(seeds... || program || "ProgramDerivedAddress"). It
// fails with InvalidSeeds if the seeds are out of bounds or the digest lands on
// the curve.
func Create(seeds [][]byte, program Address) (Address, error) {
	if err := checkSeeds(seeds, MaxSeeds); err != nil {
		return Address{}, err
	}
	out := hashSeeds(seeds, program)
	if IsOnCurve(out[:]) {
		return Address{}, errcode.New(errcode.InvalidSeeds, "derived address is on curve")
	}
	return out, nil
}

// Derive finds the off-curve address for seeds, scanning the bump from 255
// down to 0 and appending it as the final seed. It is pure: identical inputs
// always yield the identical address and bump.
func Derive(seeds [][]byte, program Address) (Address, uint8, error) {
	if err := checkSeeds(seeds, MaxSeeds-1); err != nil {
		return Address{}, 0, err
	}
	buf := make([][]byte, len(seeds)+1)
	copy(buf, seeds)
	bump := []byte{0}
	buf[len(seeds)] = bump
	for b := 255; b >= 0; b-- {
		bump[0] = uint8(b)
		out := hashSeeds(buf, program)
		if !IsOnCurve(out[:]) {
			return out, uint8(b), nil
		}
	}
	return Address{}, 0, errcode.New(errcode.InvalidSeeds, "no viable bump")
}

func checkSeeds(seeds [][]byte, max int) error {
	if len(seeds) > max {
		return errcode.Newf(errcode.InvalidSeeds, "%d seeds exceed maximum of %d", len(seeds), max)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return errcode.Newf(errcode.InvalidSeeds, "seed %d is %d bytes, maximum is %d", i, len(s), MaxSeedLen)
		}
	}
	return nil
}

func hashSeeds(seeds [][]byte, program Address) Address {
	h := sha256.New()
	for _, s := range seeds {
		_, _ = h.Write(s)
	}
	_, _ = h.Write(program[:])
	_, _ = h.Write([]byte(derivedMarker))
	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

// Proof is the authorization a program presents for a derived address in
// place of a signature: the seeds used in derivation plus the bump.
type Proof struct {
	Seeds [][]byte
	Bump  uint8
}

// DeriveProof derives the address for seeds and returns it with its Proof.
func DeriveProof(seeds [][]byte, program Address) (Address, Proof, error) {
	addr, bump, err := Derive(seeds, program)
	if err != nil {
		return Address{}, Proof{}, err
	}
	own := make([][]byte, len(seeds))
	for i, s := range seeds {
		own[i] = append([]byte(nil), s...)
	}
	return addr, Proof{Seeds: own, Bump: bump}, nil
}

// Signer returns the full seed list, bump last.
func (p Proof) Signer() [][]byte {
	out := make([][]byte, 0, len(p.Seeds)+1)
	out = append(out, p.Seeds...)
	return append(out, []byte{p.Bump})
}

// Verify checks that p derives addr under program.
func (p Proof) Verify(addr, program Address) error {
	got, err := Create(p.Signer(), program)
	if err != nil {
		return err
	}
	if got != addr {
		return errcode.Newf(errcode.AddressMismatch, "proof derives %s, not %s", got, addr)
	}
	return nil
}
