package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"xdao.co/introledger/address"
)

const walletInfo = "introledger-wallet-v1"

// Wallet is an Ed25519 signing identity. Its address is the public key.
type Wallet struct {
	Seed    []byte
	Private ed25519.PrivateKey
	Address address.Address
}

// NewWallet builds the wallet for a 32-byte Ed25519 seed.
func NewWallet(seed []byte) (Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return Wallet{}, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	addr, err := address.FromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{Seed: append([]byte(nil), seed...), Private: priv, Address: addr}, nil
}

// DeriveWalletSeed derives the seed of the sub-wallet named label from a root
// seed using HKDF-SHA256. The same root and label always give the same seed.
func DeriveWalletSeed(rootSeed []byte, label string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckLabel(label); err != nil {
		return nil, err
	}
	r := hkdf.New(sha256.New, rootSeed, []byte(walletInfo), []byte("wallet:"+label))
	out := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
