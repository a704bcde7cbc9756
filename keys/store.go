package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps wallet seeds as hex files on the local filesystem.
//
// EXPERIMENTAL: layout and API may change.
//
// Layout:
//
//	<Directory>/<name>/root.key
//	<Directory>/<name>/wallets/<label>.key
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name    string
	Wallets []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".introledger", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) walletPath(name, label string) string {
	return filepath.Join(ks.Directory, name, "wallets", label+".key")
}

func checkIdent(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdent("name", name) }

func CheckLabel(label string) error { return checkIdent("label", label) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func saveSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func loadSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// InitializeRoot stores seed as the root wallet of name.
func (ks *KeyStore) InitializeRoot(name string, seed []byte, overwrite bool) (Wallet, string, error) {
	if err := CheckKeyName(name); err != nil {
		return Wallet{}, "", err
	}
	w, err := NewWallet(seed)
	if err != nil {
		return Wallet{}, "", err
	}
	path := ks.rootPath(name)
	if err := saveSeed(path, seed, overwrite); err != nil {
		return Wallet{}, "", err
	}
	return w, path, nil
}

// DeriveWallet derives and stores the sub-wallet label of name.
func (ks *KeyStore) DeriveWallet(name, label string, overwrite bool) (Wallet, string, error) {
	if err := CheckKeyName(name); err != nil {
		return Wallet{}, "", err
	}
	root, err := loadSeed(ks.rootPath(name))
	if err != nil {
		return Wallet{}, "", err
	}
	seed, err := DeriveWalletSeed(root, label)
	if err != nil {
		return Wallet{}, "", err
	}
	w, err := NewWallet(seed)
	if err != nil {
		return Wallet{}, "", err
	}
	path := ks.walletPath(name, label)
	if err := saveSeed(path, seed, overwrite); err != nil {
		return Wallet{}, "", err
	}
	return w, path, nil
}

// Load returns the root wallet of name, or its sub-wallet label when label is
// not empty.
func (ks *KeyStore) Load(name, label string) (Wallet, error) {
	if err := CheckKeyName(name); err != nil {
		return Wallet{}, err
	}
	path := ks.rootPath(name)
	if label != "" {
		if err := CheckLabel(label); err != nil {
			return Wallet{}, err
		}
		path = ks.walletPath(name, label)
	}
	seed, err := loadSeed(path)
	if err != nil {
		return Wallet{}, err
	}
	return NewWallet(seed)
}

// LoadSeed resolves a signer from, in order: a hex seed, a key file, or a
// stored name (and optional label).
func (ks *KeyStore) LoadSeed(seedHex, name, label, keyFile string) ([]byte, error) {
	if seedHex != "" {
		return ParseSeedHex(seedHex)
	}
	if keyFile != "" {
		return loadSeed(keyFile)
	}
	if name != "" {
		w, err := ks.Load(name, label)
		if err != nil {
			return nil, err
		}
		return w.Seed, nil
	}
	return nil, errors.New("no signer provided")
}

func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		walletEntries, werr := os.ReadDir(filepath.Join(ks.Directory, name, "wallets"))
		var labels []string
		if werr == nil {
			for _, e := range walletEntries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".key") {
					labels = append(labels, strings.TrimSuffix(e.Name(), ".key"))
				}
			}
			sort.Strings(labels)
		}
		result = append(result, KeyEntry{Name: name, Wallets: labels})
	}
	return result, nil
}
