package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"strings"

	"xdao.co/introledger/keys"
)

func keysDirFlag(fs *flag.FlagSet) *string {
	return fs.String("keys-dir", "", "Key store directory (default ~/.introledger/keys)")
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: introctl key <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, derive, show, list")
		return 2
	}
	fs := flag.NewFlagSet("key "+args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := keysDirFlag(fs)
	name := fs.String("name", "", "Key name")
	label := fs.String("label", "", "Sub-wallet label")
	seedHex := fs.String("seed-hex", "", "32-byte Ed25519 seed as hex (init only; random when empty)")
	force := fs.Bool("force", false, "Overwrite an existing key file")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	ks, err := keys.CreateKeyStore(*dir)
	if err != nil {
		fmt.Fprintf(errOut, "key store: %v\n", err)
		return 1
	}

	switch args[0] {
	case "init":
		if *name == "" {
			fmt.Fprintln(errOut, "usage: introctl key init --name <name> [--seed-hex <64hex>] [--force]")
			return 2
		}
		var seed []byte
		if *seedHex != "" {
			seed, err = keys.ParseSeedHex(*seedHex)
			if err != nil {
				fmt.Fprintf(errOut, "--seed-hex: %v\n", err)
				return 2
			}
		} else {
			seed = make([]byte, ed25519.SeedSize)
			if _, err := rand.Read(seed); err != nil {
				fmt.Fprintf(errOut, "generate seed: %v\n", err)
				return 1
			}
		}
		w, path, err := ks.InitializeRoot(*name, seed, *force)
		if err != nil {
			fmt.Fprintf(errOut, "init: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "%s %s\n", w.Address, path)
		return 0
	case "derive":
		if *name == "" || *label == "" {
			fmt.Fprintln(errOut, "usage: introctl key derive --name <name> --label <label> [--force]")
			return 2
		}
		w, path, err := ks.DeriveWallet(*name, *label, *force)
		if err != nil {
			fmt.Fprintf(errOut, "derive: %v\n", err)
			return 1
		}
		fmt.Fprintf(out, "%s %s\n", w.Address, path)
		return 0
	case "show":
		if *name == "" {
			fmt.Fprintln(errOut, "usage: introctl key show --name <name> [--label <label>]")
			return 2
		}
		w, err := ks.Load(*name, *label)
		if err != nil {
			fmt.Fprintf(errOut, "show: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, w.Address)
		return 0
	case "list":
		entries, err := ks.List()
		if err != nil {
			fmt.Fprintf(errOut, "list: %v\n", err)
			return 1
		}
		for _, e := range entries {
			if len(e.Wallets) == 0 {
				fmt.Fprintln(out, e.Name)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", e.Name, strings.Join(e.Wallets, ","))
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

type signerFlags struct {
	dir     *string
	seedHex *string
	signer  *string
	wallet  *string
	keyFile *string
}

func addSignerFlags(fs *flag.FlagSet) signerFlags {
	return signerFlags{
		dir:     keysDirFlag(fs),
		seedHex: fs.String("seed-hex", "", "Signer seed as hex"),
		signer:  fs.String("signer", "", "Stored key name"),
		wallet:  fs.String("wallet", "", "Sub-wallet label of --signer"),
		keyFile: fs.String("key-file", "", "Path to a hex seed file"),
	}
}

func (f signerFlags) load() (keys.Wallet, error) {
	ks, err := keys.CreateKeyStore(*f.dir)
	if err != nil {
		return keys.Wallet{}, err
	}
	seed, err := ks.LoadSeed(*f.seedHex, *f.signer, *f.wallet, *f.keyFile)
	if err != nil {
		return keys.Wallet{}, err
	}
	return keys.NewWallet(seed)
}
