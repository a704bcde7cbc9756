package ledger

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
	"xdao.co/introledger/host"
	"xdao.co/introledger/wire"
)

// Transaction carries one instruction and the signatures of its signer accounts.
type Transaction struct {
	Instruction host.Instruction
	Signatures  map[address.Address][]byte
}

// NewTransaction wraps ix with no signatures.
func NewTransaction(ix host.Instruction) *Transaction {
	return &Transaction{Instruction: ix, Signatures: map[address.Address][]byte{}}
}

// Message returns the bytes signers sign.
func (t *Transaction) Message() []byte {
	ix := t.Instruction
	e := wire.NewEncoder(64 + len(ix.Accounts)*(address.Size+2) + len(ix.Data))
	e.Fixed(ix.ProgramID[:])
	e.U32(uint32(len(ix.Accounts)))
	for _, m := range ix.Accounts {
		e.Fixed(m.Address[:])
		e.Bool(m.IsSigner)
		e.Bool(m.IsWritable)
	}
	e.Bytes(ix.Data)
	return e.Result()
}

// ID is the base58 sha256 of the message.
func (t *Transaction) ID() string {
	sum := sha256.Sum256(t.Message())
	return base58.Encode(sum[:])
}

// Sign adds priv's signature. The key must belong to a signer account.
func (t *Transaction) Sign(priv ed25519.PrivateKey) error {
	signer, err := address.FromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	found := false
	for _, m := range t.Instruction.Accounts {
		if m.Address == signer && m.IsSigner {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%s is not a signer of this transaction", signer)
	}
	if t.Signatures == nil {
		t.Signatures = map[address.Address][]byte{}
	}
	t.Signatures[signer] = ed25519.Sign(priv, t.Message())
	return nil
}

// Verify checks a signature for every signer account and returns the set of
// verified signers.
func (t *Transaction) Verify() (map[address.Address]bool, error) {
	msg := t.Message()
	out := map[address.Address]bool{}
	for _, m := range t.Instruction.Accounts {
		if !m.IsSigner || out[m.Address] {
			continue
		}
		sig, ok := t.Signatures[m.Address]
		if !ok {
			return nil, errcode.Newf(errcode.MissingRequiredSignature, "no signature for %s", m.Address)
		}
		if !address.IsOnCurve(m.Address[:]) || !ed25519.Verify(ed25519.PublicKey(m.Address[:]), msg, sig) {
			return nil, errcode.Newf(errcode.MissingRequiredSignature, "bad signature for %s", m.Address)
		}
		out[m.Address] = true
	}
	return out, nil
}

// Encode returns the wire form: message then signatures in account order.
func (t *Transaction) Encode() []byte {
	e := wire.NewEncoder(0)
	e.Bytes(t.Message())
	var signers []address.Address
	seen := map[address.Address]bool{}
	for _, m := range t.Instruction.Accounts {
		if _, ok := t.Signatures[m.Address]; ok && !seen[m.Address] {
			seen[m.Address] = true
			signers = append(signers, m.Address)
		}
	}
	e.U32(uint32(len(signers)))
	for _, s := range signers {
		e.Fixed(s[:])
		e.Bytes(t.Signatures[s])
	}
	return e.Result()
}

// DecodeTransaction parses bytes produced by Encode.
func DecodeTransaction(b []byte) (*Transaction, error) {
	bad := func(what string, err error) error {
		return errcode.Wrap(errcode.InvalidTransaction, what, err)
	}
	d := wire.NewDecoder(b)
	msg, err := d.Bytes()
	if err != nil {
		return nil, bad("message", err)
	}
	tx := NewTransaction(host.Instruction{})
	md := wire.NewDecoder(msg)
	prog, err := md.Fixed(address.Size)
	if err != nil {
		return nil, bad("program id", err)
	}
	copy(tx.Instruction.ProgramID[:], prog)
	n, err := md.U32()
	if err != nil {
		return nil, bad("account count", err)
	}
	if uint64(n)*(address.Size+2) > uint64(md.Remaining()) {
		return nil, bad("account count", wire.ErrShortBuffer)
	}
	for i := uint32(0); i < n; i++ {
		var m host.AccountMeta
		a, err := md.Fixed(address.Size)
		if err != nil {
			return nil, bad("account meta", err)
		}
		copy(m.Address[:], a)
		if m.IsSigner, err = md.Bool(); err != nil {
			return nil, bad("account meta", err)
		}
		if m.IsWritable, err = md.Bool(); err != nil {
			return nil, bad("account meta", err)
		}
		tx.Instruction.Accounts = append(tx.Instruction.Accounts, m)
	}
	if tx.Instruction.Data, err = md.Bytes(); err != nil {
		return nil, bad("instruction data", err)
	}
	if err := md.Finish(); err != nil {
		return nil, bad("message", err)
	}

	ns, err := d.U32()
	if err != nil {
		return nil, bad("signature count", err)
	}
	for i := uint32(0); i < ns; i++ {
		k, err := d.Fixed(address.Size)
		if err != nil {
			return nil, bad("signer", err)
		}
		sig, err := d.Bytes()
		if err != nil {
			return nil, bad("signature", err)
		}
		var signer address.Address
		copy(signer[:], k)
		tx.Signatures[signer] = sig
	}
	if err := d.Finish(); err != nil {
		return nil, bad("transaction", err)
	}
	return tx, nil
}
