package ledger

import (
	"bytes"
	"fmt"

	"xdao.co/introledger/address"
	"xdao.co/introledger/host"
	"xdao.co/introledger/wire"
)

// Account is the persisted state of one address.
type Account struct {
	Key        address.Address
	Owner      address.Address
	Lamports   uint64
	Data       []byte
	Executable bool
}

// IsEmpty reports whether the account holds nothing and can be dropped.
func (a Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == host.SystemProgramID && !a.Executable
}

func (a Account) clone() Account {
	a.Data = append([]byte(nil), a.Data...)
	return a
}

func (a Account) equal(b Account) bool {
	return a.Key == b.Key && a.Owner == b.Owner && a.Lamports == b.Lamports &&
		a.Executable == b.Executable && bytes.Equal(a.Data, b.Data)
}

// Encode returns the canonical bytes of the account.
func (a Account) Encode() []byte {
	e := wire.NewEncoder(2*address.Size + 8 + 1 + wire.StringLen(len(a.Data)))
	e.Fixed(a.Key[:])
	e.Fixed(a.Owner[:])
	e.U64(a.Lamports)
	e.Bool(a.Executable)
	e.Bytes(a.Data)
	return e.Result()
}

// DecodeAccount parses bytes produced by Account.Encode.
func DecodeAccount(b []byte) (Account, error) {
	var a Account
	d := wire.NewDecoder(b)
	key, err := d.Fixed(address.Size)
	if err != nil {
		return a, fmt.Errorf("account key: %w", err)
	}
	owner, err := d.Fixed(address.Size)
	if err != nil {
		return a, fmt.Errorf("account owner: %w", err)
	}
	copy(a.Key[:], key)
	copy(a.Owner[:], owner)
	if a.Lamports, err = d.U64(); err != nil {
		return a, fmt.Errorf("account lamports: %w", err)
	}
	if a.Executable, err = d.Bool(); err != nil {
		return a, fmt.Errorf("account executable: %w", err)
	}
	if a.Data, err = d.Bytes(); err != nil {
		return a, fmt.Errorf("account data: %w", err)
	}
	if err := d.Finish(); err != nil {
		return a, fmt.Errorf("account: %w", err)
	}
	return a, nil
}

func (a Account) info(signer, writable bool) *host.AccountInfo {
	return &host.AccountInfo{
		Key:        a.Key,
		Owner:      a.Owner,
		Lamports:   a.Lamports,
		Data:       append([]byte(nil), a.Data...),
		IsSigner:   signer,
		IsWritable: writable,
		Executable: a.Executable,
	}
}

func fromInfo(ai *host.AccountInfo) Account {
	return Account{
		Key:        ai.Key,
		Owner:      ai.Owner,
		Lamports:   ai.Lamports,
		Data:       append([]byte(nil), ai.Data...),
		Executable: ai.Executable,
	}
}
