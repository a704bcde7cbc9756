// Package host defines the fixed interface between the intro program and the
// ledger that executes it.
//
// The ledger owns account storage, rent accounting and signature checks. The
// program only sees the accounts listed by an instruction, a rent calculator,
// an allocation service that accepts derived-address proofs in place of
// signatures, and a logger for execution diagnostics.
package host

import (
	"github.com/rs/zerolog"

	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
)

// SystemProgramID identifies the allocation service.
var SystemProgramID = address.Zero

// AccountInfo is the view of one account an instruction executes against.
// Data and Lamports may be modified in place; the host decides at the end of
// the instruction whether the changes are committed.
type AccountInfo struct {
	Key        address.Address
	Owner      address.Address
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool
	Executable bool
}

// IsEmpty reports whether the account has never been allocated.
func (a *AccountInfo) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == SystemProgramID
}

// AccountMeta names an account in an instruction's positional list.
type AccountMeta struct {
	Address    address.Address
	IsSigner   bool
	IsWritable bool
}

// Signer returns a writable signer meta.
func Signer(a address.Address) AccountMeta {
	return AccountMeta{Address: a, IsSigner: true, IsWritable: true}
}

// Writable returns a writable non-signer meta.
func Writable(a address.Address) AccountMeta {
	return AccountMeta{Address: a, IsWritable: true}
}

// Readonly returns a read-only non-signer meta.
func Readonly(a address.Address) AccountMeta {
	return AccountMeta{Address: a}
}

// Instruction is one command addressed to a program.
type Instruction struct {
	ProgramID address.Address
	Accounts  []AccountMeta
	Data      []byte
}

// Rent computes the balance an account of a given size must hold to be
// exempt from storage reclamation.
type Rent interface {
	MinimumBalance(dataLen int) uint64
}

// CreateAccount is an allocation request.
type CreateAccount struct {
	Payer    *AccountInfo
	New      *AccountInfo
	Lamports uint64
	Space    int
	Owner    address.Address
}

// System is the allocation service. The proof authorizes the new account on
// behalf of the calling program; it is empty when New signed the instruction.
type System interface {
	CreateAccount(req CreateAccount, proof address.Proof) error
}

// Env is what the host hands a program for one instruction.
type Env struct {
	ProgramID address.Address
	Rent      Rent
	System    System
	Log       zerolog.Logger
}

// Program executes instructions.
type Program interface {
	Process(env *Env, accounts []*AccountInfo, data []byte) error
}

// Cursor walks an instruction's positional account list.
type Cursor struct {
	list []*AccountInfo
	next int
}

func NewCursor(list []*AccountInfo) *Cursor {
	return &Cursor{list: list}
}

// Next returns the next account or fails with NotEnoughAccountKeys.
func (c *Cursor) Next() (*AccountInfo, error) {
	if c.next >= len(c.list) {
		return nil, errcode.Newf(errcode.NotEnoughAccountKeys, "expected at least %d accounts", c.next+1)
	}
	a := c.list[c.next]
	c.next++
	return a, nil
}
