package ledger

import (
	"strings"
	"testing"

	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
	"xdao.co/introledger/host"
)

// scripted is a test program. Instruction data byte 0 selects the behavior:
//
//	0: allocate accounts[1] at seeds [accounts[0]] and write 0xAA
//	1: like 0, then fail
//	2: write into accounts[1] without allocating
//	3: allocate accounts[1] with a proof for a different address
//	4: move one lamport out of accounts[0]
type scripted struct{}

func (scripted) Process(env *host.Env, accounts []*host.AccountInfo, data []byte) error {
	env.Log.Info().Int("op", int(data[0])).Msg("scripted")
	payer, target := accounts[0], accounts[1]
	switch data[0] {
	case 0, 1:
		_, proof, err := address.DeriveProof([][]byte{payer.Key.Bytes()}, env.ProgramID)
		if err != nil {
			return err
		}
		err = env.System.CreateAccount(host.CreateAccount{
			Payer: payer, New: target, Lamports: env.Rent.MinimumBalance(4), Space: 4, Owner: env.ProgramID,
		}, proof)
		if err != nil {
			return err
		}
		target.Data[0] = 0xAA
		if data[0] == 1 {
			env.Log.Error().Msg("failing on purpose")
			return errcode.New(errcode.IllegalOwner, "scripted failure")
		}
		return nil
	case 2:
		target.Data = append(target.Data, 1)
		return nil
	case 3:
		_, proof, err := address.DeriveProof([][]byte{[]byte("elsewhere")}, env.ProgramID)
		if err != nil {
			return err
		}
		return env.System.CreateAccount(host.CreateAccount{
			Payer: payer, New: target, Lamports: 1, Space: 1, Owner: env.ProgramID,
		}, proof)
	case 4:
		payer.Lamports--
		target.Lamports++
		return nil
	}
	return errcode.New(errcode.DecodingError, "unknown scripted op")
}

type fixture struct {
	l       *Ledger
	program address.Address
	payer   address.Address
	target  address.Address
	sign    func(tx *Transaction)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := New(NewMemStore())
	program := address.FromLabel("scripted")
	if err := l.Deploy(program, scripted{}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	payer, priv := mustKeypair(t, 5)
	if err := l.Airdrop(payer, 1_000_000_000); err != nil {
		t.Fatalf("Airdrop: %v", err)
	}
	target, _, err := address.Derive([][]byte{payer.Bytes()}, program)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	return &fixture{
		l: l, program: program, payer: payer, target: target,
		sign: func(tx *Transaction) {
			if err := tx.Sign(priv); err != nil {
				t.Fatalf("Sign: %v", err)
			}
		},
	}
}

func (f *fixture) submit(op byte, metas ...host.AccountMeta) (Result, error) {
	if metas == nil {
		metas = []host.AccountMeta{host.Signer(f.payer), host.Writable(f.target), host.Readonly(host.SystemProgramID)}
	}
	tx := NewTransaction(host.Instruction{ProgramID: f.program, Accounts: metas, Data: []byte{op}})
	for _, m := range metas {
		if m.IsSigner {
			f.sign(tx)
			break
		}
	}
	return f.l.Submit(tx)
}

func (f *fixture) balance(t *testing.T, a address.Address) uint64 {
	t.Helper()
	acct, _, err := f.l.Account(a)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	return acct.Lamports
}

func TestSubmit_AllocatesAndCommits(t *testing.T) {
	f := newFixture(t)
	res, err := f.submit(0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	acct, ok, err := f.l.Account(f.target)
	if err != nil || !ok {
		t.Fatalf("target missing: %v", err)
	}
	rent := DefaultRent.MinimumBalance(4)
	if acct.Owner != f.program || acct.Lamports != rent || len(acct.Data) != 4 || acct.Data[0] != 0xAA {
		t.Fatalf("unexpected target %+v", acct)
	}
	if got := f.balance(t, f.payer); got != 1_000_000_000-rent {
		t.Fatalf("payer balance %d", got)
	}
	if len(res.Logs) != 1 || !strings.Contains(res.Logs[0], "scripted") {
		t.Fatalf("unexpected logs %v", res.Logs)
	}
}

func TestSubmit_FailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	res, err := f.submit(1)
	if !errcode.Is(err, errcode.IllegalOwner) {
		t.Fatalf("expected scripted failure, got %v", err)
	}
	if _, ok, _ := f.l.Account(f.target); ok {
		t.Fatalf("allocation from a failed instruction persisted")
	}
	if got := f.balance(t, f.payer); got != 1_000_000_000 {
		t.Fatalf("payer balance changed to %d", got)
	}
	if len(res.Logs) != 2 {
		t.Fatalf("failed instructions still report logs, got %v", res.Logs)
	}
}

func TestSubmit_AccountInUse(t *testing.T) {
	f := newFixture(t)
	if _, err := f.submit(0); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := f.submit(0); !errcode.Is(err, errcode.AccountInUse) {
		t.Fatalf("expected AccountInUse, got %v", err)
	}
}

func TestSubmit_ProofMustMatchTarget(t *testing.T) {
	f := newFixture(t)
	if _, err := f.submit(3); !errcode.Is(err, errcode.MissingRequiredSignature) {
		t.Fatalf("expected MissingRequiredSignature, got %v", err)
	}
}

func TestSubmit_UnsignedPayerCannotFund(t *testing.T) {
	f := newFixture(t)
	metas := []host.AccountMeta{host.Writable(f.payer), host.Writable(f.target), host.Readonly(host.SystemProgramID)}
	if _, err := f.submit(0, metas...); !errcode.Is(err, errcode.MissingRequiredSignature) {
		t.Fatalf("expected MissingRequiredSignature, got %v", err)
	}
}

func TestSubmit_ExternalDataModified(t *testing.T) {
	f := newFixture(t)
	if _, err := f.submit(2); !errcode.Is(err, errcode.ExternalDataModified) {
		t.Fatalf("expected ExternalDataModified, got %v", err)
	}
	if _, err := f.submit(4); !errcode.Is(err, errcode.ExternalDataModified) {
		t.Fatalf("expected ExternalDataModified for debit, got %v", err)
	}
}

func TestSubmit_ReadonlyModified(t *testing.T) {
	f := newFixture(t)
	metas := []host.AccountMeta{host.Signer(f.payer), host.Readonly(f.target), host.Readonly(host.SystemProgramID)}
	if _, err := f.submit(0, metas...); !errcode.Is(err, errcode.ReadonlyModified) {
		t.Fatalf("expected ReadonlyModified, got %v", err)
	}
}

func TestSubmit_UnknownProgram(t *testing.T) {
	f := newFixture(t)
	tx := NewTransaction(host.Instruction{ProgramID: address.FromLabel("ghost"), Data: []byte{0}})
	if _, err := f.l.Submit(tx); !errcode.Is(err, errcode.IncorrectProgramID) {
		t.Fatalf("expected IncorrectProgramID, got %v", err)
	}
}

func TestDeploy_Rejects(t *testing.T) {
	f := newFixture(t)
	if err := f.l.Deploy(f.program, scripted{}); err == nil {
		t.Fatalf("expected duplicate deploy to fail")
	}
	if err := f.l.Deploy(host.SystemProgramID, scripted{}); err == nil {
		t.Fatalf("expected system id to be reserved")
	}
}
