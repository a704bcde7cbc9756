// Package ledger is a reference host for ledger programs.
//
// It keeps accounts in a Store, verifies transaction signatures, and runs one
// instruction at a time against staged copies of the accounts it names. The
// staged accounts are committed in a single Store batch only if the program
// returns nil and the post-execution checks pass; otherwise nothing changes.
package ledger

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
	"xdao.co/introledger/host"
)

// Ledger executes transactions against a Store.
type Ledger struct {
	mu       sync.Mutex
	store    Store
	rent     host.Rent
	log      zerolog.Logger
	programs map[address.Address]host.Program
}

type Option func(*Ledger)

// WithRent replaces DefaultRent.
func WithRent(r host.Rent) Option { return func(l *Ledger) { l.rent = r } }

// WithLogger sets the host logger. Program diagnostics are captured per
// instruction and are not written here.
func WithLogger(log zerolog.Logger) Option { return func(l *Ledger) { l.log = log } }

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		rent:     DefaultRent,
		log:      zerolog.Nop(),
		programs: map[address.Address]host.Program{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Rent returns the ledger's rent schedule.
func (l *Ledger) Rent() host.Rent { return l.rent }

// Deploy registers p under id and marks the account executable.
func (l *Ledger) Deploy(id address.Address, p host.Program) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id == host.SystemProgramID {
		return fmt.Errorf("ledger: %s is reserved for the allocation service", id)
	}
	if _, ok := l.programs[id]; ok {
		return fmt.Errorf("ledger: program %s already deployed", id)
	}
	acct, _, err := l.store.Get(id)
	if err != nil {
		return err
	}
	acct.Key = id
	acct.Executable = true
	if err := l.store.Commit([]Account{acct}); err != nil {
		return err
	}
	l.programs[id] = p
	l.log.Info().Stringer("program", id).Msg("program deployed")
	return nil
}

// Airdrop credits lamports to addr.
func (l *Ledger) Airdrop(addr address.Address, lamports uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, _, err := l.store.Get(addr)
	if err != nil {
		return err
	}
	acct.Key = addr
	if acct.Lamports+lamports < acct.Lamports {
		return errcode.Newf(errcode.InvalidTransaction, "airdrop overflows balance of %s", addr)
	}
	acct.Lamports += lamports
	return l.store.Commit([]Account{acct})
}

// Account returns the committed state of addr.
func (l *Ledger) Account(addr address.Address) (Account, bool, error) {
	return l.store.Get(addr)
}

// Result reports one executed transaction. Logs are the program's execution
// log lines and are filled in whether or not the transaction succeeded.
type Result struct {
	ID   string
	Logs []string
}

// Submit verifies and executes tx. A non-nil error means no state changed.
func (l *Ledger) Submit(tx *Transaction) (Result, error) {
	res := Result{ID: tx.ID()}
	signers, err := tx.Verify()
	if err != nil {
		return res, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ix := tx.Instruction
	prog, ok := l.programs[ix.ProgramID]
	if !ok {
		return res, errcode.Newf(errcode.IncorrectProgramID, "no program deployed at %s", ix.ProgramID)
	}

	st, err := l.stage(ix.Accounts, signers)
	if err != nil {
		return res, err
	}

	var sink logSink
	env := &host.Env{
		ProgramID: ix.ProgramID,
		Rent:      l.rent,
		System:    &system{stage: st, program: ix.ProgramID},
		Log:       zerolog.New(&sink),
	}
	err = prog.Process(env, st.list, ix.Data)
	res.Logs = sink.lines
	if err != nil {
		l.log.Debug().Err(err).Str("tx", res.ID).Msg("transaction failed")
		return res, err
	}
	out, err := st.check(ix.ProgramID)
	if err != nil {
		l.log.Debug().Err(err).Str("tx", res.ID).Msg("transaction rejected")
		return res, err
	}
	if err := l.store.Commit(out); err != nil {
		return res, err
	}
	l.log.Debug().Str("tx", res.ID).Int("accounts", len(out)).Msg("transaction committed")
	return res, nil
}

// logSink collects one line per zerolog event.
type logSink struct {
	lines []string
}

func (s *logSink) Write(p []byte) (int, error) {
	s.lines = append(s.lines, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// staged holds the accounts of one instruction.
type staged struct {
	list []*host.AccountInfo
	// byKey holds one AccountInfo per distinct address.
	byKey map[address.Address]*host.AccountInfo
	// pre is the committed state before execution.
	pre map[address.Address]Account
	// base is pre updated by allocation service calls; program changes are
	// judged against it.
	base map[address.Address]Account
}

func (l *Ledger) stage(metas []host.AccountMeta, signers map[address.Address]bool) (*staged, error) {
	st := &staged{
		byKey: map[address.Address]*host.AccountInfo{},
		pre:   map[address.Address]Account{},
		base:  map[address.Address]Account{},
	}
	for _, m := range metas {
		if ai, ok := st.byKey[m.Address]; ok {
			ai.IsWritable = ai.IsWritable || m.IsWritable
			st.list = append(st.list, ai)
			continue
		}
		acct, _, err := l.store.Get(m.Address)
		if err != nil {
			return nil, err
		}
		acct.Key = m.Address
		ai := acct.info(signers[m.Address], m.IsWritable)
		st.byKey[m.Address] = ai
		st.pre[m.Address] = acct.clone()
		st.base[m.Address] = acct.clone()
		st.list = append(st.list, ai)
	}
	return st, nil
}

// check enforces the post-execution rules and returns the accounts to commit.
func (st *staged) check(program address.Address) ([]Account, error) {
	var before, after uint64
	out := make([]Account, 0, len(st.byKey))
	for key, ai := range st.byKey {
		pre, base := st.pre[key], st.base[key]
		post := fromInfo(ai)
		before += pre.Lamports
		after += post.Lamports

		if !ai.IsWritable {
			if !post.equal(pre) {
				return nil, errcode.Newf(errcode.ReadonlyModified, "read-only account %s was modified", key)
			}
			continue
		}
		if post.Owner != base.Owner || post.Executable != base.Executable {
			return nil, errcode.Newf(errcode.ExternalDataModified, "owner of %s changed outside allocation", key)
		}
		if len(post.Data) != len(base.Data) {
			return nil, errcode.Newf(errcode.ExternalDataModified, "data length of %s changed outside allocation", key)
		}
		if base.Owner != program {
			if !bytes.Equal(post.Data, base.Data) {
				return nil, errcode.Newf(errcode.ExternalDataModified, "data of %s is not owned by %s", key, program)
			}
			if post.Lamports < base.Lamports {
				return nil, errcode.Newf(errcode.ExternalDataModified, "lamports debited from %s outside allocation", key)
			}
		}
		if !post.equal(pre) {
			out = append(out, post)
		}
	}
	if before != after {
		return nil, errcode.Newf(errcode.InvalidTransaction, "lamports not conserved: %d before, %d after", before, after)
	}
	sortAccounts(out)
	return out, nil
}
