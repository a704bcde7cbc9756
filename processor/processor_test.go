package processor_test

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
	"xdao.co/introledger/host"
	"xdao.co/introledger/instruction"
	"xdao.co/introledger/ledger"
	"xdao.co/introledger/processor"
	"xdao.co/introledger/state"
)

var programID = address.FromLabel("student-intro")

type wallet struct {
	addr address.Address
	priv ed25519.PrivateKey
}

func newWallet(t *testing.T, seedByte byte) wallet {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	a, err := address.FromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatalf("FromPublicKey: %v", err)
	}
	return wallet{addr: a, priv: priv}
}

type harness struct {
	t     *testing.T
	store *ledger.MemStore
	l     *ledger.Ledger
}

func newHarness(t *testing.T, wallets ...wallet) *harness {
	t.Helper()
	store := ledger.NewMemStore()
	l := ledger.New(store)
	if err := l.Deploy(programID, processor.Program{}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	for _, w := range wallets {
		if err := l.Airdrop(w.addr, 10_000_000_000); err != nil {
			t.Fatalf("Airdrop: %v", err)
		}
	}
	return &harness{t: t, store: store, l: l}
}

func (h *harness) submit(ix host.Instruction, signers ...wallet) (ledger.Result, error) {
	h.t.Helper()
	tx := ledger.NewTransaction(ix)
	for _, w := range signers {
		if err := tx.Sign(w.priv); err != nil {
			h.t.Fatalf("Sign: %v", err)
		}
	}
	return h.l.Submit(tx)
}

func (h *harness) create(w wallet, name, message string) (ledger.Result, error) {
	h.t.Helper()
	ix, err := instruction.NewCreateIntro(programID, w.addr, name, message)
	if err != nil {
		h.t.Fatalf("NewCreateIntro: %v", err)
	}
	return h.submit(ix, w)
}

func (h *harness) update(w wallet, name, message string) (ledger.Result, error) {
	h.t.Helper()
	ix, err := instruction.NewUpdateIntro(programID, w.addr, name, message)
	if err != nil {
		h.t.Fatalf("NewUpdateIntro: %v", err)
	}
	return h.submit(ix, w)
}

func (h *harness) reply(w wallet, intro address.Address, ordinal uint8, text string) (ledger.Result, error) {
	h.t.Helper()
	ix, err := instruction.NewAppendReply(programID, w.addr, intro, ordinal, text)
	if err != nil {
		h.t.Fatalf("NewAppendReply: %v", err)
	}
	return h.submit(ix, w)
}

func (h *harness) account(a address.Address) ledger.Account {
	h.t.Helper()
	acct, _, err := h.l.Account(a)
	if err != nil {
		h.t.Fatalf("Account(%s): %v", a, err)
	}
	return acct
}

func (h *harness) intro(a address.Address) *state.IntroRecord {
	h.t.Helper()
	rec, err := state.DecodeIntro(h.account(a).Data)
	if err != nil {
		h.t.Fatalf("DecodeIntro: %v", err)
	}
	return rec
}

func (h *harness) counter(intro address.Address) *state.ReplyCounter {
	h.t.Helper()
	a, _, err := state.CounterAddress(programID, intro)
	if err != nil {
		h.t.Fatalf("CounterAddress: %v", err)
	}
	rec, err := state.DecodeCounter(h.account(a).Data)
	if err != nil {
		h.t.Fatalf("DecodeCounter: %v", err)
	}
	return rec
}

func (h *harness) replyAt(intro address.Address, ordinal uint8) *state.ReplyRecord {
	h.t.Helper()
	a, _, err := state.ReplyAddress(programID, intro, ordinal)
	if err != nil {
		h.t.Fatalf("ReplyAddress: %v", err)
	}
	rec, err := state.DecodeReply(h.account(a).Data)
	if err != nil {
		h.t.Fatalf("DecodeReply: %v", err)
	}
	return rec
}

func introOf(t *testing.T, w wallet) address.Address {
	t.Helper()
	a, _, err := state.IntroAddress(programID, w.addr)
	if err != nil {
		t.Fatalf("IntroAddress: %v", err)
	}
	return a
}

func TestScenario_CreateThenReply(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)

	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	introAddr := introOf(t, alice)

	acct := h.account(introAddr)
	if acct.Owner != programID || len(acct.Data) != state.IntroAccountSize {
		t.Fatalf("intro account owner=%s len=%d", acct.Owner, len(acct.Data))
	}
	want := &state.IntroRecord{Tag: "studentinfo", State: state.Active, Name: "Alice", Message: "hello"}
	if diff := cmp.Diff(want, h.intro(introAddr)); diff != "" {
		t.Fatalf("intro record mismatch (-want +got):\n%s", diff)
	}
	if got := h.counter(introAddr); got.Count != 0 || got.State != state.Active {
		t.Fatalf("counter after create = %+v", got)
	}

	if _, err := h.reply(bob, introAddr, 0, "hi"); err != nil {
		t.Fatalf("AppendReply: %v", err)
	}
	wantReply := &state.ReplyRecord{Tag: "reply", State: state.Active, Parent: introAddr, Reply: "hi"}
	if diff := cmp.Diff(wantReply, h.replyAt(introAddr, 0)); diff != "" {
		t.Fatalf("reply record mismatch (-want +got):\n%s", diff)
	}
	if got := h.counter(introAddr).Count; got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestCreateIntro_FundsFromPayer(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	rent := h.l.Rent()
	want := 10_000_000_000 - rent.MinimumBalance(state.IntroAccountSize) - rent.MinimumBalance(state.CounterLen)
	if got := h.account(alice.addr).Lamports; got != want {
		t.Fatalf("payer balance = %d, want %d", got, want)
	}
}

func TestCreateIntro_Duplicate(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	res, err := h.create(alice, "Alice", "again")
	if !errcode.Is(err, errcode.AlreadyInitialized) {
		t.Fatalf("expected AlreadyInitialized, got %v", err)
	}
	if len(res.Logs) == 0 || !strings.Contains(strings.Join(res.Logs, "\n"), "already initialized") {
		t.Fatalf("expected diagnostic before failure, got %v", res.Logs)
	}
	if got := h.intro(introOf(t, alice)).Message; got != "hello" {
		t.Fatalf("message = %q after rejected create", got)
	}
}

func TestCreateIntro_Oversized(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)
	// 15+1+(4+5)+(4+971) = 1000 fits exactly.
	if _, err := h.create(alice, "Alice", strings.Repeat("m", 971)); err != nil {
		t.Fatalf("CreateIntro at the limit: %v", err)
	}

	res, err := h.create(bob, "Bob", strings.Repeat("m", 974))
	if !errcode.Is(err, errcode.SizeLimitExceeded) {
		t.Fatalf("expected SizeLimitExceeded, got %v", err)
	}
	if n := strings.Count(strings.Join(res.Logs, "\n"), "data length is larger than 1000 bytes"); n != 1 {
		t.Fatalf("size diagnostic logged %d times: %v", n, res.Logs)
	}
	if _, ok, _ := h.l.Account(introOf(t, bob)); ok {
		t.Fatalf("oversized create left an account behind")
	}
}

func TestCreateIntro_WrongIntroAccount(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	ix, err := instruction.NewCreateIntro(programID, alice.addr, "Alice", "hello")
	if err != nil {
		t.Fatalf("NewCreateIntro: %v", err)
	}
	ix.Accounts[1] = host.Writable(address.FromLabel("somewhere else"))
	if _, err := h.submit(ix, alice); !errcode.Is(err, errcode.AddressMismatch) {
		t.Fatalf("expected AddressMismatch, got %v", err)
	}
}

func TestCreateIntro_WrongCounterRollsBackIntro(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	ix, err := instruction.NewCreateIntro(programID, alice.addr, "Alice", "hello")
	if err != nil {
		t.Fatalf("NewCreateIntro: %v", err)
	}
	ix.Accounts[2] = host.Writable(address.FromLabel("not the counter"))
	if _, err := h.submit(ix, alice); !errcode.Is(err, errcode.AddressMismatch) {
		t.Fatalf("expected AddressMismatch, got %v", err)
	}
	if _, ok, _ := h.l.Account(introOf(t, alice)); ok {
		t.Fatalf("intro allocated by a failed instruction persisted")
	}
	if got := h.account(alice.addr).Lamports; got != 10_000_000_000 {
		t.Fatalf("payer charged %d for a failed instruction", 10_000_000_000-got)
	}
}

func TestCreateIntro_AccountListErrors(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	ix, err := instruction.NewCreateIntro(programID, alice.addr, "Alice", "hello")
	if err != nil {
		t.Fatalf("NewCreateIntro: %v", err)
	}

	short := ix
	short.Accounts = ix.Accounts[:3]
	if _, err := h.submit(short, alice); !errcode.Is(err, errcode.NotEnoughAccountKeys) {
		t.Fatalf("expected NotEnoughAccountKeys, got %v", err)
	}

	wrongSystem := ix
	wrongSystem.Accounts = append([]host.AccountMeta(nil), ix.Accounts...)
	wrongSystem.Accounts[3] = host.Readonly(address.FromLabel("impostor"))
	if _, err := h.submit(wrongSystem, alice); !errcode.Is(err, errcode.IncorrectProgramID) {
		t.Fatalf("expected IncorrectProgramID, got %v", err)
	}
}

func TestAppendReply_Sequential(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	introAddr := introOf(t, alice)

	texts := []string{"first", "второй", "third", "", "fifth"}
	for i, text := range texts {
		from := bob
		if i%2 == 1 {
			from = alice
		}
		if _, err := h.reply(from, introAddr, uint8(i), text); err != nil {
			t.Fatalf("AppendReply %d: %v", i, err)
		}
	}
	if got := h.counter(introAddr).Count; int(got) != len(texts) {
		t.Fatalf("count = %d, want %d", got, len(texts))
	}
	for i, text := range texts {
		rec := h.replyAt(introAddr, uint8(i))
		if rec.Reply != text || rec.Parent != introAddr {
			t.Fatalf("reply %d = %+v", i, rec)
		}
		a, _, _ := state.ReplyAddress(programID, introAddr, uint8(i))
		if got := len(h.account(a).Data); got != state.ReplyLen(len(text)) {
			t.Fatalf("reply %d allocated %d bytes, want %d", i, got, state.ReplyLen(len(text)))
		}
	}
}

func TestAppendReply_SameOrdinalTwice(t *testing.T) {
	alice, bob, carol := newWallet(t, 1), newWallet(t, 2), newWallet(t, 3)
	h := newHarness(t, alice, bob, carol)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	introAddr := introOf(t, alice)

	// Both callers read count 0 and target ordinal 0.
	if _, err := h.reply(bob, introAddr, 0, "bob was here"); err != nil {
		t.Fatalf("first AppendReply: %v", err)
	}
	if _, err := h.reply(carol, introAddr, 0, "carol was here"); err == nil {
		t.Fatalf("second AppendReply with a stale ordinal succeeded")
	}
	if got := h.replyAt(introAddr, 0).Reply; got != "bob was here" {
		t.Fatalf("reply 0 = %q", got)
	}
	if got := h.counter(introAddr).Count; got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestAppendReply_WithoutIntro(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)
	if _, err := h.reply(bob, introOf(t, alice), 0, "hi"); !errcode.Is(err, errcode.UninitializedAccount) {
		t.Fatalf("expected UninitializedAccount for a missing counter, got %v", err)
	}
}

func TestAppendReply_CounterFromAnotherIntro(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro alice: %v", err)
	}
	if _, err := h.create(bob, "Bob", "hey"); err != nil {
		t.Fatalf("CreateIntro bob: %v", err)
	}
	ix, err := instruction.NewAppendReply(programID, bob.addr, introOf(t, alice), 0, "hi")
	if err != nil {
		t.Fatalf("NewAppendReply: %v", err)
	}
	bobCounter, _, _ := state.CounterAddress(programID, introOf(t, bob))
	ix.Accounts[2] = host.Writable(bobCounter)
	if _, err := h.submit(ix, bob); !errcode.Is(err, errcode.AddressMismatch) {
		t.Fatalf("expected AddressMismatch, got %v", err)
	}
}

func TestAppendReply_Ceiling(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	introAddr := introOf(t, alice)

	counterAddr, _, _ := state.CounterAddress(programID, introAddr)
	acct := h.account(counterAddr)
	full := state.NewCounter()
	full.Count = state.MaxReplies
	if err := state.Store(full, acct.Data); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := h.store.Commit([]ledger.Account{acct}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := h.reply(bob, introAddr, 0, "one too many"); !errcode.Is(err, errcode.CounterExhausted) {
		t.Fatalf("expected CounterExhausted, got %v", err)
	}
}

// reown hands a committed account to another owner without touching its data.
func (h *harness) reown(a address.Address, owner address.Address) {
	h.t.Helper()
	acct := h.account(a)
	acct.Owner = owner
	if err := h.store.Commit([]ledger.Account{acct}); err != nil {
		h.t.Fatalf("Commit: %v", err)
	}
}

func TestAppendReply_ForeignCounterOwner(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	introAddr := introOf(t, alice)
	counterAddr, _, _ := state.CounterAddress(programID, introAddr)
	h.reown(counterAddr, address.FromLabel("other program"))
	before := h.account(counterAddr)

	if _, err := h.reply(bob, introAddr, 0, "hi"); !errcode.Is(err, errcode.IllegalOwner) {
		t.Fatalf("expected IllegalOwner, got %v", err)
	}
	if diff := cmp.Diff(before, h.account(counterAddr)); diff != "" {
		t.Fatalf("counter changed (-before +after):\n%s", diff)
	}
	replyAddr, _, _ := state.ReplyAddress(programID, introAddr, 0)
	if _, ok, _ := h.l.Account(replyAddr); ok {
		t.Fatalf("reply allocated against a foreign counter")
	}
}

func TestUpdateIntro_ForeignOwner(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	introAddr := introOf(t, alice)
	h.reown(introAddr, address.FromLabel("other program"))

	if _, err := h.update(alice, "Alice", "goodbye"); !errcode.Is(err, errcode.IllegalOwner) {
		t.Fatalf("expected IllegalOwner, got %v", err)
	}
	if got := h.intro(introAddr).Message; got != "hello" {
		t.Fatalf("message = %q, want unchanged", got)
	}
}

func TestUpdateIntro_Uninitialized(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.update(alice, "Alice", "hello"); !errcode.Is(err, errcode.UninitializedAccount) {
		t.Fatalf("expected UninitializedAccount, got %v", err)
	}
}

func TestUpdateIntro_ReplacesMessage(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	if _, err := h.update(alice, "Alice", "goodbye"); err != nil {
		t.Fatalf("UpdateIntro: %v", err)
	}
	if got := h.intro(introOf(t, alice)).Message; got != "goodbye" {
		t.Fatalf("message = %q", got)
	}
}

func TestUpdateIntro_Oversized(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	if _, err := h.update(alice, "Alice", strings.Repeat("x", 972)); !errcode.Is(err, errcode.SizeLimitExceeded) {
		t.Fatalf("expected SizeLimitExceeded, got %v", err)
	}
	if got := h.intro(introOf(t, alice)).Message; got != "hello" {
		t.Fatalf("message changed to %q by a rejected update", got)
	}
}

func TestUpdateIntro_WrongIntroAccount(t *testing.T) {
	alice, bob := newWallet(t, 1), newWallet(t, 2)
	h := newHarness(t, alice, bob)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	ix := host.Instruction{
		ProgramID: programID,
		Accounts:  []host.AccountMeta{host.Signer(bob.addr), host.Writable(introOf(t, alice))},
		Data:      instruction.Pack(instruction.UpdateIntro{Name: "Bob", Message: "mine now"}),
	}
	if _, err := h.submit(ix, bob); !errcode.Is(err, errcode.AddressMismatch) {
		t.Fatalf("expected AddressMismatch, got %v", err)
	}
}

// Regression: the supplied name is ignored, and the size bound is computed
// with the stored name.
func TestUpdateIntro_IgnoresName(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.create(alice, strings.Repeat("n", 500), "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	introAddr := introOf(t, alice)

	if _, err := h.update(alice, "Al", "renamed?"); err != nil {
		t.Fatalf("UpdateIntro: %v", err)
	}
	rec := h.intro(introAddr)
	if rec.Name != strings.Repeat("n", 500) || rec.Message != "renamed?" {
		t.Fatalf("record after update = name %d bytes, message %q", len(rec.Name), rec.Message)
	}

	// Fits with the supplied empty name, not with the stored one.
	if state.IntroLen(0, 480) > state.IntroMaxLen {
		t.Fatalf("test precondition: short-name record must fit")
	}
	if _, err := h.update(alice, "", strings.Repeat("x", 480)); !errcode.Is(err, errcode.SizeLimitExceeded) {
		t.Fatalf("expected SizeLimitExceeded computed from the stored name, got %v", err)
	}
}

// Regression: UpdateIntro does not require the creator's signature.
func TestUpdateIntro_NoSignerRequired(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	if _, err := h.create(alice, "Alice", "hello"); err != nil {
		t.Fatalf("CreateIntro: %v", err)
	}
	ix := host.Instruction{
		ProgramID: programID,
		Accounts:  []host.AccountMeta{host.Readonly(alice.addr), host.Writable(introOf(t, alice))},
		Data:      instruction.Pack(instruction.UpdateIntro{Name: "Alice", Message: "defaced"}),
	}
	if _, err := h.submit(ix); err != nil {
		t.Fatalf("unsigned UpdateIntro: %v", err)
	}
	if got := h.intro(introOf(t, alice)).Message; got != "defaced" {
		t.Fatalf("message = %q", got)
	}
}

func TestProcess_MalformedData(t *testing.T) {
	env := &host.Env{ProgramID: programID, Log: zerolog.Nop()}
	for _, data := range [][]byte{nil, {}, {99}, {0, 1}} {
		err := processor.Program{}.Process(env, nil, data)
		if !errcode.Is(err, errcode.DecodingError) {
			t.Fatalf("Process(%v): expected DecodingError, got %v", data, err)
		}
	}
}

func TestProcess_LogsFailures(t *testing.T) {
	alice := newWallet(t, 1)
	h := newHarness(t, alice)
	res, err := h.update(alice, "Alice", "hello")
	if err == nil {
		t.Fatalf("expected failure")
	}
	joined := strings.Join(res.Logs, "\n")
	if !strings.Contains(joined, "UpdateIntro") || !strings.Contains(joined, "not initialized") {
		t.Fatalf("logs = %v", res.Logs)
	}
}
