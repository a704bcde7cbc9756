// Package processor executes intro program instructions.
//
// Each instruction runs to completion synchronously. Any error aborts the
// instruction; the host discards every write staged during it, so handlers
// never undo partial work themselves.
package processor

import (
	"github.com/rs/zerolog"

	"xdao.co/introledger/errcode"
	"xdao.co/introledger/host"
	"xdao.co/introledger/instruction"
	"xdao.co/introledger/lifecycle"
	"xdao.co/introledger/state"
)

// Program is the intro program. It holds no state between instructions.
type Program struct{}

var _ host.Program = Program{}

// Process decodes data and dispatches to the matching handler.
func (Program) Process(env *host.Env, accounts []*host.AccountInfo, data []byte) error {
	cmd, err := instruction.Unpack(data)
	if err != nil {
		env.Log.Error().Err(err).Msg("invalid instruction data")
		return err
	}
	switch c := cmd.(type) {
	case instruction.CreateIntro:
		return createIntro(env, accounts, c)
	case instruction.UpdateIntro:
		return updateIntro(env, accounts, c)
	case instruction.AppendReply:
		return appendReply(env, accounts, c)
	default:
		return errcode.Newf(errcode.DecodingError, "unhandled instruction %s", cmd.Variant())
	}
}

// fail logs msg and returns err unchanged.
func fail(log zerolog.Logger, err error, msg string) error {
	log.Error().Err(err).Msg(msg)
	return err
}

func nextAccounts(accounts []*host.AccountInfo, n int) ([]*host.AccountInfo, error) {
	c := host.NewCursor(accounts)
	out := make([]*host.AccountInfo, n)
	for i := range out {
		a, err := c.Next()
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func checkSystem(a *host.AccountInfo) error {
	if a.Key != host.SystemProgramID {
		return errcode.Newf(errcode.IncorrectProgramID, "allocation service slot holds %s", a.Key)
	}
	return nil
}

func createIntro(env *host.Env, accounts []*host.AccountInfo, c instruction.CreateIntro) error {
	log := env.Log.With().Str("instruction", "CreateIntro").Logger()
	log.Info().Str("name", c.Name).Str("message", c.Message).Msg("adding student intro")

	accs, err := nextAccounts(accounts, 4)
	if err != nil {
		return fail(log, err, "missing accounts")
	}
	payer, intro, counter, system := accs[0], accs[1], accs[2], accs[3]
	if err := checkSystem(system); err != nil {
		return fail(log, err, "wrong allocation service")
	}

	introAddr, introProof, err := state.IntroAddress(env.ProgramID, payer.Key)
	if err != nil {
		return fail(log, err, "intro derivation failed")
	}
	if introAddr != intro.Key {
		return fail(log, errcode.Newf(errcode.AddressMismatch, "intro account %s, derived %s", intro.Key, introAddr), "invalid seeds for intro address")
	}

	existing, err := state.DecodeIntro(intro.Data)
	if err != nil {
		return fail(log, err, "intro account data unreadable")
	}
	if existing.Status() == state.Active {
		return fail(log, errcode.New(errcode.AlreadyInitialized, "intro record exists"), "account already initialized")
	}

	rec := state.NewIntro(c.Name, c.Message)
	mgr := lifecycle.New(env)
	err = mgr.Allocate(lifecycle.Request{
		What:    "intro record",
		Payer:   payer,
		Target:  intro,
		Space:   state.IntroAccountSize,
		Encoded: rec.Len(),
		Limit:   state.IntroMaxLen,
		Proof:   introProof,
	})
	if err != nil {
		return err
	}
	if err := state.Store(rec, intro.Data); err != nil {
		return fail(log, err, "serializing intro failed")
	}
	log.Info().Stringer("address", intro.Key).Msg("intro record written")

	counterAddr, counterProof, err := state.CounterAddress(env.ProgramID, intro.Key)
	if err != nil {
		return fail(log, err, "counter derivation failed")
	}
	if counterAddr != counter.Key {
		return fail(log, errcode.Newf(errcode.AddressMismatch, "counter account %s, derived %s", counter.Key, counterAddr), "invalid seeds for counter address")
	}
	err = mgr.Allocate(lifecycle.Request{
		What:    "reply counter",
		Payer:   payer,
		Target:  counter,
		Space:   state.CounterLen,
		Encoded: state.CounterLen,
		Limit:   state.CounterLen,
		Proof:   counterProof,
	})
	if err != nil {
		return err
	}
	cnt := state.NewCounter()
	if err := state.Store(cnt, counter.Data); err != nil {
		return fail(log, err, "serializing counter failed")
	}
	log.Info().Uint8("count", cnt.Count).Msg("reply counter created")
	return nil
}

// updateIntro replaces the stored message.
//
// Known issues kept deliberately:
//   - the name argument is never adopted; the stored name is kept and the
//     size bound is computed from it, not from the supplied name;
//   - the caller is not required to sign, and ownership is only checked by
//     re-deriving from the supplied identity and comparing the account's
//     owning program, so anyone who names the creator's identity passes.
func updateIntro(env *host.Env, accounts []*host.AccountInfo, c instruction.UpdateIntro) error {
	log := env.Log.With().Str("instruction", "UpdateIntro").Logger()
	log.Info().Str("name", c.Name).Str("message", c.Message).Msg("updating student intro")

	accs, err := nextAccounts(accounts, 2)
	if err != nil {
		return fail(log, err, "missing accounts")
	}
	payer, intro := accs[0], accs[1]

	rec, err := state.DecodeIntro(intro.Data)
	if err != nil {
		return fail(log, err, "intro account data unreadable")
	}
	if rec.Status() != state.Active {
		return fail(log, errcode.New(errcode.UninitializedAccount, "intro record not created"), "account is not initialized")
	}
	if intro.Owner != env.ProgramID {
		return fail(log, errcode.Newf(errcode.IllegalOwner, "intro account owned by %s", intro.Owner), "wrong owning program")
	}

	introAddr, _, err := state.IntroAddress(env.ProgramID, payer.Key)
	if err != nil {
		return fail(log, err, "intro derivation failed")
	}
	if introAddr != intro.Key {
		return fail(log, errcode.Newf(errcode.AddressMismatch, "intro account %s, derived %s", intro.Key, introAddr), "invalid seeds for intro address")
	}

	if err := lifecycle.CheckSize("updated intro record", state.IntroLen(len(rec.Name), len(c.Message)), state.IntroMaxLen); err != nil {
		return fail(log, err, "data length is larger than 1000 bytes")
	}

	rec.Message = c.Message
	if err := state.Store(rec, intro.Data); err != nil {
		return fail(log, err, "serializing intro failed")
	}
	log.Info().Stringer("address", intro.Key).Msg("intro record updated")
	return nil
}

func appendReply(env *host.Env, accounts []*host.AccountInfo, c instruction.AppendReply) error {
	log := env.Log.With().Str("instruction", "AppendReply").Logger()
	log.Info().Str("reply", c.Reply).Msg("adding reply")

	accs, err := nextAccounts(accounts, 5)
	if err != nil {
		return fail(log, err, "missing accounts")
	}
	replier, intro, counter, reply, system := accs[0], accs[1], accs[2], accs[3], accs[4]
	if err := checkSystem(system); err != nil {
		return fail(log, err, "wrong allocation service")
	}

	cnt, err := state.DecodeCounter(counter.Data)
	if err != nil {
		return fail(log, err, "counter account data unreadable")
	}
	if cnt.Status() != state.Active {
		return fail(log, errcode.New(errcode.UninitializedAccount, "reply counter not created"), "account is not initialized")
	}
	if counter.Owner != env.ProgramID {
		return fail(log, errcode.Newf(errcode.IllegalOwner, "counter account owned by %s", counter.Owner), "wrong owning program")
	}
	counterAddr, _, err := state.CounterAddress(env.ProgramID, intro.Key)
	if err != nil {
		return fail(log, err, "counter derivation failed")
	}
	if counterAddr != counter.Key {
		return fail(log, errcode.Newf(errcode.AddressMismatch, "counter account %s, derived %s", counter.Key, counterAddr), "invalid seeds for counter address")
	}
	if cnt.Count >= state.MaxReplies {
		return fail(log, errcode.Newf(errcode.CounterExhausted, "intro already has %d replies", cnt.Count), "reply ceiling reached")
	}

	replyAddr, replyProof, err := state.ReplyAddress(env.ProgramID, intro.Key, cnt.Count)
	if err != nil {
		return fail(log, err, "reply derivation failed")
	}
	if replyAddr != reply.Key {
		return fail(log, errcode.Newf(errcode.AddressMismatch, "reply account %s, derived %s for ordinal %d", reply.Key, replyAddr, cnt.Count), "invalid seeds for reply address")
	}

	rec := state.NewReply(intro.Key, c.Reply)
	err = lifecycle.New(env).Allocate(lifecycle.Request{
		What:    "reply",
		Payer:   replier,
		Target:  reply,
		Space:   rec.Len(),
		Encoded: rec.Len(),
		Limit:   state.ReplyMaxLen,
		Proof:   replyProof,
	})
	if err != nil {
		return err
	}
	if err := state.Store(rec, reply.Data); err != nil {
		return fail(log, err, "serializing reply failed")
	}
	log.Info().Uint8("ordinal", cnt.Count).Stringer("address", reply.Key).Msg("reply written")

	if err := cnt.Increment(); err != nil {
		return fail(log, err, "reply ceiling reached")
	}
	if err := state.Store(cnt, counter.Data); err != nil {
		return fail(log, err, "serializing counter failed")
	}
	log.Info().Uint8("count", cnt.Count).Msg("reply count")
	return nil
}
