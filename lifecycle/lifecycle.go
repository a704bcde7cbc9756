// Package lifecycle allocates program-owned accounts at derived addresses.
package lifecycle

import (
	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
	"xdao.co/introledger/host"
)

// Request describes one allocation.
type Request struct {
	// What names the record in diagnostics.
	What   string
	Payer  *host.AccountInfo
	Target *host.AccountInfo
	// Space is the number of bytes to allocate.
	Space int
	// Encoded is the length of the record that will be stored; it must fit
	// both Space and Limit.
	Encoded int
	// Limit is the size-class maximum for the record kind.
	Limit int
	// Proof is the exact seed sequence and bump the target was derived with.
	Proof address.Proof
}

// Manager funds and allocates new accounts for the executing program.
type Manager struct {
	env *host.Env
}

func New(env *host.Env) *Manager {
	return &Manager{env: env}
}

// CheckSize fails with SizeLimitExceeded if encoded exceeds limit.
func CheckSize(what string, encoded, limit int) error {
	if encoded > limit {
		return errcode.Newf(errcode.SizeLimitExceeded, "%s is %d bytes, maximum is %d", what, encoded, limit)
	}
	return nil
}

// Allocate moves the rent-exempt minimum for req.Space from the payer to the
// target and has the host create the target owned by the executing program.
// The host zero-initializes the new account's data.
func (m *Manager) Allocate(req Request) error {
	log := m.env.Log
	what := req.What
	if what == "" {
		what = "record"
	}
	if err := CheckSize(what, req.Encoded, req.Limit); err != nil {
		log.Error().Int("encoded", req.Encoded).Msgf("data length is larger than %d bytes", req.Limit)
		return err
	}
	if err := CheckSize(what, req.Encoded, req.Space); err != nil {
		log.Error().Int("encoded", req.Encoded).Int("space", req.Space).Msg("data length is larger than the allocation")
		return err
	}
	lamports := m.env.Rent.MinimumBalance(req.Space)
	err := m.env.System.CreateAccount(host.CreateAccount{
		Payer:    req.Payer,
		New:      req.Target,
		Lamports: lamports,
		Space:    req.Space,
		Owner:    m.env.ProgramID,
	}, req.Proof)
	if err != nil {
		log.Error().Err(err).Stringer("address", req.Target.Key).Msg("account allocation failed")
		return err
	}
	log.Info().Stringer("address", req.Target.Key).Int("space", req.Space).Uint64("lamports", lamports).Msg("account created")
	return nil
}
