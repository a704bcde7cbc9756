package ledger

import (
	"sort"

	"xdao.co/introledger/address"
	"xdao.co/introledger/errcode"
	"xdao.co/introledger/host"
)

// MaxAccountSize bounds a single allocation.
const MaxAccountSize = 10 << 20

// system is the allocation service bound to one instruction.
type system struct {
	stage   *staged
	program address.Address
}

func (s *system) staged(ai *host.AccountInfo) bool {
	return ai != nil && s.stage.byKey[ai.Key] == ai
}

func (s *system) CreateAccount(req host.CreateAccount, proof address.Proof) error {
	payer, acct := req.Payer, req.New
	if !s.staged(payer) || !s.staged(acct) {
		return errcode.New(errcode.InvalidTransaction, "allocation names an account outside the instruction")
	}
	if !payer.IsSigner {
		return errcode.Newf(errcode.MissingRequiredSignature, "payer %s did not sign", payer.Key)
	}
	if !payer.IsWritable || !acct.IsWritable {
		return errcode.New(errcode.ReadonlyModified, "allocation payer and target must be writable")
	}
	if req.Owner != s.program {
		return errcode.Newf(errcode.IllegalOwner, "program %s cannot assign accounts to %s", s.program, req.Owner)
	}
	if !acct.IsSigner {
		if len(proof.Seeds) == 0 {
			return errcode.Newf(errcode.MissingRequiredSignature, "%s neither signed nor has a derivation proof", acct.Key)
		}
		if err := proof.Verify(acct.Key, s.program); err != nil {
			return errcode.Wrap(errcode.MissingRequiredSignature, "derivation proof rejected", err)
		}
	}
	if !acct.IsEmpty() {
		return errcode.Newf(errcode.AccountInUse, "account %s already in use", acct.Key)
	}
	if req.Space < 0 || req.Space > MaxAccountSize {
		return errcode.Newf(errcode.SizeLimitExceeded, "allocation of %d bytes exceeds %d", req.Space, MaxAccountSize)
	}
	if payer.Lamports < req.Lamports {
		return errcode.Newf(errcode.InsufficientFunds, "payer %s holds %d, needs %d", payer.Key, payer.Lamports, req.Lamports)
	}

	payer.Lamports -= req.Lamports
	acct.Lamports += req.Lamports
	acct.Data = make([]byte, req.Space)
	acct.Owner = req.Owner

	s.stage.base[payer.Key] = fromInfo(payer)
	s.stage.base[acct.Key] = fromInfo(acct)
	return nil
}

func sortAccounts(a []Account) {
	sort.Slice(a, func(i, j int) bool { return a[i].Key.Compare(a[j].Key) < 0 })
}
