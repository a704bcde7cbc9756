package ledgerrpc

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/introledger/address"
	"xdao.co/introledger/ledger"
	"xdao.co/introledger/storage"
)

// Server exposes a ledger.Ledger over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Ledger *ledger.Ledger
	// CAS receives snapshots; Snapshot is refused when nil.
	CAS storage.CAS
	// AllowAirdrop enables the faucet.
	AllowAirdrop bool
	Log          zerolog.Logger
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	tx, err := ledger.DecodeTransaction(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.Ledger.Submit(tx)
	logs := strings.Join(res.Logs, "\n")
	if err != nil {
		s.Log.Info().Str("tx", res.ID).Err(err).Msg("transaction failed")
		return nil, submitStatus(err, logs)
	}
	s.Log.Info().Str("tx", res.ID).Stringer("program", tx.Instruction.ProgramID).Msg("transaction committed")
	return wrapperspb.String(logs), nil
}

func (s *Server) GetAccount(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	addr, err := address.Parse(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	acct, ok, err := s.Ledger.Account(addr)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "account %s not found", addr)
	}
	return wrapperspb.Bytes(acct.Encode()), nil
}

func (s *Server) Airdrop(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	if !s.AllowAirdrop {
		return nil, status.Error(codes.PermissionDenied, "airdrop disabled")
	}
	addr, lamports, err := parseAirdrop(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Ledger.Airdrop(addr, lamports); err != nil {
		return nil, submitStatus(err, "")
	}
	s.Log.Info().Stringer("address", addr).Uint64("lamports", lamports).Msg("airdrop")
	return wrapperspb.Bool(true), nil
}

func (s *Server) Snapshot(ctx context.Context, _ *wrapperspb.BoolValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.Ledger == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing ledger")
	}
	if s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "snapshots disabled")
	}
	id, err := s.Ledger.Snapshot(s.CAS)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.Log.Info().Str("cid", id.String()).Msg("snapshot written")
	return wrapperspb.String(id.String()), nil
}

func airdropRequest(addr address.Address, lamports uint64) string {
	return addr.String() + "=" + strconv.FormatUint(lamports, 10)
}

func parseAirdrop(s string) (address.Address, uint64, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok {
		return address.Address{}, 0, errMalformedAirdrop
	}
	addr, err := address.Parse(strings.TrimSpace(k))
	if err != nil {
		return address.Address{}, 0, err
	}
	lamports, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return address.Address{}, 0, errMalformedAirdrop
	}
	return addr, lamports, nil
}
