package ledgerrpc

import (
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/introledger/errcode"
)

var errMalformedAirdrop = errors.New("ledgerrpc: airdrop request must be address=lamports")

// RemoteError is a failed Submit as reported by the server.
type RemoteError struct {
	Err  error
	Logs []string
}

func (e *RemoteError) Error() string { return e.Err.Error() }
func (e *RemoteError) Unwrap() error { return e.Err }

// submitStatus maps a ledger error to FailedPrecondition carrying the code
// name as the message prefix and the execution logs as a detail.
func submitStatus(err error, logs string) error {
	if _, ok := errcode.CodeOf(err); !ok {
		return status.Error(codes.Internal, err.Error())
	}
	st := status.New(codes.FailedPrecondition, err.Error())
	if logs != "" {
		if withLogs, derr := st.WithDetails(wrapperspb.String(logs)); derr == nil {
			st = withLogs
		}
	}
	return st.Err()
}

// mapRPC turns a status error back into an errcode.Error where the server
// sent one.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.FailedPrecondition {
		return err
	}
	var logs []string
	for _, d := range st.Details() {
		if s, ok := d.(*wrapperspb.StringValue); ok && s.GetValue() != "" {
			logs = strings.Split(s.GetValue(), "\n")
		}
	}
	name, msg, _ := strings.Cut(st.Message(), ": ")
	code, ok := errcode.Parse(name)
	if !ok {
		return err
	}
	return &RemoteError{Err: errcode.New(code, msg), Logs: logs}
}

// Logs returns the execution logs attached to a failed Submit, if any.
func Logs(err error) []string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Logs
	}
	return nil
}
