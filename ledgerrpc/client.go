// Package ledgerrpc serves a ledger over gRPC and provides the matching client.
package ledgerrpc

import (
	"context"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/introledger/address"
	"xdao.co/introledger/ledger"
)

// Client talks to a Ledger gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int

	// Extra is appended to the dial options; tests use it for bufconn.
	Extra []grpc.DialOption
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	dialOpts = append(dialOpts, opts.Extra...)

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Submit sends tx and returns its execution result. A program failure is
// returned as an errcode error; Logs(err) recovers the execution logs.
func (c *Client) Submit(ctx context.Context, tx *ledger.Transaction) (ledger.Result, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	res := ledger.Result{ID: tx.ID()}
	reply, err := c.client.Submit(ctx, wrapperspb.Bytes(tx.Encode()))
	if err != nil {
		err = mapRPC(err)
		res.Logs = Logs(err)
		return res, err
	}
	if v := reply.GetValue(); v != "" {
		res.Logs = strings.Split(v, "\n")
	}
	return res, nil
}

// Account fetches the committed state of addr. ok is false if the account
// does not exist.
func (c *Client) Account(ctx context.Context, addr address.Address) (acct ledger.Account, ok bool, err error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.GetAccount(ctx, wrapperspb.String(addr.String()))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ledger.Account{}, false, nil
		}
		return ledger.Account{}, false, mapRPC(err)
	}
	acct, err = ledger.DecodeAccount(reply.GetValue())
	if err != nil {
		return ledger.Account{}, false, err
	}
	return acct, true, nil
}

// Airdrop asks the node's faucet to credit addr.
func (c *Client) Airdrop(ctx context.Context, addr address.Address, lamports uint64) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	_, err := c.client.Airdrop(ctx, wrapperspb.String(airdropRequest(addr, lamports)))
	return mapRPC(err)
}

// Snapshot asks the node to archive its state and returns the manifest CID.
func (c *Client) Snapshot(ctx context.Context) (cid.Cid, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Snapshot(ctx, wrapperspb.Bool(true))
	if err != nil {
		return cid.Undef, mapRPC(err)
	}
	return cid.Decode(reply.GetValue())
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
