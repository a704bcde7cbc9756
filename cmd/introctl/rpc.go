package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"xdao.co/introledger/address"
	"xdao.co/introledger/host"
	"xdao.co/introledger/instruction"
	"xdao.co/introledger/keys"
	"xdao.co/introledger/ledger"
	"xdao.co/introledger/ledgerrpc"
	"xdao.co/introledger/state"
)

const defaultNode = "127.0.0.1:7878"

type nodeFlags struct {
	node    *string
	timeout *time.Duration
}

func addNodeFlags(fs *flag.FlagSet) nodeFlags {
	return nodeFlags{
		node:    fs.String("node", defaultNode, "introledgerd gRPC address"),
		timeout: fs.Duration("timeout", 10*time.Second, "Per-request timeout"),
	}
}

// ledgerClient is the part of ledgerrpc.Client the commands use.
type ledgerClient interface {
	Submit(ctx context.Context, tx *ledger.Transaction) (ledger.Result, error)
	Account(ctx context.Context, addr address.Address) (ledger.Account, bool, error)
	Airdrop(ctx context.Context, addr address.Address, lamports uint64) error
	Close() error
}

// dialNode is replaced in tests.
var dialNode = func(f nodeFlags) (ledgerClient, error) {
	c, err := ledgerrpc.Dial(*f.node, ledgerrpc.DialOptions{Timeout: *f.timeout})
	if err != nil {
		return nil, err
	}
	c.Timeout = *f.timeout
	return c, nil
}

func submit(c ledgerClient, ix host.Instruction, w keys.Wallet, out, errOut io.Writer) int {
	tx := ledger.NewTransaction(ix)
	if err := tx.Sign(w.Private); err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	res, err := c.Submit(context.Background(), tx)
	logs := res.Logs
	if err != nil {
		logs = ledgerrpc.Logs(err)
	}
	for _, line := range logs {
		fmt.Fprintln(errOut, line)
	}
	if err != nil {
		fmt.Fprintf(errOut, "transaction %s failed: %v\n", res.ID, err)
		return 1
	}
	fmt.Fprintln(out, res.ID)
	return 0
}

func cmdCreate(args []string, out io.Writer, errOut io.Writer) int {
	return cmdIntro("create", args, out, errOut)
}

func cmdUpdate(args []string, out io.Writer, errOut io.Writer) int {
	return cmdIntro("update", args, out, errOut)
}

func cmdIntro(verb string, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	fs.SetOutput(errOut)
	program := programFlag(fs)
	signer := addSignerFlags(fs)
	node := addNodeFlags(fs)
	name := fs.String("name", "", "Name")
	message := fs.String("message", "", "Message")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	prog, ok := parseAddressFlag("program", *program, errOut)
	if !ok {
		return 2
	}
	w, err := signer.load()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}

	var ix host.Instruction
	if verb == "create" {
		ix, err = instruction.NewCreateIntro(prog, w.Address, *name, *message)
	} else {
		ix, err = instruction.NewUpdateIntro(prog, w.Address, *name, *message)
	}
	if err != nil {
		fmt.Fprintf(errOut, "build instruction: %v\n", err)
		return 1
	}

	c, err := dialNode(node)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	return submit(c, ix, w, out, errOut)
}

func readCounter(ctx context.Context, c ledgerClient, prog, intro address.Address) (*state.ReplyCounter, error) {
	addr, _, err := state.CounterAddress(prog, intro)
	if err != nil {
		return nil, err
	}
	acct, ok, err := c.Account(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &state.ReplyCounter{}, nil
	}
	return state.DecodeCounter(acct.Data)
}

func cmdReply(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("reply", flag.ContinueOnError)
	fs.SetOutput(errOut)
	program := programFlag(fs)
	signer := addSignerFlags(fs)
	node := addNodeFlags(fs)
	intro := fs.String("intro", "", "Intro record address (base58)")
	text := fs.String("text", "", "Reply text")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	prog, ok := parseAddressFlag("program", *program, errOut)
	if !ok {
		return 2
	}
	introAddr, ok := parseAddressFlag("intro", *intro, errOut)
	if !ok {
		return 2
	}
	w, err := signer.load()
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return 2
	}

	c, err := dialNode(node)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()

	cnt, err := readCounter(context.Background(), c, prog, introAddr)
	if err != nil {
		fmt.Fprintf(errOut, "read counter: %v\n", err)
		return 1
	}
	if cnt.Status() != state.Active {
		fmt.Fprintf(errOut, "intro %s has no reply counter\n", introAddr)
		return 1
	}
	ix, err := instruction.NewAppendReply(prog, w.Address, introAddr, cnt.Count, *text)
	if err != nil {
		fmt.Fprintf(errOut, "build instruction: %v\n", err)
		return 1
	}
	return submit(c, ix, w, out, errOut)
}

func cmdShow(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(errOut)
	program := programFlag(fs)
	node := addNodeFlags(fs)
	identity := fs.String("identity", "", "Identity address (base58)")
	intro := fs.String("intro", "", "Intro record address (base58)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	prog, ok := parseAddressFlag("program", *program, errOut)
	if !ok {
		return 2
	}

	var introAddr address.Address
	switch {
	case *intro != "":
		if introAddr, ok = parseAddressFlag("intro", *intro, errOut); !ok {
			return 2
		}
	case *identity != "":
		id, ok := parseAddressFlag("identity", *identity, errOut)
		if !ok {
			return 2
		}
		var err error
		if introAddr, _, err = state.IntroAddress(prog, id); err != nil {
			fmt.Fprintf(errOut, "derive: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintln(errOut, "usage: introctl show (--identity <base58> | --intro <base58>)")
		return 2
	}

	c, err := dialNode(node)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	ctx := context.Background()

	acct, ok, err := c.Account(ctx, introAddr)
	if err != nil {
		fmt.Fprintf(errOut, "read intro: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(errOut, "intro %s not found\n", introAddr)
		return 1
	}
	rec, err := state.DecodeIntro(acct.Data)
	if err != nil {
		fmt.Fprintf(errOut, "decode intro: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "intro %s (%s)\n", introAddr, rec.Status())
	fmt.Fprintf(out, "  name:    %s\n", rec.Name)
	fmt.Fprintf(out, "  message: %s\n", rec.Message)

	cnt, err := readCounter(ctx, c, prog, introAddr)
	if err != nil {
		fmt.Fprintf(errOut, "read counter: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "  replies: %d\n", cnt.Count)
	for i := 0; i < int(cnt.Count); i++ {
		addr, _, err := state.ReplyAddress(prog, introAddr, uint8(i))
		if err != nil {
			fmt.Fprintf(errOut, "derive reply %d: %v\n", i, err)
			return 1
		}
		racct, ok, err := c.Account(ctx, addr)
		if err != nil || !ok {
			fmt.Fprintf(errOut, "read reply %d: ok=%v err=%v\n", i, ok, err)
			return 1
		}
		r, err := state.DecodeReply(racct.Data)
		if err != nil {
			fmt.Fprintf(errOut, "decode reply %d: %v\n", i, err)
			return 1
		}
		fmt.Fprintf(out, "  [%d] %s\n", i, r.Reply)
	}
	return 0
}

// cmdAccount prints any account, decoding its data when it holds a record.
func cmdAccount(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	fs.SetOutput(errOut)
	node := addNodeFlags(fs)
	addr := fs.String("address", "", "Account address (base58)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	a, ok := parseAddressFlag("address", *addr, errOut)
	if !ok {
		return 2
	}
	c, err := dialNode(node)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	acct, ok, err := c.Account(context.Background(), a)
	if err != nil {
		fmt.Fprintf(errOut, "read account: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(errOut, "account %s not found\n", a)
		return 1
	}
	fmt.Fprintf(out, "account %s\n", a)
	fmt.Fprintf(out, "  owner:      %s\n", acct.Owner)
	fmt.Fprintf(out, "  lamports:   %d\n", acct.Lamports)
	fmt.Fprintf(out, "  executable: %v\n", acct.Executable)
	fmt.Fprintf(out, "  data:       %d bytes\n", len(acct.Data))
	if len(acct.Data) == 0 || acct.Executable {
		return 0
	}

	rec, err := state.Decode(acct.Data)
	if err != nil {
		fmt.Fprintf(out, "  record:     undecodable (%v)\n", err)
		return 0
	}
	fmt.Fprintf(out, "  record:     %s (%s)\n", rec.Kind(), rec.Status())
	switch r := rec.(type) {
	case *state.IntroRecord:
		fmt.Fprintf(out, "  name:       %s\n", r.Name)
		fmt.Fprintf(out, "  message:    %s\n", r.Message)
	case *state.ReplyCounter:
		fmt.Fprintf(out, "  count:      %d\n", r.Count)
	case *state.ReplyRecord:
		fmt.Fprintf(out, "  parent:     %s\n", r.Parent)
		fmt.Fprintf(out, "  reply:      %s\n", r.Reply)
	}
	return 0
}

func cmdAirdrop(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("airdrop", flag.ContinueOnError)
	fs.SetOutput(errOut)
	node := addNodeFlags(fs)
	addr := fs.String("address", "", "Address to fund (base58)")
	lamports := fs.Uint64("lamports", 0, "Amount")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	to, ok := parseAddressFlag("address", *addr, errOut)
	if !ok {
		return 2
	}
	if *lamports == 0 {
		fmt.Fprintln(errOut, "--lamports must be positive")
		return 2
	}
	c, err := dialNode(node)
	if err != nil {
		fmt.Fprintf(errOut, "dial: %v\n", err)
		return 1
	}
	defer c.Close()
	if err := c.Airdrop(context.Background(), to, *lamports); err != nil {
		fmt.Fprintf(errOut, "airdrop: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "OK")
	return 0
}
