package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"xdao.co/introledger/address"
	"xdao.co/introledger/instruction"
	"xdao.co/introledger/state"
)

const defaultProgramLabel = "student-intro"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "address":
		return cmdAddress(args[1:], out, errOut)
	case "ix":
		return cmdIx(args[1:], out, errOut)
	case "create":
		return cmdCreate(args[1:], out, errOut)
	case "update":
		return cmdUpdate(args[1:], out, errOut)
	case "reply":
		return cmdReply(args[1:], out, errOut)
	case "show":
		return cmdShow(args[1:], out, errOut)
	case "account":
		return cmdAccount(args[1:], out, errOut)
	case "airdrop":
		return cmdAirdrop(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "introctl: student intro ledger CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  introctl key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  introctl key derive --name <name> --label <label> [--force]")
	fmt.Fprintln(w, "  introctl key show --name <name> [--label <label>]")
	fmt.Fprintln(w, "  introctl key list")
	fmt.Fprintln(w, "  introctl address intro --identity <base58>")
	fmt.Fprintln(w, "  introctl address counter --intro <base58>")
	fmt.Fprintln(w, "  introctl address reply --intro <base58> --ordinal <n>")
	fmt.Fprintln(w, "  introctl ix encode create|update --name <text> --message <text>")
	fmt.Fprintln(w, "  introctl ix encode reply --text <text>")
	fmt.Fprintln(w, "  introctl ix decode <hex>")
	fmt.Fprintln(w, "  introctl create --name <text> --message <text> <signer flags> [--node <addr>]")
	fmt.Fprintln(w, "  introctl update --name <text> --message <text> <signer flags> [--node <addr>]")
	fmt.Fprintln(w, "  introctl reply --intro <base58> --text <text> <signer flags> [--node <addr>]")
	fmt.Fprintln(w, "  introctl show (--identity <base58> | --intro <base58>) [--node <addr>]")
	fmt.Fprintln(w, "  introctl account --address <base58> [--node <addr>]")
	fmt.Fprintln(w, "  introctl airdrop --address <base58> --lamports <n> [--node <addr>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signer flags: --seed-hex <64hex> | --signer <name> [--wallet <label>] | --key-file <path>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - every command accepts --program <base58>; the default is the well-known student-intro id")
	fmt.Fprintln(w, "  - keys are stored under ~/.introledger/keys/<name> (0600 seed files); --keys-dir overrides")
	fmt.Fprintln(w, "  - replies are addressed by ordinal; reply reads the counter to pick the next one")
}

func defaultProgram() address.Address {
	return address.FromLabel(defaultProgramLabel)
}

// programFlag registers --program on fs.
func programFlag(fs *flag.FlagSet) *string {
	return fs.String("program", defaultProgram().String(), "Program id (base58)")
}

func parseAddressFlag(name, v string, errOut io.Writer) (address.Address, bool) {
	if v == "" {
		fmt.Fprintf(errOut, "--%s is required\n", name)
		return address.Address{}, false
	}
	a, err := address.Parse(v)
	if err != nil {
		fmt.Fprintf(errOut, "--%s: %v\n", name, err)
		return address.Address{}, false
	}
	return a, true
}

func cmdAddress(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: introctl address <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: intro, counter, reply")
		return 2
	}
	fs := flag.NewFlagSet("address "+args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	program := programFlag(fs)
	identity := fs.String("identity", "", "Identity address (base58)")
	intro := fs.String("intro", "", "Intro record address (base58)")
	ordinal := fs.Uint("ordinal", 0, "Reply ordinal")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	prog, ok := parseAddressFlag("program", *program, errOut)
	if !ok {
		return 2
	}

	var (
		addr  address.Address
		proof address.Proof
		err   error
	)
	switch args[0] {
	case "intro":
		id, ok := parseAddressFlag("identity", *identity, errOut)
		if !ok {
			return 2
		}
		addr, proof, err = state.IntroAddress(prog, id)
	case "counter":
		in, ok := parseAddressFlag("intro", *intro, errOut)
		if !ok {
			return 2
		}
		addr, proof, err = state.CounterAddress(prog, in)
	case "reply":
		in, ok := parseAddressFlag("intro", *intro, errOut)
		if !ok {
			return 2
		}
		if *ordinal >= state.MaxReplies {
			fmt.Fprintf(errOut, "--ordinal must be below %d\n", state.MaxReplies)
			return 2
		}
		addr, proof, err = state.ReplyAddress(prog, in, uint8(*ordinal))
	default:
		fmt.Fprintf(errOut, "unknown address subcommand: %s\n", args[0])
		return 2
	}
	if err != nil {
		fmt.Fprintf(errOut, "derive: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "%s bump=%d\n", addr, proof.Bump)
	return 0
}

func cmdIx(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: introctl ix <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: encode, decode")
		return 2
	}
	switch args[0] {
	case "encode":
		if len(args) < 2 {
			fmt.Fprintln(errOut, "usage: introctl ix encode create|update|reply ...")
			return 2
		}
		fs := flag.NewFlagSet("ix encode", flag.ContinueOnError)
		fs.SetOutput(errOut)
		name := fs.String("name", "", "Name")
		message := fs.String("message", "", "Message")
		text := fs.String("text", "", "Reply text")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		var cmd instruction.Command
		switch args[1] {
		case "create":
			cmd = instruction.CreateIntro{Name: *name, Message: *message}
		case "update":
			cmd = instruction.UpdateIntro{Name: *name, Message: *message}
		case "reply":
			cmd = instruction.AppendReply{Reply: *text}
		default:
			fmt.Fprintf(errOut, "unknown instruction: %s\n", args[1])
			return 2
		}
		fmt.Fprintln(out, hex.EncodeToString(instruction.Pack(cmd)))
		return 0
	case "decode":
		if len(args) != 2 {
			fmt.Fprintln(errOut, "usage: introctl ix decode <hex>")
			return 2
		}
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(args[1]), "0x"))
		if err != nil {
			fmt.Fprintf(errOut, "invalid hex: %v\n", err)
			return 2
		}
		cmd, err := instruction.Unpack(b)
		if err != nil {
			fmt.Fprintf(errOut, "decode: %v\n", err)
			return 1
		}
		switch c := cmd.(type) {
		case instruction.CreateIntro:
			fmt.Fprintf(out, "%s name=%s message=%s\n", c.Variant(), strconv.Quote(c.Name), strconv.Quote(c.Message))
		case instruction.UpdateIntro:
			fmt.Fprintf(out, "%s name=%s message=%s\n", c.Variant(), strconv.Quote(c.Name), strconv.Quote(c.Message))
		case instruction.AppendReply:
			fmt.Fprintf(out, "%s reply=%s\n", c.Variant(), strconv.Quote(c.Reply))
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown ix subcommand: %s\n", args[0])
		return 2
	}
}
