package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"xdao.co/introledger/ledger"
	"xdao.co/introledger/ledger/pebblestore"
	"xdao.co/introledger/ledgerrpc"
	"xdao.co/introledger/processor"
	"xdao.co/introledger/storage"
	"xdao.co/introledger/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func initLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "introledgerd").Logger()
}

func run(args []string, errOut io.Writer) int {
	fs := flag.NewFlagSet("introledgerd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "TOML config file")
	listen := fs.String("listen", "", "listen address (overrides config)")
	dataDir := fs.String("data-dir", "", "ledger data directory (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	log := initLogger(errOut, cfg.LogLevel)
	if err := serve(cfg, log); err != nil {
		log.Error().Err(err).Msg("introledgerd stopped")
		return 1
	}
	return 0
}

func openNode(cfg Config, log zerolog.Logger) (*ledger.Ledger, *pebblestore.Store, error) {
	store, err := pebblestore.Open(filepath.Join(cfg.DataDir, "accounts"))
	if err != nil {
		return nil, nil, err
	}
	if cfg.RestoreFrom.Defined() {
		if err := restore(cfg, store, log); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
	}
	l := ledger.New(store, ledger.WithLogger(log))
	if err := l.Deploy(cfg.ProgramID, processor.Program{}); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	for _, g := range cfg.Genesis {
		_, ok, err := l.Account(g.Address)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		if ok {
			continue
		}
		if err := l.Airdrop(g.Address, g.Lamports); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		log.Info().Stringer("address", g.Address).Uint64("lamports", g.Lamports).Msg("genesis account funded")
	}
	return l, store, nil
}

// restore loads cfg.RestoreFrom into store. A data directory that already
// holds accounts is left as it is.
func restore(cfg Config, store ledger.Store, log zerolog.Logger) error {
	cas, err := localfs.New(cfg.SnapshotDir)
	if err != nil {
		return err
	}
	err = ledger.Restore(cas, cfg.RestoreFrom, store)
	if errors.Is(err, ledger.ErrStoreNotEmpty) {
		log.Info().Str("cid", cfg.RestoreFrom.String()).Msg("data directory not empty, skipping restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", cfg.RestoreFrom, err)
	}
	log.Info().Str("cid", cfg.RestoreFrom.String()).Msg("state restored from snapshot")
	return nil
}

func serve(cfg Config, log zerolog.Logger) error {
	l, store, err := openNode(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var cas storage.CAS
	if cfg.SnapshotDir != "" {
		fsCAS, err := localfs.New(cfg.SnapshotDir)
		if err != nil {
			return err
		}
		cas = fsCAS
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	defer lis.Close()

	s := grpc.NewServer()
	ledgerrpc.RegisterLedgerServer(s, &ledgerrpc.Server{
		Ledger:       l,
		CAS:          cas,
		AllowAirdrop: cfg.AllowAirdrop,
		Log:          log,
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("shutting down")
		s.GracefulStop()
	}()

	log.Info().
		Str("listen", lis.Addr().String()).
		Stringer("program", cfg.ProgramID).
		Str("data_dir", cfg.DataDir).
		Bool("snapshots", cas != nil).
		Msg("introledgerd listening")
	return s.Serve(lis)
}
