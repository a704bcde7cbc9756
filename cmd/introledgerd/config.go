package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"

	"xdao.co/introledger/address"
)

// DefaultProgramLabel names the program id used when none is configured.
const DefaultProgramLabel = "student-intro"

type genesisEntry struct {
	Address  string `toml:"address"`
	Lamports uint64 `toml:"lamports"`
}

type fileConfig struct {
	Listen       string         `toml:"listen"`
	DataDir      string         `toml:"data_dir"`
	LogLevel     string         `toml:"log_level"`
	ProgramID    string         `toml:"program_id"`
	SnapshotDir  string         `toml:"snapshot_dir"`
	RestoreFrom  string         `toml:"restore_from"`
	AllowAirdrop bool           `toml:"allow_airdrop"`
	Genesis      []genesisEntry `toml:"genesis"`
}

// Genesis funds one address the first time the data directory is opened.
type Genesis struct {
	Address  address.Address
	Lamports uint64
}

type Config struct {
	Listen       string
	DataDir      string
	LogLevel     zerolog.Level
	ProgramID    address.Address
	SnapshotDir  string
	// RestoreFrom is a snapshot manifest in SnapshotDir loaded into an empty
	// data directory before anything else is written.
	RestoreFrom  cid.Cid
	AllowAirdrop bool
	Genesis      []Genesis
}

func DefaultConfig() Config {
	return Config{
		Listen:    "127.0.0.1:7878",
		DataDir:   "./introledger-data",
		LogLevel:  zerolog.InfoLevel,
		ProgramID: address.FromLabel(DefaultProgramLabel),
	}
}

func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.DataDir)
	}
	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("program_id") {
		id, err := address.Parse(strings.TrimSpace(raw.ProgramID))
		if err != nil {
			return Config{}, fmt.Errorf("parse program_id: %w", err)
		}
		cfg.ProgramID = id
	}
	if meta.IsDefined("snapshot_dir") {
		cfg.SnapshotDir = strings.TrimSpace(raw.SnapshotDir)
	}
	if meta.IsDefined("restore_from") {
		id, err := cid.Decode(strings.TrimSpace(raw.RestoreFrom))
		if err != nil {
			return Config{}, fmt.Errorf("parse restore_from: %w", err)
		}
		cfg.RestoreFrom = id
	}
	if meta.IsDefined("allow_airdrop") {
		cfg.AllowAirdrop = raw.AllowAirdrop
	}
	for i, g := range raw.Genesis {
		a, err := address.Parse(strings.TrimSpace(g.Address))
		if err != nil {
			return Config{}, fmt.Errorf("parse genesis[%d].address: %w", i, err)
		}
		cfg.Genesis = append(cfg.Genesis, Genesis{Address: a, Lamports: g.Lamports})
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.ProgramID.IsZero() {
		return fmt.Errorf("program_id cannot be the allocation service address")
	}
	if c.RestoreFrom.Defined() && c.SnapshotDir == "" {
		return fmt.Errorf("restore_from requires snapshot_dir")
	}
	seen := map[address.Address]bool{}
	for _, g := range c.Genesis {
		if seen[g.Address] {
			return fmt.Errorf("duplicate genesis address %s", g.Address)
		}
		seen[g.Address] = true
	}
	return nil
}
