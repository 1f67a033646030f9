// Copyright 2018 The klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package config loads and validates the relay's TOML configuration,
// the same naoina/toml decode the teacher's own node configuration
// uses, with DefaultDataDir following the teacher's node/defaults.go
// home-directory resolution.
package config

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// tomlSettings keeps TOML keys matching the literal `toml` struct tags
// below rather than re-deriving them from the Go field names, the same
// override the teacher's cmd/ranger/config.go installs.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
}

// RPCConfig is the `[rpc]` table.
type RPCConfig struct {
	Interface         string `toml:"interface"`
	Port              int    `toml:"port"`
	ServerThreads     int    `toml:"server_threads"`
	ProcessingThreads int    `toml:"processing_threads"`
	DBPath            string `toml:"db_path"`
	SubmitEarlier     uint64 `toml:"submit_earlier"`
}

// VerificationConfig is the `[verification]` table.
type VerificationConfig struct {
	ChainID            uint64 `toml:"chain_id"`
	MaxGas             uint64 `toml:"max_gas"`
	MinGasPrice        uint64 `toml:"min_gas_price"`
	MinScheduleBlock   uint64 `toml:"min_schedule_block"`
	MaxScheduleBlock   uint64 `toml:"max_schedule_block"`
	MinScheduleSeconds uint64 `toml:"min_schedule_seconds"`
	MaxScheduleSeconds uint64 `toml:"max_schedule_seconds"`
	StrictNonce        bool   `toml:"strict_nonce"`
	MaxTxsPerSender    uint32 `toml:"max_txs_per_sender"`
	Certifier          string `toml:"certifier"`
}

// NodesConfig is the `[nodes]` table: the upstream this relay reads
// chain state from, and the upstream sinks it broadcasts to.
type NodesConfig struct {
	Blockchain   string   `toml:"blockchain"`
	Transactions []string `toml:"transactions"`
}

// Config is the top-level decoded TOML document.
type Config struct {
	RPC          RPCConfig          `toml:"rpc"`
	Verification VerificationConfig `toml:"verification"`
	Nodes        NodesConfig        `toml:"nodes"`
}

// Default returns a Config with the same reasonable defaults the
// teacher's node.DefaultConfig supplies, before a TOML file is layered
// on top.
func Default() Config {
	return Config{
		RPC: RPCConfig{
			Interface:         "127.0.0.1",
			Port:              8585,
			ServerThreads:     4,
			ProcessingThreads: 4,
			DBPath:            DefaultDataDir(),
			SubmitEarlier:     0,
		},
		Verification: VerificationConfig{
			MaxGas:             8_000_000,
			MinGasPrice:        1,
			MinScheduleBlock:   1,
			MaxScheduleBlock:   1_000_000,
			MinScheduleSeconds: 1,
			MaxScheduleSeconds: 31_536_000,
			StrictNonce:        false,
			MaxTxsPerSender:    64,
		},
	}
}

// Load decodes path over Default() and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return Config{}, fmt.Errorf("config: %s, %w", path, err)
		}
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate uses pkg/errors, as the teacher's node/service.go does for
// its own config checks, so a misconfigured deploy's log carries a
// stack trace back to the exact validation rule that tripped.
func (c Config) validate() error {
	if c.Nodes.Blockchain == "" {
		return errors.New("config: nodes.blockchain must be set")
	}
	if len(c.Nodes.Transactions) == 0 {
		return errors.New("config: nodes.transactions must list at least one upstream sink")
	}
	if c.RPC.ProcessingThreads <= 0 {
		return errors.New("config: rpc.processing_threads must be positive")
	}
	if c.Verification.MinScheduleBlock >= c.Verification.MaxScheduleBlock {
		return errors.New("config: verification.min_schedule_block must be < max_schedule_block")
	}
	if c.Verification.MinScheduleSeconds >= c.Verification.MaxScheduleSeconds {
		return errors.New("config: verification.min_schedule_seconds must be < max_schedule_seconds")
	}
	return nil
}

// DefaultDataDir places the relay's store directories under the user's
// home directory, following the teacher's node/defaults.go resolution
// order (HOME env var, then os/user) per host OS.
func DefaultDataDir() string {
	home := homeDir()
	if home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "TxRelay")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "TxRelay")
	default:
		return filepath.Join(home, ".txrelay")
	}
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
