// Package genlayer is a minimal GenLayer network client: contract reads and
// writes, contract deployment and transaction status polling over JSON-RPC.
package genlayer

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain describes a GenLayer network endpoint.
type Chain struct {
	ID          int64
	Name        string
	RPCURL      string
	ExplorerURL string

	// Studio chains expose sim_* methods used to discover the consensus
	// contract.
	Studio bool
	// ConsensusMainAddress skips discovery when set.
	ConsensusMainAddress common.Address

	DefaultValidators   int64
	DefaultMaxRotations int64
	DefaultGasLimit     uint64
}

var (
	// Studionet is the hosted GenLayer Studio network.
	Studionet = Chain{
		ID:                  61999,
		Name:                "GenLayer Studio",
		RPCURL:              "https://studio.genlayer.com/api",
		ExplorerURL:         "https://studio.genlayer.com",
		Studio:              true,
		DefaultValidators:   5,
		DefaultMaxRotations: 3,
		DefaultGasLimit:     30_000_000,
	}

	// Localnet is a locally running studio.
	Localnet = Chain{
		ID:                  61999,
		Name:                "Localnet",
		RPCURL:              "http://127.0.0.1:4000/api",
		ExplorerURL:         "http://localhost:8080",
		Studio:              true,
		DefaultValidators:   5,
		DefaultMaxRotations: 3,
		DefaultGasLimit:     30_000_000,
	}
)

// ChainByName returns a predefined chain. "studio" and "studionet" both map
// to Studionet.
func ChainByName(name string) (Chain, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "studio", "studionet":
		return Studionet, true
	case "localnet", "local":
		return Localnet, true
	}
	return Chain{}, false
}
