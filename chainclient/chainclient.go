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

// Package chainclient is the thin request/response edge against a single
// upstream node: block_number, balance, transaction_count, a certifier
// contract_call, and send_raw_transaction. Everything above this layer
// treats failures as transient and decides recovery for itself.
package chainclient

import (
	"context"
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/klaytn/tx-relay/common"
)

// TransportKind tags which dial scheme a ChainClient was constructed with.
type TransportKind int

const (
	// Ipc addresses a local node over a unix domain socket path.
	Ipc TransportKind = iota
	// HTTP addresses a remote node over an http(s) URL.
	HTTP
)

// ChainClient is the narrow surface the rest of the relay depends on.
// Every method is a single request/response round trip; transport
// failures are returned as an ordinary error, not retried here.
type ChainClient interface {
	BlockNumber(ctx context.Context) (common.BlockNumber, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	TransactionCount(ctx context.Context, addr common.Address) (uint64, error)
	IsCertified(ctx context.Context, certifier, addr common.Address) (bool, error)
	SendRaw(ctx context.Context, rlp []byte) (common.Hash, error)
	Close()
}

// client wraps go-ethereum's own json-rpc client. rpc.DialContext already
// dispatches on URL scheme (http://, https://, ws(s)://, or a bare path
// for a unix socket), which is why TransportKind only needs to be
// recorded for logging rather than used to pick a dial function.
type client struct {
	kind TransportKind
	addr string
	rpc  *gethrpc.Client
}

// Dial opens a connection to a single upstream node. addr is a unix
// socket path when kind is Ipc, or an http(s) URL when kind is HTTP.
// An eth_blockNumber probe is issued before returning, so an unreachable
// node fails here rather than on first use.
func Dial(ctx context.Context, kind TransportKind, addr string) (ChainClient, error) {
	rc, err := gethrpc.DialContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial %s: %w", addr, err)
	}
	var head hexutil.Uint64
	if err := rc.CallContext(ctx, &head, "eth_blockNumber"); err != nil {
		rc.Close()
		return nil, fmt.Errorf("chainclient: dial %s: %w", addr, err)
	}
	return &client{kind: kind, addr: addr, rpc: rc}, nil
}

func (c *client) Close() { c.rpc.Close() }

func (c *client) BlockNumber(ctx context.Context) (common.BlockNumber, error) {
	var result hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &result, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("chainclient: eth_blockNumber: %w", err)
	}
	return common.BlockNumber(result), nil
}

func (c *client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var result hexutil.Big
	if err := c.rpc.CallContext(ctx, &result, "eth_getBalance", addr.ToGeth(), "latest"); err != nil {
		return nil, fmt.Errorf("chainclient: eth_getBalance: %w", err)
	}
	return (*big.Int)(&result), nil
}

func (c *client) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	var result hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &result, "eth_getTransactionCount", addr.ToGeth(), "latest"); err != nil {
		return 0, fmt.Errorf("chainclient: eth_getTransactionCount: %w", err)
	}
	return uint64(result), nil
}

// certifiedSelector is the first 4 bytes of keccak256("certified(address)"),
// computed once at package init rather than via an accounts/abi
// dependency, since the relay only ever needs this one fixed-shape call.
var certifiedSelector = crypto.Keccak256([]byte("certified(address)"))[:4]

// IsCertified performs an eth_call against the certifier contract with
// hand-packed Solidity calldata: selector followed by the address,
// left-padded to 32 bytes.
func (c *client) IsCertified(ctx context.Context, certifier, addr common.Address) (bool, error) {
	calldata := make([]byte, 4+32)
	copy(calldata, certifiedSelector)
	copy(calldata[4+12:], addr.Bytes())

	callArgs := map[string]interface{}{
		"to":   certifier.ToGeth(),
		"data": hexutil.Encode(calldata),
	}

	var result hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &result, "eth_call", callArgs, "latest"); err != nil {
		return false, fmt.Errorf("chainclient: eth_call certified: %w", err)
	}
	for _, b := range result {
		if b != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (c *client) SendRaw(ctx context.Context, rlp []byte) (common.Hash, error) {
	var result gethcommon.Hash
	if err := c.rpc.CallContext(ctx, &result, "eth_sendRawTransaction", hexutil.Encode(rlp)); err != nil {
		return common.Hash{}, fmt.Errorf("chainclient: eth_sendRawTransaction: %w", err)
	}
	return common.FromGethHash(result), nil
}
