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

// Package chaincache is a coherent cache over a chainclient.ChainClient:
// latest block, (balance, nonce) per sender, certified flag per sender,
// invalidated wholesale on every block change.
package chaincache

import (
	"context"
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/log"
)

// defaultCapacity bounds the per-block growth of the address-keyed
// caches. The teacher's own common/cache.go leaves this as a TODO
// ("unbounded growth within a single block"); we resolve it here by
// giving every cache a fixed capacity rather than a raw map, following
// the Add/Get/Purge idiom of that file over hashicorp/golang-lru
// directly, without its generic multi-backend abstraction.
const defaultCapacity = 8192

type balanceNonce struct {
	balance *big.Int
	nonce   uint64
}

// ChainCache is safe for concurrent use. Its three locks (head,
// balance/nonce, certified) are never acquired nested.
type ChainCache struct {
	client    chainclient.ChainClient
	certifier *common.Address
	capacity  int

	headMu sync.RWMutex
	head   common.BlockNumber

	balanceMu sync.RWMutex
	balance   *lru.Cache

	certMu sync.RWMutex
	cert   *lru.Cache

	log log.Logger
}

// New builds a ChainCache. certifier may be nil, in which case
// IsCertified always reports true without consulting the upstream node.
func New(client chainclient.ChainClient, certifier *common.Address, capacity int) *ChainCache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	balanceCache, _ := lru.New(capacity)
	certCache, _ := lru.New(capacity)
	return &ChainCache{
		client:    client,
		certifier: certifier,
		capacity:  capacity,
		balance:   balanceCache,
		cert:      certCache,
		log:       log.New("component", "chaincache"),
	}
}

// LatestBlock reads the cached head without touching the network.
func (c *ChainCache) LatestBlock() common.BlockNumber {
	c.headMu.RLock()
	defer c.headMu.RUnlock()
	return c.head
}

// AdvanceTo atomically sets the head and clears both address-keyed
// caches, since every cached value pertains only to the prior head.
func (c *ChainCache) AdvanceTo(newHead common.BlockNumber) {
	c.headMu.Lock()
	c.head = newHead
	c.headMu.Unlock()

	c.balanceMu.Lock()
	c.balance.Purge()
	c.balanceMu.Unlock()

	c.certMu.Lock()
	c.cert.Purge()
	c.certMu.Unlock()

	c.log.Debug("advanced head, cleared caches", "block", newHead)
}

// BalanceAndNonce returns the cached (balance, nonce) pair for addr, or
// issues concurrent upstream calls on a miss. Two concurrent misses for
// the same address may both hit the network; the later Add wins, which
// is safe because both observations pertain to the same latest block.
func (c *ChainCache) BalanceAndNonce(ctx context.Context, addr common.Address) (*big.Int, uint64, error) {
	c.balanceMu.RLock()
	if v, ok := c.balance.Get(addr); ok {
		c.balanceMu.RUnlock()
		bn := v.(balanceNonce)
		return bn.balance, bn.nonce, nil
	}
	c.balanceMu.RUnlock()

	type balResult struct {
		val *big.Int
		err error
	}
	type nonceResult struct {
		val uint64
		err error
	}
	balCh := make(chan balResult, 1)
	nonceCh := make(chan nonceResult, 1)

	go func() {
		v, err := c.client.Balance(ctx, addr)
		balCh <- balResult{v, err}
	}()
	go func() {
		v, err := c.client.TransactionCount(ctx, addr)
		nonceCh <- nonceResult{v, err}
	}()

	bal := <-balCh
	if bal.err != nil {
		return nil, 0, bal.err
	}
	non := <-nonceCh
	if non.err != nil {
		return nil, 0, non.err
	}

	c.balanceMu.Lock()
	c.balance.Add(addr, balanceNonce{balance: bal.val, nonce: non.val})
	c.balanceMu.Unlock()

	return bal.val, non.val, nil
}

// IsCertified reports whether addr is certified. With no certifier
// configured this is unconditionally true.
func (c *ChainCache) IsCertified(ctx context.Context, addr common.Address) (bool, error) {
	if c.certifier == nil {
		return true, nil
	}

	c.certMu.RLock()
	if v, ok := c.cert.Get(addr); ok {
		c.certMu.RUnlock()
		return v.(bool), nil
	}
	c.certMu.RUnlock()

	ok, err := c.client.IsCertified(ctx, *c.certifier, addr)
	if err != nil {
		return false, err
	}

	c.certMu.Lock()
	c.cert.Add(addr, ok)
	c.certMu.Unlock()

	return ok, nil
}
