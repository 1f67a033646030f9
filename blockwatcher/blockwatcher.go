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

// Package blockwatcher polls a chainclient for the head block, drives
// chaincache invalidation, and publishes a stream of observed block
// numbers for the dispatcher to consume.
package blockwatcher

import (
	"context"
	"time"

	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/chaincache"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/log"
	"github.com/klaytn/tx-relay/metrics"
)

// pollInterval is the sleep between head-block polls.
const pollInterval = 100 * time.Millisecond

// ChannelCapacity bounds the published block-number stream.
const ChannelCapacity = 16

// Watcher owns a chainclient, the chaincache it invalidates, and the
// sending end of a bounded channel of observed block numbers.
type Watcher struct {
	client chainclient.ChainClient
	cache  *chaincache.ChainCache
	blocks chan common.BlockNumber
	log    log.Logger
}

// New constructs a Watcher; call Run in its own goroutine.
func New(client chainclient.ChainClient, cache *chaincache.ChainCache) *Watcher {
	return &Watcher{
		client: client,
		cache:  cache,
		blocks: make(chan common.BlockNumber, ChannelCapacity),
		log:    log.New("component", "blockwatcher"),
	}
}

// Blocks is the stream of newly observed head block numbers.
func (w *Watcher) Blocks() <-chan common.BlockNumber { return w.blocks }

// Run polls until ctx is cancelled. This is process-lifetime in normal
// operation: there is no in-band shutdown beyond context cancellation.
func (w *Watcher) Run(ctx context.Context) {
	var last common.BlockNumber
	haveLast := false

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.client.BlockNumber(ctx)
			if err != nil {
				w.log.Warn("block_number poll failed", "err", err)
				continue
			}
			if haveLast && n == last {
				continue
			}

			w.cache.AdvanceTo(n)
			metrics.BlocksObserved.Inc(1)
			select {
			case w.blocks <- n:
			default:
				w.log.Warn("block stream receiver is not keeping up, dropping publish", "block", n)
			}
			last = n
			haveLast = true
		}
	}
}
