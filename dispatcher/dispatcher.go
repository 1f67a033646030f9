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

// Package dispatcher drains due entries from both Stores on every
// observed block and replicates each transaction to every configured
// upstream sink. Failed broadcasts are not retried here; the system
// relies on redundant sinks for availability.
package dispatcher

import (
	"context"
	"time"

	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/log"
	"github.com/klaytn/tx-relay/metrics"
	"github.com/klaytn/tx-relay/store"
)

// sinkChannelCapacity bounds each per-sink worker's input queue.
const sinkChannelCapacity = 1024

// nowFunc is overridden in tests for a deterministic threshold_time.
var nowFunc = func() uint64 { return uint64(time.Now().Unix()) }

type sink struct {
	client chainclient.ChainClient
	ch     chan common.Transaction
	log    log.Logger
}

// Dispatcher subscribes to a block-number stream, drains both Stores in
// order, and fans each transaction out to every sink.
type Dispatcher struct {
	blockStore *store.Store
	timeStore  *store.Store
	submitEarlier uint64
	sinks      []*sink
	log        log.Logger
}

// New builds a Dispatcher over a non-empty list of upstream sinks.
func New(blockStore, timeStore *store.Store, submitEarlier uint64, clients []chainclient.ChainClient) *Dispatcher {
	d := &Dispatcher{
		blockStore:    blockStore,
		timeStore:     timeStore,
		submitEarlier: submitEarlier,
		log:           log.New("component", "dispatcher"),
	}
	for i, c := range clients {
		s := &sink{
			client: c,
			ch:     make(chan common.Transaction, sinkChannelCapacity),
			log:    log.New("component", "dispatcher", "sink", i),
		}
		d.sinks = append(d.sinks, s)
	}
	return d
}

// Run starts one worker goroutine per sink and then drives the drain
// loop over blocks until ctx is cancelled or blocks closes.
func (d *Dispatcher) Run(ctx context.Context, blocks <-chan common.BlockNumber) {
	for _, s := range d.sinks {
		go d.runSink(ctx, s)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-blocks:
			if !ok {
				return
			}
			d.onBlock(ctx, b)
		}
	}
}

// onBlock computes both drain thresholds and dispatches every due
// transaction synchronously before returning, so the next block's
// drain cannot start early: correctness before throughput.
func (d *Dispatcher) onBlock(ctx context.Context, b common.BlockNumber) {
	thresholdBlock := uint64(b) + d.submitEarlier
	thresholdTime := nowFunc()

	blockTxs, err := d.blockStore.Drain(thresholdBlock)
	if err != nil {
		d.log.Error("block store drain failed", "threshold", thresholdBlock, "err", err)
	}
	timeTxs, err := d.timeStore.Drain(thresholdTime)
	if err != nil {
		d.log.Error("time store drain failed", "threshold", thresholdTime, "err", err)
	}

	for _, tx := range append(blockTxs, timeTxs...) {
		d.fanOut(ctx, tx)
	}
}

// fanOut hands tx to every sink's bounded channel, blocking on a full
// channel deliberately: that backpressure is how a slow sink stalls
// progress without losing a transaction from the others.
func (d *Dispatcher) fanOut(ctx context.Context, tx common.Transaction) {
	for _, s := range d.sinks {
		select {
		case s.ch <- tx:
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) runSink(ctx context.Context, s *sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case tx := <-s.ch:
			hash, err := s.client.SendRaw(ctx, tx.RLP)
			if err != nil {
				metrics.TransactionsDispatchFailed.Inc(1)
				s.log.Error("broadcast failed", "hash", tx.Hash.Hex(), "err", err)
				continue
			}
			metrics.TransactionsDispatched.Inc(1)
			s.log.Info("broadcast succeeded", "hash", hash.Hex())
		}
	}
}
