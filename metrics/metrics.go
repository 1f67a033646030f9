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

// Package metrics registers the relay's operational counters against
// the default rcrowley/go-metrics registry, the same
// metrics.NewRegisteredCounter idiom the teacher's work/worker.go uses
// for its own job-processing counters.
package metrics

import (
	gometrics "github.com/rcrowley/go-metrics"
)

var (
	// TransactionsScheduled counts successful scheduleTransaction calls.
	TransactionsScheduled = gometrics.NewRegisteredCounter("relay/scheduled", gometrics.DefaultRegistry)
	// TransactionsRejected counts verification failures.
	TransactionsRejected = gometrics.NewRegisteredCounter("relay/rejected", gometrics.DefaultRegistry)
	// TransactionsCancelled counts successful cancel calls.
	TransactionsCancelled = gometrics.NewRegisteredCounter("relay/cancelled", gometrics.DefaultRegistry)
	// TransactionsDispatched counts broadcasts that succeeded at a sink.
	TransactionsDispatched = gometrics.NewRegisteredCounter("relay/dispatched", gometrics.DefaultRegistry)
	// TransactionsDispatchFailed counts broadcasts that failed at a sink.
	TransactionsDispatchFailed = gometrics.NewRegisteredCounter("relay/dispatch_failed", gometrics.DefaultRegistry)
	// BlocksObserved counts distinct head blocks seen by the BlockWatcher.
	BlocksObserved = gometrics.NewRegisteredCounter("relay/blocks_observed", gometrics.DefaultRegistry)
)

// Snapshot renders the default registry as a plain map, suitable for
// JSON serialization by the /metrics debug endpoint.
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	gometrics.DefaultRegistry.Each(func(name string, i interface{}) {
		if c, ok := i.(gometrics.Counter); ok {
			out[name] = c.Count()
		}
	})
	return out
}
