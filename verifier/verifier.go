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

// Package verifier runs a submitted transaction through the schedule
// window, decode, semantic, quota, certification, and economics checks
// before it is admitted to a Store.
package verifier

import (
	"context"
	"math/big"
	"time"

	"github.com/klaytn/tx-relay/chaincache"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/params"
	"github.com/klaytn/tx-relay/relayerr"
	"github.com/klaytn/tx-relay/store"
)

// Mode selects which half of spec §4.A's two condition kinds a Verifier
// evaluates the schedule window for.
type Mode int

const (
	Block Mode = iota
	Timestamp
)

// Options is the read-only configuration the verifier checks a
// submission against; it is shared between the block-mode and
// timestamp-mode verifier instances.
type Options struct {
	ChainID            uint64
	MaxGas             uint64
	MinGasPrice        *big.Int
	MinScheduleBlock   uint64
	MaxScheduleBlock   uint64
	MinScheduleSeconds uint64
	MaxScheduleSeconds uint64
	StrictNonce        bool
	MaxTxsPerSender    uint32
}

// nowFunc is overridden in tests to make the schedule window
// deterministic.
var nowFunc = func() uint64 { return uint64(time.Now().Unix()) }

// Verifier is stateless aside from the components it holds references
// to; it never mutates the Store itself.
type Verifier struct {
	mode  Mode
	cache *chaincache.ChainCache
	store *store.Store
	opts  Options
}

// New constructs a Verifier bound to one condition kind.
func New(mode Mode, cache *chaincache.ChainCache, st *store.Store, opts Options) *Verifier {
	return &Verifier{mode: mode, cache: cache, store: st, opts: opts}
}

// Verify runs the full pipeline and, on success, returns the
// canonicalized key (the same num passed in) and Transaction ready for
// Store.Insert. It never inserts into the Store itself.
func (v *Verifier) Verify(ctx context.Context, num uint64, raw []byte) (uint64, common.Transaction, error) {
	if err := v.checkScheduleWindow(num); err != nil {
		return 0, common.Transaction{}, err
	}

	decoded, err := v.decode(raw)
	if err != nil {
		return 0, common.Transaction{}, err
	}

	if err := v.checkBasicSemantics(decoded); err != nil {
		return 0, common.Transaction{}, err
	}

	if !v.store.SenderAllowed(decoded.Sender) {
		return 0, common.Transaction{}, relayerr.New(relayerr.KindSenderQuotaExceeded,
			"sender has reached max_txs_per_sender")
	}

	certified, err := v.cache.IsCertified(ctx, decoded.Sender)
	if err != nil {
		return 0, common.Transaction{}, relayerr.Wrap(relayerr.KindInvalidTransaction, err)
	}
	if !certified {
		return 0, common.Transaction{}, relayerr.New(relayerr.KindNotCertified, "sender is not certified")
	}

	if err := v.checkEconomics(ctx, decoded); err != nil {
		return 0, common.Transaction{}, err
	}

	tx := common.Transaction{Sender: decoded.Sender, Hash: decoded.Hash, RLP: raw}
	return num, tx, nil
}

func (v *Verifier) checkScheduleWindow(num uint64) error {
	switch v.mode {
	case Block:
		head := uint64(v.cache.LatestBlock())
		lower := head + v.opts.MinScheduleBlock
		upper := head + v.opts.MaxScheduleBlock
		if !(lower < num && num <= upper) {
			return relayerr.Newf(relayerr.KindInvalidBlockNumber,
				"block %d outside schedule window (%d, %d]", num, lower, upper)
		}
	case Timestamp:
		now := nowFunc()
		lower := now + v.opts.MinScheduleSeconds
		upper := now + v.opts.MaxScheduleSeconds
		if !(lower < num && num <= upper) {
			return relayerr.Newf(relayerr.KindInvalidTimestamp,
				"timestamp %d outside schedule window (%d, %d]", num, lower, upper)
		}
	}
	return nil
}

func (v *Verifier) decode(raw []byte) (*common.DecodedTransaction, error) {
	decoded, err := common.DecodeAndRecover(raw)
	if err != nil {
		switch err {
		case common.ErrInvalidRLP:
			return nil, relayerr.Wrap(relayerr.KindInvalidRLP, err)
		case common.ErrInvalidSignature:
			return nil, relayerr.Wrap(relayerr.KindInvalidSignature, err)
		default:
			return nil, relayerr.Wrap(relayerr.KindInvalidTransaction, err)
		}
	}
	return decoded, nil
}

func (v *Verifier) checkBasicSemantics(tx *common.DecodedTransaction) error {
	if tx.ChainID.Uint64() != v.opts.ChainID {
		return relayerr.New(relayerr.KindInvalidTransaction, "chain id mismatch")
	}

	minGas := intrinsicGas(tx.IsCreation, tx.Data)
	if tx.Gas < minGas {
		return relayerr.Newf(relayerr.KindGasTooLow, "gas %d below intrinsic minimum %d", tx.Gas, minGas)
	}
	if tx.Gas > v.opts.MaxGas {
		return relayerr.Newf(relayerr.KindGasTooHigh, "gas %d exceeds max_gas %d", tx.Gas, v.opts.MaxGas)
	}
	if v.opts.MinGasPrice != nil && tx.GasPrice.Cmp(v.opts.MinGasPrice) < 0 {
		return relayerr.New(relayerr.KindGasPriceTooLow, "gas price below min_gas_price")
	}
	return nil
}

func (v *Verifier) checkEconomics(ctx context.Context, tx *common.DecodedTransaction) error {
	balance, nonce, err := v.cache.BalanceAndNonce(ctx, tx.Sender)
	if err != nil {
		return relayerr.Wrap(relayerr.KindInvalidTransaction, err)
	}

	cost := new(big.Int).Mul(big.NewInt(int64(tx.Gas)), tx.GasPrice)
	cost.Add(cost, tx.Value)
	if balance.Cmp(cost) < 0 {
		return relayerr.New(relayerr.KindInsufficientBalance, "balance insufficient for value + gas*gasPrice")
	}

	if v.opts.StrictNonce {
		if tx.Nonce != nonce {
			return relayerr.Newf(relayerr.KindInvalidNonce, "nonce %d != expected %d", tx.Nonce, nonce)
		}
	} else if tx.Nonce < nonce {
		return relayerr.Newf(relayerr.KindInvalidNonce, "nonce %d below expected %d", tx.Nonce, nonce)
	}
	return nil
}

// intrinsicGas mirrors Ethereum's own intrinsic-gas schedule: a flat
// per-transaction charge plus a per-byte charge for attached data.
func intrinsicGas(isCreation bool, data []byte) uint64 {
	gas := params.TxGas
	if isCreation {
		gas = params.TxGasContractCreation
	}
	for _, b := range data {
		if b == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += params.TxDataNonZeroGas
		}
	}
	return gas
}
