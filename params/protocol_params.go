// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package params holds the handful of chain-level constants the relay
// needs to evaluate a transaction's intrinsic gas requirement. It does
// not carry a fork schedule: the relay is not an execution client, it
// only needs the fee-schedule numbers below.
package params

const (
	// TxGas is the intrinsic gas charged for a transaction that does not
	// create a contract. // G_transaction
	TxGas uint64 = 21000
	// TxGasContractCreation is the intrinsic gas charged for a
	// contract-creation transaction. // G_transaction + G_create
	TxGasContractCreation uint64 = 53000
	// TxDataZeroGas is charged per zero byte of attached data.
	TxDataZeroGas uint64 = 4
	// TxDataNonZeroGas is charged per non-zero byte of attached data.
	TxDataNonZeroGas uint64 = 68
)
