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

// Package common holds the data types shared by every component of the
// relay: account and content identifiers, the schedule condition, the
// canonical transaction record and its external handle.
package common

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	gethcommon "github.com/ethereum/go-ethereum/common"
)

// AddressLength is the size in bytes of an account identifier.
const AddressLength = 20

// HashLength is the size in bytes of a content hash.
const HashLength = 32

// Address is a 20-byte account identifier.
type Address [AddressLength]byte

// BytesToAddress right-aligns b into an Address, truncating from the left
// if b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// FromGeth converts a go-ethereum address into our Address.
func FromGeth(a gethcommon.Address) Address {
	return BytesToAddress(a[:])
}

// ToGeth converts back to the go-ethereum representation used at the
// RLP-decode / RPC boundary.
func (a Address) ToGeth() gethcommon.Address {
	return gethcommon.BytesToAddress(a[:])
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(input []byte) error {
	b, err := decodeHex(input)
	if err != nil {
		return err
	}
	if len(b) != AddressLength {
		return fmt.Errorf("common: invalid address length %d", len(b))
	}
	copy(a[:], b)
	return nil
}

// Hash is a 32-byte content hash.
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func FromGethHash(h gethcommon.Hash) Hash {
	return BytesToHash(h[:])
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Hash) UnmarshalText(input []byte) error {
	b, err := decodeHex(input)
	if err != nil {
		return err
	}
	if len(b) != HashLength {
		return fmt.Errorf("common: invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return nil
}

func decodeHex(input []byte) ([]byte, error) {
	s := string(input)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// BlockNumber is an unsigned chain height.
type BlockNumber uint64

// Timestamp is unsigned wall-clock seconds since epoch.
type Timestamp uint64

// ConditionKind tags a Condition as block- or time-scheduled.
type ConditionKind uint8

const (
	ConditionBlock ConditionKind = 0
	ConditionTime  ConditionKind = 1
)

// Condition is the tagged union under which a transaction is scheduled.
type Condition struct {
	Kind ConditionKind
	// Value is the block number (Kind==ConditionBlock) or the unix
	// timestamp in seconds (Kind==ConditionTime) the transaction is due.
	Value uint64
}

func BlockCondition(n BlockNumber) Condition { return Condition{Kind: ConditionBlock, Value: uint64(n)} }

func TimeCondition(t Timestamp) Condition { return Condition{Kind: ConditionTime, Value: uint64(t)} }

func (c Condition) IsBlock() bool { return c.Kind == ConditionBlock }

// Transaction is the immutable record the relay stores and, eventually,
// rebroadcasts. RLP is the exact byte string handed back to the chain
// node on dispatch.
type Transaction struct {
	Sender Address
	Hash   Hash
	RLP    []byte
}

// TransactionIDLength is the external handle's fixed wire size:
// 1 (kind) + 8 (condition value, little-endian) + 32 (hash).
const TransactionIDLength = 1 + 8 + HashLength

// TransactionID is the 41-byte external handle returned from
// scheduleTransaction and consumed by cancel.
type TransactionID struct {
	Kind  ConditionKind
	Value uint64
	Hash  Hash
}

// Bytes encodes the id as [kind:u8 | value:u64 LE | hash:32B].
func (id TransactionID) Bytes() []byte {
	buf := make([]byte, TransactionIDLength)
	buf[0] = byte(id.Kind)
	binary.LittleEndian.PutUint64(buf[1:9], id.Value)
	copy(buf[9:], id.Hash[:])
	return buf
}

// ParseTransactionID decodes the 41-byte wire form produced by Bytes.
func ParseTransactionID(b []byte) (TransactionID, error) {
	var id TransactionID
	if len(b) != TransactionIDLength {
		return id, errors.New("common: transaction id must be 41 bytes")
	}
	if b[0] == 0 {
		id.Kind = ConditionBlock
	} else {
		id.Kind = ConditionTime
	}
	id.Value = binary.LittleEndian.Uint64(b[1:9])
	copy(id.Hash[:], b[9:])
	return id, nil
}

// Condition reconstructs the scheduling condition this id was minted for.
func (id TransactionID) Condition() Condition {
	return Condition{Kind: id.Kind, Value: id.Value}
}
