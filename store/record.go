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

package store

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klaytn/tx-relay/common"
)

// recordHeaderLength is the fixed prefix before a record's variable-length
// RLP payload: 4 (rlp_len, LE) + 20 (sender) + 32 (hash).
const recordHeaderLength = 4 + common.AddressLength + common.HashLength

// encodeRecord frames tx as [rlp_len:u32 LE | sender:20B | hash:32B | rlp].
func encodeRecord(tx common.Transaction) []byte {
	buf := make([]byte, recordHeaderLength+len(tx.RLP))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(tx.RLP)))
	copy(buf[4:4+common.AddressLength], tx.Sender[:])
	copy(buf[4+common.AddressLength:recordHeaderLength], tx.Hash[:])
	copy(buf[recordHeaderLength:], tx.RLP)
	return buf
}

// readRecord reads one framed record from r. It returns io.EOF (unwrapped)
// only when r is positioned exactly at the end of the stream with no
// partial header; any other truncation is a malformed-file error.
func readRecord(r io.Reader) (common.Transaction, error) {
	var header [recordHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return common.Transaction{}, fmt.Errorf("store: truncated record header: %w", err)
		}
		return common.Transaction{}, err
	}

	rlpLen := binary.LittleEndian.Uint32(header[0:4])
	var sender common.Address
	copy(sender[:], header[4:4+common.AddressLength])
	var hash common.Hash
	copy(hash[:], header[4+common.AddressLength:recordHeaderLength])

	rlp := make([]byte, rlpLen)
	if _, err := io.ReadFull(r, rlp); err != nil {
		return common.Transaction{}, fmt.Errorf("store: truncated record body: %w", err)
	}

	return common.Transaction{Sender: sender, Hash: hash, RLP: rlp}, nil
}
