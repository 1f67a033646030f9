package chainclient

import (
	"context"
	"math/big"
	"sync"

	"github.com/klaytn/tx-relay/common"
)

// Mock is an in-memory ChainClient used by chaincache, verifier, and
// dispatcher tests so they don't need a live node.
type Mock struct {
	mu sync.Mutex

	Head         common.BlockNumber
	Balances     map[common.Address]*big.Int
	Nonces       map[common.Address]uint64
	Certified    map[common.Address]bool
	SendErr      error
	Sent         []common.Hash
	BlockNumErr  error
	CertifyCalls int
}

// NewMock returns a Mock with empty maps ready to populate per test.
func NewMock() *Mock {
	return &Mock{
		Balances:  make(map[common.Address]*big.Int),
		Nonces:    make(map[common.Address]uint64),
		Certified: make(map[common.Address]bool),
	}
}

func (m *Mock) BlockNumber(ctx context.Context) (common.BlockNumber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BlockNumErr != nil {
		return 0, m.BlockNumErr
	}
	return m.Head, nil
}

func (m *Mock) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.Balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *Mock) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Nonces[addr], nil
}

func (m *Mock) IsCertified(ctx context.Context, certifier, addr common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CertifyCalls++
	return m.Certified[addr], nil
}

func (m *Mock) SendRaw(ctx context.Context, rlp []byte) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return common.Hash{}, m.SendErr
	}
	h := common.BytesToHash(rlp)
	m.Sent = append(m.Sent, h)
	return h, nil
}

func (m *Mock) Close() {}
