package verifier

import (
	"context"
	"math/big"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/chaincache"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/relayerr"
	"github.com/klaytn/tx-relay/store"
)

const testChainID = 1337

func signedRawTx(t *testing.T, nonce uint64, gas uint64, gasPrice, value *big.Int) ([]byte, common.Address, common.Hash) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := gethcommon.HexToAddress("0x00000000000000000000000000000000001234")
	gtx := types.NewTransaction(nonce, to, value, gas, gasPrice, nil)

	signer := types.NewEIP155Signer(big.NewInt(testChainID))
	signed, err := types.SignTx(gtx, signer, key)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)

	sender := common.FromGeth(crypto.PubkeyToAddress(key.PublicKey))
	return raw, sender, common.FromGethHash(signed.Hash())
}

func newHarness(t *testing.T, opts Options) (*Verifier, *chainclient.Mock, *store.Store) {
	t.Helper()
	mock := chainclient.NewMock()
	cache := chaincache.New(mock, nil, 0)
	st, err := store.Open(t.TempDir(), opts.MaxTxsPerSender)
	require.NoError(t, err)
	v := New(Block, cache, st, opts)
	return v, mock, st
}

func defaultOptions() Options {
	return Options{
		ChainID:            testChainID,
		MaxGas:             1_000_000,
		MinGasPrice:        big.NewInt(1),
		MinScheduleBlock:   2,
		MaxScheduleBlock:   1000,
		MinScheduleSeconds: 2,
		MaxScheduleSeconds: 1000,
		StrictNonce:        false,
		MaxTxsPerSender:    10,
	}
}

// S4. Schedule window.
func TestScenarioScheduleWindow(t *testing.T) {
	v, mock, _ := newHarness(t, defaultOptions())
	mock.Head = 100
	v.cache.AdvanceTo(100)

	assert.Error(t, v.checkScheduleWindow(102), "102 == head+min_schedule_block must be rejected (strict lower bound)")
	assert.NoError(t, v.checkScheduleWindow(103))
	assert.NoError(t, v.checkScheduleWindow(1100))
	assert.Error(t, v.checkScheduleWindow(1101))
}

func TestVerifyAcceptsWellFormedTransaction(t *testing.T) {
	opts := defaultOptions()
	v, mock, _ := newHarness(t, opts)
	mock.Head = 100
	v.cache.AdvanceTo(100)

	raw, sender, hash := signedRawTx(t, 0, 21000, big.NewInt(2), big.NewInt(0))
	mock.Balances[sender] = big.NewInt(1_000_000_000)
	mock.Certified[sender] = true

	num, tx, err := v.Verify(context.Background(), 150, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), num)
	assert.Equal(t, sender, tx.Sender)
	assert.Equal(t, hash, tx.Hash)
	assert.Equal(t, raw, tx.RLP)
}

func TestVerifyRejectsOutsideScheduleWindow(t *testing.T) {
	v, mock, _ := newHarness(t, defaultOptions())
	mock.Head = 100
	v.cache.AdvanceTo(100)

	_, _, err := v.Verify(context.Background(), 101, []byte("garbage"))
	requireKind(t, err, relayerr.KindInvalidBlockNumber)
}

func TestVerifyRejectsInvalidRLP(t *testing.T) {
	v, mock, _ := newHarness(t, defaultOptions())
	mock.Head = 100
	v.cache.AdvanceTo(100)

	_, _, err := v.Verify(context.Background(), 150, []byte{0xff, 0xff, 0xff})
	requireKind(t, err, relayerr.KindInvalidRLP)
}

func TestVerifyRejectsGasBelowIntrinsicMinimum(t *testing.T) {
	v, mock, _ := newHarness(t, defaultOptions())
	mock.Head = 100
	v.cache.AdvanceTo(100)

	raw, sender, _ := signedRawTx(t, 0, 1000, big.NewInt(2), big.NewInt(0))
	mock.Balances[sender] = big.NewInt(1_000_000_000)
	mock.Certified[sender] = true

	_, _, err := v.Verify(context.Background(), 150, raw)
	requireKind(t, err, relayerr.KindGasTooLow)
}

func TestVerifyRejectsGasPriceBelowMinimum(t *testing.T) {
	v, mock, _ := newHarness(t, defaultOptions())
	mock.Head = 100
	v.cache.AdvanceTo(100)

	raw, sender, _ := signedRawTx(t, 0, 21000, big.NewInt(0), big.NewInt(0))
	mock.Balances[sender] = big.NewInt(1_000_000_000)
	mock.Certified[sender] = true

	_, _, err := v.Verify(context.Background(), 150, raw)
	requireKind(t, err, relayerr.KindGasPriceTooLow)
}

func TestVerifyRejectsWhenQuotaExceeded(t *testing.T) {
	opts := defaultOptions()
	opts.MaxTxsPerSender = 1
	v, mock, st := newHarness(t, opts)
	mock.Head = 100
	v.cache.AdvanceTo(100)

	raw, sender, _ := signedRawTx(t, 0, 21000, big.NewInt(2), big.NewInt(0))
	mock.Balances[sender] = big.NewInt(1_000_000_000)
	mock.Certified[sender] = true

	already := common.Transaction{Sender: sender, Hash: common.BytesToHash([]byte("x")), RLP: []byte{1}}
	require.NoError(t, st.Insert(150, already))

	_, _, err := v.Verify(context.Background(), 150, raw)
	requireKind(t, err, relayerr.KindSenderQuotaExceeded)
}

func TestVerifyRejectsUncertifiedSender(t *testing.T) {
	v, mock, _ := newHarness(t, defaultOptions())
	mock.Head = 100
	v.cache.AdvanceTo(100)

	certifier := common.BytesToAddress([]byte{0x99})
	v.cache = chaincache.New(mock, &certifier, 0)
	v.cache.AdvanceTo(100)

	raw, sender, _ := signedRawTx(t, 0, 21000, big.NewInt(2), big.NewInt(0))
	mock.Balances[sender] = big.NewInt(1_000_000_000)

	_, _, err := v.Verify(context.Background(), 150, raw)
	requireKind(t, err, relayerr.KindNotCertified)
}

func TestVerifyRejectsInsufficientBalance(t *testing.T) {
	v, mock, _ := newHarness(t, defaultOptions())
	mock.Head = 100
	v.cache.AdvanceTo(100)

	raw, sender, _ := signedRawTx(t, 0, 21000, big.NewInt(2), big.NewInt(0))
	mock.Balances[sender] = big.NewInt(1)
	mock.Certified[sender] = true

	_, _, err := v.Verify(context.Background(), 150, raw)
	requireKind(t, err, relayerr.KindInsufficientBalance)
}

func TestVerifyStrictNonceRejectsMismatch(t *testing.T) {
	opts := defaultOptions()
	opts.StrictNonce = true
	v, mock, _ := newHarness(t, opts)
	mock.Head = 100
	v.cache.AdvanceTo(100)

	raw, sender, _ := signedRawTx(t, 5, 21000, big.NewInt(2), big.NewInt(0))
	mock.Balances[sender] = big.NewInt(1_000_000_000)
	mock.Certified[sender] = true
	mock.Nonces[sender] = 3

	_, _, err := v.Verify(context.Background(), 150, raw)
	requireKind(t, err, relayerr.KindInvalidNonce)
}

func requireKind(t *testing.T, err error, want relayerr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, relayerr.KindOf(err))
}
