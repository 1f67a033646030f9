package rpcserver

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/chaincache"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/store"
	"github.com/klaytn/tx-relay/verifier"
)

const testChainID = 1337

func signedRawTx(t *testing.T) ([]byte, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := gethcommon.HexToAddress("0x00000000000000000000000000000000001234")
	gtx := types.NewTransaction(0, to, big.NewInt(0), 21000, big.NewInt(2), nil)
	signer := types.NewEIP155Signer(big.NewInt(testChainID))
	signed, err := types.SignTx(gtx, signer, key)
	require.NoError(t, err)

	raw, err := signed.MarshalBinary()
	require.NoError(t, err)
	return raw, common.FromGeth(crypto.PubkeyToAddress(key.PublicKey))
}

func newTestHandler(t *testing.T) (*Handler, *chainclient.Mock) {
	t.Helper()
	mock := chainclient.NewMock()
	cache := chaincache.New(mock, nil, 0)
	cache.AdvanceTo(100)

	blockStore, err := store.Open(t.TempDir(), 10)
	require.NoError(t, err)
	timeStore, err := store.Open(t.TempDir(), 10)
	require.NoError(t, err)

	opts := verifier.Options{
		ChainID:            testChainID,
		MaxGas:             1_000_000,
		MinGasPrice:        big.NewInt(1),
		MinScheduleBlock:   2,
		MaxScheduleBlock:   1000,
		MinScheduleSeconds: 2,
		MaxScheduleSeconds: 1000,
		MaxTxsPerSender:    10,
	}

	blockRoute := Route{Verifier: verifier.New(verifier.Block, cache, blockStore, opts), Store: blockStore}
	timeRoute := Route{Verifier: verifier.New(verifier.Timestamp, cache, timeStore, opts), Store: timeStore}

	return New(blockRoute, timeRoute, 2), mock
}

func doRPC(t *testing.T, h *Handler, body string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestScheduleTransactionReturnsTransactionID(t *testing.T) {
	h, mock := newTestHandler(t)
	raw, sender := signedRawTx(t)
	mock.Balances[sender] = big.NewInt(1_000_000_000)
	mock.Certified[sender] = true

	body := `{"jsonrpc":"2.0","id":1,"method":"scheduleTransaction","params":{"condition":{"block":150},"rlp_hex":"` +
		hex.EncodeToString(raw) + `"}}`

	resp := doRPC(t, h, body)
	require.Nil(t, resp["error"])
	idHex, ok := resp["result"].(string)
	require.True(t, ok)
	idBytes, err := hex.DecodeString(idHex)
	require.NoError(t, err)
	assert.Len(t, idBytes, common.TransactionIDLength)
}

func TestScheduleTransactionRejectsBadCondition(t *testing.T) {
	h, _ := newTestHandler(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"scheduleTransaction","params":{"condition":{},"rlp_hex":"00"}}`

	resp := doRPC(t, h, body)
	assert.NotNil(t, resp["error"])
}

func TestCancelRoundTrip(t *testing.T) {
	h, mock := newTestHandler(t)
	raw, sender := signedRawTx(t)
	mock.Balances[sender] = big.NewInt(1_000_000_000)
	mock.Certified[sender] = true

	scheduleBody := `{"jsonrpc":"2.0","id":1,"method":"scheduleTransaction","params":{"condition":{"block":150},"rlp_hex":"` +
		hex.EncodeToString(raw) + `"}}`
	resp := doRPC(t, h, scheduleBody)
	idHex := resp["result"].(string)

	cancelBody := `{"jsonrpc":"2.0","id":2,"method":"cancel","params":"` + idHex + `"}`
	resp = doRPC(t, h, cancelBody)
	require.Nil(t, resp["error"])
	assert.Equal(t, "ok", resp["result"])
}

func TestCancelReportsNotFoundForUnknownID(t *testing.T) {
	h, _ := newTestHandler(t)
	id := common.TransactionID{Kind: common.ConditionBlock, Value: 999, Hash: common.BytesToHash([]byte("nope"))}
	cancelBody := `{"jsonrpc":"2.0","id":1,"method":"cancel","params":"` + hex.EncodeToString(id.Bytes()) + `"}`

	resp := doRPC(t, h, cancelBody)
	assert.NotNil(t, resp["error"])
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	resp := doRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"bogus","params":{}}`)
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, -32601, errObj["code"])
}
