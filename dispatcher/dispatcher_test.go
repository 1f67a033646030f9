package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/store"
)

func waitForSentCount(t *testing.T, mock *chainclient.Mock, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(mock.Sent) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sends, got %d", n, len(mock.Sent))
}

func TestOnBlockDrainsBothStoresAndFansOutToEverySink(t *testing.T) {
	blockStore, err := store.Open(t.TempDir(), 10)
	require.NoError(t, err)
	timeStore, err := store.Open(t.TempDir(), 10)
	require.NoError(t, err)

	s1 := common.BytesToAddress([]byte{1})
	txA := common.Transaction{Sender: s1, Hash: common.BytesToHash([]byte("a")), RLP: []byte("raw-a")}
	require.NoError(t, blockStore.Insert(10, txA))

	mockA := chainclient.NewMock()
	mockB := chainclient.NewMock()

	d := New(blockStore, timeStore, 0, []chainclient.ChainClient{mockA, mockB})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blocks := make(chan common.BlockNumber, 1)
	go d.Run(ctx, blocks)

	blocks <- 10

	waitForSentCount(t, mockA, 1)
	waitForSentCount(t, mockB, 1)
	assert.False(t, blockStore.Has(10), "drained bucket must be gone")
}

func TestFailedBroadcastAtOneSinkDoesNotBlockOthers(t *testing.T) {
	blockStore, err := store.Open(t.TempDir(), 10)
	require.NoError(t, err)
	timeStore, err := store.Open(t.TempDir(), 10)
	require.NoError(t, err)

	s1 := common.BytesToAddress([]byte{1})
	txA := common.Transaction{Sender: s1, Hash: common.BytesToHash([]byte("a")), RLP: []byte("raw-a")}
	require.NoError(t, blockStore.Insert(10, txA))

	failing := chainclient.NewMock()
	failing.SendErr = assertError{}
	healthy := chainclient.NewMock()

	d := New(blockStore, timeStore, 0, []chainclient.ChainClient{failing, healthy})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blocks := make(chan common.BlockNumber, 1)
	go d.Run(ctx, blocks)
	blocks <- 10

	waitForSentCount(t, healthy, 1)
}

type assertError struct{}

func (assertError) Error() string { return "send failed" }
