package blockwatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/tx-relay/chainclient"
	"github.com/klaytn/tx-relay/chaincache"
	"github.com/klaytn/tx-relay/common"
)

func TestRunPublishesOnHeadChangeAndAdvancesCache(t *testing.T) {
	mock := chainclient.NewMock()
	mock.Head = 10
	cache := chaincache.New(mock, nil, 0)

	w := New(mock, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case n := <-w.Blocks():
		assert.Equal(t, common.BlockNumber(10), n)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial block publish")
	}
	require.Equal(t, common.BlockNumber(10), cache.LatestBlock())

	mock.Head = 11
	select {
	case n := <-w.Blocks():
		assert.Equal(t, common.BlockNumber(11), n)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second block publish")
	}
	assert.Equal(t, common.BlockNumber(11), cache.LatestBlock())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	mock := chainclient.NewMock()
	cache := chaincache.New(mock, nil, 0)
	w := New(mock, cache)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
