package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stream-indexer/internal/chain"
	"github.com/stream-indexer/internal/types"
)

const (
	testDeployment  = "0x00000000000000000000000000000000000000000000000000000000000000d1"
	otherDeployment = "0x00000000000000000000000000000000000000000000000000000000000000d2"
)

func protoEvent(deployment, name string, seq uint64, data string) chain.RawEvent {
	return chain.RawEvent{
		Type:           fmt.Sprintf("%s::streams::%s", deployment, name),
		SequenceNumber: chain.Uint64Str(seq),
		Data:           json.RawMessage(data),
	}
}

func testTx(version uint64, sender string, events ...chain.RawEvent) chain.Transaction {
	return chain.Transaction{
		Version:   chain.Uint64Str(version),
		Hash:      fmt.Sprintf("0xhash%d", version),
		Timestamp: chain.Uint64Str(1700000000000000 + version),
		Sender:    sender,
		Success:   true,
		Payload:   &chain.TransactionPayload{Function: testDeployment + "::address_driver::set_streams"},
		Events:    events,
	}
}

func TestFetchKeepsOnlyDeploymentEvents(t *testing.T) {
	fc := newFakeChain()
	fc.txs = []chain.Transaction{
		testTx(10, "0xaaa",
			protoEvent(testDeployment, "Given", 0, `{"account_id":"1","receiver":"2","fa_metadata":"0x1","amt":"100"}`),
			protoEvent(otherDeployment, "Given", 0, `{"account_id":"9"}`),
			protoEvent(testDeployment, "SomethingElse", 1, `{}`),
		),
		testTx(11, "0xbbb"),
	}

	result := NewFetcher(fc).Fetch(context.Background(), testDeployment, 0, 100)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, uint64(11), result.NewCursor)
	assert.False(t, result.Degraded)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	assert.Equal(t, types.EventGiven, c.Name)
	assert.Equal(t, uint64(10), c.TxVersion)
	assert.Equal(t, "0xaaa", c.Sender)
	assert.Equal(t, testDeployment+"::address_driver::set_streams", c.EntryFunction)
}

func TestFetchCursorAdvancesPastIrrelevantTransactions(t *testing.T) {
	fc := newFakeChain()
	fc.txs = []chain.Transaction{
		testTx(5, "0xaaa"),
		testTx(6, "0xaaa"),
		testTx(7, "0xaaa"),
	}

	result := NewFetcher(fc).Fetch(context.Background(), testDeployment, 5, 100)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, uint64(7), result.NewCursor, "cursor covers scanned transactions even without protocol events")
}

func TestFetchSkipsFailedTransactionEvents(t *testing.T) {
	failed := testTx(20, "0xaaa",
		protoEvent(testDeployment, "Given", 0, `{"account_id":"1"}`))
	failed.Success = false

	fc := newFakeChain()
	fc.txs = []chain.Transaction{failed}

	result := NewFetcher(fc).Fetch(context.Background(), testDeployment, 0, 100)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, uint64(20), result.NewCursor)
}

func TestFetchNetworkFailureDegradesToNoOp(t *testing.T) {
	fc := newFakeChain()
	fc.txErr = errChainDown

	result := NewFetcher(fc).Fetch(context.Background(), testDeployment, 42, 100)

	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.DegradedReason)
	assert.Zero(t, result.Scanned)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, uint64(42), result.NewCursor)
}

func TestFetchClampsBatchSize(t *testing.T) {
	fc := newFakeChain()
	for v := uint64(0); v < 150; v++ {
		fc.txs = append(fc.txs, testTx(v, "0xaaa"))
	}

	result := NewFetcher(fc).Fetch(context.Background(), testDeployment, 0, 500)

	assert.Equal(t, types.MaxBatchSize, result.Scanned)
	assert.Equal(t, uint64(types.MaxBatchSize-1), result.NewCursor)
}
