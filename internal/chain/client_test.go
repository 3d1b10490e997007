package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stream-indexer/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(&config.ChainConfig{
		NodeURL:           srv.URL,
		RequestTimeout:    5 * time.Second,
		RequestsPerSecond: 1000,
	})
	return client, srv
}

func TestGetLedgerInfo(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		_, _ = w.Write([]byte(`{"chain_id":1,"ledger_version":"123456"}`))
	}))

	info, err := client.GetLedgerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), uint64(info.LedgerVersion))
}

func TestGetTransactions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("start"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"version":"100","hash":"0xaa","timestamp":"1700000000000000","sender":"0x1","success":true,
			 "payload":{"function":"0x1::coin::transfer"},
			 "events":[{"type":"0x1::coin::DepositEvent","sequence_number":"7","data":{"amount":"5"}}]},
			{"version":"101","hash":"0xbb","timestamp":"1700000001000000","sender":"0x2","success":true}
		]`))
	}))

	txs, err := client.GetTransactions(context.Background(), 100, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, uint64(100), uint64(txs[0].Version))
	assert.Equal(t, "0x1::coin::transfer", txs[0].EntryFunction())
	require.Len(t, txs[0].Events, 1)
	assert.Equal(t, uint64(7), uint64(txs[0].Events[0].SequenceNumber))
	assert.Equal(t, "", txs[1].EntryFunction())
	assert.Equal(t, time.UnixMicro(1700000001000000).UTC(), txs[1].Time())
}

func TestGetTransactionsClampsLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	}))

	_, err := client.GetTransactions(context.Background(), 0, 500)
	require.NoError(t, err)
}

func TestModuleExists(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/accounts/0xabc/module/streams" {
			_, _ = w.Write([]byte(`{"bytecode":"0x00"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	ok, err := client.ModuleExists(context.Background(), "0xabc", "streams")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ModuleExists(context.Background(), "0xdef", "streams")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestView(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/view", r.URL.Path)

		var req ViewRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0xabc::nft_driver::owner_of", req.Function)
		require.Len(t, req.Arguments, 1)

		_, _ = w.Write([]byte(`["0x42"]`))
	}))

	out, err := client.View(context.Background(), "0xabc::nft_driver::owner_of", nil, []any{"123"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, `"0x42"`, string(out[0]))
}

func TestNotFoundIsNotRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetLedgerInfo(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls, "404 responses must not be retried")
}

func TestUint64StrAcceptsNumbers(t *testing.T) {
	var v struct {
		A Uint64Str `json:"a"`
		B Uint64Str `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"42","b":42}`), &v))
	assert.Equal(t, uint64(42), uint64(v.A))
	assert.Equal(t, uint64(42), uint64(v.B))
}
