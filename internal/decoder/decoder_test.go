package decoder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stream-indexer/internal/types"
)

const deploy = "0x00000000000000000000000000000000000000000000000000000000000000aa"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want types.EventName
		ok   bool
	}{
		{name: "streams set", tag: deploy + "::streams::StreamsSet", want: types.EventStreamsSet, ok: true},
		{name: "splits set", tag: deploy + "::splits::SplitsSet", want: types.EventSplitsSet, ok: true},
		{name: "given", tag: deploy + "::streams::Given", want: types.EventGiven, ok: true},
		{name: "received", tag: deploy + "::streams::ReceivedStreams", want: types.EventReceivedStreams, ok: true},
		{name: "squeezed", tag: deploy + "::streams::SqueezedStreams", want: types.EventSqueezedStreams, ok: true},
		{name: "split execution", tag: deploy + "::splits::Split", want: types.EventSplit, ok: true},
		{name: "collected", tag: deploy + "::splits::Collected", want: types.EventCollected, ok: true},
		{name: "generic suffix stripped", tag: deploy + "::streams::StreamsSet<0x1::fa::Metadata>", want: types.EventStreamsSet, ok: true},
		{name: "nested generic stripped", tag: deploy + "::streams::Given<0x1::object::Object<0x1::fa::Metadata>>", want: types.EventGiven, ok: true},
		{name: "unrelated module event", tag: "0x1::coin::DepositEvent", ok: false},
		{name: "lookalike from other module", tag: deploy + "::other::Deposited", ok: false},
		{name: "too few segments", tag: "StreamsSet", ok: false},
		{name: "empty", tag: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.tag)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseTypeTagNormalizesAddress(t *testing.T) {
	parsed, ok := ParseTypeTag("0xAA::streams::StreamsSet")
	require.True(t, ok)
	assert.Equal(t, deploy, parsed.Address)
	assert.Equal(t, "streams", parsed.Module)
	assert.Equal(t, "StreamsSet", parsed.Name)
}

func TestDecodeStreamsSet(t *testing.T) {
	raw := json.RawMessage(`{
		"account_id": "111",
		"fa_metadata": "0xfa",
		"receivers": [
			{"account_id":"222","stream_id":"1","amt_per_sec":"1000","start_time":"1700000000","duration":"86400"},
			{"account_id":"333","stream_id":"2","amt_per_sec":"2000","start_time":"0","duration":"0"}
		]
	}`)

	decoded, err := Decode(types.EventStreamsSet, raw)
	require.NoError(t, err)

	p, ok := decoded.(*StreamsSetPayload)
	require.True(t, ok)
	assert.Equal(t, "111", p.AccountID)
	assert.Equal(t, "0xfa", p.FAMetadata)
	require.Len(t, p.Receivers, 2)
	assert.Equal(t, "222", p.Receivers[0].AccountID)
	assert.Equal(t, uint64(1700000000), uint64(p.Receivers[0].StartTime))
	assert.Equal(t, uint64(86400), uint64(p.Receivers[0].Duration))
}

func TestDecodeMissingArrayIsEmptyNotError(t *testing.T) {
	// Historical events may omit optional arrays entirely
	decoded, err := Decode(types.EventStreamsSet, json.RawMessage(`{"account_id":"111","fa_metadata":"0xfa"}`))
	require.NoError(t, err)
	p := decoded.(*StreamsSetPayload)
	assert.NotNil(t, p.Receivers)
	assert.Empty(t, p.Receivers)

	decoded, err = Decode(types.EventSplitsSet, json.RawMessage(`{"account_id":"111"}`))
	require.NoError(t, err)
	sp := decoded.(*SplitsSetPayload)
	assert.NotNil(t, sp.Receivers)
	assert.Empty(t, sp.Receivers)
}

func TestDecodeSplitsSet(t *testing.T) {
	raw := json.RawMessage(`{
		"account_id": "111",
		"receivers": [{"account_id":"222","weight":500000},{"account_id":"333","weight":300000}]
	}`)

	decoded, err := Decode(types.EventSplitsSet, raw)
	require.NoError(t, err)

	p := decoded.(*SplitsSetPayload)
	require.Len(t, p.Receivers, 2)
	assert.Equal(t, uint32(500000), p.Receivers[0].Weight)
}

func TestDecodeLogOnlyEvents(t *testing.T) {
	tests := []struct {
		name    types.EventName
		raw     string
		primary string
	}{
		{types.EventGiven, `{"account_id":"1","receiver":"2","fa_metadata":"0xfa","amt":"99"}`, "1"},
		{types.EventReceivedStreams, `{"account_id":"2","fa_metadata":"0xfa","amt":"50","receivable_cycles":"3"}`, "2"},
		{types.EventSqueezedStreams, `{"account_id":"2","sender_id":"1","fa_metadata":"0xfa","amt":"10"}`, "2"},
		{types.EventSplit, `{"account_id":"1","receiver":"2","fa_metadata":"0xfa","amt":"25"}`, "1"},
		{types.EventCollected, `{"account_id":"1","fa_metadata":"0xfa","collected":"75"}`, "1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			decoded, err := Decode(tt.name, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.primary, PrimaryAccount(decoded))
		})
	}
}

func TestDecodeUnknownName(t *testing.T) {
	_, err := Decode(types.EventName("Bogus"), json.RawMessage(`{}`))
	assert.Error(t, err)
}
