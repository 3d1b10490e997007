// Package decoder classifies raw chain events by protocol event name and
// deserializes their typed payloads.
package decoder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stream-indexer/internal/chain"
	"github.com/stream-indexer/internal/types"
)

// TypeTag is a parsed `::`-delimited Move event type tag
type TypeTag struct {
	Address string
	Module  string
	Name    string
}

// ParseTypeTag splits a Move type tag into address, module and event name.
// Generic type arguments are dropped; they contain `::` themselves, so the
// tag is cut at the first `<` before splitting.
func ParseTypeTag(tag string) (TypeTag, bool) {
	if i := strings.IndexByte(tag, '<'); i >= 0 {
		tag = tag[:i]
	}
	parts := strings.Split(tag, "::")
	if len(parts) != 3 {
		return TypeTag{}, false
	}
	return TypeTag{
		Address: types.NormalizeAddress(parts[0]),
		Module:  parts[1],
		Name:    parts[2],
	}, true
}

// Classify maps a raw event type tag to a recognized protocol event name.
// Unrecognized tags return ok=false and are dropped by callers, not treated
// as errors: other protocols and unrelated modules emit events on the same
// chain.
func Classify(tag string) (types.EventName, bool) {
	parsed, ok := ParseTypeTag(tag)
	if !ok {
		return "", false
	}
	name := types.EventName(parsed.Name)
	if !types.RecognizedEvents[name] {
		return "", false
	}
	return name, true
}

// StreamReceiver is one receiver entry of a streaming configuration
type StreamReceiver struct {
	AccountID string          `json:"account_id"`
	StreamID  string          `json:"stream_id"`
	AmtPerSec string          `json:"amt_per_sec"`
	StartTime chain.Uint64Str `json:"start_time"`
	Duration  chain.Uint64Str `json:"duration"`
}

// StreamsSetPayload is the payload of a StreamsSet event. An empty receiver
// list is a valid "stop all streams" configuration.
type StreamsSetPayload struct {
	AccountID  string           `json:"account_id"`
	FAMetadata string           `json:"fa_metadata"`
	Receivers  []StreamReceiver `json:"receivers"`
}

// SplitReceiver is one receiver entry of a split configuration
type SplitReceiver struct {
	AccountID string `json:"account_id"`
	Weight    uint32 `json:"weight"`
}

// SplitsSetPayload is the payload of a SplitsSet event; the receiver list is
// the account's total configuration, not a delta.
type SplitsSetPayload struct {
	AccountID string          `json:"account_id"`
	Receivers []SplitReceiver `json:"receivers"`
}

// GivenPayload is the payload of a Given (direct give) event
type GivenPayload struct {
	AccountID  string `json:"account_id"`
	Receiver   string `json:"receiver"`
	FAMetadata string `json:"fa_metadata"`
	Amt        string `json:"amt"`
}

// ReceivedStreamsPayload is the payload of a ReceivedStreams event
type ReceivedStreamsPayload struct {
	AccountID        string          `json:"account_id"`
	FAMetadata       string          `json:"fa_metadata"`
	Amt              string          `json:"amt"`
	ReceivableCycles chain.Uint64Str `json:"receivable_cycles"`
}

// SqueezedStreamsPayload is the payload of a SqueezedStreams event
type SqueezedStreamsPayload struct {
	AccountID  string `json:"account_id"`
	SenderID   string `json:"sender_id"`
	FAMetadata string `json:"fa_metadata"`
	Amt        string `json:"amt"`
}

// SplitPayload is the payload of a Split (split execution) event
type SplitPayload struct {
	AccountID  string `json:"account_id"`
	Receiver   string `json:"receiver"`
	FAMetadata string `json:"fa_metadata"`
	Amt        string `json:"amt"`
}

// CollectedPayload is the payload of a Collected event
type CollectedPayload struct {
	AccountID  string `json:"account_id"`
	FAMetadata string `json:"fa_metadata"`
	Collected  string `json:"collected"`
}

// Decode deserializes a raw payload into the typed payload for name.
// Decoding is a direct field projection: missing array-typed fields decode
// to empty slices rather than failing, since historical events may omit
// optional arrays.
func Decode(name types.EventName, raw json.RawMessage) (any, error) {
	switch name {
	case types.EventStreamsSet:
		var p StreamsSetPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
		if p.Receivers == nil {
			p.Receivers = []StreamReceiver{}
		}
		return &p, nil

	case types.EventSplitsSet:
		var p SplitsSetPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
		if p.Receivers == nil {
			p.Receivers = []SplitReceiver{}
		}
		return &p, nil

	case types.EventGiven:
		var p GivenPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
		return &p, nil

	case types.EventReceivedStreams:
		var p ReceivedStreamsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
		return &p, nil

	case types.EventSqueezedStreams:
		var p SqueezedStreamsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
		return &p, nil

	case types.EventSplit:
		var p SplitPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
		return &p, nil

	case types.EventCollected:
		var p CollectedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", name, err)
		}
		return &p, nil

	default:
		return nil, fmt.Errorf("unrecognized event name: %s", name)
	}
}

// ReferencedAccounts returns every account id the event mentions, primary
// first. Receivers of a configuration event and the sender of a squeeze
// count as referenced even though the event is logged under another account.
func ReferencedAccounts(payload any) []string {
	switch p := payload.(type) {
	case *StreamsSetPayload:
		ids := []string{p.AccountID}
		for _, recv := range p.Receivers {
			ids = append(ids, recv.AccountID)
		}
		return ids
	case *SplitsSetPayload:
		ids := []string{p.AccountID}
		for _, recv := range p.Receivers {
			ids = append(ids, recv.AccountID)
		}
		return ids
	case *GivenPayload:
		return []string{p.AccountID, p.Receiver}
	case *SplitPayload:
		return []string{p.AccountID, p.Receiver}
	case *SqueezedStreamsPayload:
		return []string{p.AccountID, p.SenderID}
	default:
		if primary := PrimaryAccount(payload); primary != "" {
			return []string{primary}
		}
		return nil
	}
}

// PrimaryAccount returns the account id the event is logged under
func PrimaryAccount(payload any) string {
	switch p := payload.(type) {
	case *StreamsSetPayload:
		return p.AccountID
	case *SplitsSetPayload:
		return p.AccountID
	case *GivenPayload:
		return p.AccountID
	case *ReceivedStreamsPayload:
		return p.AccountID
	case *SqueezedStreamsPayload:
		return p.AccountID
	case *SplitPayload:
		return p.AccountID
	case *CollectedPayload:
		return p.AccountID
	default:
		return ""
	}
}
