package chain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Uint64Str decodes the node's habit of rendering 64-bit integers as JSON
// strings, while tolerating plain numbers from older node versions.
type Uint64Str uint64

// UnmarshalJSON implements json.Unmarshaler
func (u *Uint64Str) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q: %w", s, err)
	}
	*u = Uint64Str(v)
	return nil
}

// MarshalJSON implements json.Marshaler
func (u Uint64Str) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(u), 10))), nil
}

// RawEvent is an event as emitted by a transaction. Type is the full
// `::`-delimited Move type tag; Data is the untyped payload.
type RawEvent struct {
	Type           string          `json:"type"`
	SequenceNumber Uint64Str       `json:"sequence_number"`
	Data           json.RawMessage `json:"data"`
}

// TransactionPayload carries the entry function a transaction invoked
type TransactionPayload struct {
	Function string `json:"function"`
}

// Transaction is one entry of the chain's transaction log
type Transaction struct {
	Version   Uint64Str           `json:"version"`
	Hash      string              `json:"hash"`
	Timestamp Uint64Str           `json:"timestamp"` // microseconds since epoch
	Sender    string              `json:"sender"`
	Success   bool                `json:"success"`
	Payload   *TransactionPayload `json:"payload,omitempty"`
	Events    []RawEvent          `json:"events,omitempty"`
}

// Time converts the microsecond timestamp to a time.Time
func (t *Transaction) Time() time.Time {
	return time.UnixMicro(int64(t.Timestamp)).UTC()
}

// EntryFunction returns the invoked entry function, or empty when the
// payload is absent (e.g. block metadata transactions).
func (t *Transaction) EntryFunction() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload.Function
}

// LedgerInfo is the node's ledger summary from GET /
type LedgerInfo struct {
	ChainID       int       `json:"chain_id"`
	LedgerVersion Uint64Str `json:"ledger_version"`
}

// ViewRequest is the body of POST /view
type ViewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}
