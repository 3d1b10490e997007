// Package types provides common type definitions for the stream indexer system.
package types

// StreamKind identifies which transaction stream a sync cursor walks.
type StreamKind string

const (
	// StreamTransactions walks the chain's global transaction log for a deployment
	StreamTransactions StreamKind = "transactions"
	// StreamUserDiscovery walks a single user's own transaction history
	StreamUserDiscovery StreamKind = "user_discovery"
)

// DriverType identifies the account-identity scheme that produced an account id.
type DriverType int

const (
	// DriverUnknown means the id could not be attributed to a driver without guessing
	DriverUnknown DriverType = -1
	// DriverAddress means the account id is the controlling wallet address itself
	DriverAddress DriverType = 0
	// DriverNFT means the account id packs a minter address with a mint salt;
	// the controlling wallet is whoever currently owns the minted token
	DriverNFT DriverType = 1
)

// Name returns the protocol-level driver module name, or empty for unknown.
func (d DriverType) Name() string {
	switch d {
	case DriverAddress:
		return "address_driver"
	case DriverNFT:
		return "nft_driver"
	default:
		return ""
	}
}

// EventName is a recognized protocol event, the trailing segment of a
// `::`-delimited Move event type tag.
type EventName string

const (
	// EventStreamsSet replaces a sender's full streaming configuration
	EventStreamsSet EventName = "StreamsSet"
	// EventSplitsSet replaces an account's full split configuration
	EventSplitsSet EventName = "SplitsSet"
	// EventGiven is a one-off direct give to a receiver
	EventGiven EventName = "Given"
	// EventReceivedStreams records streamed funds received by an account
	EventReceivedStreams EventName = "ReceivedStreams"
	// EventSqueezedStreams records an early squeeze of the current cycle
	EventSqueezedStreams EventName = "SqueezedStreams"
	// EventSplit records execution of a split configuration
	EventSplit EventName = "Split"
	// EventCollected records a collection of splittable funds
	EventCollected EventName = "Collected"
)

// RecognizedEvents is the allow-list of event names the decoder accepts.
// Tags with any other trailing segment are dropped, not errors: unrelated
// modules emit events on the same chain.
var RecognizedEvents = map[EventName]bool{
	EventStreamsSet:      true,
	EventSplitsSet:       true,
	EventGiven:           true,
	EventReceivedStreams: true,
	EventSqueezedStreams: true,
	EventSplit:           true,
	EventCollected:       true,
}

// CoreModuleName is the protocol module that every deployment exposes.
// Discovery uses it both to spot candidate deployments in a user's history
// and to verify them with a module existence probe.
const CoreModuleName = "streams"

// TotalSplitsWeight is the denominator of split weights: a receiver with
// weight W receives W/TotalSplitsWeight of the splittable amount.
const TotalSplitsWeight = 1_000_000

// MaxBatchSize is the hard cap the fullnode places on a single
// transactions page. Fetch batches never exceed it.
const MaxBatchSize = 100

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
