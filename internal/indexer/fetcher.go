package indexer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stream-indexer/internal/decoder"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/types"
)

// Candidate is a recognized protocol event together with the transaction
// context the reconciler and resolver need.
type Candidate struct {
	DeploymentAddress string
	Name              types.EventName
	Data              json.RawMessage
	SequenceNumber    uint64
	TxVersion         uint64
	TxHash            string
	Sender            string
	EntryFunction     string
	ObservedAt        time.Time
}

// FetchResult is the outcome of one fetch batch. NewCursor is the version
// of the last transaction scanned, relevant or not, so the next batch
// resumes past everything already examined.
type FetchResult struct {
	Candidates []Candidate
	NewCursor  uint64
	Scanned    int
	Degraded   bool
	// DegradedReason names the swallowed failure on a degraded run
	DegradedReason string
}

// Fetcher scans the global transaction log for one deployment's events
type Fetcher struct {
	chain ChainReader
}

// NewFetcher creates a new fetcher
func NewFetcher(chain ChainReader) *Fetcher {
	return &Fetcher{chain: chain}
}

// Fetch scans up to batchSize transactions starting at startCursor and
// keeps the events emitted by the deployment's modules. Transient chain
// failures are swallowed: the run degrades to zero progress with the cursor
// unmoved rather than failing the sync.
func (f *Fetcher) Fetch(ctx context.Context, deploymentAddress string, startCursor uint64, batchSize int) FetchResult {
	deploymentAddress = types.NormalizeAddress(deploymentAddress)
	if batchSize <= 0 || batchSize > types.MaxBatchSize {
		batchSize = types.MaxBatchSize
	}

	txs, err := f.chain.GetTransactions(ctx, startCursor, batchSize)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"deployment": deploymentAddress,
			"cursor":     startCursor,
		}).Warn("Transaction fetch failed, degrading to no-op")
		return FetchResult{
			NewCursor:      startCursor,
			Degraded:       true,
			DegradedReason: "transaction fetch failed: " + err.Error(),
		}
	}
	if len(txs) == 0 {
		return FetchResult{NewCursor: startCursor}
	}

	result := FetchResult{Scanned: len(txs)}
	for i := range txs {
		tx := &txs[i]
		result.NewCursor = uint64(tx.Version)
		if !tx.Success {
			continue
		}

		for _, ev := range tx.Events {
			tag, ok := decoder.ParseTypeTag(ev.Type)
			if !ok || tag.Address != deploymentAddress {
				continue
			}
			name, ok := decoder.Classify(ev.Type)
			if !ok {
				continue
			}

			result.Candidates = append(result.Candidates, Candidate{
				DeploymentAddress: deploymentAddress,
				Name:              name,
				Data:              ev.Data,
				SequenceNumber:    uint64(ev.SequenceNumber),
				TxVersion:         uint64(tx.Version),
				TxHash:            tx.Hash,
				Sender:            tx.Sender,
				EntryFunction:     tx.EntryFunction(),
				ObservedAt:        tx.Time(),
			})
		}
	}

	return result
}
