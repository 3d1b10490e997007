package indexer

import (
	"context"
	"fmt"

	"github.com/stream-indexer/internal/decoder"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
)

// Reconciler folds decoded events into the relational projection. Every
// write is idempotent (upsert on a unique key, or replacement of a total
// set), so replaying any prefix of a batch converges on the same state.
type Reconciler struct {
	accounts AccountStore
	streams  StreamStore
	splits   SplitStore
	events   EventStore
	resolver IdentityResolver
	// mirror is optional; nil disables the analytics copy
	mirror EventMirror
}

// NewReconciler creates a new reconciler
func NewReconciler(accounts AccountStore, streams StreamStore, splits SplitStore, events EventStore, resolver IdentityResolver, mirror EventMirror) *Reconciler {
	return &Reconciler{
		accounts: accounts,
		streams:  streams,
		splits:   splits,
		events:   events,
		resolver: resolver,
		mirror:   mirror,
	}
}

// Apply reconciles one candidate event. With a non-empty accountFilter only
// events referencing that account are applied; a stream or split set by
// another sender still counts when the filtered account is among its
// receivers. The rest report applied=false so user-priority syncs can skip
// other accounts' work. Storage errors abort the batch; the cursor has not
// moved yet, so the failed suffix is refetched on the next run.
func (r *Reconciler) Apply(ctx context.Context, c Candidate, accountFilter string) (bool, error) {
	payload, err := decoder.Decode(c.Name, c.Data)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"event": string(c.Name),
			"tx":    c.TxHash,
		}).Warn("Undecodable event payload dropped")
		return false, nil
	}

	primary := decoder.PrimaryAccount(payload)
	if primary == "" {
		return false, nil
	}
	if accountFilter != "" && !referencesAccount(payload, accountFilter) {
		return false, nil
	}

	// The primary account gets the tx sender and entry function as identity
	// hints; referenced accounts are classified from their ids alone.
	if err := r.ensureAccount(ctx, c, primary, true); err != nil {
		return false, err
	}

	switch p := payload.(type) {
	case *decoder.StreamsSetPayload:
		if err := r.applyStreamsSet(ctx, c, p); err != nil {
			return false, err
		}
	case *decoder.SplitsSetPayload:
		if err := r.applySplitsSet(ctx, c, p); err != nil {
			return false, err
		}
	case *decoder.GivenPayload:
		if err := r.ensureAccount(ctx, c, p.Receiver, false); err != nil {
			return false, err
		}
	case *decoder.SplitPayload:
		if err := r.ensureAccount(ctx, c, p.Receiver, false); err != nil {
			return false, err
		}
	case *decoder.SqueezedStreamsPayload:
		if err := r.ensureAccount(ctx, c, p.SenderID, false); err != nil {
			return false, err
		}
	}
	// ReceivedStreams and Collected only reference their primary account;
	// like Given, Split and SqueezedStreams they are log-only. Aggregates
	// derive from the event log, never from running counters.

	if err := r.appendEvent(ctx, c, primary); err != nil {
		return false, err
	}

	return true, nil
}

// applyStreamsSet replaces the sender's entire streaming configuration.
// Deactivate-all before upserting makes an empty receiver list a stop-all,
// and receivers absent from the new set stay inactive.
func (r *Reconciler) applyStreamsSet(ctx context.Context, c Candidate, p *decoder.StreamsSetPayload) error {
	if err := r.streams.DeactivateAllForSender(ctx, c.DeploymentAddress, p.AccountID); err != nil {
		return fmt.Errorf("deactivate streams for %s: %w", p.AccountID, err)
	}

	for _, recv := range p.Receivers {
		if err := r.ensureAccount(ctx, c, recv.AccountID, false); err != nil {
			return err
		}
		stream := &models.Stream{
			DeploymentAddress: c.DeploymentAddress,
			SenderID:          p.AccountID,
			ReceiverID:        recv.AccountID,
			StreamID:          recv.StreamID,
			FAMetadata:        p.FAMetadata,
			AmtPerSec:         recv.AmtPerSec,
			StartTime:         uint64(recv.StartTime),
			Duration:          uint64(recv.Duration),
		}
		if err := r.streams.Upsert(ctx, stream); err != nil {
			return fmt.Errorf("upsert stream %s->%s: %w", p.AccountID, recv.AccountID, err)
		}
	}

	return nil
}

// applySplitsSet swaps the account's split configuration for the event's
// receiver set
func (r *Reconciler) applySplitsSet(ctx context.Context, c Candidate, p *decoder.SplitsSetPayload) error {
	splits := make([]*models.Split, 0, len(p.Receivers))
	for _, recv := range p.Receivers {
		if err := r.ensureAccount(ctx, c, recv.AccountID, false); err != nil {
			return err
		}
		splits = append(splits, &models.Split{
			DeploymentAddress: c.DeploymentAddress,
			AccountID:         p.AccountID,
			ReceiverID:        recv.AccountID,
			Weight:            recv.Weight,
		})
	}

	if err := r.splits.ReplaceForAccount(ctx, c.DeploymentAddress, p.AccountID, splits); err != nil {
		return fmt.Errorf("replace splits for %s: %w", p.AccountID, err)
	}

	return nil
}

func referencesAccount(payload any, accountID string) bool {
	for _, id := range decoder.ReferencedAccounts(payload) {
		if id == accountID {
			return true
		}
	}
	return false
}

func (r *Reconciler) ensureAccount(ctx context.Context, c Candidate, accountID string, withHints bool) error {
	if accountID == "" {
		return nil
	}

	sender, entry := "", ""
	if withHints {
		sender, entry = c.Sender, c.EntryFunction
	}
	res := r.resolver.Resolve(ctx, accountID, c.DeploymentAddress, sender, entry)

	account := &models.Account{
		DeploymentAddress: c.DeploymentAddress,
		AccountID:         accountID,
		WalletAddress:     res.WalletAddress,
		DriverType:        res.DriverType,
		DriverName:        res.DriverName,
	}
	if err := r.accounts.Ensure(ctx, account); err != nil {
		return fmt.Errorf("ensure account %s: %w", accountID, err)
	}

	return nil
}

func (r *Reconciler) appendEvent(ctx context.Context, c Candidate, accountID string) error {
	event := &models.Event{
		DeploymentAddress: c.DeploymentAddress,
		EventType:         c.Name,
		AccountID:         accountID,
		Data:              c.Data,
		TxHash:            c.TxHash,
		SequenceNumber:    c.SequenceNumber,
		Timestamp:         c.ObservedAt,
	}

	inserted, err := r.events.Append(ctx, event)
	if err != nil {
		return fmt.Errorf("append event %s/%d: %w", c.Name, c.SequenceNumber, err)
	}

	if inserted && r.mirror != nil {
		if err := r.mirror.MirrorEvents(ctx, []*models.Event{event}); err != nil {
			// Postgres is authoritative; a failed mirror write only costs
			// analytics freshness
			logging.FromContext(ctx).WithError(err).Warn("Analytics mirror write failed")
		}
	}

	return nil
}
