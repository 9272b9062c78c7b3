package negotiation

import (
	"context"
	"fmt"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/identity"
	"github.com/Jayesh445/VeriChain-sub000/internal/metrics"
)

// Decide records the human decision for a session waiting on approval.
//
// Approval commits the best proposal through the Committer exactly once. A
// failed commit leaves the session approved with commit status failed and
// raises a critical commit_failed event; Decide itself still succeeds.
// The item stays held until the commit outcome is recorded.
func (o *Orchestrator) Decide(ctx context.Context, sessionID string, approved bool, notes string) (domain.SessionSnapshot, error) {
	s, err := o.registry.Get(sessionID)
	if err != nil {
		return domain.SessionSnapshot{}, o.archivedDecisionError(ctx, sessionID, err)
	}

	decision := domain.ApprovalDecision{
		SessionID: sessionID,
		Approved:  approved,
		Notes:     notes,
		DecidedBy: identity.OperatorFromContext(ctx),
		DecidedAt: o.now(),
	}
	if err := s.Resolve(decision); err != nil {
		return domain.SessionSnapshot{}, err
	}

	o.logger.Info("Negotiation decided",
		"session_id", sessionID,
		"approved", approved,
		"decided_by", decision.DecidedBy)

	if !approved {
		o.finish(s, domain.EventSessionRejected, domain.SeverityInfo,
			"Proposal rejected", fmt.Sprintf("Rejected by %s", decision.DecidedBy))
		return s.Snapshot(), nil
	}

	o.record(s, domain.EventSessionApproved, domain.SeverityInfo,
		"Proposal approved", fmt.Sprintf("Approved by %s, committing order", decision.DecidedBy))
	o.commit(ctx, s)
	o.registry.Release(s)

	return s.Snapshot(), nil
}

// archivedDecisionError answers a decision for a session that is no longer
// in memory. Sessions pruned after retention are looked up in the archive
// and reported as resolved; anything else keeps the registry error.
func (o *Orchestrator) archivedDecisionError(ctx context.Context, sessionID string, notFound error) error {
	reader, ok := o.deps.Archiver.(ArchiveReader)
	if !ok {
		return notFound
	}
	snap, err := reader.GetArchivedSession(ctx, sessionID)
	if err != nil || snap == nil || !snap.State.Terminal() {
		return notFound
	}
	return resolvedError(sessionID, snap.State, snap.Decision != nil)
}

// commit runs the order side effect for an approved session. It is only
// reachable after a successful Resolve, which can happen once per session.
func (o *Orchestrator) commit(ctx context.Context, s *Session) {
	snap := s.Snapshot()
	best := snap.BestProposal
	if best == nil {
		s.SetCommitResult("", fmt.Errorf("%w: no best proposal", ErrCommitFailure))
		return
	}

	commitCtx := context.WithoutCancel(ctx)
	if o.cfg.CommitTimeout > 0 {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(commitCtx, o.cfg.CommitTimeout)
		defer cancel()
	}

	orderID, err := o.deps.Committer.CommitOrder(commitCtx, snap.ID, snap.DemandItemID, snap.QuantityNeeded, *best)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCommitFailure, err)
		s.SetCommitResult("", err)
		metrics.CommitFailures.Inc()
		o.logger.Error("Order commit failed",
			"session_id", snap.ID,
			"item_id", snap.DemandItemID,
			"vendor_id", best.VendorID,
			"error", err)

		failed := s.Snapshot()
		o.archive(failed)
		o.emit(ctx, failed, domain.EventCommitFailed, domain.SeverityCritical, true,
			"Order commit failed",
			fmt.Sprintf("Approved order for %d x %s from %s could not be committed: %v",
				failed.QuantityNeeded, failed.DemandItemID, best.VendorName, err))
		return
	}

	s.SetCommitResult(orderID, nil)
	o.logger.Info("Order committed",
		"session_id", snap.ID,
		"order_id", orderID,
		"vendor_id", best.VendorID)
	o.archive(s.Snapshot())
}
