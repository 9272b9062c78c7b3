package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// DefaultSweepInterval is how often the sweeper looks for overdue sessions.
const DefaultSweepInterval = 30 * time.Second

// SweepResult summarises one sweep.
type SweepResult struct {
	Expired int
	Pruned  int
}

// StartSweeper runs a background goroutine that expires sessions past their
// deadline and prunes terminal sessions past retention.
func (o *Orchestrator) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer ticker.Stop()
		o.logger.Info("Expiry sweeper started", "interval", interval, "retention", o.cfg.Retention)

		for {
			select {
			case <-ticker.C:
				o.SweepOnce(ctx)
			case <-ctx.Done():
				o.logger.Info("Expiry sweeper shutting down", "reason", ctx.Err())
				return
			case <-o.baseCtx.Done():
				o.logger.Info("Expiry sweeper shutting down", "reason", "orchestrator stopped")
				return
			}
		}
	}()
}

// SweepOnce expires every overdue session and prunes old terminal ones.
// A session that reaches a terminal state concurrently is skipped.
func (o *Orchestrator) SweepOnce(ctx context.Context) SweepResult {
	var res SweepResult
	now := o.now()

	for _, s := range o.registry.sessionsSnapshot() {
		if ctx.Err() != nil {
			return res
		}
		if !s.overdue(now) {
			continue
		}
		if err := s.Expire("deadline reached before a decision"); err != nil {
			if !errors.Is(err, ErrAlreadyTerminal) {
				o.logger.Warn("Expiry sweeper could not expire session", "session_id", s.ID(), "error", err)
			}
			continue
		}
		res.Expired++
		o.logger.Info("Negotiation session expired",
			"session_id", s.ID(),
			"item_id", s.ItemID(),
			"deadline", s.Deadline())
		o.finish(s, domain.EventSessionExpired, domain.SeverityWarning,
			"Negotiation expired", "The session passed its deadline without a decision")
	}

	if o.cfg.Retention > 0 {
		pruned := o.registry.Prune(now, o.cfg.Retention)
		res.Pruned = len(pruned)
		if res.Pruned > 0 {
			o.logger.Info("Expiry sweeper pruned terminal sessions", "count", res.Pruned)
		}
	}

	if res.Expired > 0 {
		o.logger.Info("Expiry sweep completed", "expired", res.Expired)
	}
	return res
}
