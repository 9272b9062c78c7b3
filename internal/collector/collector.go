// Package collector fans a quote request out to a set of vendors and gathers
// the proposals that come back before a deadline.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/metrics"
	"github.com/Jayesh445/VeriChain-sub000/internal/scoring"
)

// ErrMalformedProposal marks a vendor response that failed validation.
var ErrMalformedProposal = errors.New("malformed proposal")

// VendorClient solicits a quote from a single vendor.
type VendorClient interface {
	RequestQuote(ctx context.Context, vendor domain.Vendor, req domain.QuoteRequest) (*domain.Quote, error)
}

// Request describes one collection round.
type Request struct {
	SessionID string
	ItemID    string
	Quantity  int
	Urgency   domain.Urgency
	Vendors   []domain.Vendor
	Deadline  time.Time

	// OnContacted is called once, after solicitations have been issued to
	// at least one vendor.
	OnContacted func(contacted int)
}

// Drop records why a vendor did not contribute a proposal.
type Drop struct {
	VendorID string `json:"vendor_id"`
	Reason   string `json:"reason"`
}

// Result is the fan-in of one collection round.
type Result struct {
	Proposals []domain.VendorProposal
	Dropped   []Drop
	Partial   bool
	Contacted int
}

// Collector issues concurrent quote requests.
type Collector struct {
	client      VendorClient
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithCallTimeout bounds each vendor call. The overall deadline still applies.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Collector) { c.callTimeout = d }
}

// WithClock injects the time source used for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Collector backed by client.
func New(client VendorClient, opts ...Option) *Collector {
	c := &Collector{
		client: client,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type outcome struct {
	idx      int
	proposal domain.VendorProposal
	err      error
	failed   bool
}

// Collect solicits every vendor concurrently and returns once all of them
// have answered or the deadline passes, whichever comes first. Vendors that
// fail, time out or answer with a malformed proposal are left out of the
// result. Proposals are returned in vendor list order.
func (c *Collector) Collect(ctx context.Context, req Request) Result {
	start := c.now()
	window := req.Deadline.Sub(start)

	ctx, cancel := context.WithDeadline(ctx, req.Deadline)
	defer cancel()

	result := Result{Contacted: len(req.Vendors)}
	if len(req.Vendors) == 0 {
		return result
	}

	quoteReq := domain.QuoteRequest{
		SessionID: req.SessionID,
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		Urgency:   req.Urgency,
		Deadline:  req.Deadline,
	}

	// Buffered so that late answers never block once Collect has returned.
	results := make(chan outcome, len(req.Vendors))
	for i, v := range req.Vendors {
		go func(idx int, vendor domain.Vendor) {
			callCtx := ctx
			if c.callTimeout > 0 {
				var callCancel context.CancelFunc
				callCtx, callCancel = context.WithTimeout(ctx, c.callTimeout)
				defer callCancel()
			}

			quote, err := c.client.RequestQuote(callCtx, vendor, quoteReq)
			latency := c.now().Sub(start)
			if err != nil {
				results <- outcome{idx: idx, err: err, failed: true}
				return
			}

			p, err := Validate(vendor, quote, req.Quantity)
			if err != nil {
				results <- outcome{idx: idx, err: err}
				return
			}
			p.ResponseLatency = latency
			p.ReceivedAt = start.Add(latency)
			p.VendorReliability = scoring.VendorReliability(vendor.FulfillmentRate, vendor.PriceVolatility, latency, window)
			results <- outcome{idx: idx, proposal: p}
		}(i, v)
	}

	if req.OnContacted != nil {
		req.OnContacted(len(req.Vendors))
	}

	answered := make([]bool, len(req.Vendors))
	accepted := make([]*domain.VendorProposal, len(req.Vendors))
	received := 0

collect:
	for received < len(req.Vendors) {
		select {
		case o := <-results:
			received++
			answered[o.idx] = true
			vendor := req.Vendors[o.idx]
			switch {
			case o.err == nil:
				p := o.proposal
				accepted[o.idx] = &p
				metrics.ProposalsReceived.WithLabelValues("accepted").Inc()
			case o.failed:
				metrics.ProposalsReceived.WithLabelValues("failed").Inc()
				c.logger.Warn("Vendor solicitation failed",
					"session_id", req.SessionID, "vendor_id", vendor.ID, "error", o.err)
				result.Dropped = append(result.Dropped, Drop{VendorID: vendor.ID, Reason: o.err.Error()})
			default:
				metrics.ProposalsReceived.WithLabelValues("malformed").Inc()
				c.logger.Warn("Dropping malformed proposal",
					"session_id", req.SessionID, "vendor_id", vendor.ID, "reason", o.err)
				result.Dropped = append(result.Dropped, Drop{VendorID: vendor.ID, Reason: o.err.Error()})
			}
		case <-ctx.Done():
			result.Partial = true
			break collect
		}
	}

	for i, ok := range answered {
		if !ok {
			metrics.ProposalsReceived.WithLabelValues("timeout").Inc()
			result.Dropped = append(result.Dropped, Drop{VendorID: req.Vendors[i].ID, Reason: "no response before deadline"})
		}
	}
	for _, p := range accepted {
		if p != nil {
			result.Proposals = append(result.Proposals, *p)
		}
	}

	metrics.CollectDuration.WithLabelValues(strconv.FormatBool(result.Partial)).Observe(c.now().Sub(start).Seconds())
	c.logger.Info("Proposal collection finished",
		"session_id", req.SessionID,
		"contacted", result.Contacted,
		"accepted", len(result.Proposals),
		"dropped", len(result.Dropped),
		"partial", result.Partial)

	return result
}

// Validate turns a raw vendor quote into a proposal. The quoted total must
// equal unit price times quantity to the cent; inconsistent quotes are
// rejected rather than corrected.
func Validate(vendor domain.Vendor, q *domain.Quote, quantity int) (domain.VendorProposal, error) {
	malformed := func(format string, args ...any) (domain.VendorProposal, error) {
		return domain.VendorProposal{}, fmt.Errorf("%w: vendor %s: %s", ErrMalformedProposal, vendor.ID, fmt.Sprintf(format, args...))
	}

	if q == nil {
		return malformed("empty response")
	}
	if q.VendorID != "" && q.VendorID != vendor.ID {
		return malformed("response carries vendor id %q", q.VendorID)
	}
	if !q.UnitPrice.Valid {
		return malformed("missing unit price")
	}
	if !q.UnitPrice.Decimal.IsPositive() {
		return malformed("non-positive unit price %s", q.UnitPrice.Decimal)
	}
	if !q.TotalPrice.Valid {
		return malformed("missing total price")
	}
	if q.DeliveryTimeDays < 0 {
		return malformed("negative delivery time %d", q.DeliveryTimeDays)
	}

	expected := q.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	if !expected.Equal(q.TotalPrice.Decimal.Round(2)) {
		return malformed("total %s does not equal unit price %s x %d", q.TotalPrice.Decimal, q.UnitPrice.Decimal, quantity)
	}

	return domain.VendorProposal{
		VendorID:         vendor.ID,
		VendorName:       vendor.Name,
		UnitPrice:        q.UnitPrice.Decimal,
		TotalPrice:       q.TotalPrice.Decimal,
		DeliveryTimeDays: q.DeliveryTimeDays,
		Terms:            q.Terms,
	}, nil
}
