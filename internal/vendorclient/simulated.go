package vendorclient

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

var errNoBasePrice = errors.New("vendor has no base unit price")

var urgencyPremium = map[domain.Urgency]decimal.Decimal{
	domain.UrgencyHigh:   decimal.RequireFromString("0.08"),
	domain.UrgencyMedium: decimal.RequireFromString("0.03"),
	domain.UrgencyLow:    decimal.Zero,
}

var (
	bulkThreshold = 100
	bulkDiscount  = decimal.RequireFromString("0.05")
	jitterScale   = decimal.RequireFromString("0.10")
)

// Simulated quotes from a vendor's catalog data instead of the network.
// Quotes are deterministic for a given session and vendor.
type Simulated struct {
	// Latency delays every answer, bounded by the request context.
	Latency time.Duration
}

// RequestQuote prices the request from the vendor's base unit price.
//
// The unit price gets an urgency premium, a bulk discount at 100 units and
// a jitter of up to ±10% scaled by the vendor's price volatility. High
// urgency shaves one day off delivery.
func (s *Simulated) RequestQuote(ctx context.Context, vendor domain.Vendor, req domain.QuoteRequest) (*domain.Quote, error) {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return SimulateQuote(vendor, req)
}

// SimulateQuote computes a simulated quote without delay.
func SimulateQuote(vendor domain.Vendor, req domain.QuoteRequest) (*domain.Quote, error) {
	if !vendor.BaseUnitPrice.IsPositive() {
		return nil, fmt.Errorf("%w: %s", errNoBasePrice, vendor.ID)
	}

	factor := decimal.NewFromInt(1).Add(urgencyPremium[req.Urgency])
	if req.Quantity >= bulkThreshold {
		factor = factor.Sub(bulkDiscount)
	}
	jitter := decimal.NewFromFloat(vendor.PriceVolatility * jitterUnit(req.SessionID, vendor.ID)).Mul(jitterScale)
	factor = factor.Add(jitter)

	unit := vendor.BaseUnitPrice.Mul(factor).Round(2)
	if !unit.IsPositive() {
		unit = decimal.New(1, -2)
	}
	total := unit.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)

	days := vendor.BaseDeliveryDays
	if req.Urgency == domain.UrgencyHigh && days > 1 {
		days--
	}

	return &domain.Quote{
		VendorID:         vendor.ID,
		UnitPrice:        decimal.NewNullDecimal(unit),
		TotalPrice:       decimal.NewNullDecimal(total),
		DeliveryTimeDays: days,
		Terms:            vendor.Terms,
	}, nil
}

// jitterUnit maps (session, vendor) to a stable value in [-1, 1].
func jitterUnit(sessionID, vendorID string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(vendorID))
	return float64(h.Sum32()%2001)/1000 - 1
}
