// Package scoring ranks vendor proposals for a replenishment demand.
//
// Scoring is a pure weighted sum over three factors: price and delivery time,
// each normalized against the best and worst values in the same proposal set,
// and the vendor's reliability. The weight triple depends on urgency.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// tieEpsilon treats scores closer than this as equal so that float noise
// never decides a ranking.
const tieEpsilon = 1e-9

// Weights is the weight triple applied to the normalized factors. The three
// weights sum to 1 so that a score stays in [0,1].
type Weights struct {
	Price       float64
	Delivery    float64
	Reliability float64
}

// WeightsFor returns the weight triple for an urgency tier. High urgency
// favours delivery speed, low urgency favours price.
func WeightsFor(u domain.Urgency) Weights {
	switch u {
	case domain.UrgencyHigh:
		return Weights{Price: 0.25, Delivery: 0.55, Reliability: 0.20}
	case domain.UrgencyLow:
		return Weights{Price: 0.55, Delivery: 0.20, Reliability: 0.25}
	default:
		return Weights{Price: 0.40, Delivery: 0.35, Reliability: 0.25}
	}
}

// Ranked is a proposal together with its computed score.
type Ranked struct {
	Proposal       domain.VendorProposal
	Score          float64
	PriceFactor    float64
	DeliveryFactor float64
}

// Score ranks proposals in descending order of weighted score. Each returned
// proposal carries its score as ConfidenceScore. The input slice is not
// modified. Identical input always yields an identical ranking.
func Score(proposals []domain.VendorProposal, urgency domain.Urgency) []Ranked {
	if len(proposals) == 0 {
		return nil
	}

	w := WeightsFor(urgency)

	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	minDays, maxDays := math.Inf(1), math.Inf(-1)
	for _, p := range proposals {
		price := p.TotalPrice.InexactFloat64()
		days := float64(p.DeliveryTimeDays)
		minPrice = math.Min(minPrice, price)
		maxPrice = math.Max(maxPrice, price)
		minDays = math.Min(minDays, days)
		maxDays = math.Max(maxDays, days)
	}

	ranked := make([]Ranked, len(proposals))
	for i, p := range proposals {
		pf := normalizeLowerIsBetter(p.TotalPrice.InexactFloat64(), minPrice, maxPrice)
		df := normalizeLowerIsBetter(float64(p.DeliveryTimeDays), minDays, maxDays)
		rel := Clamp01(p.VendorReliability)

		score := Clamp01(w.Price*pf + w.Delivery*df + w.Reliability*rel)
		p.ConfidenceScore = score
		ranked[i] = Ranked{
			Proposal:       p,
			Score:          score,
			PriceFactor:    pf,
			DeliveryFactor: df,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if math.Abs(a.Score-b.Score) > tieEpsilon {
			return a.Score > b.Score
		}
		if math.Abs(a.Proposal.VendorReliability-b.Proposal.VendorReliability) > tieEpsilon {
			return a.Proposal.VendorReliability > b.Proposal.VendorReliability
		}
		return a.Proposal.VendorID < b.Proposal.VendorID
	})

	return ranked
}

// Proposals returns the ranked proposals in rank order.
func Proposals(ranked []Ranked) []domain.VendorProposal {
	out := make([]domain.VendorProposal, len(ranked))
	for i, r := range ranked {
		out[i] = r.Proposal
	}
	return out
}

// VendorReliability estimates how reliable a vendor's proposal is from its
// historical fulfillment rate, its price volatility and how quickly it
// answered within the collection window.
func VendorReliability(fulfillmentRate, priceVolatility float64, latency, window time.Duration) float64 {
	latencyFactor := 1.0
	if window > 0 {
		latencyFactor = 1 - math.Min(float64(latency)/float64(window), 1)
	}
	if latencyFactor < 0 {
		latencyFactor = 0
	}
	return Clamp01(0.6*Clamp01(fulfillmentRate) + 0.2*(1-Clamp01(priceVolatility)) + 0.2*latencyFactor)
}

// normalizeLowerIsBetter maps the best (lowest) value to 1 and the worst to 0.
// A set where every value is equal maps to 1.
func normalizeLowerIsBetter(v, lo, hi float64) float64 {
	if hi-lo <= tieEpsilon {
		return 1
	}
	return Clamp01((hi - v) / (hi - lo))
}

// Clamp01 bounds v to the unit interval. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
