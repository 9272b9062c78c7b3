package vendorclient

import (
	"context"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// Router sends each request to the simulator or the vendor's gRPC endpoint
// depending on whether the vendor has an endpoint configured.
type Router struct {
	Remote    *GrpcClient
	Simulator *Simulated
}

// NewRouter creates a Router.
func NewRouter(remote *GrpcClient, sim *Simulated) *Router {
	if sim == nil {
		sim = &Simulated{}
	}
	return &Router{Remote: remote, Simulator: sim}
}

// RequestQuote implements collector.VendorClient.
func (r *Router) RequestQuote(ctx context.Context, vendor domain.Vendor, req domain.QuoteRequest) (*domain.Quote, error) {
	if vendor.IsSimulated() || r.Remote == nil {
		return r.Simulator.RequestQuote(ctx, vendor, req)
	}
	return r.Remote.RequestQuote(ctx, vendor, req)
}
