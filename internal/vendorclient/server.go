package vendorclient

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// QuoteHandler answers quote requests on the vendor side.
type QuoteHandler interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error)
}

// QuoteHandlerFunc adapts a function to QuoteHandler.
type QuoteHandlerFunc func(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error)

// Quote calls f.
func (f QuoteHandlerFunc) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	return f(ctx, req)
}

// RegisterQuoteService exposes h as the vendor quote service on s.
func RegisterQuoteService(s grpc.ServiceRegistrar, h QuoteHandler) {
	s.RegisterService(&quoteServiceDesc, h)
}

var quoteServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QuoteHandler)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: RequestQuoteName,
			Handler:    requestQuoteHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "verichain/vendor/v1/quote.proto",
}

func requestQuoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return serveQuote(ctx, srv.(QuoteHandler), req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RequestQuoteRoute,
	}
	return interceptor(ctx, in, info, call)
}

func serveQuote(ctx context.Context, h QuoteHandler, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	q, err := h.Quote(ctx, req)
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		slog.Warn("Quote handler failed", "item_id", req.ItemID, "error", err)
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	if q == nil {
		return nil, status.Error(codes.NotFound, "no quote for item "+req.ItemID)
	}
	out, err := EncodeQuote(*q)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// SimulatedHandler answers quote requests the way the vendor would, using the
// simulator's pricing. It lets a simulated vendor sit behind a real gRPC
// endpoint.
func SimulatedHandler(vendor domain.Vendor, sim *Simulated) QuoteHandler {
	if sim == nil {
		sim = &Simulated{}
	}
	return QuoteHandlerFunc(func(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
		return sim.RequestQuote(ctx, vendor, req)
	})
}
