package vendorclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errNoEndpoint               = errors.New("vendor has no endpoint")
)

// GrpcClient requests quotes from remote vendor services. It keeps one
// client connection per endpoint.
type GrpcClient struct {
	cfg    GrpcClientConfig
	logger *slog.Logger

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// DialOptions are appended to the defaults, e.g. a bufconn dialer in tests.
	DialOptions []grpc.DialOption
}

// DefaultGrpcClientConfig returns default configuration.
func DefaultGrpcClientConfig() GrpcClientConfig {
	return GrpcClientConfig{
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcClient creates a vendor quote client. Connections are built lazily
// per endpoint on first use.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger) *GrpcClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcClient{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]*grpc.ClientConn),
	}
}

func (c *GrpcClient) conn(endpoint string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[endpoint]; ok && conn.GetState() != connectivity.Shutdown {
		return conn, nil
	}

	kacp := keepalive.ClientParameters{
		Time:                c.cfg.KeepaliveTime,
		Timeout:             c.cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, c.cfg.DialOptions...)

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vendor client for %s: %w", endpoint, err)
	}
	c.conns[endpoint] = conn
	c.logger.Debug("Vendor connection created", "endpoint", endpoint)
	return conn, nil
}

// Ping waits until the vendor endpoint is reachable or ctx expires.
func (c *GrpcClient) Ping(ctx context.Context, endpoint string) error {
	conn, err := c.conn(endpoint)
	if err != nil {
		return err
	}
	if err := waitForReady(ctx, conn); err != nil {
		return fmt.Errorf("vendor at %s not ready: %w", endpoint, err)
	}
	return nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// RequestQuote calls the vendor's RequestQuote method.
func (c *GrpcClient) RequestQuote(ctx context.Context, vendor domain.Vendor, req domain.QuoteRequest) (*domain.Quote, error) {
	if vendor.Endpoint == "" {
		return nil, fmt.Errorf("%w: %s", errNoEndpoint, vendor.ID)
	}
	conn, err := c.conn(vendor.Endpoint)
	if err != nil {
		return nil, err
	}

	in, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, RequestQuoteRoute, in, out); err != nil {
		c.logger.Debug("RequestQuote failed",
			"vendor_id", vendor.ID,
			"endpoint", vendor.Endpoint,
			"error", err)
		return nil, fmt.Errorf("request quote from %s: %w", vendor.ID, err)
	}
	return DecodeQuote(out), nil
}

// Close closes every vendor connection.
func (c *GrpcClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for endpoint, conn := range c.conns {
		if err := conn.Close(); err != nil {
			c.logger.Warn("Failed to close vendor connection", "endpoint", endpoint, "error", err)
		}
		delete(c.conns, endpoint)
	}
}
