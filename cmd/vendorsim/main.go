// vendorsim - gRPC vendor quote simulator for local end-to-end runs
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/Jayesh445/VeriChain-sub000/internal/catalog"
	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/vendorclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		catalogPath string
		vendorID    string
		addr        string
		latency     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "vendorsim",
		Short: "Serve simulated vendor quotes over gRPC",
		Long: `vendorsim answers RequestQuote calls for one vendor from the catalog,
pricing each request the way the built-in simulator does. Point the vendor's
endpoint in the catalog at the listen address to route quotes through it.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(catalogPath)
			if err != nil {
				return err
			}
			vendor, err := findVendor(cat, vendorID)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = vendor.Endpoint
			}
			if addr == "" {
				return fmt.Errorf("vendor %s has no endpoint; pass --addr", vendor.ID)
			}
			return serve(cmd.Context(), addr, vendor, &vendorclient.Simulated{Latency: latency})
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "./configs/catalog.yaml", "catalog file path")
	cmd.Flags().StringVar(&vendorID, "vendor", "", "vendor id to impersonate")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to the vendor's endpoint)")
	cmd.Flags().DurationVar(&latency, "latency", 0, "artificial delay before each quote")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}

func findVendor(cat *catalog.Catalog, id string) (domain.Vendor, error) {
	for _, v := range cat.Vendors {
		if v.ID == id {
			if !v.BaseUnitPrice.IsPositive() {
				return v, fmt.Errorf("vendor %s has no base_unit_price to quote from", id)
			}
			return v, nil
		}
	}
	return domain.Vendor{}, fmt.Errorf("vendor %s not found in catalog", id)
}

func serve(ctx context.Context, addr string, vendor domain.Vendor, sim *vendorclient.Simulated) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := grpc.NewServer()
	vendorclient.RegisterQuoteService(srv, vendorclient.SimulatedHandler(vendor, sim))

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down vendor simulator")
		srv.GracefulStop()
	}()

	slog.Info("Vendor simulator listening", "addr", addr, "vendor_id", vendor.ID, "latency", sim.Latency)
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
