// Package cli implements negotiatorctl, the operator command line for the
// negotiation orchestrator.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

type options struct {
	server   string
	operator string
	timeout  time.Duration
	asJSON   bool
}

func (o *options) client() *Client {
	return NewClient(o.server, o.operator, o.timeout)
}

// NewRootCmd builds the negotiatorctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "negotiatorctl",
		Short: "Operate the autonomous vendor negotiation orchestrator",
		Long: `negotiatorctl starts negotiations, inspects sessions and records
approval decisions against a running orchestrator server.`,
		SilenceUsage: true,
	}

	defaultServer := os.Getenv("VERICHAIN_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "orchestrator base URL")
	root.PersistentFlags().StringVar(&opts.operator, "operator", os.Getenv("USER"), "operator id recorded on decisions")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		newStartCmd(opts),
		newGetCmd(opts),
		newListCmd(opts),
		newPendingCmd(opts),
		newDecideCmd(opts, "approve", true),
		newDecideCmd(opts, "reject", false),
		newStockCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of negotiatorctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "negotiatorctl %s\n", Version)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
