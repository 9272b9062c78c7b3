package cli

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

func newStartCmd(opts *options) *cobra.Command {
	var urgency string
	cmd := &cobra.Command{
		Use:   "start <item-id> <quantity>",
		Short: "Start a manual negotiation for an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity %q is not a number", args[1])
			}
			body := map[string]any{"item_id": args[0], "quantity": qty, "urgency": urgency}

			var snap domain.SessionSnapshot
			if err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/negotiations", nil, body, &snap); err != nil {
				return err
			}
			return opts.printSession(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().StringVar(&urgency, "urgency", string(domain.UrgencyMedium), "urgency tier: low, medium or high")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	var reasoning bool
	cmd := &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show one negotiation session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap domain.SessionSnapshot
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/negotiations/"+url.PathEscape(args[0]), nil, nil, &snap); err != nil {
				return err
			}
			if err := opts.printSession(cmd.OutOrStdout(), snap); err != nil {
				return err
			}
			if reasoning && !opts.asJSON {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), snap.ReasoningText())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reasoning, "reasoning", false, "print the reasoning trail")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List negotiation sessions (active by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			var sessions []domain.SessionSnapshot
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/negotiations", q, nil, &sessions); err != nil {
				return err
			}
			return opts.printSessions(cmd.OutOrStdout(), sessions)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by state, e.g. pending_approval or rejected")
	return cmd
}

func newPendingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List sessions waiting for an approval decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sessions []domain.SessionSnapshot
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/negotiations/pending", nil, nil, &sessions); err != nil {
				return err
			}
			return opts.printSessions(cmd.OutOrStdout(), sessions)
		},
	}
}

func newDecideCmd(opts *options, verb string, approved bool) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   verb + " <session-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " the best proposal of a pending session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"approved": approved, "notes": notes}
			var snap domain.SessionSnapshot
			path := "/api/negotiations/" + url.PathEscape(args[0]) + "/decision"
			if err := opts.client().Do(cmd.Context(), http.MethodPost, path, nil, body, &snap); err != nil {
				return err
			}
			return opts.printSession(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "notes stored with the decision")
	return cmd
}

func (o *options) printSession(w io.Writer, s domain.SessionSnapshot) error {
	if o.asJSON {
		return printJSON(w, s)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	fmt.Fprintf(tw, "Item:\t%s (%d units)\n", s.DemandItemID, s.QuantityNeeded)
	fmt.Fprintf(tw, "Urgency:\t%s\n", s.Urgency)
	fmt.Fprintf(tw, "Trigger:\t%s\n", s.Trigger)
	state := string(s.State)
	if s.TerminalTag != "" && string(s.TerminalTag) != state {
		state += " (" + string(s.TerminalTag) + ")"
	}
	fmt.Fprintf(tw, "State:\t%s\n", state)
	fmt.Fprintf(tw, "Vendors:\t%s\n", strings.Join(s.VendorsContacted, ", "))
	if s.BestProposal != nil {
		b := s.BestProposal
		fmt.Fprintf(tw, "Best:\t%s  %s/unit  total %s  %dd  %s\n",
			b.VendorName, b.UnitPrice.StringFixed(2), b.TotalPrice.StringFixed(2), b.DeliveryTimeDays, b.Terms)
		fmt.Fprintf(tw, "Confidence:\t%.2f\n", s.ConfidenceScore)
	}
	if s.Partial {
		fmt.Fprintf(tw, "Partial:\tyes\n")
	}
	if s.Decision != nil {
		verdict := "rejected"
		if s.Decision.Approved {
			verdict = "approved"
		}
		fmt.Fprintf(tw, "Decision:\t%s by %s\n", verdict, s.Decision.DecidedBy)
	}
	if s.CommitStatus != "" && s.CommitStatus != domain.CommitNone {
		fmt.Fprintf(tw, "Commit:\t%s\n", s.CommitStatus)
	}
	fmt.Fprintf(tw, "Deadline:\t%s\n", s.Deadline.Local().Format(time.RFC3339))
	return tw.Flush()
}

func (o *options) printSessions(w io.Writer, sessions []domain.SessionSnapshot) error {
	if o.asJSON {
		return printJSON(w, sessions)
	}
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tITEM\tQTY\tURGENCY\tSTATE\tBEST\tTOTAL")
	for _, s := range sessions {
		best, total := "-", "-"
		if s.BestProposal != nil {
			best = s.BestProposal.VendorName
			total = s.BestProposal.TotalPrice.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			s.ID, s.DemandItemID, s.QuantityNeeded, s.Urgency, s.State, best, total)
	}
	return tw.Flush()
}
