package cli

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Jayesh445/VeriChain-sub000/internal/inventory"
)

func newStockCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect and change inventory stock levels",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <item-id>",
			Short: "Show an item with its recent movements and orders",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var detail inventory.Detail
				if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/inventory/"+url.PathEscape(args[0]), nil, nil, &detail); err != nil {
					return err
				}
				return opts.printDetail(cmd.OutOrStdout(), detail)
			},
		},
		newStockMutationCmd(opts, "set <item-id> <quantity>", "Overwrite the stock level of an item", "stock"),
		newStockMutationCmd(opts, "sell <item-id> <quantity>", "Record a sale, decrementing stock", "sales"),
	)
	return cmd
}

func newStockMutationCmd(opts *options, use, short, endpoint string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity %q is not a number", args[1])
			}
			var update inventory.StockUpdate
			path := "/api/inventory/" + url.PathEscape(args[0]) + "/" + endpoint
			if err := opts.client().Do(cmd.Context(), http.MethodPost, path, nil, map[string]int{"quantity": qty}, &update); err != nil {
				return err
			}
			return opts.printUpdate(cmd.OutOrStdout(), update)
		},
	}
}

func (o *options) printUpdate(w io.Writer, u inventory.StockUpdate) error {
	if o.asJSON {
		return printJSON(w, u)
	}
	if u.Item != nil {
		fmt.Fprintf(w, "%s: stock %d (reorder level %d, %s)\n",
			u.Item.ID, u.Item.CurrentStock, u.Item.ReorderLevel, u.Item.StockStatus())
	}
	if u.Trigger != nil {
		fmt.Fprintf(w, "Reorder check: %s\n", u.Trigger.Outcome)
		if u.Trigger.Session != nil {
			fmt.Fprintf(w, "Session: %s (%s urgency, %d units)\n",
				u.Trigger.Session.ID, u.Trigger.Session.Urgency, u.Trigger.Session.QuantityNeeded)
		}
	}
	return nil
}

func (o *options) printDetail(w io.Writer, d inventory.Detail) error {
	if o.asJSON {
		return printJSON(w, d)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Item:\t%s (%s)\n", d.Item.ID, d.Item.Name)
	fmt.Fprintf(tw, "Stock:\t%d (%s)\n", d.Item.CurrentStock, d.Status)
	fmt.Fprintf(tw, "Reorder level:\t%d\n", d.Item.ReorderLevel)
	fmt.Fprintf(tw, "Max level:\t%d\n", d.Item.MaxStockLevel)
	if len(d.Orders) > 0 {
		fmt.Fprintln(tw, "\nORDER\tVENDOR\tQTY\tTOTAL\tDAYS")
		for _, po := range d.Orders {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n", po.ID, po.VendorID, po.Quantity, po.TotalPrice.StringFixed(2), po.DeliveryTimeDays)
		}
	}
	if len(d.Movements) > 0 {
		fmt.Fprintln(tw, "\nDELTA\tAFTER\tREASON")
		for _, m := range d.Movements {
			fmt.Fprintf(tw, "%+d\t%d\t%s\n", m.Delta, m.QuantityAfter, m.Reason)
		}
	}
	return tw.Flush()
}
