package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history ITEM_ID",
	Short: "Show recorded price observations for an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		item, err := e.Store.GetItem(ctx, args[0])
		if err != nil {
			return err
		}

		obs, err := e.Store.ListObservations(ctx, item.ID, historyLimit)
		if err != nil {
			return err
		}
		if len(obs) == 0 {
			fmt.Printf("%s: no observations yet\n", item.Name)
			return nil
		}

		fmt.Printf("%s (%s)\n", item.Name, item.Currency)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OBSERVED\tPRICE\tSOURCE")
		for _, o := range obs {
			fmt.Fprintf(w, "%s\t%.2f\t%s\n", o.ObservedAt.Format("2006-01-02 15:04"), o.Price, o.Source)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "max observations to show")
	rootCmd.AddCommand(historyCmd)
}
