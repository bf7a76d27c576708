package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/extract"
	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/normalize"
)

var trackName string

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage tracked product listings",
}

var trackAddCmd = &cobra.Command{
	Use:   "add URL",
	Short: "Track a product page and fetch its initial price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		ctx := cmd.Context()

		loc, err := normalize.Canonicalize(args[0])
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if existing, err := e.Store.GetItemByLocator(ctx, loc.Canonical); err == nil {
			return eris.Errorf("already tracked as %s (%s)", existing.ID, existing.Name)
		}

		// initial synchronous fetch seeds name and price
		out, runErr := e.Controller.Run(ctx, loc)

		item := model.TrackedItem{
			Locator:    loc.Canonical,
			Platform:   loc.Platform,
			ExternalID: loc.ExternalID,
		}
		if out.Record != nil {
			item.Name = out.Record.Name
			item.Currency = out.Record.Currency
			item.ImageURL = out.Record.ImageURL
		}
		if trackName != "" {
			item.Name = trackName
		} else if item.Name == "" {
			if custom := normalize.CustomName(args[0]); custom != "" {
				item.Name = custom
			}
		}
		if item.Name == "" {
			if runErr != nil {
				return eris.Wrap(runErr, "could not extract a product name; pass one with --name")
			}
			return eris.New("could not extract a product name; pass one with --name")
		}

		if err := e.Store.CreateItem(ctx, &item); err != nil {
			return err
		}

		price := extract.ResolveConsensus(out.Candidates)
		if price != nil {
			source := model.SourceFreeText
			if out.Record != nil {
				if src, ok := out.Record.FieldSources["price"]; ok {
					source = src
				}
			}
			if err := e.Store.CommitRefresh(ctx, item.ID, *price, source, item.CreatedAt); err != nil {
				zap.L().Warn("initial price commit failed", zap.Error(err))
			}
		}

		fmt.Printf("tracking %s\n  id: %s\n  platform: %s\n", item.Name, item.ID, item.Platform)
		if price != nil {
			fmt.Printf("  price: %.2f %s\n", *price, item.Currency)
		} else {
			fmt.Println("  price: unknown (will retry on next cycle)")
		}
		return nil
	},
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		items, err := e.Store.ListItems(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("no items tracked")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPLATFORM\tPRICE\tLAST REFRESH")
		for _, it := range items {
			price := "-"
			if it.CurrentPrice != nil {
				price = fmt.Sprintf("%.2f %s", *it.CurrentPrice, it.Currency)
			}
			refreshed := "never"
			if it.UpdatedAt != nil {
				refreshed = it.UpdatedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Platform, price, refreshed)
		}
		return w.Flush()
	},
}

var trackRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Stop tracking an item and delete its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.DeleteItem(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func init() {
	trackAddCmd.Flags().StringVar(&trackName, "name", "", "override the extracted product name")
	trackCmd.AddCommand(trackAddCmd, trackListCmd, trackRemoveCmd)
	rootCmd.AddCommand(trackCmd)
}
