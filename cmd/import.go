package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricepulse/pricewatch/internal/model"
	"github.com/pricepulse/pricewatch/internal/normalize"
	"github.com/pricepulse/pricewatch/internal/store"
	"github.com/pricepulse/pricewatch/internal/watchlist"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a YAML watchlist of items and alerts",
	Long:  "Seeds tracked items and their alerts from a watchlist file. Items already tracked are skipped; prices are filled in by the next cycle.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		wl, err := watchlist.Load(args[0])
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		created, skipped := 0, 0
		for _, entry := range wl.Items {
			loc, err := normalize.Canonicalize(entry.URL)
			if err != nil {
				zap.L().Warn("skipping unparseable watchlist entry",
					zap.String("url", entry.URL),
					zap.Error(err))
				skipped++
				continue
			}

			item := model.TrackedItem{
				Locator:    loc.Canonical,
				Platform:   loc.Platform,
				ExternalID: loc.ExternalID,
				Name:       entry.Name,
			}
			if item.Name == "" {
				if custom := normalize.CustomName(entry.URL); custom != "" {
					item.Name = custom
				} else {
					item.Name = loc.Canonical
				}
			}

			switch err := e.Store.CreateItem(ctx, &item); {
			case err == nil:
				created++
			case eris.Is(err, store.ErrDuplicateLocator):
				existing, getErr := e.Store.GetItemByLocator(ctx, loc.Canonical)
				if getErr != nil {
					return getErr
				}
				item.ID = existing.ID
				skipped++
			default:
				return err
			}

			for _, a := range entry.Alerts {
				if err := e.Store.CreateAlert(ctx, &model.Alert{
					ItemID:       item.ID,
					NotifyTarget: a.Notify,
					TargetPrice:  a.TargetPrice,
				}); err != nil {
					return err
				}
			}
		}

		fmt.Printf("imported %d items (%d already tracked or skipped)\n", created, skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
