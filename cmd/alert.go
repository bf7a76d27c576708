package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pricepulse/pricewatch/internal/model"
)

var alertNotify string

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage price drop alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add ITEM_ID TARGET_PRICE",
	Short: "Arm an alert that fires when the price drops to the target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		target, err := strconv.ParseFloat(args[1], 64)
		if err != nil || target <= 0 {
			return eris.Errorf("invalid target price %q", args[1])
		}
		if alertNotify == "" {
			return eris.New("--notify is required")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		item, err := e.Store.GetItem(ctx, args[0])
		if err != nil {
			return err
		}

		a := model.Alert{ItemID: item.ID, NotifyTarget: alertNotify, TargetPrice: target}
		if err := e.Store.CreateAlert(ctx, &a); err != nil {
			return err
		}

		fmt.Printf("alert %s armed: %s at or below %.2f %s\n", a.ID, item.Name, target, item.Currency)
		if item.CurrentPrice != nil && *item.CurrentPrice <= target {
			fmt.Printf("note: current price %.2f already meets the target; the alert fires on the next drop\n", *item.CurrentPrice)
		}
		return nil
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list ITEM_ID",
	Short: "List alerts for an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		alerts, err := e.Store.ListAlerts(ctx, args[0])
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("no alerts")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTARGET\tNOTIFY\tSTATE")
		for _, a := range alerts {
			state := "armed"
			if a.Triggered {
				state = "triggered"
				if a.TriggeredPrice != nil {
					state = fmt.Sprintf("triggered at %.2f", *a.TriggeredPrice)
				}
			}
			fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", a.ID, a.TargetPrice, a.NotifyTarget, state)
		}
		return w.Flush()
	},
}

func init() {
	alertAddCmd.Flags().StringVar(&alertNotify, "notify", "", "notification target (email or channel id)")
	alertCmd.AddCommand(alertAddCmd, alertListCmd)
	rootCmd.AddCommand(alertCmd)
}
