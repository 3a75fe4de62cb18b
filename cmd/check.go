package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks the route data against the feed without writing anything",
	Args:  cobra.NoArgs,
	RunE:  check,
}

func check(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, feed, err := loadFeed(ctx)
	if err != nil {
		return err
	}

	report, err := newConverter(ctx).Check(ctx, feed)
	if err != nil {
		return err
	}

	for _, err := range report.Routes {
		fmt.Printf("config: %s\n", err)
	}
	for _, err := range report.Headsigns {
		fmt.Printf("headsign: %s\n", err)
	}
	for _, r := range report.Rejections {
		fmt.Printf("route %d trip %s: %s\n", r.RouteID, r.TripID, r.Err)
	}

	if !report.OK() {
		return fmt.Errorf(
			"%d route errors, %d headsign conflicts, %d of %d trips rejected",
			len(report.Routes), len(report.Headsigns), len(report.Rejections), report.Trips+len(report.Rejections),
		)
	}

	fmt.Printf("ok, %d trips\n", report.Trips)
	return nil
}
