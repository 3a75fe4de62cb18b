package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Lists the feed's routes as they will be split",
	Args:  cobra.NoArgs,
	RunE:  routes,
}

func routes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, feed, err := loadFeed(ctx)
	if err != nil {
		return err
	}

	c := newConverter(ctx)
	compiled, err := c.Compile(feed)
	if err != nil {
		return err
	}

	feedRoutes, err := feed.Routes()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tFEED ROUTE\tLONG NAME\tDIRECTIONS")
	for _, r := range feedRoutes {
		id, err := c.RouteID(r)
		if err != nil {
			return err
		}
		long, err := c.RouteLongName(id, r)
		if err != nil {
			return err
		}

		directions := "feed"
		if route, found := compiled.ForRoute(id); found {
			directions = fmt.Sprintf("%s / %s", route.Directions[0].Label, route.Directions[1].Label)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", id, r.ID, long, directions)
	}
	return w.Flush()
}
