package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Splits the feed's trips and writes the result as CSV",
	Args:  cobra.NoArgs,
	RunE:  split,
}

var (
	outDir  string
	persist bool
)

func init() {
	splitCmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	splitCmd.Flags().BoolVarP(&persist, "persist", "p", false, "Also write the schedule to storage")
}

type rejectionCSV struct {
	RouteID int64  `csv:"route_id"`
	TripID  string `csv:"trip_id"`
	Error   string `csv:"error"`
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(rows, f); err != nil {
		f.Close()
		return fmt.Errorf("marshalling %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func split(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, feed, err := loadFeed(ctx)
	if err != nil {
		return err
	}

	schedule, err := newConverter(ctx).Convert(ctx, feed)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	rejections := make([]rejectionCSV, len(schedule.Rejections))
	for i, r := range schedule.Rejections {
		rejections[i] = rejectionCSV{RouteID: r.RouteID, TripID: r.TripID, Error: r.Err.Error()}
	}

	files := map[string]interface{}{
		"routes.csv":          &schedule.Routes,
		"trips.csv":           &schedule.Trips,
		"trip_stops.csv":      &schedule.TripStops,
		"direction_stops.csv": &schedule.DirectionStops,
		"rejections.csv":      &rejections,
	}

	var g errgroup.Group
	for name, rows := range files {
		g.Go(func() error {
			return writeCSV(filepath.Join(outDir, name), rows)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if persist {
		writer, err := s.GetScheduleWriter(feedName)
		if err != nil {
			return fmt.Errorf("getting schedule writer: %w", err)
		}
		if err := schedule.Write(writer); err != nil {
			return fmt.Errorf("writing schedule: %w", err)
		}
	}

	fmt.Printf(
		"%d routes, %d trips, %d rejected, written to %s\n",
		len(schedule.Routes), len(schedule.Trips), len(schedule.Rejections), outDir,
	)

	return nil
}
