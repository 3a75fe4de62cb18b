package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/tripsplit"
	"tidbyt.dev/tripsplit/config"
	"tidbyt.dev/tripsplit/downloader"
	"tidbyt.dev/tripsplit/internal/logging"
	"tidbyt.dev/tripsplit/parse"
	"tidbyt.dev/tripsplit/storage"
)

// Name the feed is stored under.
const feedName = "cli"

var rootCmd = &cobra.Command{
	Use:               "tripsplit",
	Short:             "Splits GTFS trips into directions",
	Long:              "Assigns each trip of a static GTFS feed to a route direction and ranks its stops",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath  string
	dotenvPath  string
	feedURL     string
	feedFile    string
	headers     []string
	cacheDir    string
	cacheTTL    time.Duration
	storageType string
	postgresURL string
	logLevel    string
	logFormat   string
	workers     int

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Route data YAML (defaults to the built-in GP Transit data)")
	rootCmd.PersistentFlags().StringVarP(&dotenvPath, "env-file", "", ".env", "dotenv file with TRIPSPLIT_* overrides")
	rootCmd.PersistentFlags().StringVarP(&feedURL, "url", "u", "", "GTFS static feed URL")
	rootCmd.PersistentFlags().StringVarP(&feedFile, "file", "f", "", "GTFS static feed zip file")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "", []string{}, "HTTP header for --url, as <key>:<value>")
	rootCmd.PersistentFlags().StringVarP(&cacheDir, "cache-dir", "", "", "Directory caching downloads from --url")
	rootCmd.PersistentFlags().DurationVarP(&cacheTTL, "cache-ttl", "", 24*time.Hour, "How long downloads stay cached")
	rootCmd.PersistentFlags().StringVarP(&storageType, "storage", "s", "memory", "Storage backend (memory, sqlite or postgres)")
	rootCmd.PersistentFlags().StringVarP(&postgresURL, "postgres", "", "", "Postgres connection string")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Log level (debug, info, warn or error)")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Routes split concurrently (0 for no limit)")

	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(routesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logging.NewStructuredLogger(os.Stderr, level, logFormat)
	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))

	if configPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return err
	}

	env, err := config.Environment(dotenvPath)
	if err != nil {
		return err
	}
	return cfg.ApplyEnv(env)
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func buildStorage() (storage.Storage, error) {
	switch storageType {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: "."})
	case "postgres":
		if postgresURL == "" {
			return nil, fmt.Errorf("--postgres is required with postgres storage")
		}
		return storage.NewPSQLStorage(postgresURL, false)
	}
	return nil, fmt.Errorf("unknown storage '%s'", storageType)
}

func fetchFeed(ctx context.Context) ([]byte, error) {
	switch {
	case feedFile != "" && feedURL != "":
		return nil, fmt.Errorf("use one of --file and --url")
	case feedFile != "":
		return os.ReadFile(feedFile)
	case feedURL == "":
		return nil, fmt.Errorf("one of --file and --url is required")
	}

	h, err := parseHeaders(headers)
	if err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	var d downloader.Downloader = downloader.NewMemory()
	if cacheDir != "" {
		d, err = downloader.NewFilesystem(cacheDir, logging.FromContext(ctx))
		if err != nil {
			return nil, err
		}
	}

	return d.Get(ctx, feedURL, h, downloader.GetOptions{
		Timeout:  5 * time.Minute,
		Cache:    cacheDir != "",
		CacheTTL: cacheTTL,
	})
}

// Fetches, parses and stores the feed.
func loadFeed(ctx context.Context) (storage.Storage, *tripsplit.Feed, error) {
	buf, err := fetchFeed(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching feed: %w", err)
	}

	s, err := buildStorage()
	if err != nil {
		return nil, nil, fmt.Errorf("creating storage: %w", err)
	}

	start := time.Now()

	writer, err := s.GetWriter(feedName)
	if err != nil {
		return nil, nil, fmt.Errorf("getting writer: %w", err)
	}

	metadata, err := parse.ParseStatic(writer, buf)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing feed: %w", err)
	}

	reader, err := s.GetReader(feedName)
	if err != nil {
		return nil, nil, fmt.Errorf("getting reader: %w", err)
	}

	logging.LogOperation(logging.FromContext(ctx), "feed_loaded",
		slog.String("storage", storageType),
		slog.Int("bytes", len(buf)),
		slog.String("timezone", metadata.Timezone),
		slog.String("calendar_start", metadata.CalendarStartDate),
		slog.String("calendar_end", metadata.CalendarEndDate),
		slog.Duration("duration", time.Since(start)),
	)

	return s, tripsplit.NewFeed(reader, metadata), nil
}

func newConverter(ctx context.Context) *tripsplit.Converter {
	c := tripsplit.NewConverter(cfg, logging.FromContext(ctx))
	c.Workers = workers
	return c
}
