package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pricestalk/pricestalk/internal/config"
	"github.com/pricestalk/pricestalk/internal/engine"
	"github.com/pricestalk/pricestalk/internal/export"
	"github.com/pricestalk/pricestalk/internal/fetcher"
	"github.com/pricestalk/pricestalk/internal/observability"
	"github.com/pricestalk/pricestalk/internal/store"
	"github.com/pricestalk/pricestalk/internal/types"
)

var (
	cfgFile      string
	verbose      bool
	websiteNames string
	itemLimit    int
	concurrent   int
	maxPages     int
	delay        string
	storeType    string
	mongoURI     string
	outputPath   string
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pricestalk",
		Short: "PriceStalk — multi-site product price crawler",
		Long: `PriceStalk crawls e-commerce search results, extracts product listings
and records timestamped price observations.

Features:
  • Amazon, eBay and Walmart search crawling with pagination
  • Layered extraction: CSS selectors, XPath, JSON-LD, regex fallback
  • Canonical price/currency/rating normalization
  • Latest-price index and per-product price history
  • In-memory or MongoDB persistence
  • JSON and CSV export
  • Prometheus metrics endpoint`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(latestCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [query]",
		Short: "Crawl websites for a product query",
		Long:  "Search the configured websites for the query, follow result pages and record one price observation per listing.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCrawl,
	}

	cmd.Flags().StringVarP(&websiteNames, "websites", "w", "", "comma-separated websites (amazon,ebay,walmart; default all)")
	cmd.Flags().IntVarP(&itemLimit, "limit", "l", 0, "max observations per website (0 = unlimited)")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "concurrent fetches per website")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "p", 0, "max search-result pages per website")
	cmd.Flags().StringVar(&delay, "delay", "", "politeness delay between requests per website")
	cmd.Flags().StringVar(&storeType, "store", "", "persistence backend: memory, mongodb")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "export file path")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "export format: csv, json")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	query := strings.TrimSpace(strings.Join(args, " "))
	websites, err := parseWebsites(websiteNames)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer httpFetcher.Close()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer st.Close(context.Background())

	agg := store.NewAggregator(st, logger)
	runner := engine.NewRunner(cfg, httpFetcher, agg, logger)

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(runner.Stats(), logger)
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	logger.Info("starting crawl",
		"query", query,
		"websites", websiteNames,
		"limit", cfg.Crawl.ItemLimit,
		"concurrency", cfg.Crawl.Concurrency,
		"store", st.Name(),
	)

	summary, err := runner.RunCrawl(ctx, types.CrawlTarget{
		ProductQuery: query,
		Websites:     websites,
		ItemLimit:    cfg.Crawl.ItemLimit,
	})
	if summary == nil {
		return err
	}

	fmt.Printf("\n✅ Crawl complete in %s\n", summary.Duration.Round(time.Millisecond))
	for _, id := range types.AllWebsites {
		res, ok := summary.PerWebsite[id]
		if !ok {
			continue
		}
		line := fmt.Sprintf("   %-8s %-12s %d observations", id, res.Status, res.Emitted)
		if res.Err != nil {
			line += fmt.Sprintf("  (%v)", res.Err)
		}
		fmt.Println(line)
	}
	fmt.Printf("   Requests:  %v sent, %v failed\n", summary.Stats["requests_sent"], summary.Stats["requests_failed"])
	fmt.Printf("   Items:     %v emitted, %v rejected\n", summary.Stats["items_emitted"], summary.Stats["items_rejected"])
	fmt.Printf("   Data:      %v bytes downloaded\n", summary.Stats["bytes_downloaded"])

	if cfg.Export.Format != "" && cfg.Export.Format != "none" {
		// Export the full observation history when the store holds it in
		// process memory; other backends keep history server-side.
		obs := agg.LatestFor("")
		if ms, ok := st.(*store.MemoryStore); ok {
			obs = ms.All()
		}
		path := exportPath(cfg)
		if exportErr := export.ToFile(path, cfg.Export.Format, obs); exportErr != nil {
			logger.Error("export failed", "path", path, "error", exportErr)
		} else {
			fmt.Printf("   Output:    %s\n", path)
		}
	}

	return err
}

// latestCmd creates the "latest" subcommand.
func latestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latest [query]",
		Short: "Show the latest stored observation per product and website",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyCLIOverrides(cfg)

			st, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close(context.Background())

			obs, err := st.QueryLatest(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printObservations(obs)
			return nil
		},
	}
	cmd.Flags().StringVar(&storeType, "store", "", "persistence backend: memory, mongodb")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI")
	return cmd
}

// historyCmd creates the "history" subcommand.
func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [product name] [website]",
		Short: "Show the stored price timeline for one product on one website",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyCLIOverrides(cfg)

			website, ok := types.ParseWebsiteId(args[1])
			if !ok {
				return fmt.Errorf("unknown website %q (want amazon, ebay or walmart)", args[1])
			}

			st, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close(context.Background())

			obs, err := st.QueryHistory(cmd.Context(), args[0], website)
			if err != nil {
				return err
			}
			printObservations(obs)
			return nil
		},
	}
	cmd.Flags().StringVar(&storeType, "store", "", "persistence backend: memory, mongodb")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI")
	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PriceStalk %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Crawl:\n")
			fmt.Printf("  Concurrency:       %d\n", cfg.Crawl.Concurrency)
			fmt.Printf("  Max Pages:         %d\n", cfg.Crawl.MaxPages)
			fmt.Printf("  Item Limit:        %d\n", cfg.Crawl.ItemLimit)
			fmt.Printf("  Search Attempts:   %d\n", cfg.Crawl.SearchAttempts)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Crawl.RequestTimeout)
			fmt.Printf("  Politeness Delay:  %s\n", cfg.Crawl.PolitenessDelay)
			fmt.Printf("  Max Retries:       %d\n", cfg.Crawl.MaxRetries)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Crawl.UserAgents))
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nStore:\n")
			fmt.Printf("  Type:              %s\n", cfg.Store.Type)
			fmt.Printf("  Mongo URI:         %s\n", cfg.Store.MongoURI)
			fmt.Printf("  Database:          %s\n", cfg.Store.Database)
			fmt.Printf("  Collection:        %s\n", cfg.Store.Collection)
			fmt.Printf("\nExport:\n")
			fmt.Printf("  Format:            %s\n", cfg.Export.Format)
			fmt.Printf("  Output Path:       %s\n", cfg.Export.OutputPath)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore creates the persistence backend named in the config.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Type {
	case "mongodb":
		return store.NewMongoStore(ctx, cfg.Store.MongoURI, cfg.Store.Database, cfg.Store.Collection, logger)
	case "", "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// parseWebsites resolves the --websites flag; empty means all sites.
func parseWebsites(names string) ([]types.WebsiteId, error) {
	if strings.TrimSpace(names) == "" {
		return nil, nil
	}
	var out []types.WebsiteId
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, ok := types.ParseWebsiteId(name)
		if !ok {
			return nil, fmt.Errorf("unknown website %q (want amazon, ebay or walmart)", name)
		}
		out = append(out, id)
	}
	return out, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if itemLimit > 0 {
		cfg.Crawl.ItemLimit = itemLimit
	}
	if concurrent > 0 {
		cfg.Crawl.Concurrency = concurrent
	}
	if maxPages > 0 {
		cfg.Crawl.MaxPages = maxPages
	}
	if delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			cfg.Crawl.PolitenessDelay = d
		}
	}
	if storeType != "" {
		cfg.Store.Type = strings.ToLower(storeType)
	}
	if mongoURI != "" {
		cfg.Store.MongoURI = mongoURI
	}
	if outputFormat != "" {
		cfg.Export.Format = strings.ToLower(outputFormat)
	}
	if outputPath != "" {
		cfg.Export.OutputPath = outputPath
	}
}

// printObservations writes one JSON document per observation to stdout.
func printObservations(obs []*types.Observation) {
	if len(obs) == 0 {
		fmt.Println("no observations found")
		return
	}
	for _, o := range obs {
		line, err := o.ToJSON()
		if err != nil {
			continue
		}
		fmt.Println(string(line))
	}
}

func exportPath(cfg *config.Config) string {
	path := cfg.Export.OutputPath
	if strings.HasSuffix(path, ".csv") || strings.HasSuffix(path, ".json") {
		return path
	}
	name := fmt.Sprintf("observations-%s.%s", time.Now().Format("20060102-150405"), cfg.Export.Format)
	return path + "/" + name
}
