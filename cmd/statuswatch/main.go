package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/statuswatch/statuswatch/config"
	"github.com/statuswatch/statuswatch/feedview"
	"github.com/statuswatch/statuswatch/fetch"
	"github.com/statuswatch/statuswatch/model"
	"github.com/statuswatch/statuswatch/provider"
	"github.com/statuswatch/statuswatch/session"
	"github.com/statuswatch/statuswatch/store"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "statuswatch",
		Usage:   "Aggregated status dashboard for third-party services",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   getDefaultDBPath(),
				Usage:   "Database file path",
				EnvVars: []string{"STATUSWATCH_DB"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (YAML)",
				EnvVars: []string{"STATUSWATCH_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Poll all providers once and show per-provider status",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "provider",
						Aliases: []string{"p"},
						Usage:   "Restrict to specific built-in providers",
					},
				},
				Action: showStatus,
			},
			{
				Name:  "feed",
				Usage: "Poll all providers once and show the unified feed",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "sort",
						Value: string(feedview.SortTimestamp),
						Usage: "Sort order: timestamp, source, or status",
					},
					&cli.StringFlag{
						Name:    "search",
						Aliases: []string{"q"},
						Usage:   "Free-text filter over title, description, provider, status",
					},
					&cli.StringSliceFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Restrict the feed to specific provider keys",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of feed items to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Value:   0,
						Usage:   "Offset for pagination",
					},
				},
				Action: showFeed,
			},
			{
				Name:  "watch",
				Usage: "Poll continuously on the configured interval",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "metrics",
						Usage: "Serve Prometheus metrics on this address (e.g. :9815)",
					},
				},
				Action: watch,
			},
			{
				Name:      "add-feed",
				Usage:     "Register a custom RSS/Atom feed as a provider",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Display name for the feed",
					},
					&cli.StringFlag{
						Name:  "color",
						Usage: "Display color for the feed",
					},
				},
				Action: addFeed,
			},
			{
				Name:   "feeds",
				Usage:  "List registered custom feeds",
				Action: listFeeds,
			},
			{
				Name:      "remove-feed",
				Usage:     "Remove a custom feed",
				ArgsUsage: "<key>",
				Action:    removeFeed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "statuswatch.db"
	}
	return filepath.Join(home, ".config", "statuswatch", "statuswatch.db")
}

// databasePath picks the sqlite location: an explicit --db flag (or
// STATUSWATCH_DB) wins, then the config file's database_path, then the
// built-in default.
func databasePath(c *cli.Context, cfg config.Config) string {
	if !c.IsSet("db") && cfg.DatabasePath != "" {
		return cfg.DatabasePath
	}
	return c.String("db")
}

func getStore(c *cli.Context, cfg config.Config) (*store.Store, error) {
	dbPath := databasePath(c, cfg)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return s, nil
}

func getConfig(c *cli.Context) (config.Config, error) {
	return config.Load(c.String("config"))
}

// buildRegistry returns the provider registry with persisted custom
// feeds restored. Restore failures are collected, not fatal: one bad
// registration must not take the rest down.
func buildRegistry(db *store.Store) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	feeds, err := db.CustomFeeds()
	if err != nil {
		return registry, fmt.Errorf("failed to load custom feeds: %w", err)
	}

	var errs *multierror.Error
	for _, p := range feeds {
		if err := registry.Restore(p); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("feed %s: %w", p.Key, err))
		}
	}
	return registry, errs.ErrorOrNil()
}

func buildSession(c *cli.Context, cfg config.Config, db *store.Store, logger *zap.Logger) (*session.Session, error) {
	registry, err := buildRegistry(db)
	if err != nil {
		return nil, err
	}

	selected := c.StringSlice("provider")
	if len(selected) == 0 {
		selected = cfg.Providers
	}

	return session.New(session.Options{
		Registry:     registry,
		Fetcher:      fetch.NewClient(0),
		Retained:     db,
		Logger:       logger,
		Selected:     selected,
		PollInterval: time.Duration(cfg.PollInterval),
		WindowDays:   cfg.WindowDays,
		Normalize: provider.Options{
			MaxItems:       cfg.MaxFeedItems,
			MaxDescription: cfg.MaxDescription,
		},
	}), nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// providerReport is the status command's per-provider output row.
type providerReport struct {
	model.ProviderState
	Name     string            `json:"name"`
	Timeline []model.Indicator `json:"timeline"`
}

func showStatus(c *cli.Context) error {
	cfg, err := getConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	db, err := getStore(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer db.Close()

	sess, err := buildSession(c, cfg, db, zap.NewNop())
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	sess.Poll(c.Context)

	states := sess.States()
	reports := make([]providerReport, 0, len(states))
	for _, p := range sess.Registry().All() {
		state, ok := states[p.Key]
		if !ok {
			continue
		}
		reports = append(reports, providerReport{
			ProviderState: state,
			Name:          p.Name,
			Timeline:      sess.Timeline(p.Key),
		})
	}

	return outputJSON(map[string]interface{}{
		"providers": reports,
	})
}

func showFeed(c *cli.Context) error {
	cfg, err := getConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	db, err := getStore(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer db.Close()

	sess, err := buildSession(c, cfg, db, zap.NewNop())
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	sess.Poll(c.Context)

	items := sess.Feed(feedview.Query{
		Sort:    feedview.SortBy(c.String("sort")),
		Search:  c.String("search"),
		Sources: c.StringSlice("source"),
		Limit:   c.Int("limit"),
		Offset:  c.Int("offset"),
	})

	return outputJSON(map[string]interface{}{
		"count":  len(items),
		"limit":  c.Int("limit"),
		"offset": c.Int("offset"),
		"items":  items,
	})
}

func watch(c *cli.Context) error {
	cfg, err := getConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to create logger: %v", err), ExitGeneralError)
	}
	defer logger.Sync()

	db, err := getStore(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer db.Close()

	sess, err := buildSession(c, cfg, db, logger)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(sess.Metrics(), promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer server.Close()
		logger.Info("serving metrics", zap.String("addr", addr))
	}

	logger.Info("watching providers",
		zap.Duration("interval", time.Duration(cfg.PollInterval)))
	sess.Run(ctx)
	return nil
}

func addFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: statuswatch add-feed <url>", ExitUsageError)
	}

	url := c.Args().Get(0)

	cfg, err := getConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	db, err := getStore(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer db.Close()

	registry, err := buildRegistry(db)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	p, err := registry.RegisterCustom(c.String("name"), url, c.String("color"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	// Fetch once up front so an unreachable or malformed feed is
	// reported at registration time rather than discovered later.
	client := fetch.NewClient(0)
	ctx, cancel := context.WithTimeout(c.Context, fetch.DefaultTimeout)
	defer cancel()
	raw, err := client.Get(ctx, p.Key, p.URL)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to fetch feed: %v", err), ExitDataError)
	}
	if _, err := p.Normalizer(provider.Options{}).Normalize(raw); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to parse feed: %v", err), ExitDataError)
	}

	if err := db.AddCustomFeed(p); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save feed: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success": true,
		"feed":    p,
	})
}

func listFeeds(c *cli.Context) error {
	cfg, err := getConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	db, err := getStore(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer db.Close()

	feeds, err := db.CustomFeeds()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get feeds: %v", err), ExitDataError)
	}

	return outputJSON(feeds)
}

func removeFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: statuswatch remove-feed <key>", ExitUsageError)
	}

	key := c.Args().Get(0)

	cfg, err := getConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	db, err := getStore(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer db.Close()

	if err := db.RemoveCustomFeed(key); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to remove feed: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success": true,
		"removed": key,
	})
}
