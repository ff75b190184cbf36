package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrelmbackes/rpv-crawler/internal/clock/system"
	"github.com/andrelmbackes/rpv-crawler/internal/config"
	"github.com/andrelmbackes/rpv-crawler/internal/enrichment"
	"github.com/andrelmbackes/rpv-crawler/internal/fetcher/dje"
	"github.com/andrelmbackes/rpv-crawler/internal/metrics"
	"github.com/andrelmbackes/rpv-crawler/internal/monitor"
	"github.com/andrelmbackes/rpv-crawler/internal/orchestrator"
	"github.com/andrelmbackes/rpv-crawler/internal/pipeline"
	"github.com/andrelmbackes/rpv-crawler/internal/progress"
	gcspublisher "github.com/andrelmbackes/rpv-crawler/internal/publisher/pubsub"
	"github.com/andrelmbackes/rpv-crawler/internal/sink"
	"github.com/andrelmbackes/rpv-crawler/internal/storage/gcs"
	"github.com/andrelmbackes/rpv-crawler/internal/storage/local"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls a gazette date range and extracts publications",
		Long: `Searches every date in the configured range, extracts and enriches
the matching publications, and persists them. A SIGINT stops the crawl
gracefully: dates already claimed finish their current operation and the
progress snapshot stays resumable.`,

		RunE: runCrawlCommand,
	}

	cmd.Flags().String("start-date", "", "first gazette date (YYYY-MM-DD, overrides config)")
	cmd.Flags().String("end-date", "", "last gazette date (YYYY-MM-DD, overrides config)")
	cmd.Flags().Int("workers", 0, "number of concurrent workers (overrides config)")

	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCrawlFlags(cmd, &cfg)

	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	deps, cleanup, err := buildDependencies(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	orch, err := orchestrator.New(orchestrator.Config{
		StartDate:    cfg.Crawl.StartDate,
		EndDate:      cfg.Crawl.EndDate,
		Workers:      cfg.Crawl.Workers,
		SearchTerms:  cfg.Crawl.SearchTerms,
		PublishTopic: cfg.PubSub.TopicName,
		BlobPrefix:   cfg.Storage.Prefix,
	}, deps)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	if cfg.Monitor.Enabled {
		mon := monitor.NewServer(cfg.Progress.Path, registry, logger.Named("monitor"))
		go func() {
			if err := mon.Serve(ctx, cfg.Monitor.Port); err != nil {
				logger.Error("monitor server failed", zap.Error(err))
			}
		}()
	}

	summary, err := orch.Run(ctx)
	logger.Info("crawl finished",
		zap.Int("dates_done", summary.DatesDone),
		zap.Int("dates_failed", summary.DatesFailed),
		zap.Int("retries", summary.Retries),
		zap.Int("publications_found", summary.PublicationsFound),
		zap.Int("publications_skipped", summary.PublicationsSkipped),
		zap.Int("enriched", summary.Enriched),
		zap.Int("degraded", summary.Degraded),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	return nil
}

func applyCrawlFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("start-date"); v != "" {
		cfg.Crawl.StartDate = v
	}
	if v, _ := cmd.Flags().GetString("end-date"); v != "" {
		cfg.Crawl.EndDate = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Crawl.Workers = v
	}
}

// buildDependencies assembles the orchestrator's collaborators from config.
// The returned cleanup closes external clients.
func buildDependencies(
	ctx context.Context,
	cfg config.Config,
	registry *prometheus.Registry,
	logger *zap.Logger,
) (orchestrator.Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store := progress.NewStore(cfg.Progress.Path, system.New(), logger.Named("progress"))

	publicationSink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return orchestrator.Dependencies{}, nil, err
	}

	blobs, blobCloser, err := buildBlobStore(ctx, cfg)
	if err != nil {
		cleanup()
		return orchestrator.Dependencies{}, nil, err
	}
	if blobCloser != nil {
		closers = append(closers, blobCloser)
	}

	publisher, pubCloser, err := buildPublisher(ctx, cfg)
	if err != nil {
		cleanup()
		return orchestrator.Dependencies{}, nil, err
	}
	if pubCloser != nil {
		closers = append(closers, pubCloser)
	}

	var enricher pipeline.Enricher
	if cfg.Enrichment.Enabled {
		enricher = enrichment.New(enrichment.Config{
			BaseURL:     cfg.Enrichment.BaseURL,
			UserAgent:   cfg.Enrichment.UserAgent,
			Timeout:     time.Duration(cfg.Enrichment.TimeoutSec) * time.Second,
			LookupDelay: time.Duration(cfg.Enrichment.LookupDelayMs) * time.Millisecond,
		}, logger.Named("enrichment"))
	}

	deps := orchestrator.Dependencies{
		NewFetcher: func(workerID int) (pipeline.Fetcher, error) {
			return dje.New(dje.Config{
				BaseURL:           cfg.Gazette.BaseURL,
				UserAgent:         cfg.Gazette.UserAgent,
				NavigationTimeout: cfg.NavTimeout(),
				PageDelay:         time.Duration(cfg.Gazette.PageDelayMs) * time.Millisecond,
			})
		},
		Enricher:  enricher,
		Store:     store,
		Sink:      publicationSink,
		Blobs:     blobs,
		Publisher: publisher,
		Metrics:   metrics.New(registry),
		Retry:     pipeline.NewLinearRetryPolicyWith(cfg.Retry.MaxRetries, cfg.RetryBaseDelay()),
		Clock:     system.New(),
		Logger:    logger,
	}
	return deps, cleanup, nil
}

func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Sink, error) {
	var sinks []pipeline.Sink
	if cfg.Output.Dir != "" {
		fsSink, err := sink.NewFileSystemSink(cfg.Output.Dir, logger.Named("sink"))
		if err != nil {
			return nil, fmt.Errorf("init file sink: %w", err)
		}
		sinks = append(sinks, fsSink)
	}
	if cfg.DB.DSN != "" {
		pgSink, err := sink.NewPostgresSink(ctx, cfg.DB.DSN, logger.Named("sink"))
		if err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		sinks = append(sinks, pgSink)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sink.NewMulti(sinks...), nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (pipeline.BlobStore, func(), error) {
	switch {
	case cfg.Storage.GCSBucket != "":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			client.Close() //nolint:errcheck // already failing
			return nil, nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return blobs, func() { client.Close() }, nil //nolint:errcheck // best-effort close
	case cfg.Storage.LocalDir != "":
		blobs, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("init local blob store: %w", err)
		}
		return blobs, nil, nil
	default:
		return nil, nil, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (pipeline.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return nil, nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	pub, err := gcspublisher.New(client)
	if err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, err
	}
	return pub, func() {
		pub.Close()
		client.Close() //nolint:errcheck // best-effort close
	}, nil
}
