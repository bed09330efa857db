package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitecrawler/internal/api"
	"github.com/JakeFAU/sitecrawler/internal/clock/system"
	"github.com/JakeFAU/sitecrawler/internal/config"
	"github.com/JakeFAU/sitecrawler/internal/crawler"
	"github.com/JakeFAU/sitecrawler/internal/extract"
	collyfetcher "github.com/JakeFAU/sitecrawler/internal/fetcher/colly"
	"github.com/JakeFAU/sitecrawler/internal/id/uuid"
	"github.com/JakeFAU/sitecrawler/internal/logging"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
	"github.com/JakeFAU/sitecrawler/internal/pool"
	"github.com/JakeFAU/sitecrawler/internal/report"
	"github.com/JakeFAU/sitecrawler/internal/urlset"
)

const drainTimeout = 30 * time.Second

// runCrawl wires the crawl components from cfg, runs one crawl and writes
// the result to out. The result is printed even when the crawl was
// interrupted; the interruption is still returned as an error.
func runCrawl(ctx context.Context, cfg config.Config, out io.Writer, logger *zap.Logger) error {
	runID, err := uuid.New().NewID()
	if err != nil {
		return err
	}
	kind := cfg.SetKind()
	logger = logging.ForRun(nopLogger(logger), runID, kind.String())
	metrics.Init()

	set, err := urlset.New(kind,
		urlset.WithCapacity(cfg.Set.InitialCapacity),
		urlset.WithStripes(cfg.Set.Stripes),
		urlset.WithLoadFactor(cfg.Set.LoadFactor),
		urlset.WithResizeHook(func(from, to int) {
			metrics.ObserveSetResize(kind.String(), to)
			logger.Debug("visited set resized", zap.Int("from", from), zap.Int("to", to))
		}),
	)
	if err != nil {
		return fmt.Errorf("build visited set: %w", err)
	}
	extractor, err := extract.New(cfg.Crawler.Extractor)
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}
	workers, err := pool.New(ctx, cfg.Crawler.Concurrency, logger)
	if err != nil {
		return fmt.Errorf("build worker pool: %w", err)
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.Timeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
		Headers:     cfg.RequestHeaders(),
	})
	clock := system.New()
	engine := crawler.New(set, workers, fetcher, extractor, clock, kind.String(), logger)

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	var (
		res    crawler.Result
		runErr error
	)
	if cfg.Server.Addr != "" {
		info := api.RunInfo{
			RunID:      runID,
			Seed:       cfg.Crawler.SeedURL,
			SetVariant: kind.String(),
			StartedAt:  clock.Now(),
		}
		srv := api.NewServer(workers, set, info, clock, logger)
		g.Go(func() error {
			return srv.ListenAndServe(serverCtx, cfg.Server.Addr)
		})
	}
	g.Go(func() error {
		defer stopServer()
		res, runErr = engine.Run(gctx, cfg.Crawler.SeedURL)
		return nil
	})
	groupErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := workers.Shutdown(drainCtx); err != nil {
		logger.Warn("worker pool did not drain", zap.Error(err))
	}

	if errors.Is(runErr, crawler.ErrInvalidURL) {
		return fmt.Errorf("%w: %w", config.ErrInvalidArgs, runErr)
	}

	if err := report.WriteText(out, res, cfg.Report.Sorted); err != nil {
		return err
	}
	if cfg.Report.OutputFile != "" {
		doc := report.NewDocument(runID, kind.String(), cfg.Crawler.Concurrency, res, runErr)
		uri, err := report.SaveFile(cfg.Report.OutputFile, doc)
		if err != nil {
			return errors.Join(runErr, fmt.Errorf("save report: %w", err))
		}
		logger.Info("report saved", zap.String("uri", uri))
	}

	return errors.Join(groupErr, runErr)
}

// nopLogger is used when a caller passes no logger.
func nopLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
