package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/clock/system"
	"github.com/JakeFAU/sitecrawler/internal/metrics"
	"github.com/JakeFAU/sitecrawler/internal/pool"
	"github.com/JakeFAU/sitecrawler/internal/urlset"
)

// Result summarizes a finished (or cancelled) crawl.
type Result struct {
	Seed       string        `json:"seed"`
	BaseDomain string        `json:"base_domain"`
	URLs       []string      `json:"urls"`
	Count      int           `json:"count"`
	Fetched    int64         `json:"fetched"`
	Failed     int64         `json:"failed"`
	Started    time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Crawler schedules crawl tasks on a Scheduler and records visited URLs in
// a urlset.Set. The set is the only state shared between tasks.
type Crawler struct {
	set       urlset.Set
	scheduler Scheduler
	fetcher   Fetcher
	extractor LinkExtractor
	clock     Clock
	logger    *zap.Logger
	variant   string
}

// New constructs a Crawler. variant labels admission metrics.
func New(
	set urlset.Set,
	scheduler Scheduler,
	fetcher Fetcher,
	extractor LinkExtractor,
	clock Clock,
	variant string,
	logger *zap.Logger,
) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Crawler{
		set:       set,
		scheduler: scheduler,
		fetcher:   fetcher,
		extractor: extractor,
		clock:     clock,
		logger:    logger,
		variant:   variant,
	}
}

// run is the per-crawl state captured by every task.
type run struct {
	ctx        context.Context
	normalizer *Normalizer
	logger     *zap.Logger

	admitted atomic.Int64
	fetched  atomic.Int64
	failed   atomic.Int64

	fatalOnce sync.Once
	fatal     error
}

func (r *run) fail(err error) {
	r.fatalOnce.Do(func() {
		r.fatal = err
	})
}

// Run crawls from seed until no work remains or ctx ends. On cancellation
// the partial result is returned together with the context error; queued
// tasks still drain when the scheduler is shut down, but they return without
// fetching.
func (c *Crawler) Run(ctx context.Context, seed string) (Result, error) {
	started := c.clock.Now()
	canonical, normalizer, err := ParseSeed(seed)
	if err != nil {
		return Result{}, err
	}
	r := &run{
		ctx:        ctx,
		normalizer: normalizer,
		logger:     c.logger.With(zap.String("base_domain", normalizer.BaseDomain())),
	}
	r.logger.Info("crawl started", zap.String("seed", canonical))

	if err := c.scheduler.Submit(c.task(r, canonical)); err != nil {
		return Result{}, fmt.Errorf("submit seed: %w", err)
	}
	waitErr := c.scheduler.Wait(ctx)
	if waitErr == nil {
		// Idle after cancellation still means tasks were skipped.
		waitErr = ctx.Err()
	}

	result := c.result(r, canonical, started)
	fields := []zap.Field{
		zap.Int("visited", result.Count),
		zap.Int64("fetched", result.Fetched),
		zap.Int64("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed),
	}
	switch {
	case waitErr != nil:
		r.logger.Warn("crawl interrupted", append(fields, zap.Error(waitErr))...)
		return result, fmt.Errorf("crawl %s: %w", canonical, waitErr)
	case r.fatal != nil:
		r.logger.Error("crawl aborted", append(fields, zap.Error(r.fatal))...)
		return result, r.fatal
	default:
		r.logger.Info("crawl finished", fields...)
		return result, nil
	}
}

func (c *Crawler) result(r *run, seed string, started time.Time) Result {
	var urls []string
	for u := range c.set.All() {
		urls = append(urls, u)
	}
	return Result{
		Seed:       seed,
		BaseDomain: r.normalizer.BaseDomain(),
		URLs:       urls,
		Count:      len(urls),
		Fetched:    r.fetched.Load(),
		Failed:     r.failed.Load(),
		Started:    started,
		Elapsed:    c.clock.Now().Sub(started),
	}
}

func (c *Crawler) task(r *run, url string) pool.Task {
	return func(context.Context) {
		c.visit(r, url)
	}
}

// visit is the task body: admit, fetch, extract, normalize, schedule.
func (c *Crawler) visit(r *run, url string) {
	if r.ctx.Err() != nil {
		return
	}
	admitted := c.set.Add(url)
	metrics.ObserveAdmission(c.variant, admitted)
	if !admitted {
		return
	}
	metrics.SetVisited(int(r.admitted.Add(1)))
	r.logger.Debug("url admitted", zap.String("url", url))

	content, err := c.fetcher.Fetch(r.ctx, url)
	if err == nil && content == "" {
		err = fmt.Errorf("%w: empty document", ErrFetchFailed)
	}
	if err != nil {
		r.failed.Add(1)
		metrics.ObserveFetch(url, "failed", 0)
		r.logger.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		return
	}
	r.fetched.Add(1)
	metrics.ObserveFetch(url, "ok", len(content))

	for href := range c.extractor.Extract(content) {
		if r.ctx.Err() != nil {
			return
		}
		next, err := r.normalizer.Normalize(href)
		if err != nil {
			metrics.ObserveDroppedLink(dropReason(err))
			continue
		}
		// Fast-path skip only; admission is decided by Add in the new task.
		if c.set.Contains(next) {
			continue
		}
		c.schedule(r, next)
	}
}

func (c *Crawler) schedule(r *run, url string) {
	err := c.scheduler.Submit(c.task(r, url))
	if err == nil {
		return
	}
	if errors.Is(err, pool.ErrPoolClosed) && r.ctx.Err() != nil {
		// Shut down after cancellation; the link is intentionally abandoned.
		return
	}
	err = fmt.Errorf("schedule %s: %w", url, err)
	r.logger.Error("follow-up submission rejected", zap.Error(err))
	r.fail(err)
}
