package crawler

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/pool"
	"github.com/JakeFAU/sitecrawler/internal/urlset"
)

var allKinds = []urlset.Kind{urlset.KindList, urlset.KindCoarse, urlset.KindStriped}

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// siteFetcher serves an in-memory site and counts requests per URL.
type siteFetcher struct {
	pages map[string]string

	mu    sync.Mutex
	calls map[string]int
}

func newSiteFetcher(pages map[string]string) *siteFetcher {
	return &siteFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *siteFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls[url]++
	f.mu.Unlock()

	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("%w: 404 for %s", ErrFetchFailed, url)
	}
	return page, nil
}

func (f *siteFetcher) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fetchFunc func(ctx context.Context, url string) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }

// fieldExtractor treats every whitespace-separated token as an href.
type fieldExtractor struct{}

func (fieldExtractor) Extract(content string) iter.Seq[string] {
	return strings.FieldsSeq(content)
}

type panicExtractor struct{ on string }

func (p panicExtractor) Extract(content string) iter.Seq[string] {
	if content == p.on {
		panic("extractor exploded")
	}
	return strings.FieldsSeq(content)
}

func links(hrefs ...string) string {
	return strings.Join(hrefs, "\n")
}

func newTestCrawler(t *testing.T, kind urlset.Kind, fetcher Fetcher, extractor LinkExtractor) *Crawler {
	t.Helper()
	set, err := urlset.New(kind)
	require.NoError(t, err)
	p, err := pool.New(context.Background(), 8, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, p.Shutdown(ctx))
	})
	return New(set, p, fetcher, extractor, nil, kind.String(), zap.NewNop())
}

func runCrawl(t *testing.T, c *Crawler, seed string) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := c.Run(ctx, seed)
	require.NoError(t, err)
	return res
}

func TestCrawler_EndToEnd(t *testing.T) {
	t.Parallel()

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			fetcher := newSiteFetcher(map[string]string{
				"http://example.com/":  links("/a", "http://example.com/b", "http://external.com/c", "#frag"),
				"http://example.com/a": links("/"),
				"http://example.com/b": links("/a"),
			})
			res := runCrawl(t, newTestCrawler(t, kind, fetcher, fieldExtractor{}), "http://example.com")

			require.ElementsMatch(t, []string{
				"http://example.com/",
				"http://example.com/a",
				"http://example.com/b",
			}, res.URLs)
			require.Equal(t, 3, res.Count)
			require.Equal(t, int64(3), res.Fetched)
			require.Zero(t, res.Failed)
			require.Equal(t, "http://example.com", res.BaseDomain)
			require.Equal(t, "http://example.com/", res.Seed)
			require.Zero(t, fetcher.callsFor("http://external.com/c"))
		})
	}
}

func TestCrawler_CycleTerminates(t *testing.T) {
	t.Parallel()

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			fetcher := newSiteFetcher(map[string]string{
				"http://example.com/a": links("/b", "/a"),
				"http://example.com/b": links("/a"),
			})
			res := runCrawl(t, newTestCrawler(t, kind, fetcher, fieldExtractor{}), "http://example.com/a")

			require.ElementsMatch(t, []string{"http://example.com/a", "http://example.com/b"}, res.URLs)
			require.Equal(t, 1, fetcher.callsFor("http://example.com/a"))
			require.Equal(t, 1, fetcher.callsFor("http://example.com/b"))
		})
	}
}

func TestCrawler_DomainContainment(t *testing.T) {
	t.Parallel()

	fetcher := newSiteFetcher(map[string]string{
		"http://example.com/": links(
			"/about",
			"http://other.com/x",
			"contact",
			"/page2#section",
			"/page2#other",
			"mailto:someone@example.com",
			"javascript:void(0)",
		),
	})
	res := runCrawl(t, newTestCrawler(t, urlset.KindStriped, fetcher, fieldExtractor{}), "http://example.com/")

	require.ElementsMatch(t, []string{
		"http://example.com/",
		"http://example.com/about",
		"http://example.com/contact",
		"http://example.com/page2",
	}, res.URLs)
	require.Equal(t, 1, fetcher.callsFor("http://example.com/page2"))
	require.Zero(t, fetcher.callsFor("http://other.com/x"))
	require.Equal(t, int64(1), res.Fetched)
	require.Equal(t, int64(3), res.Failed)
}

func TestCrawler_FailedFetchStaysVisited(t *testing.T) {
	t.Parallel()

	fetcher := newSiteFetcher(map[string]string{
		"http://example.com/":      links("/missing", "/other", "/missing"),
		"http://example.com/other": links("/missing", "/empty"),
		"http://example.com/empty": "",
	})
	res := runCrawl(t, newTestCrawler(t, urlset.KindCoarse, fetcher, fieldExtractor{}), "http://example.com/")

	require.Contains(t, res.URLs, "http://example.com/missing")
	require.Contains(t, res.URLs, "http://example.com/empty")
	require.Equal(t, 1, fetcher.callsFor("http://example.com/missing"), "failed fetches are not retried")
	require.Equal(t, int64(2), res.Failed)
}

func TestCrawler_FetchesEachURLOnce(t *testing.T) {
	t.Parallel()

	f := new(MockFetcher)
	f.On("Fetch", mock.Anything, "http://example.com/").Return(links("/x", "/y"), nil).Once()
	f.On("Fetch", mock.Anything, "http://example.com/x").Return(links("/y", "/"), nil).Once()
	f.On("Fetch", mock.Anything, "http://example.com/y").Return(links("/x", "/"), nil).Once()

	res := runCrawl(t, newTestCrawler(t, urlset.KindStriped, f, fieldExtractor{}), "http://example.com/")

	require.Equal(t, 3, res.Count)
	f.AssertExpectations(t)
	f.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestCrawler_ManyPagesConcurrently(t *testing.T) {
	t.Parallel()

	const pages = 500
	site := make(map[string]string, pages)
	for i := range pages {
		var hrefs []string
		for _, j := range []int{2*i + 1, 2*i + 2, i / 2, 0} {
			if j < pages {
				hrefs = append(hrefs, fmt.Sprintf("/p/%d", j))
			}
		}
		site[fmt.Sprintf("http://example.com/p/%d", i)] = links(hrefs...)
	}

	for _, kind := range allKinds {
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			fetcher := newSiteFetcher(site)
			res := runCrawl(t, newTestCrawler(t, kind, fetcher, fieldExtractor{}), "http://example.com/p/0")

			require.Equal(t, pages, res.Count)
			require.Equal(t, int64(pages), res.Fetched)
			for url := range site {
				require.Equal(t, 1, fetcher.callsFor(url), url)
			}
		})
	}
}

func TestCrawler_PanicInTaskDoesNotStallCrawl(t *testing.T) {
	t.Parallel()

	fetcher := newSiteFetcher(map[string]string{
		"http://example.com/":  links("/a", "/b"),
		"http://example.com/a": "boom",
		"http://example.com/b": links("/"),
	})
	res := runCrawl(t, newTestCrawler(t, urlset.KindCoarse, fetcher, panicExtractor{on: "boom"}), "http://example.com/")

	require.ElementsMatch(t, []string{
		"http://example.com/",
		"http://example.com/a",
		"http://example.com/b",
	}, res.URLs)
}

func TestCrawler_InvalidSeed(t *testing.T) {
	t.Parallel()

	f := new(MockFetcher)
	c := newTestCrawler(t, urlset.KindCoarse, f, fieldExtractor{})

	_, err := c.Run(context.Background(), "example.com")
	require.ErrorIs(t, err, ErrInvalidURL)
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestCrawler_CancellationReturnsPartialResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 1)
	fetcher := fetchFunc(func(ctx context.Context, url string) (string, error) {
		if url == "http://example.com/" {
			return links("/slow"), nil
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
	})
	go func() {
		<-started
		cancel()
	}()

	c := newTestCrawler(t, urlset.KindStriped, fetcher, fieldExtractor{})
	res, err := c.Run(ctx, "http://example.com/")

	require.ErrorIs(t, err, context.Canceled)
	require.ElementsMatch(t, []string{"http://example.com/", "http://example.com/slow"}, res.URLs)
}

// inlineScheduler runs tasks synchronously and rejects everything past the
// first accepted submissions.
type inlineScheduler struct {
	accept    int
	submitted int
}

func (s *inlineScheduler) Submit(task pool.Task) error {
	s.submitted++
	if s.submitted > s.accept {
		return pool.ErrPoolClosed
	}
	task(context.Background())
	return nil
}

func (s *inlineScheduler) Wait(context.Context) error { return nil }

func TestCrawler_RejectedSubmissionIsFatal(t *testing.T) {
	t.Parallel()

	set, err := urlset.New(urlset.KindCoarse)
	require.NoError(t, err)
	fetcher := newSiteFetcher(map[string]string{
		"http://example.com/": links("/a"),
	})
	c := New(set, &inlineScheduler{accept: 1}, fetcher, fieldExtractor{}, nil, "coarse", zap.NewNop())

	res, err := c.Run(context.Background(), "http://example.com/")
	require.ErrorIs(t, err, pool.ErrPoolClosed)
	require.Equal(t, []string{"http://example.com/"}, res.URLs)
}

func TestCrawler_ElapsedUsesClock(t *testing.T) {
	t.Parallel()

	set, err := urlset.New(urlset.KindList)
	require.NoError(t, err)
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: 250 * time.Millisecond}
	fetcher := newSiteFetcher(map[string]string{"http://example.com/": "#top"})
	c := New(set, &inlineScheduler{accept: 1}, fetcher, fieldExtractor{}, clock, "list", nil)

	res, err := c.Run(context.Background(), "http://example.com/")
	require.NoError(t, err)
	require.Equal(t, clock.start(), res.Started)
	require.Equal(t, 250*time.Millisecond, res.Elapsed)
}

// stepClock advances by step on every call.
type stepClock struct {
	now  time.Time
	step time.Duration
	n    int
}

func (c *stepClock) Now() time.Time {
	t := c.now.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

func (c *stepClock) start() time.Time { return c.now }
