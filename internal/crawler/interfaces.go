package crawler

import (
	"context"
	"iter"
	"time"

	"github.com/JakeFAU/sitecrawler/internal/pool"
)

// Fetcher retrieves a document. Implementations apply a bounded timeout,
// follow redirects and return an error wrapping ErrFetchFailed on any
// transport failure or non-success status.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// LinkExtractor yields the raw, unresolved href values found in content.
// It performs no I/O.
type LinkExtractor interface {
	Extract(content string) iter.Seq[string]
}

// Scheduler runs tasks and reports when none remain.
type Scheduler interface {
	Submit(task pool.Task) error
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
