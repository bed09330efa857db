// Package report renders crawl results: a plain listing for stdout and an
// optional JSON document written to disk.
package report

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

// WriteText prints the visited URLs under a "URLs found" header followed by
// the count and elapsed time. With sorted set the listing is lexicographic;
// otherwise it follows the set's iteration order.
func WriteText(w io.Writer, res crawler.Result, sorted bool) error {
	urls := res.URLs
	if sorted {
		urls = slices.Sorted(slices.Values(res.URLs))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "URLs found")
	for _, u := range urls {
		fmt.Fprintln(bw, u)
	}
	fmt.Fprintf(bw, "Total URLs: %d\n", len(urls))
	fmt.Fprintf(bw, "Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
