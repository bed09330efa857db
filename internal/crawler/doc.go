// Package crawler implements the self-scheduling crawl engine: every task
// admits one URL to the shared visited set, fetches it, extracts and
// normalizes its links, and submits one follow-up task per surviving link
// back to the same worker pool. The pool's outstanding-work counter reaching
// zero marks the end of the crawl.
package crawler
