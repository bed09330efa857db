// Package cmd implements the webcrawler command line.
//
// Architecture overview:
//   - Arguments: webcrawler <set-variant> <seed-url> <thread-count>. The set
//     variant picks the visited-set implementation (0 list, 1 coarse-locked
//     table, 2 striped table). Viper layers defaults, an optional config file,
//     CRAWLER_* environment variables and flags underneath the arguments.
//   - Crawl: a fixed worker pool runs self-scheduling tasks. Each task admits
//     one URL to the shared set, fetches it with the Colly fetcher, extracts
//     links and submits one task per same-domain link. The crawl ends when the
//     pool's outstanding counter reaches zero.
//   - Output: the visited URLs go to stdout; logs go to stderr. An optional JSON
//     report is written when report.output_file (or --output) is set.
//   - Observability: zap logs carry the run id and set variant. With
//     --server-addr a chi server exposes /healthz, /metrics and /status while
//     the crawl runs.
//
// Operational notes:
//   - SIGINT and SIGTERM cancel the crawl. Queued tasks drain without fetching,
//     the partial result is still printed and the exit status is 1.
//   - Any error exits with status 1 after printing the message on stderr.
package cmd
