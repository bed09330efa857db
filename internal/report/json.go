package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/JakeFAU/sitecrawler/internal/crawler"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the JSON form of one crawl run.
type Document struct {
	RunID       string    `json:"run_id"`
	SetVariant  string    `json:"set_variant"`
	Workers     int       `json:"workers"`
	Seed        string    `json:"seed"`
	BaseDomain  string    `json:"base_domain"`
	Count       int       `json:"count"`
	Fetched     int64     `json:"fetched"`
	Failed      int64     `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Interrupted bool      `json:"interrupted"`
	Error       string    `json:"error,omitempty"`
	URLs        []string  `json:"urls"`
}

// NewDocument captures res together with the run metadata. URLs are sorted
// so documents from different set variants compare equal.
func NewDocument(runID, variant string, workers int, res crawler.Result, runErr error) Document {
	urls := slices.Sorted(slices.Values(res.URLs))
	if urls == nil {
		urls = []string{}
	}
	doc := Document{
		RunID:      runID,
		SetVariant: variant,
		Workers:    workers,
		Seed:       res.Seed,
		BaseDomain: res.BaseDomain,
		Count:      res.Count,
		Fetched:    res.Fetched,
		Failed:     res.Failed,
		StartedAt:  res.Started,
		ElapsedMS:  res.Elapsed.Milliseconds(),
		URLs:       urls,
	}
	if runErr != nil {
		doc.Interrupted = true
		doc.Error = runErr.Error()
	}
	return doc
}

// WriteJSON encodes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// SaveFile writes doc to path, creating parent directories. The document is
// written to a temporary file in the same directory and renamed into place,
// so readers never observe a partial report.
func SaveFile(path string, doc Document) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("report path is required")
	}
	fullPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve report path: %w", err)
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := WriteJSON(tmp, doc); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
