// Package extract pulls raw href values out of fetched documents. Both
// extractors are pure and safe for concurrent use; resolution and filtering
// are left to the caller.
package extract

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind names an extractor implementation.
const (
	KindHTML  = "html"
	KindRegex = "regex"
)

// Extractor yields hrefs found in a document.
type Extractor interface {
	Extract(content string) iter.Seq[string]
}

// New returns the extractor registered under kind.
func New(kind string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindHTML, "":
		return HTML{}, nil
	case KindRegex:
		return Regex{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (want %s or %s)", kind, KindHTML, KindRegex)
	}
}

// HTML parses the document and yields the href of every anchor and image-map
// area, in document order. Empty hrefs are skipped and unparsable input
// yields nothing.
type HTML struct{}

const linkSelector = "a[href], area[href]"

func (HTML) Extract(content string) iter.Seq[string] {
	return func(yield func(string) bool) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return
		}
		doc.Find(linkSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href := strings.TrimSpace(sel.AttrOr("href", ""))
			if href == "" {
				return true
			}
			return yield(href)
		})
	}
}

var hrefPattern = regexp.MustCompile(`href=["']([^"']+)["']`)

// Regex scans for href="..." and href='...' attributes without parsing the
// markup. Matches are produced lazily, so stopping early skips the rest of
// the scan.
type Regex struct{}

func (Regex) Extract(content string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := content
		for {
			loc := hrefPattern.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			if !yield(rest[loc[2]:loc[3]]) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}
