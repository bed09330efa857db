package crawler

import "errors"

var (
	// ErrFetchFailed marks a transport error, timeout or non-success status.
	// The URL stays visited and is not retried.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrInvalidURL marks a malformed seed or an unparsable link.
	ErrInvalidURL = errors.New("invalid url")
	// ErrOffDomain marks a link outside the base-domain restriction.
	ErrOffDomain = errors.New("off-domain url")
	// ErrNotNavigational marks anchors, non-http schemes and script tokens.
	ErrNotNavigational = errors.New("not a navigational link")
)

// dropReason maps a normalization error to a metric label.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrOffDomain):
		return "off_domain"
	case errors.Is(err, ErrNotNavigational):
		return "not_navigational"
	case errors.Is(err, ErrInvalidURL):
		return "invalid"
	default:
		return "other"
	}
}
