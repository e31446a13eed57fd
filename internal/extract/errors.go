// Package extract turns raw HTML and feed bodies into article candidates.
// It fetches pages through an SSRF-safe client and exposes readability-style
// extraction, link discovery, and RSS/Atom parsing.
package extract

import "errors"

var (
	ErrInvalidURL       = errors.New("extract: invalid url")
	ErrPrivateIP        = errors.New("extract: url resolves to a private ip")
	ErrTooManyRedirects = errors.New("extract: too many redirects")
	ErrTimeout          = errors.New("extract: request timed out")
	ErrBodyTooLarge     = errors.New("extract: response body too large")
	ErrFetchFailed      = errors.New("extract: fetch failed")
	ErrNoContent        = errors.New("extract: no extractable content")
)
