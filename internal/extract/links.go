package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	minAnchorTextLength        = 5
	parentFallbackTextCeiling  = 10
	maxLinksPerPage            = 500
)

// LinkCandidate is a discovered same-site link with its anchor text.
type LinkCandidate struct {
	Title string
	URL   string
}

// ExtractLinks discovers homepage links worth crawling as articles. Relative
// hrefs are resolved against baseURL; only same-registrable-domain http(s)
// links survive, anchors shorter than minAnchorTextLength are dropped unless
// a parent element supplies a longer label, and results are deduped by
// (title, url).
func ExtractLinks(html []byte, baseURL *url.URL) []LinkCandidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	seen := map[string]struct{}{}
	var out []LinkCandidate

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(out) >= maxLinksPerPage {
			return false
		}

		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}

		resolved, err := baseURL.Parse(href)
		if err != nil {
			return true
		}
		resolved.Fragment = ""

		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if !sameRegistrableDomain(resolved.Hostname(), baseURL.Hostname()) {
			return true
		}

		text := strings.TrimSpace(a.Text())
		if len(text) < minAnchorTextLength {
			if parentText := strings.TrimSpace(a.Parent().Text()); len(parentText) >= parentFallbackTextCeiling {
				text = parentText
			}
		}
		if len(text) < minAnchorTextLength {
			return true
		}

		link := resolved.String()
		key := text + "\x00" + link
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}

		out = append(out, LinkCandidate{Title: text, URL: link})
		return true
	})

	return out
}
