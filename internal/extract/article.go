package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/utils/text"
)

const (
	minSummaryLength = 100
	maxSummaryLength = 2000
)

// boilerplateLines strips common share/subscribe/copyright noise that
// survives readability extraction on some sites.
var boilerplateLines = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(share|tweet|subscribe|sign up|follow us|advertisement)\b.*$`),
	regexp.MustCompile(`(?i)^\s*©.*\d{4}.*$`),
	regexp.MustCompile(`(?i)^\s*all rights reserved.*$`),
	regexp.MustCompile(`(?i)^\s*read more:.*$`),
}

// ArticleContent is the parsed result of extracting a single page.
type ArticleContent struct {
	Title   string
	Summary string
}

// ExtractArticle parses html retrieved from pageURL into a title and a
// boilerplate-stripped, length-capped summary. It tries a readability-style
// extraction first and falls back to a largest-text-block heuristic when the
// result is too thin to be useful.
func ExtractArticle(html []byte, pageURL *url.URL) (ArticleContent, bool) {
	var title, summary string

	if article, err := readability.FromReader(bytes.NewReader(html), pageURL); err == nil {
		title = strings.TrimSpace(article.Title)
		summary = strings.TrimSpace(article.TextContent)
		if summary == "" {
			summary = strings.TrimSpace(article.Content)
		}
	}

	if len(summary) < minSummaryLength {
		if fallbackTitle, fallbackSummary, ok := extractLargestTextBlock(html); ok {
			if title == "" {
				title = fallbackTitle
			}
			if len(fallbackSummary) > len(summary) {
				summary = fallbackSummary
			}
		}
	}

	summary = stripBoilerplate(summary)
	summary = capSummary(summary)

	if title == "" || summary == "" {
		return ArticleContent{}, false
	}

	return ArticleContent{Title: title, Summary: summary}, true
}

// extractLargestTextBlock is the secondary extractor: it picks the <p>-tag
// cluster with the most combined text under the same ancestor container.
func extractLargestTextBlock(html []byte) (title, summary string, ok bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", false
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	type block struct {
		text string
		len  int
	}
	byParent := map[*html.Node]*block{}
	var order []*html.Node

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if text == "" {
			return
		}
		parentNodes := p.Parent().Nodes
		if len(parentNodes) == 0 {
			return
		}
		parent := parentNodes[0]
		b, exists := byParent[parent]
		if !exists {
			b = &block{}
			byParent[parent] = b
			order = append(order, parent)
		}
		b.text += text + " "
		b.len += len(text)
	})

	if len(order) == 0 {
		return title, "", false
	}

	sort.Slice(order, func(i, j int) bool {
		return byParent[order[i]].len > byParent[order[j]].len
	})

	best := byParent[order[0]]
	return title, strings.TrimSpace(best.text), best.len > 0
}

func stripBoilerplate(summary string) string {
	lines := strings.Split(summary, "\n")
	kept := lines[:0]
	for _, line := range lines {
		drop := false
		for _, re := range boilerplateLines {
			if re.MatchString(line) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// capSummary bounds a summary by rune count, not byte count, so multi-byte
// text (Japanese, Chinese, emoji) isn't truncated mid-character.
func capSummary(summary string) string {
	if text.CountRunes(summary) <= maxSummaryLength {
		return summary
	}
	runes := []rune(summary)
	truncated := string(runes[:maxSummaryLength])
	if idx := strings.LastIndexByte(truncated, ' '); idx > maxSummaryLength/2 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}

// ToArticle builds the domain entity from extracted content and the source's
// registry URL, leaving timestamps and embedding for the caller to fill in.
func ToArticle(content ArticleContent, pageURL, sourceURL string) entity.Article {
	return entity.Article{
		Title:     content.Title,
		URL:       pageURL,
		Summary:   content.Summary,
		SourceURL: sourceURL,
	}
}
