package extract

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedItem is a single entry pulled from an RSS or Atom feed.
type FeedItem struct {
	Title       string
	URL         string
	Description string
	PublishedAt time.Time
}

// ExtractRSS parses an RSS/Atom document, using feed item content when
// present and falling back to its description otherwise.
func ExtractRSS(body []byte) []FeedItem {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it.Link == "" || it.Title == "" {
			continue
		}

		publishedAt := time.Now()
		if it.PublishedParsed != nil {
			publishedAt = *it.PublishedParsed
		}

		description := strings.TrimSpace(it.Content)
		if description == "" {
			description = strings.TrimSpace(it.Description)
		}

		items = append(items, FeedItem{
			Title:       strings.TrimSpace(it.Title),
			URL:         it.Link,
			Description: description,
			PublishedAt: publishedAt,
		})
	}

	return items
}

// FetchRSS fetches a feed URL through the SSRF-safe client and parses it.
func (c *Client) FetchRSS(ctx context.Context, feedURL string) ([]FeedItem, error) {
	_, body, err := c.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return ExtractRSS(body), nil
}
