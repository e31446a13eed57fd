// Package crawl is the crawler pipeline (C5): per-source fetch, extract,
// dedupe-by-URL, embed, and upsert, with a best-effort retention sweep
// before every insert attempt.
package crawl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cgast/embird/internal/domain/entity"
	"github.com/cgast/embird/internal/extract"
)

// Extractor is the subset of C2 the crawler drives.
type Extractor interface {
	FetchRSS(ctx context.Context, feedURL string) ([]extract.FeedItem, error)
	FetchLinks(ctx context.Context, pageURL string) ([]extract.LinkCandidate, error)
	FetchArticle(ctx context.Context, pageURL string) (extract.ArticleContent, bool, error)
}

// Embedder is the subset of C1 the crawler drives.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the subset of C3 the crawler drives.
type Store interface {
	Exists(ctx context.Context, url string) (bool, error)
	UpsertByURL(ctx context.Context, article entity.Article) (entity.ArticleUpsertResult, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOverflow(ctx context.Context, maxRows int64) (int64, error)
}

// Config mirrors the environment-driven knobs in §5/§4.C5.
type Config struct {
	MaxConcurrentRequests int
	RequestTimeout        time.Duration
	EmbedTitleOnly        bool
	RetentionDays         int
	MaxItems              int64
}

// Stats is emitted at the end of every crawl cycle, logged and exported as
// Prometheus counters/histograms by the caller.
type Stats struct {
	Sources          int
	FeedItems        int
	Inserted         int
	Duplicated       int
	ExtractionErrors int
	EmbeddingErrors  int
	Duration         time.Duration
}

// Pipeline runs one crawl cycle across the registered sources.
type Pipeline struct {
	extractor Extractor
	embedder  Embedder
	store     Store
	config    Config
}

func New(extractor Extractor, embedder Embedder, store Store, config Config) *Pipeline {
	return &Pipeline{extractor: extractor, embedder: embedder, store: store, config: config}
}

// RunSource crawls a single registered source and folds its outcome into
// stats. Per-source failures (e.g. feed unreachable) are logged and do not
// propagate — the caller isolates sources by calling RunSource per entry.
func (p *Pipeline) RunSource(ctx context.Context, source entity.SourceEntry, stats *Stats) {
	p.sweepRetention(ctx)

	items, err := p.collectItems(ctx, source)
	if err != nil {
		slog.Warn("crawl: source fetch failed",
			slog.String("url", source.URL),
			slog.String("type", string(source.Type)),
			slog.Any("error", err))
		return
	}

	stats.FeedItems += len(items)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.config.MaxConcurrentRequests)

	for _, item := range items {
		item := item
		group.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-groupCtx.Done():
				return nil
			}
			defer func() { <-sem }()

			outcome := p.processItem(groupCtx, source, item)

			mu.Lock()
			applyOutcome(stats, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
}

type itemOutcome int

const (
	outcomeInserted itemOutcome = iota
	outcomeDuplicated
	outcomeExtractionError
	outcomeEmbeddingError
)

func applyOutcome(stats *Stats, outcome itemOutcome) {
	switch outcome {
	case outcomeInserted:
		stats.Inserted++
	case outcomeDuplicated:
		stats.Duplicated++
	case outcomeExtractionError:
		stats.ExtractionErrors++
	case outcomeEmbeddingError:
		stats.EmbeddingErrors++
	}
}

// crawlItem is the (title, link) pair common to both RSS entries and
// homepage link candidates.
type crawlItem struct {
	title string
	url   string
}

func (p *Pipeline) collectItems(ctx context.Context, source entity.SourceEntry) ([]crawlItem, error) {
	switch source.Type {
	case entity.SourceTypeRSS:
		feedItems, err := p.extractor.FetchRSS(ctx, source.URL)
		if err != nil {
			return nil, err
		}
		items := make([]crawlItem, 0, len(feedItems))
		for _, fi := range feedItems {
			items = append(items, crawlItem{title: fi.Title, url: fi.URL})
		}
		return items, nil
	case entity.SourceTypeHomepage:
		links, err := p.extractor.FetchLinks(ctx, source.URL)
		if err != nil {
			return nil, err
		}
		items := make([]crawlItem, 0, len(links))
		for _, l := range links {
			items = append(items, crawlItem{title: l.Title, url: l.URL})
		}
		return items, nil
	default:
		return nil, errors.New("crawl: unknown source type")
	}
}

// processItem fetches, extracts, embeds, and upserts a single item. A URL
// already known to the store is a re-sighting: it is not re-fetched or
// re-embedded, only its hit_count/last_seen_at are bumped.
func (p *Pipeline) processItem(ctx context.Context, source entity.SourceEntry, item crawlItem) itemOutcome {
	known, err := p.store.Exists(ctx, item.url)
	if err != nil {
		slog.Warn("crawl: existence check failed, proceeding as new", slog.String("url", item.url), slog.Any("error", err))
	} else if known {
		return p.resight(ctx, item.url)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	content, ok, err := p.extractor.FetchArticle(reqCtx, item.url)
	if err != nil || !ok {
		slog.Debug("crawl: extraction failed", slog.String("url", item.url), slog.Any("error", err))
		return outcomeExtractionError
	}

	title := content.Title
	if title == "" {
		title = item.title
	}

	embedInput := title
	if !p.config.EmbedTitleOnly && content.Summary != "" {
		embedInput = title + ". " + content.Summary
	}

	vector, err := p.embedder.Embed(reqCtx, embedInput)
	if err != nil {
		slog.Debug("crawl: embedding failed", slog.String("url", item.url), slog.Any("error", err))
		return outcomeEmbeddingError
	}

	now := time.Now()
	result, err := p.store.UpsertByURL(ctx, entity.Article{
		Title:       title,
		URL:         item.url,
		Summary:     content.Summary,
		SourceURL:   source.URL,
		FirstSeenAt: now,
		LastSeenAt:  now,
		HitCount:    1,
		Embedding:   vector,
	})
	if err != nil {
		slog.Warn("crawl: upsert failed", slog.String("url", item.url), slog.Any("error", err))
		return outcomeExtractionError
	}

	if result.Inserted {
		return outcomeInserted
	}
	return outcomeDuplicated
}

// resight bumps hit_count/last_seen_at for a URL already known to the store,
// without fetching or embedding anything.
func (p *Pipeline) resight(ctx context.Context, url string) itemOutcome {
	now := time.Now()
	if _, err := p.store.UpsertByURL(ctx, entity.Article{URL: url, FirstSeenAt: now, LastSeenAt: now, HitCount: 1}); err != nil {
		slog.Warn("crawl: re-sight update failed", slog.String("url", url), slog.Any("error", err))
		return outcomeExtractionError
	}
	return outcomeDuplicated
}

// sweepRetention deletes aged-out and overflow rows best-effort: failures
// are logged and never abort the insert that follows.
func (p *Pipeline) sweepRetention(ctx context.Context) {
	if p.config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
		if _, err := p.store.DeleteOlderThan(ctx, cutoff); err != nil {
			slog.Warn("crawl: retention sweep by age failed", slog.Any("error", err))
		}
	}
	if p.config.MaxItems > 0 {
		if _, err := p.store.DeleteOverflow(ctx, p.config.MaxItems); err != nil {
			slog.Warn("crawl: retention sweep by count failed", slog.Any("error", err))
		}
	}
}
