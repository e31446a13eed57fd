package extract

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cgast/embird/internal/resilience/circuitbreaker"
	"github.com/cgast/embird/internal/resilience/retry"
)

// ClientConfig controls the SSRF-safe fetch path shared by article and
// homepage-link extraction.
type ClientConfig struct {
	Timeout        time.Duration
	MaxBodySize    int64
	MaxRedirects   int
	DenyPrivateIPs bool
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Client fetches page bodies with SSRF prevention, a circuit breaker, and a
// body-size ceiling, following the crawl-path fetcher's security posture.
type Client struct {
	http           *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	config         ClientConfig
}

func NewClient(config ClientConfig) *Client {
	c := &Client{
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		config:         config,
	}

	c.http = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), c.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target rejected: %w", err)
			}
			return nil
		},
	}

	return c
}

// Fetch retrieves the body at urlStr, validating against SSRF targets and
// enforcing a response size ceiling. Returns the final resolved URL (after
// redirects) and the raw bytes.
func (c *Client) Fetch(ctx context.Context, urlStr string) (*url.URL, []byte, error) {
	if err := validateURL(urlStr, c.config.DenyPrivateIPs); err != nil {
		return nil, nil, err
	}

	var r fetchResult
	err := retry.WithBackoff(ctx, retry.WebScraperConfig(), func() error {
		result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doFetch(ctx, urlStr)
		})
		if err != nil {
			return err
		}
		r = result.(fetchResult)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return r.finalURL, r.body, nil
}

// FetchArticle fetches pageURL and extracts its title/summary.
func (c *Client) FetchArticle(ctx context.Context, pageURL string) (ArticleContent, bool, error) {
	finalURL, body, err := c.Fetch(ctx, pageURL)
	if err != nil {
		return ArticleContent{}, false, err
	}
	content, ok := ExtractArticle(body, finalURL)
	return content, ok, nil
}

// FetchLinks fetches pageURL and discovers same-domain article links.
func (c *Client) FetchLinks(ctx context.Context, pageURL string) ([]LinkCandidate, error) {
	finalURL, body, err := c.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ExtractLinks(body, finalURL), nil
}

type fetchResult struct {
	finalURL *url.URL
	body     []byte
}

func (c *Client) doFetch(ctx context.Context, urlStr string) (interface{}, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", "EmbirdCrawler/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: exceeded %v", ErrTimeout, c.config.Timeout)
		}
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return nil, urlErr.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status})
	}

	limited := io.LimitReader(resp.Body, c.config.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > c.config.MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrBodyTooLarge, len(body), c.config.MaxBodySize)
	}

	finalURL, parseErr := url.Parse(urlStr)
	if parseErr != nil {
		finalURL = nil
	}
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	return fetchResult{finalURL: finalURL, body: bytes.TrimSpace(body)}, nil
}
