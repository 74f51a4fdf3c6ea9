// Package enrich fetches an event's source page for extra context. Strictly
// best effort: callers fall back to the original content on any failure.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	httpclient "NewsPulse/pkg/http"
	"NewsPulse/pkg/logger"
)

// Config holds enrichment settings.
type Config struct {
	Timeout  time.Duration
	MaxChars int
}

// Client implements repository.Enricher with a plain page fetch and crude
// tag stripping. Real crawling sophistication is out of scope.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *logger.Logger
}

// New creates an enricher.
func New(cfg Config, lgr *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 6000
	}
	return &Client{
		cfg:    cfg,
		http:   httpclient.NewClient(httpclient.WithTimeout(cfg.Timeout)),
		logger: lgr,
	}
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Enrich fetches link and returns its visible text, truncated.
func (c *Client) Enrich(ctx context.Context, link string) (string, error) {
	if link == "" {
		return "", fmt.Errorf("enrich: empty link")
	}

	var body []byte
	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodGet,
		URL:    link,
	}, &body)
	if err != nil {
		return "", fmt.Errorf("enrich fetch: %w", err)
	}

	text := stripTags(string(body))
	if text == "" {
		return "", fmt.Errorf("enrich: page has no visible text")
	}
	if len(text) > c.cfg.MaxChars {
		text = text[:c.cfg.MaxChars]
	}

	c.logger.Debug("page enriched",
		logger.String("link", link),
		logger.Int("chars", len(text)))
	return text, nil
}

func stripTags(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
