package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const pageFetchTimeout = 30 * time.Second

// PageContextService fetches web pages and extracts readable text for
// use as prompt reference material.
type PageContextService struct {
	logger *slog.Logger
}

// NewPageContextService creates a new page context service.
func NewPageContextService(logger *slog.Logger) *PageContextService {
	return &PageContextService{logger: logger}
}

// Fetch downloads a page and returns its visible text content. Only
// http and https URLs are accepted.
func (s *PageContextService) Fetch(ctx context.Context, targetURL string) (string, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	var parts []string

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(pageFetchTimeout)

	c.OnHTML("title", func(e *colly.HTMLElement) {
		if t := strings.TrimSpace(e.Text); t != "" {
			parts = append(parts, t)
		}
	})

	// Readable body text; skips nav, scripts and styles.
	c.OnHTML("article, main, p, h1, h2, h3, li", func(e *colly.HTMLElement) {
		text := strings.TrimSpace(e.Text)
		if len(text) > 30 {
			parts = append(parts, text)
		}
	})

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})

	start := time.Now()
	if err := c.Visit(targetURL); err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	c.Wait()

	content := dedupeJoin(parts)
	s.logger.Debug("fetched page context",
		slog.String("url", targetURL),
		slog.Int("content_chars", len(content)),
		slog.Duration("duration", time.Since(start)))

	return content, nil
}

// dedupeJoin joins text fragments, dropping exact duplicates that come
// from nested selector matches.
func dedupeJoin(parts []string) string {
	seen := make(map[string]bool, len(parts))
	var b strings.Builder
	for _, p := range parts {
		if seen[p] {
			continue
		}
		seen[p] = true
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p)
	}
	return b.String()
}
