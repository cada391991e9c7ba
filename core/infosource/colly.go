package infosource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/cixtor/readability"
	"github.com/gocolly/colly/v2"
	html2text "github.com/jaytaylor/html2text"

	"github.com/m3rciful/hackbot/core/buildinfo"
	coreconfig "github.com/m3rciful/hackbot/core/config"
	"github.com/m3rciful/hackbot/core/logger"
)

// Scraper extracts topic passages from a single configured page.
type Scraper struct {
	url       string
	selectors map[Topic]string
	limit     int
	userAgent string
	cacheDir  string
	client    *http.Client
}

// New builds a Scraper from config. A nil client selects http.DefaultClient.
func New(cfg coreconfig.InfoSourceConfig, client *http.Client) *Scraper {
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = buildinfo.UserAgent()
	}
	return &Scraper{
		url: cfg.BaseURL,
		selectors: map[Topic]string{
			TopicGeneral: cfg.Selectors.Info,
			TopicHack:    cfg.Selectors.Hack,
		},
		limit:     cfg.Limit,
		userAgent: ua,
		cacheDir:  cfg.CacheDir,
		client:    client,
	}
}

// Fetch returns the plain-text passage for topic. When the selector matches
// several nodes, the one sharing the most words with hint wins.
func (s *Scraper) Fetch(ctx context.Context, topic Topic, hint string) (string, error) {
	start := time.Now()
	selector, ok := s.selectors[topic]
	if !ok || selector == "" {
		return "", fmt.Errorf("%w: no selector for topic %q", ErrRetrieval, topic.Value)
	}

	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
	}
	if s.cacheDir != "" {
		if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
			logger.Warn(ctx, "info", "cache.unavailable",
				slog.String("dir", s.cacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			opts = append(opts, colly.CacheDir(s.cacheDir))
		}
	}
	c := colly.NewCollector(opts...)
	if s.client != nil {
		c.SetClient(s.client)
	}

	var (
		candidates []candidate
		parseErr   error
	)
	if selector == SelectorReader {
		c.OnHTML("html", func(e *colly.HTMLElement) {
			out, err := readerContent(e.DOM, e.Request.URL.String())
			if err != nil {
				parseErr = errors.Join(parseErr, err)
				return
			}
			candidates = append(candidates, candidate{html: out})
		})
	} else {
		c.OnHTML(selector, func(e *colly.HTMLElement) {
			out, err := e.DOM.Html()
			if err != nil {
				parseErr = errors.Join(parseErr, err)
				return
			}
			candidates = append(candidates, candidate{html: out, text: e.Text})
		})
	}

	if err := c.Visit(s.url); err != nil {
		s.logFetch(ctx, topic, start, 0, err)
		return "", fmt.Errorf("%w: visit %s: %w", ErrRetrieval, s.url, err)
	}
	if len(candidates) == 0 {
		err := fmt.Errorf("%w: no node for topic %q", ErrRetrieval, topic.Value)
		if parseErr != nil {
			err = fmt.Errorf("%w: %w", err, parseErr)
		}
		s.logFetch(ctx, topic, start, 0, err)
		return "", err
	}

	text, err := sanitize(bestMatch(candidates, hint), s.limit)
	if err == nil && text == "" {
		err = fmt.Errorf("%w: empty node for topic %q", ErrRetrieval, topic.Value)
	}
	s.logFetch(ctx, topic, start, len(text), err)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (s *Scraper) logFetch(ctx context.Context, topic Topic, start time.Time, chars int, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("topic", topic.Value),
		slog.Int("chars", chars),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.Warn(ctx, "info", "fetch", attrs...)
		return
	}
	logger.Debug(ctx, "info", "fetch", attrs...)
}

func readerContent(doc *goquery.Selection, url string) (string, error) {
	doc.Find("script, style, nav, header, footer").Remove()

	el := doc.Find("article, main, #content, #main, .content, .main")
	if el.Length() == 0 {
		el = doc.Find("body")
		if el.Length() == 0 {
			return "", errors.New("no content found")
		}
	}
	html, err := el.Html()
	if err != nil {
		return "", err
	}
	article, err := readability.New().Parse(strings.NewReader(html), url)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return html, nil
	}
	return article.Content, nil
}

type candidate struct {
	html string
	text string
}

// bestMatch picks the candidate with the largest word overlap with hint,
// preferring earlier nodes on ties.
func bestMatch(candidates []candidate, hint string) string {
	if len(candidates) == 1 {
		return candidates[0].html
	}
	want := words(hint)
	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		for w := range words(c.text) {
			if _, ok := want[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best].html
}

func words(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) >= 4 {
			out[f] = struct{}{}
		}
	}
	return out
}

func sanitize(html string, limit int) (string, error) {
	t, err := html2text.FromString(html, html2text.Options{OmitLinks: true})
	if err != nil {
		return "", fmt.Errorf("%w: html2text: %w", ErrRetrieval, err)
	}
	t = strings.TrimSpace(strings.ReplaceAll(t, "```", " "))
	if limit > 0 {
		if r := []rune(t); len(r) > limit {
			t = strings.TrimSpace(string(r[:limit]))
		}
	}
	return t, nil
}
