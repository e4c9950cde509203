// Package shl crawls the public SHL product catalog into catalog records.
package shl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL   = "https://www.shl.com"
	catalogPath      = "/solutions/products/product-catalog/"
	perPage          = 12
	maxPagesPerType  = 200
	maxResponseBytes = 8 << 20
)

// catalogTypes is the listing order: pre-packaged job solutions, then
// individual test solutions.
var catalogTypes = []int{2, 1}

type Config struct {
	BaseURL       string
	UserAgent     string
	Concurrency   int
	PageDelay     time.Duration
	Timeout       time.Duration
	RetryAttempts int
}

func (c Config) normalize() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "Mozilla/5.0"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.PageDelay < 0 {
		c.PageDelay = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 5
	}
	return c
}

type Scraper struct {
	cfg        Config
	httpClient *http.Client
	executor   *resilience.Executor
	classifier resilience.ErrorClassifier
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Scraper {
	cfg = cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   resilience.NewExecutor(resilience.ScraperConfig(cfg.RetryAttempts), resilience.WithLogger(logger)),
		classifier: resilience.HTTPClassifier(resilience.ScraperRetryableStatuses),
		logger:     logger,
	}
}

func (s *Scraper) Scrape(ctx context.Context) ([]domain.CatalogRecord, error) {
	var items []listingItem
	for _, t := range catalogTypes {
		batch, err := s.scrapeListing(ctx, t)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}

	items = uniqueByURL(items)
	s.logger.Info("catalog_listing_scraped", "items", len(items))

	records, err := s.scrapeDetails(ctx, items)
	if err != nil {
		return nil, err
	}
	s.logger.Info("catalog_scrape_completed", "records", len(records))
	return records, nil
}

func (s *Scraper) scrapeListing(ctx context.Context, catalogType int) ([]listingItem, error) {
	var out []listingItem
	for page := 0; page < maxPagesPerType; page++ {
		start := page * perPage
		url := fmt.Sprintf("%s%s?type=%d&start=%d", s.cfg.BaseURL, catalogPath, catalogType, start)

		body, err := s.fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch listing type=%d start=%d: %w", catalogType, start, err)
		}
		batch, err := parseListing(bytes.NewReader(body), s.cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("listing type=%d start=%d: %w", catalogType, start, err)
		}
		if len(batch) == 0 {
			break
		}
		out = append(out, batch...)
		s.logger.Info("catalog_listing_page", "type", catalogType, "start", start, "items", len(batch))

		if err := sleepCtx(ctx, s.cfg.PageDelay); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// scrapeDetails fetches detail pages on a bounded pool. Output keeps listing
// order; a failed detail page yields a degraded record.
func (s *Scraper) scrapeDetails(ctx context.Context, items []listingItem) ([]domain.CatalogRecord, error) {
	pool, err := ants.NewPool(s.cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("create scrape pool: %w", err)
	}
	defer pool.Release()

	records := make([]domain.CatalogRecord, len(items))
	if err := runIndexed(pool.Submit, len(items), func(i int) {
		records[i] = s.scrapeDetail(ctx, items[i])
	}); err != nil {
		return nil, fmt.Errorf("submit detail scrape: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// runIndexed submits task(0..n-1) and waits for every accepted task, also
// when a later submit fails.
func runIndexed(submit func(func()) error, n int, task func(int)) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for i := 0; i < n; i++ {
		wg.Add(1)
		if err := submit(func() {
			defer wg.Done()
			task(i)
		}); err != nil {
			wg.Done()
			return err
		}
	}
	return nil
}

func (s *Scraper) scrapeDetail(ctx context.Context, item listingItem) domain.CatalogRecord {
	d, err := s.fetchDetail(ctx, item.URL)
	if err != nil {
		s.logger.Warn("catalog_detail_degraded", "url", item.URL, "error", err)
		d = detail{
			RemoteTesting: domain.No,
			Adaptive:      domain.No,
			TestTypes:     domain.LabelsForCodes(item.Codes),
		}
	}

	rec := domain.CatalogRecord{
		Name:          item.Name,
		URL:           item.URL,
		Description:   d.Description,
		Duration:      d.Duration,
		RemoteTesting: d.RemoteTesting,
		Adaptive:      d.Adaptive,
		TestTypes:     d.TestTypes,
	}
	if len(rec.TestTypes) > 0 {
		rec.PrimaryType = rec.TestTypes[0]
	}
	return rec
}

func (s *Scraper) fetchDetail(ctx context.Context, url string) (detail, error) {
	body, err := s.fetch(ctx, url)
	if err != nil {
		return detail{}, err
	}
	return parseDetail(bytes.NewReader(body))
}

func (s *Scraper) fetch(ctx context.Context, url string) ([]byte, error) {
	return resilience.Do(ctx, s.executor, "catalog_fetch", func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &resilience.HTTPStatusError{
				Service:    "catalog",
				Operation:  "get",
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(raw),
			}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	}, s.classifier)
}

func uniqueByURL(items []listingItem) []listingItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]listingItem, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.URL]; ok {
			continue
		}
		seen[it.URL] = struct{}{}
		out = append(out, it)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
