package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
)

// IngestCatalogUseCase scrapes the remote catalog and replaces the stored
// record list. Downstream rebuilds are triggered through the queue when one
// is configured.
type IngestCatalogUseCase struct {
	scraper ports.CatalogScraper
	sinks   []ports.CatalogSink
	queue   ports.MessageQueue
	logger  *slog.Logger
}

func NewIngestCatalogUseCase(
	scraper ports.CatalogScraper,
	sinks []ports.CatalogSink,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *IngestCatalogUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestCatalogUseCase{
		scraper: scraper,
		sinks:   sinks,
		queue:   queue,
		logger:  logger,
	}
}

func (uc *IngestCatalogUseCase) Ingest(ctx context.Context) ([]domain.CatalogRecord, error) {
	if len(uc.sinks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest catalog", errors.New("no catalog sink configured"))
	}

	raw, err := uc.scraper.Scrape(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape catalog: %w", err)
	}
	records, err := domain.NormalizeRecords(dedupeByURL(raw))
	if err != nil {
		return nil, fmt.Errorf("normalize scraped records: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.WrapError(domain.ErrTemporary, "ingest catalog", errors.New("scraper returned no records"))
	}

	for _, sink := range uc.sinks {
		if err := sink.SaveRecords(ctx, records); err != nil {
			return nil, fmt.Errorf("save catalog records: %w", err)
		}
	}

	if uc.queue != nil {
		if err := uc.queue.PublishCatalogIngested(ctx, len(records)); err != nil {
			return nil, fmt.Errorf("publish ingestion event: %w", err)
		}
	}

	uc.logger.Info("catalog_ingested", "records", len(records), "sinks", len(uc.sinks), "event_published", uc.queue != nil)
	return records, nil
}

// dedupeByURL keeps the first occurrence of each URL in order.
func dedupeByURL(records []domain.CatalogRecord) []domain.CatalogRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.CatalogRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.URL]; ok {
			continue
		}
		seen[rec.URL] = struct{}{}
		out = append(out, rec)
	}
	return out
}
