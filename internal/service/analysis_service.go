package service

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/fingerprint"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// defaultAssetIDs are the conversions computed when the caller does not name
// any assets.
var defaultAssetIDs = []string{"bitcoin", "ethereum", "solana", "dogecoin"}

// AnalysisService runs the full photo-to-price pipeline: quota gate,
// recognition, enrichment, price discovery with AI fallback, and crypto
// conversion.
type AnalysisService interface {
	Analyze(ctx context.Context, image []byte, signals fingerprint.Signals, assetIDs []string) (*model.AnalysisResult, error)
	Usage(ctx context.Context, signals fingerprint.Signals) *model.UsageStatus
}

type analysisService struct {
	usage       repository.UsageRepository
	recognition RecognitionClient
	enrichment  EnrichmentClient
	search      SearchClient
	market      MarketClient
	archive     ArchiveService   // nil when archiving is not configured
	publisher   pubsub.Publisher // nil when event publishing is not configured
	eventsTopic string
	maxPerDay   int
	logger      zerolog.Logger
}

// NewAnalysisService creates a new AnalysisService. archive and publisher
// may be nil; the corresponding side effects are then skipped.
func NewAnalysisService(
	usage repository.UsageRepository,
	recognition RecognitionClient,
	enrichment EnrichmentClient,
	search SearchClient,
	market MarketClient,
	archive ArchiveService,
	publisher pubsub.Publisher,
	eventsTopic string,
	maxPerDay int,
	logger zerolog.Logger,
) AnalysisService {
	return &analysisService{
		usage:       usage,
		recognition: recognition,
		enrichment:  enrichment,
		search:      search,
		market:      market,
		archive:     archive,
		publisher:   publisher,
		eventsTopic: eventsTopic,
		maxPerDay:   maxPerDay,
		logger:      logger.With().Str("service", "AnalysisService").Logger(),
	}
}

// Analyze runs one analysis for the client described by signals. The quota
// gate is always the first operation and the only one that mutates shared
// state, so a caller over quota costs no external calls. Recognition failure
// is terminal; every later stage degrades instead of aborting.
func (s *analysisService) Analyze(ctx context.Context, image []byte, signals fingerprint.Signals, assetIDs []string) (*model.AnalysisResult, error) {
	fp := fingerprint.Generate(signals)
	log := s.logger.With().Str("fingerprint", fp).Logger()

	// 1. Quota gate
	usageStatus, err := s.usage.CheckAndIncrement(ctx, fp, s.maxPerDay)
	if err != nil {
		return nil, err
	}

	// 2. Recognition — the only hard stop after the gate
	recognition, err := s.recognition.Recognize(ctx, image)
	if err != nil {
		log.Warn().Err(err).Msg("Recognition failed, aborting analysis")
		return nil, err
	}
	log.Debug().Str("top_label", recognition.TopLabel()).Int("labels", len(recognition.Labels)).Msg("Recognition complete")

	// 3. Enrichment — non-critical enhancement
	enrichment, err := s.enrichment.Enrich(ctx, image, recognition.LabelDescriptions())
	if err != nil {
		log.Warn().Err(err).Msg("Enrichment failed, continuing without it")
		enrichment = nil
	}

	// 4. Resolve the product name to price
	productName := recognition.TopLabel()
	if enrichment != nil && enrichment.ProductName != "" {
		productName = enrichment.ProductName
	}

	// 5. Price discovery via search
	var price *model.PriceEstimate
	listings, err := s.search.Search(ctx, productName)
	if err != nil {
		log.Warn().Err(err).Msg("Search failed, continuing without listings")
	} else if amount, ok := ExtractPrice(listings); ok {
		price = &model.PriceEstimate{Amount: amount, Source: model.PriceSourceSearch}
	}

	// 6. Fall back to the enrichment midpoint
	if price == nil && enrichment != nil && enrichment.PriceMin.IsPositive() && enrichment.PriceMax.IsPositive() {
		mid := enrichment.PriceMin.Add(enrichment.PriceMax).Div(decimal.NewFromInt(2))
		price = &model.PriceEstimate{Amount: mid, Source: model.PriceSourceAIEstimate}
	}

	// 7–8. Convert into the requested assets. A priceless analysis is still
	// a success; it just carries no conversions.
	conversions := map[string]model.CryptoConversion{}
	if price != nil {
		ids := assetIDs
		if len(ids) == 0 {
			ids = defaultAssetIDs
		}
		rates, err := s.market.GetRates(ctx, ids)
		if err != nil {
			log.Warn().Err(err).Msg("Market data unavailable, continuing without conversions")
		} else {
			for id, rate := range rates {
				if !rate.USDPrice.IsPositive() {
					continue
				}
				conversions[id] = model.CryptoConversion{
					AssetID:         id,
					USDUnitPrice:    rate.USDPrice,
					ConvertedAmount: price.Amount.Div(rate.USDPrice),
					SourceUSDAmount: price.Amount,
				}
			}
		}
	}

	// 9. Assemble
	result := &model.AnalysisResult{
		Recognition: recognition,
		Enrichment:  enrichment,
		Price:       price,
		Conversions: conversions,
		Usage:       *usageStatus,
		AnalyzedAt:  time.Now().UTC(),
	}

	s.archiveImage(ctx, log, fp, image)
	s.publishEvent(ctx, log, fp, productName, result)

	return result, nil
}

// Usage reports the quota snapshot for the client without recording a use.
func (s *analysisService) Usage(ctx context.Context, signals fingerprint.Signals) *model.UsageStatus {
	return s.usage.PeekUsage(ctx, fingerprint.Generate(signals), s.maxPerDay)
}

func (s *analysisService) archiveImage(ctx context.Context, log zerolog.Logger, fp string, image []byte) {
	if s.archive == nil {
		return
	}
	key, err := s.archive.Store(ctx, fp, image)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to archive analyzed image")
		return
	}
	log.Debug().Str("key", key).Msg("Archived analyzed image")
}

type analysisEvent struct {
	Fingerprint string    `json:"fingerprint"`
	ProductName string    `json:"product_name"`
	PriceSource string    `json:"price_source,omitempty"`
	PriceUSD    string    `json:"price_usd,omitempty"`
	Conversions int       `json:"conversions"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

func (s *analysisService) publishEvent(ctx context.Context, log zerolog.Logger, fp, productName string, result *model.AnalysisResult) {
	if s.publisher == nil {
		return
	}
	event := analysisEvent{
		Fingerprint: fp,
		ProductName: productName,
		Conversions: len(result.Conversions),
		AnalyzedAt:  result.AnalyzedAt,
	}
	if result.Price != nil {
		event.PriceSource = result.Price.Source
		event.PriceUSD = result.Price.Amount.String()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal analysis event")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.eventsTopic, payload); err != nil {
		log.Warn().Err(err).Str("topic", s.eventsTopic).Msg("Failed to publish analysis event")
	}
}
