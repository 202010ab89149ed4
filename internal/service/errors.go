package service

import "errors"

// Typed outcomes for the external clients. The orchestrator only ever sees
// these; raw transport errors never escape a client boundary.
var (
	// ErrRecognitionUnavailable covers vision transport/service failures and
	// the zero-label case — there is nothing to price, terminal for the analysis.
	ErrRecognitionUnavailable = errors.New("recognition_unavailable")
	// ErrEnrichmentUnavailable covers enrichment transport and non-2xx failures.
	ErrEnrichmentUnavailable = errors.New("enrichment_unavailable")
	// ErrSearchUnavailable covers web search transport/service failures.
	ErrSearchUnavailable = errors.New("search_unavailable")
	// ErrMarketDataUnavailable covers market data transport/service failures.
	ErrMarketDataUnavailable = errors.New("market_data_unavailable")
)
