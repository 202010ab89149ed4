package service

import (
	"regexp"
	"sort"
	"strings"

	"app/internal/model"

	"github.com/shopspring/decimal"
)

// pricePatterns is the fixed, ordered set of currency matchers scanned over
// each listing. Amounts may carry thousands separators.
var pricePatterns = []*regexp.Regexp{
	// $1,299.99 / $ 19.99
	regexp.MustCompile(`\$\s*([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?)`),
	// 19.99 USD / 20 dollars
	regexp.MustCompile(`(?i)\b([0-9]+(?:\.[0-9]{1,2})?)\s*(?:USD|dollars?)\b`),
	// price: 19.99
	regexp.MustCompile(`(?i)\bprice:?\s*\$?\s*([0-9]+(?:\.[0-9]{1,2})?)`),
	// save $50 / was $80 / from $12 / starting at $99
	regexp.MustCompile(`(?i)\b(?:save|was|from|now|only|starting(?:\s+at)?)\s*:?\s*\$?\s*([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?)`),
}

// Candidate amounts outside [0.50, 10000) are discarded: below it sits
// clearance noise, above it typos and unrelated figures.
var (
	minCandidatePrice = decimal.RequireFromString("0.50")
	maxCandidatePrice = decimal.NewFromInt(10000)
)

type priceCandidate struct {
	amount  decimal.Decimal
	listing int
}

// ExtractPrice reduces search listings to a single price estimate. Every
// in-range amount across all listings becomes a candidate; the result is the
// lower median of the sorted candidates ([5,10,15,20] yields 10, not 12.5),
// which shrugs off clickbait outliers while staying deterministic. The
// second return value is false when no candidate was found.
func ExtractPrice(listings []model.SearchListing) (decimal.Decimal, bool) {
	var candidates []priceCandidate
	for i, listing := range listings {
		text := listing.Title + " " + listing.Snippet
		seen := make(map[string]bool)
		for _, pattern := range pricePatterns {
			for _, match := range pattern.FindAllStringSubmatch(text, -1) {
				raw := strings.ReplaceAll(match[1], ",", "")
				amount, err := decimal.NewFromString(raw)
				if err != nil {
					continue
				}
				if amount.Cmp(minCandidatePrice) < 0 || amount.Cmp(maxCandidatePrice) >= 0 {
					continue
				}
				// The patterns overlap; count each amount once per listing.
				if seen[amount.String()] {
					continue
				}
				seen[amount.String()] = true
				candidates = append(candidates, priceCandidate{amount: amount, listing: i})
			}
		}
	}

	if len(candidates) == 0 {
		return decimal.Decimal{}, false
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].amount.Cmp(candidates[b].amount) < 0
	})
	return candidates[(len(candidates)-1)/2].amount, true
}
