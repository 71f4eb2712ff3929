package claims

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"trustcheck-backend/internal/llm"
)

// minClaimLength drops fragments too short to be checkable statements.
const minClaimLength = 3

// Claim is a short time-sensitive statement extracted for fact-checking.
type Claim struct {
	Text        string `json:"text"`
	SearchQuery string `json:"searchQuery"`
}

// Extractor mines claims from a transcript via the LLM collaborator and
// turns them into deduplicated search-ready claims.
type Extractor struct {
	LLM llm.Client
}

// Extract returns the deduplicated claims found in script. stocks is the
// list of recommended stock names already extracted; the first entry may be
// used to scope a claim's search query.
func (e *Extractor) Extract(ctx context.Context, script string, stocks []string) ([]Claim, error) {
	system, user := llm.ClaimExtractionPrompts(script)
	raw, err := e.LLM.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("claim extraction: %w", err)
	}
	candidates := llm.ParseDelimitedList(raw, llm.ClaimListMarker)
	return Build(candidates, stocks), nil
}

// Build normalizes, deduplicates, and attaches search queries to candidate
// claims. Order of first occurrence is preserved.
func Build(candidates, stocks []string) []Claim {
	out := make([]Claim, 0, len(candidates))
	for _, text := range Dedup(candidates) {
		out = append(out, Claim{
			Text:        text,
			SearchQuery: searchQuery(text, stocks),
		})
	}
	return out
}

// Dedup removes duplicate candidates by trimmed, case-folded key and drops
// entries at or below the minimum claim length. The first occurrence wins
// and input order is preserved.
func Dedup(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, raw := range candidates {
		trimmed := strings.TrimSpace(raw)
		if utf8.RuneCountInString(trimmed) <= minClaimLength {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// marketTerms is the relevance lexicon: a claim mentioning one of these is
// assumed to be about the recommended stock and gets the stock name prefixed
// to its search query.
var marketTerms = []string{
	"주가", "주식", "상승", "하락", "급등", "급락",
	"거래량", "시가총액", "시총", "매수", "매도",
	"투자", "수익률", "차트", "공시", "실적",
	"영업이익", "목표가", "배당", "유상증자", "무상증자",
	"상장", "테마", "섹터",
}

func searchQuery(claim string, stocks []string) string {
	if len(stocks) == 0 {
		return claim
	}
	lower := strings.ToLower(claim)
	for _, term := range marketTerms {
		if strings.Contains(lower, term) {
			return stocks[0] + " " + claim
		}
	}
	return claim
}
