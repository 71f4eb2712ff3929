package analysis

import (
	"trustcheck-backend/internal/claims"
	"trustcheck-backend/internal/corpus"
	"trustcheck-backend/internal/identity"
	"trustcheck-backend/internal/registry"
)

// Per-stage result types. Each stage produces exactly one of these and later
// stages only read what earlier stages wrote, so the report is an explicit
// record of what each step found rather than a loose bag of fields.

// CleanResult is the cleaning stage output.
type CleanResult struct {
	Text         string `json:"text"`
	UsedFallback bool   `json:"usedFallback"`
}

// ExtractResult is the stock extraction stage output.
type ExtractResult struct {
	Stocks []string `json:"stocks"`
}

// StockVerification pairs one registry lookup with its per-entity error, if
// any. A failed lookup never blocks the sibling entries.
type StockVerification struct {
	Check registry.StockCheck `json:"check"`
	Error string              `json:"error,omitempty"`
}

// VerifyResult is the registry verification stage output.
type VerifyResult struct {
	Entries []StockVerification `json:"entries"`
}

// RetrieveResult is the disclosure retrieval stage output.
type RetrieveResult struct {
	Query   string         `json:"query"`
	Matches []corpus.Match `json:"matches"`
}

// SearchOutcome is one web search result or its error marker.
type SearchOutcome struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// CompareResult is the temporal comparison stage output. For recent uploads
// the historical result set doubles as the current one and SearchSkipped is
// set.
type CompareResult struct {
	Claims          []claims.Claim           `json:"claims"`
	DaysSinceUpload int                      `json:"daysSinceUpload"`
	SearchSkipped   bool                     `json:"searchSkipped"`
	Historical      map[string]SearchOutcome `json:"historical"`
	Current         map[string]SearchOutcome `json:"current"`
}

// IdentityResult is the uploader verification stage output. Violations are
// collected only for quasi-advisory operators.
type IdentityResult struct {
	Verification identity.Verification `json:"verification"`
	Violations   []identity.Violation  `json:"violations,omitempty"`
}

// Report is the final structured credibility report.
type Report struct {
	Cleaning     CleanResult    `json:"cleaning"`
	Stocks       ExtractResult  `json:"stocks"`
	Verification VerifyResult   `json:"verification"`
	Retrieval    RetrieveResult `json:"retrieval"`
	Comparison   CompareResult  `json:"comparison"`
	Identity     IdentityResult `json:"identity"`
	Summary      string         `json:"summary"`
}
