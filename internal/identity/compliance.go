package identity

import "strings"

// Severities attached to compliance violations.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Violation rule identifiers.
const (
	RuleOneOnOneAdvice    = "one_on_one_advice"
	RuleGuaranteedReturns = "guaranteed_returns"
	RuleAbsoluteCertainty = "absolute_certainty"
	RuleExaggeratedAds    = "exaggerated_advertising"
	RuleMissingDisclosure = "missing_disclosure"
)

// Violation is one compliance rule match with its severity.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Matched  string `json:"matched,omitempty"`
}

type keywordRule struct {
	rule     string
	severity string
	keywords []string
}

// Quasi-advisory operators may not solicit individual paid consultation or
// promise returns; these patterns flag the common phrasings.
var keywordRules = []keywordRule{
	{
		rule:     RuleOneOnOneAdvice,
		severity: SeverityHigh,
		keywords: []string{"1:1", "일대일", "개별 상담", "리딩방", "단톡방", "오픈채팅", "비밀방"},
	},
	{
		rule:     RuleGuaranteedReturns,
		severity: SeverityHigh,
		keywords: []string{"수익 보장", "원금 보장", "손실 보전", "무조건 수익", "100% 수익", "따상 보장"},
	},
	{
		rule:     RuleAbsoluteCertainty,
		severity: SeverityMedium,
		keywords: []string{"무조건 오릅니다", "확실합니다", "100% 확실", "틀림없습니다", "반드시 갑니다"},
	},
	{
		rule:     RuleExaggeratedAds,
		severity: SeverityMedium,
		keywords: []string{"업계 1위", "적중률", "최고 수익률", "수익 인증"},
	},
}

// disclosureMarkers is the mandatory-notice vocabulary. If none of these
// appear anywhere in the transcript the missing-disclosure rule fires.
var disclosureMarkers = []string{
	"투자의 책임",
	"투자 판단",
	"손실이 발생할 수",
	"투자자 본인",
	"원금 손실",
}

// ScanViolations runs the fixed rule set over the transcript and returns one
// violation per matched rule. The scan is keyword-based and deliberately
// conservative; it reports the first matched keyword per rule.
func ScanViolations(text string) []Violation {
	var violations []Violation

	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				violations = append(violations, Violation{
					Rule:     rule.rule,
					Severity: rule.severity,
					Matched:  kw,
				})
				break
			}
		}
	}

	if !containsAny(text, disclosureMarkers) {
		violations = append(violations, Violation{
			Rule:     RuleMissingDisclosure,
			Severity: SeverityMedium,
		})
	}

	return violations
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
