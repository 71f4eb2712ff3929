package identity

import (
	"strings"
	"unicode"
)

// Categories a verified uploader can resolve to.
const (
	CategoryInstitutional = "institutional"
	CategoryQuasiAdvisor  = "quasi_advisor"
	CategoryUnknown       = "unknown"
)

// Risk levels attached to a verification outcome.
const (
	RiskSafe    = "safe"
	RiskCaution = "caution"
	RiskHigh    = "high"
)

// Match methods, strongest first.
const (
	MatchedByChannelID = "channel_id"
	MatchedByHandle    = "handle"
	MatchedByName      = "name"
)

// Verification is the outcome of the layered uploader lookup.
type Verification struct {
	Verified     bool   `json:"verified"`
	MatchedBy    string `json:"matchedBy,omitempty"`
	Organization string `json:"organization,omitempty"`
	Category     string `json:"category"`
	RiskLevel    string `json:"riskLevel"`
}

// Verify resolves an uploader through the layered lookup: exact channel id,
// then exact handle, then fuzzy normalized channel name against the
// institutional and quasi-advisor lists. An uploader matching nothing is
// treated as the highest-risk outcome.
func Verify(channelName, channelHandle, channelID string) Verification {
	if channelID != "" {
		if org, ok := channelIDMap[channelID]; ok {
			return verified(MatchedByChannelID, org)
		}
	}

	if handle := normalizeHandle(channelHandle); handle != "" {
		if org, ok := handleMap[handle]; ok {
			return verified(MatchedByHandle, org)
		}
	}

	if normalized := normalizeChannelName(channelName); normalized != "" {
		if org, ok := matchName(normalized, institutionalNames); ok {
			return Verification{
				Verified:     true,
				MatchedBy:    MatchedByName,
				Organization: org,
				Category:     CategoryInstitutional,
				RiskLevel:    RiskSafe,
			}
		}
		if org, ok := matchName(normalized, quasiAdvisorNames); ok {
			return Verification{
				Verified:     true,
				MatchedBy:    MatchedByName,
				Organization: org,
				Category:     CategoryQuasiAdvisor,
				RiskLevel:    RiskCaution,
			}
		}
	}

	return Verification{
		Verified:  false,
		Category:  CategoryUnknown,
		RiskLevel: RiskHigh,
	}
}

func verified(matchedBy, org string) Verification {
	category := CategoryInstitutional
	risk := RiskSafe
	if isQuasiAdvisor(org) {
		category = CategoryQuasiAdvisor
		risk = RiskCaution
	}
	return Verification{
		Verified:     true,
		MatchedBy:    matchedBy,
		Organization: org,
		Category:     category,
		RiskLevel:    risk,
	}
}

func isQuasiAdvisor(org string) bool {
	for _, name := range quasiAdvisorNames {
		if name == org {
			return true
		}
	}
	return false
}

func normalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(handle)
}

// nameStopwords are corporate decorations stripped before fuzzy matching.
var nameStopwords = []string{
	"주식회사", "회사", "(주)", "㈜", "tv", "투자", "자산운용", "증권", "공식", "채널",
}

func normalizeChannelName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "")
	for _, stop := range nameStopwords {
		s = strings.ReplaceAll(s, stop, "")
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func matchName(normalized string, orgs []string) (string, bool) {
	for _, org := range orgs {
		key := normalizeChannelName(org)
		if key == "" {
			continue
		}
		if strings.Contains(normalized, key) || strings.Contains(key, normalized) {
			return org, true
		}
	}
	return "", false
}
