package llm

import (
	"fmt"
	"strings"
)

// Delimiters the extraction prompts instruct the model to emit. Parsing keys
// off these markers, so prompt wording and parser must stay in sync.
const (
	StockListMarker = "---STOCKS---"
	ClaimListMarker = "---CLAIMS---"

	// EmptyListToken is what the model emits when nothing was found.
	EmptyListToken = "없음"
)

const cleaningSystemPrompt = `당신은 유튜브 투자 영상 자막을 정제하는 편집자입니다.
자막의 오탈자, 잘못 인식된 종목명, 중복 구절을 교정하되 발언 내용 자체는 바꾸지 마세요.
원문에 없는 내용을 추가하지 말고, 정제된 전체 텍스트만 출력하세요.`

const stockExtractionSystemPrompt = `당신은 투자 영상에서 직접 매수 추천된 종목명만 추출하는 분석가입니다.
단순 언급이나 비교 대상은 제외하고, 추천 종목만 골라내세요.
출력 형식: "---STOCKS---" 다음 줄에 종목명을 쉼표로 구분해 나열하세요.
추천 종목이 없으면 "없음"이라고만 쓰세요.`

const claimExtractionSystemPrompt = `당신은 투자 영상에서 사실 확인이 가능한 시점 민감 주장을 추출하는 분석가입니다.
주가, 거래량, 실적, 공시, 수급 등 시간이 지나면 참/거짓이 달라질 수 있는 짧은 주장만 추출하세요.
출력 형식: "---CLAIMS---" 다음 줄부터 한 줄에 하나씩 주장을 나열하세요.
주장이 없으면 "없음"이라고만 쓰세요.`

const synthesisSystemPrompt = `당신은 유튜브 투자 영상의 신뢰도를 평가하는 리포트 작성자입니다.
아래 단계별 검증 결과를 종합해 시청자가 이해하기 쉬운 신뢰도 평가 리포트를 작성하세요.
과장 없이 검증된 사실과 발견된 위험 신호를 구분해 서술하세요.`

// CleaningPrompts returns the system/user prompt pair for script cleaning.
func CleaningPrompts(script string) (string, string) {
	return cleaningSystemPrompt, script
}

// StockExtractionPrompts returns the prompt pair for recommended-stock extraction.
func StockExtractionPrompts(script string) (string, string) {
	return stockExtractionSystemPrompt, script
}

// ClaimExtractionPrompts returns the prompt pair for time-sensitive claim mining.
func ClaimExtractionPrompts(script string) (string, string) {
	return claimExtractionSystemPrompt, script
}

// SynthesisInput carries the per-stage summaries merged into the final report.
type SynthesisInput struct {
	ChannelName       string
	UploadDate        string
	Script            string
	StockSummary      string
	VerificationNotes string
	RetrievalNotes    string
	ComparisonNotes   string
	IdentityNotes     string
}

// SynthesisPrompts returns the prompt pair for final report generation.
func SynthesisPrompts(in SynthesisInput) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "채널명: %s\n업로드일: %s\n\n", in.ChannelName, in.UploadDate)
	fmt.Fprintf(&b, "[영상 자막]\n%s\n\n", in.Script)
	fmt.Fprintf(&b, "[추천 종목]\n%s\n\n", orEmpty(in.StockSummary))
	fmt.Fprintf(&b, "[재무 검증 결과]\n%s\n\n", orEmpty(in.VerificationNotes))
	fmt.Fprintf(&b, "[공시 자료 검색 결과]\n%s\n\n", orEmpty(in.RetrievalNotes))
	fmt.Fprintf(&b, "[주장 시점 비교 결과]\n%s\n\n", orEmpty(in.ComparisonNotes))
	fmt.Fprintf(&b, "[업로더 신원 확인 결과]\n%s\n", orEmpty(in.IdentityNotes))
	return synthesisSystemPrompt, b.String()
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(해당 없음)"
	}
	return s
}

// ParseDelimitedList extracts the items following a marker line. Items may be
// comma-separated on one line or listed one per line; bullets and numbering
// are stripped. The empty-list token yields an empty slice.
func ParseDelimitedList(raw, marker string) []string {
	section := raw
	if idx := strings.Index(raw, marker); idx >= 0 {
		section = raw[idx+len(marker):]
	}

	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789. ")
		if line == "" || line == EmptyListToken {
			continue
		}
		if strings.Contains(line, ",") {
			for _, part := range strings.Split(line, ",") {
				if p := strings.TrimSpace(part); p != "" && p != EmptyListToken {
					items = append(items, p)
				}
			}
			continue
		}
		items = append(items, line)
	}
	return items
}
