package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// DefaultScriptTokenBudget bounds how much transcript is sent per prompt.
// Long livestream transcripts can exceed model context otherwise.
const DefaultScriptTokenBudget = 12000

// CountTokens returns the token count of text under the cl100k_base encoding.
// On encoder init failure it falls back to a rough character estimate.
func CountTokens(text string) int {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return len([]rune(text)) / 2
	}
	return len(enc.Encode(text, nil, nil))
}

// TrimToTokenLimit truncates text to at most maxTokens tokens, keeping the head.
func TrimToTokenLimit(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		runes := []rune(text)
		if len(runes) <= maxTokens*2 {
			return text
		}
		return string(runes[:maxTokens*2])
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
