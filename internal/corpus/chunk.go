package corpus

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is how many trailing runes carry into the next chunk.
	DefaultChunkOverlap = 200

	// boundaryLookback bounds how far back from the target cut a sentence
	// boundary is searched for.
	boundaryLookback = 100
)

// ChunkText splits text into overlapping chunks of roughly size runes.
// Cuts prefer a sentence-ending character within the look-back window rather
// than splitting mid-sentence, but never shrink a chunk below half the target
// size.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := end
		floor := start + size/2
		if alt := end - boundaryLookback; alt > floor {
			floor = alt
		}
		for i := end; i > floor; i-- {
			if isSentenceBoundary(runes[i-1]) {
				cut = i
				break
			}
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

func isSentenceBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}
