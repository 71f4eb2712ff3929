package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"trustcheck-backend/internal/llm"
	"trustcheck-backend/internal/shared/telemetry"
)

// buildEntry runs the full ingestion pipeline over the source directory:
// extract text from every document, chunk it, and embed every chunk. A
// single unreadable document is logged and skipped; it does not abort the
// build.
func buildEntry(ctx context.Context, dir, fingerprint string, embedder llm.Embedder) (*Entry, error) {
	paths, err := SourceFiles(dir)
	if err != nil {
		return nil, err
	}

	var chunks []string
	for _, path := range paths {
		text, err := ExtractPDFText(path)
		if err != nil {
			telemetry.Error("corpus.extract_failed", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		chunks = append(chunks, ChunkText(text, DefaultChunkSize, DefaultChunkOverlap)...)
	}

	entry := &Entry{
		Fingerprint: fingerprint,
		Chunks:      chunks,
		Embeddings:  [][]float32{},
	}
	if len(chunks) == 0 {
		return entry, nil
	}

	embeddings, err := embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	entry.Embeddings = embeddings

	telemetry.Info("corpus.built", map[string]any{
		"fingerprint": fingerprint,
		"documents":   len(paths),
		"chunks":      len(chunks),
	})
	return entry, nil
}

// ExtractPDFText pulls plain text from one PDF file.
func ExtractPDFText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", path, err)
	}
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("extract pdf %s: %w", path, err)
	}
	return buf.String(), nil
}
