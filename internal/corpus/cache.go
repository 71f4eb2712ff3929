package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is one content-addressed cache unit: an ordered chunk list and a
// parallel embedding list of the same length.
type Entry struct {
	Fingerprint string      `json:"fingerprint"`
	Chunks      []string    `json:"chunks"`
	Embeddings  [][]float32 `json:"embeddings"`
}

// Store persists cache entries on disk, two artifacts per fingerprint.
type Store struct {
	Dir string
}

// NewStore constructs a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) chunksPath(fingerprint string) string {
	return filepath.Join(s.Dir, "chunks_"+fingerprint+".json")
}

func (s *Store) embeddingsPath(fingerprint string) string {
	return filepath.Join(s.Dir, "embeddings_"+fingerprint+".json")
}

// Load reads the chunk/embedding pair for a fingerprint. A missing artifact
// or a length mismatch between the two lists is reported as a miss so a
// partially written pair is never served.
func (s *Store) Load(fingerprint string) (*Entry, bool, error) {
	var chunks []string
	if ok, err := readJSON(s.chunksPath(fingerprint), &chunks); err != nil || !ok {
		return nil, false, err
	}
	var embeddings [][]float32
	if ok, err := readJSON(s.embeddingsPath(fingerprint), &embeddings); err != nil || !ok {
		return nil, false, err
	}
	if len(chunks) != len(embeddings) {
		return nil, false, nil
	}
	return &Entry{Fingerprint: fingerprint, Chunks: chunks, Embeddings: embeddings}, true, nil
}

// Save writes both artifacts atomically via temp-file renames. Embeddings
// land first; the chunk list acts as the commit marker Load keys off, so a
// concurrent reader sees either the full pair or a miss.
func (s *Store) Save(entry *Entry) error {
	if len(entry.Chunks) != len(entry.Embeddings) {
		return fmt.Errorf("cache save %s: chunk/embedding length mismatch (%d vs %d)",
			entry.Fingerprint, len(entry.Chunks), len(entry.Embeddings))
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("cache save %s: %w", entry.Fingerprint, err)
	}
	if err := writeJSONAtomic(s.embeddingsPath(entry.Fingerprint), entry.Embeddings); err != nil {
		return fmt.Errorf("cache save %s: embeddings: %w", entry.Fingerprint, err)
	}
	if err := writeJSONAtomic(s.chunksPath(entry.Fingerprint), entry.Chunks); err != nil {
		return fmt.Errorf("cache save %s: chunks: %w", entry.Fingerprint, err)
	}
	return nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSONAtomic(path string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
