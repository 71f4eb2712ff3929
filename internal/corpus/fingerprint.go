package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trustcheck-backend/internal/shared/util"
)

// ErrNoSources indicates the source directory holds no documents.
var ErrNoSources = errors.New("no source documents")

// Fingerprint computes a content-address for the current source document set.
// It hashes each file's name, size, and modification time in sorted-name
// order, so adding, removing, or touching any document changes the key.
func Fingerprint(dir string) (string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return "", ErrNoSources
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
		fmt.Fprintf(&b, "%s_%d_%d\n", filepath.Base(path), info.Size(), info.ModTime().UnixNano())
	}
	return util.HashKey(b.String()), nil
}

// SourceFiles lists the source documents in sorted order.
func SourceFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("list sources %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
