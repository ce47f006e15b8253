// Package gallery holds the known-identity gallery and nearest-neighbor
// identity matching. A Gallery is immutable after construction: building it
// is the only mutation point, so concurrent readers need no locking.
// Re-enrollment means rebuilding the gallery in a fresh process.
package gallery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one identity's reference embedding.
type Entry struct {
	UserID    string
	Embedding []float32
}

// MatchResult is the outcome of a nearest-neighbor lookup. Matched is false
// when the gallery is empty or the nearest entry is at or beyond the
// acceptance threshold.
type MatchResult struct {
	UserID   string
	Distance float64
	Matched  bool
}

// Options control gallery construction.
type Options struct {
	// Threshold is the acceptance distance. A query matches only when its
	// nearest entry is strictly below it.
	Threshold float64
	// Index selects the lookup structure: "exhaustive" (default) or
	// "hnsw". Threshold semantics are identical for both; the index only
	// proposes the nearest candidate and the gallery recomputes the
	// exact distance.
	Index string
}

// Gallery is an immutable snapshot of known identities.
type Gallery struct {
	entries   []Entry
	index     Index
	threshold float64
}

// New builds a gallery over the given entries. Entry order is preserved:
// ties at the minimum distance resolve to the first entry in order.
func New(entries []Entry, opts Options) (*Gallery, error) {
	if opts.Threshold <= 0 {
		return nil, fmt.Errorf("gallery threshold must be positive, got %v", opts.Threshold)
	}

	idx, err := newIndex(opts.Index, entries)
	if err != nil {
		return nil, err
	}

	return &Gallery{
		entries:   entries,
		index:     idx,
		threshold: opts.Threshold,
	}, nil
}

// Match resolves the query embedding to the nearest identity.
func (g *Gallery) Match(query []float32) MatchResult {
	pos, ok := g.index.Nearest(query)
	if !ok {
		return MatchResult{}
	}

	entry := g.entries[pos]
	dist := Distance(query, entry.Embedding)
	if dist >= g.threshold {
		return MatchResult{Distance: dist}
	}

	return MatchResult{UserID: entry.UserID, Distance: dist, Matched: true}
}

// Size returns the number of identities in the gallery.
func (g *Gallery) Size() int {
	return len(g.entries)
}

// Distance is the Euclidean distance between two embeddings. Vectors of
// unequal length compare only over the shorter prefix; the gallery always
// holds fixed-length embeddings so this never triggers in practice.
func Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// EmbedFunc extracts a reference embedding from raw image bytes. It returns
// an error when no usable face is present in the sample.
type EmbedFunc func(imageData []byte) ([]float32, error)

// BuildFromDataset scans one enrollment sample per identity from dir. Each
// immediate subdirectory names an identity; its first image file (sorted) is
// the enrollment sample. Identities whose sample yields no face are logged
// and excluded; they can never be matched.
func BuildFromDataset(dir string, embed EmbedFunc) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	var entries []Entry
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		userID := d.Name()

		sample, err := firstImage(filepath.Join(dir, userID))
		if err != nil {
			slog.Warn("no enrollment sample, identity excluded", "user_id", userID, "error", err)
			continue
		}

		data, err := os.ReadFile(sample)
		if err != nil {
			return nil, fmt.Errorf("read sample %s: %w", sample, err)
		}

		embedding, err := embed(data)
		if err != nil {
			slog.Warn("no face in enrollment sample, identity excluded",
				"user_id", userID, "sample", sample, "error", err)
			continue
		}

		entries = append(entries, Entry{UserID: userID, Embedding: embedding})
	}

	return entries, nil
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true,
}

func firstImage(dir string) (string, error) {
	var files []string
	err := fs.WalkDir(os.DirFS(dir), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if imageExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no image files in %s", dir)
	}
	sort.Strings(files)
	return filepath.Join(dir, files[0]), nil
}
