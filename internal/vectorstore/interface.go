package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks paperchat/internal/vectorstore Index

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// Entry is one embedded chunk stored under a document namespace.
type Entry struct {
	DocumentID string
	Index      int // Ordinal within the document
	Offset     int // Rune offset of the chunk in the extracted text
	Text       string
	Vector     []float32
}

// Match is an entry returned by a search with its similarity to the query.
type Match struct {
	Entry
	Score float32
}

// DiverseOptions controls maximal marginal relevance selection.
type DiverseOptions struct {
	K      int     // Number of results returned
	FetchK int     // Number of nearest candidates considered
	Lambda float64 // 1 is pure relevance, 0 is pure diversity
}

// Index defines the interface for per-document vector storage.
// Every operation is scoped to one namespace, the document ID, and never
// returns entries from another namespace.
type Index interface {
	// Replace atomically swaps the namespace's entry set for entries.
	Replace(ctx context.Context, namespace string, entries []Entry) error

	// Search returns up to k entries ordered by descending similarity.
	Search(ctx context.Context, namespace string, query []float32, k int) ([]Match, error)

	// SearchDiverse returns up to opts.K entries chosen by maximal marginal relevance
	// from the opts.FetchK nearest candidates, in selection order.
	SearchDiverse(ctx context.Context, namespace string, query []float32, opts DiverseOptions) ([]Match, error)

	// DeleteNamespace removes every entry of the namespace. Deleting an empty namespace is not an error.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Count returns the number of entries in the namespace.
	Count(ctx context.Context, namespace string) (int, error)
}

// PointID returns the stable identifier of a chunk: the same document and
// ordinal always map to the same ID, so re-ingestion overwrites in place.
func PointID(namespace string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"#"+strconv.Itoa(index))).String()
}

// onlyNamespace drops any match that does not belong to namespace.
func onlyNamespace(namespace string, matches []Match) []Match {
	out := matches[:0]
	for _, m := range matches {
		if m.DocumentID == namespace {
			out = append(out, m)
		}
	}
	return out
}
