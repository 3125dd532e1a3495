package vectorstore

import (
	"context"
	"testing"
)

func entries(vecs ...[]float32) []Entry {
	out := make([]Entry, len(vecs))
	for i, v := range vecs {
		out[i] = Entry{Index: i, Offset: i * 800, Text: "chunk", Vector: v}
	}
	return out
}

func TestMemoryIndex_ReplaceIsFullReplacement(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	if err := idx.Replace(ctx, "doc-a", entries([]float32{1, 0}, []float32{0, 1}, []float32{1, 1})); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := idx.Replace(ctx, "doc-a", entries([]float32{1, 0})); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	n, err := idx.Count(ctx, "doc-a")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1 after replacement", n)
	}
}

func TestMemoryIndex_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	_ = idx.Replace(ctx, "doc-a", entries([]float32{1, 0}))
	_ = idx.Replace(ctx, "doc-b", entries([]float32{1, 0}, []float32{0.9, 0.1}))

	matches, err := idx.Search(ctx, "doc-a", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Search() returned %d matches, want 1", len(matches))
	}
	for _, m := range matches {
		if m.DocumentID != "doc-a" {
			t.Errorf("Search() leaked entry from %s", m.DocumentID)
		}
	}

	diverse, err := idx.SearchDiverse(ctx, "doc-b", []float32{1, 0}, DiverseOptions{K: 5, FetchK: 5, Lambda: 0.5})
	if err != nil {
		t.Fatalf("SearchDiverse() error = %v", err)
	}
	if len(diverse) != 2 {
		t.Errorf("SearchDiverse() returned %d matches, want 2", len(diverse))
	}
}

func TestMemoryIndex_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	_ = idx.Replace(ctx, "doc", entries([]float32{0, 1}, []float32{1, 0}, []float32{1, 1}))

	matches, err := idx.Search(ctx, "doc", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := indexes(matches); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Search() order = %v, want [1 2]", got)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("Search() scores not descending: %v, %v", matches[0].Score, matches[1].Score)
	}
}

func TestMemoryIndex_Errors(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	if err := idx.Replace(ctx, "doc", entries([]float32{1, 0})); err == nil {
		t.Error("Replace() with wrong dimension should fail")
	}
	if n, _ := idx.Count(ctx, "doc"); n != 0 {
		t.Errorf("failed Replace() left %d entries", n)
	}
	if _, err := idx.Search(ctx, "doc", []float32{1, 0, 0}, 0); err == nil {
		t.Error("Search() with k=0 should fail")
	}
}

func TestMemoryIndex_DeleteNamespace(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(0)
	_ = idx.Replace(ctx, "doc", entries([]float32{1, 0}))
	_ = idx.Replace(ctx, "other", entries([]float32{1, 0}))

	if err := idx.DeleteNamespace(ctx, "doc"); err != nil {
		t.Fatalf("DeleteNamespace() error = %v", err)
	}
	if err := idx.DeleteNamespace(ctx, "never-existed"); err != nil {
		t.Fatalf("DeleteNamespace() on empty namespace error = %v", err)
	}
	if n, _ := idx.Count(ctx, "doc"); n != 0 {
		t.Errorf("Count(doc) = %d, want 0", n)
	}
	if n, _ := idx.Count(ctx, "other"); n != 1 {
		t.Errorf("Count(other) = %d, want 1", n)
	}
}

func TestPointID(t *testing.T) {
	if PointID("doc", 1) != PointID("doc", 1) {
		t.Error("PointID() should be deterministic")
	}
	if PointID("doc", 1) == PointID("doc", 2) {
		t.Error("PointID() should differ by index")
	}
	if PointID("doc-1", 1) == PointID("doc", 11) {
		t.Error("PointID() should not collide across namespaces")
	}
}
