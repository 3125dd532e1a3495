package indexer

import "fmt"

// Kind names the ingestion step that failed.
type Kind string

const (
	KindExtraction Kind = "extraction"
	KindChunking   Kind = "chunking"
	KindEmbedding  Kind = "embedding"
	KindIndex      Kind = "index"
)

// IngestionError reports a failed ingestion step. The document is marked failed
// with Error() as the recorded cause.
type IngestionError struct {
	Kind Kind
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

func stepError(kind Kind, err error) *IngestionError {
	return &IngestionError{Kind: kind, Err: err}
}
