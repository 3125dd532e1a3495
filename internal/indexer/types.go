package indexer

// Chunk is a fixed-size span of a document's extracted text.
type Chunk struct {
	Index  int    // Chunk index within the document (starts at 0)
	Offset int    // Rune offset of the first rune in the extracted text
	Text   string // Chunk text content
}

// Job identifies one document to ingest.
type Job struct {
	DocumentID string
	OwnerID    string
	FilePath   string // Stored source file
	Filename   string // Original upload name, used for the title fallback
}
