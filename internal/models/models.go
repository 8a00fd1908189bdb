package models

// Metadata keys carried on chunks and flattened into the index.
const (
	MetaTitle         = "title"
	MetaSectionHeader = "section_header"
	MetaChunkIndex    = "chunk_index"
	MetaSourcePath    = "source_path"
)

// Chunk is a single retrievable unit of text produced by a chunking
// strategy. StartChar/EndChar are set by fixed-size chunking,
// SentenceCount by the semantic strategies. Embedding is optional and
// allows a chunk-then-embed-later workflow over JSON files.
type Chunk struct {
	Text          string            `json:"text"`
	ChunkIndex    int               `json:"chunk_index"`
	StartChar     int               `json:"start_char,omitempty"`
	EndChar       int               `json:"end_char,omitempty"`
	SentenceCount int               `json:"num_sentences,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Embedding     []float32         `json:"embedding,omitempty"`
}

// Document is a source text loaded from disk, optionally split into
// titled sections that are chunked separately.
type Document struct {
	Title    string
	Path     string
	Content  string
	Sections []Section
}

type Section struct {
	Header  string
	Content string
}

// RetrievalResult is one entry returned by a vector index search.
// Distance is a cosine distance in [0, 2]; 0 means identical direction.
type RetrievalResult struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float32
}

// Similarity reports the cosine similarity corresponding to Distance.
func (r RetrievalResult) Similarity() float32 { return 1 - r.Distance }

// SourceCitation backs a generated answer, deduplicated by
// (Title, Section) with the highest-ranked occurrence kept.
type SourceCitation struct {
	Title      string
	Section    string
	Similarity float32
	Path       string
}

// Answer is the result of one retrieval-augmented query.
type Answer struct {
	Answer    string
	Sources   []SourceCitation
	Retrieved []RetrievalResult
}
