package types

// TextChunk is one window over a file's text. Start and End are rune
// offsets, End exclusive.
type TextChunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Len returns the chunk length in runes.
func (c TextChunk) Len() int {
	return c.End - c.Start
}

// Document is a chunk ready to be written to a collection. ContentHash
// identifies the file content and chunking the chunk was built from.
type Document struct {
	ID          string
	Path        string
	Index       int
	Start       int
	End         int
	Text        string
	ContentHash string
	Vector      []float32
}

// DocumentMeta is the per-chunk metadata read back from a collection.
type DocumentMeta struct {
	ID          string
	Path        string
	Index       int
	ContentHash string
}
