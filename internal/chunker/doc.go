// Package chunker splits file text into overlapping fixed-size windows.
//
// Sizes are measured in runes so multi-byte characters are never split.
//
//	for c := range chunker.Chunk(text, 100, 0.2) {
//	    fmt.Println(c.Index, c.Start, c.End)
//	}
//
// With size 100 and ratio 0.2 the windows start every 80 runes: a 250 rune
// text gives [0,100) [80,180) [160,250) [240,250).
//
// ChunkID derives the document id stored for each window, so re-indexing a
// file overwrites its previous chunks in place.
package chunker
