package rag

import (
	"strconv"
	"unicode/utf8"
)

// SplitText cuts text into consecutive, non-overlapping pieces of at most
// size characters. Joining the pieces reproduces text byte for byte. An
// invalid UTF-8 byte counts as one character.
func SplitText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks []string
	start, count := 0, 0
	for i := 0; i < len(text); {
		_, width := utf8.DecodeRuneInString(text[i:])
		i += width
		count++
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}

// ChunkID names the i-th chunk of a document.
func ChunkID(documentID string, i int) string {
	return documentID + "_" + strconv.Itoa(i)
}
