package textnorm

import "unicode/utf8"

// Chunk splits text into contiguous pieces of at most maxChars characters.
// Boundaries are purely length based. Joining the result reproduces text.
// Text that already fits, or a non-positive maxChars, yields one chunk.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	start, n := 0, 0
	for i := range text {
		if n == maxChars {
			chunks = append(chunks, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(chunks, text[start:])
}
