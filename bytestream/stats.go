package bytestream

import (
	"time"
	"unicode"
	"unicode/utf8"
)

// Stats describes one pass over a byte stream.
type Stats struct {
	// SizeBytes is the total number of bytes read from the source.
	SizeBytes int64 `json:"sizeBytes"`
	// ChunkCount is the number of chunks the source was read in.
	ChunkCount int `json:"chunkCount"`
	// LineCount is the number of newline bytes in the source.
	LineCount int `json:"lineCount"`
	// WordCount is the number of whitespace-separated words.
	WordCount int `json:"wordCount"`
	// CharCount is the number of UTF-8 runes. Invalid bytes count as one
	// rune each, matching utf8.RuneCount over the whole source.
	CharCount int `json:"charCount"`
	// AverageChunkSize is SizeBytes over ChunkCount, 0 for an empty source.
	AverageChunkSize float64 `json:"averageChunkSize"`
	// Duration is the wall time of the pass.
	Duration time.Duration `json:"duration"`
}

// textCounter accumulates line, word, and character counts across chunk
// boundaries. Words and runes may straddle a boundary, so it keeps the word
// state and up to three undecoded bytes between calls.
type textCounter struct {
	lines  int
	words  int
	chars  int
	inWord bool
	carry  []byte
}

// add counts the text in p. p may end mid-rune; the dangling bytes are held
// back and prepended to the next call.
func (c *textCounter) add(p []byte) {
	// Newlines are single bytes and can never sit inside a multi-byte rune,
	// so they are counted on the raw chunk, independent of the carry.
	for _, b := range p {
		if b == '\n' {
			c.lines++
		}
	}

	buf := p
	if len(c.carry) > 0 {
		buf = append(c.carry, p...)
		c.carry = nil
	}
	for len(buf) > 0 {
		if !utf8.FullRune(buf) {
			// Only an incomplete trailing sequence is not a full rune;
			// invalid encodings decode as width-1 error runes.
			c.carry = append(c.carry, buf...)
			return
		}
		r, size := utf8.DecodeRune(buf)
		c.count(r)
		buf = buf[size:]
	}
}

// finish flushes a dangling partial rune. Its bytes decode as width-1 error
// runes, the same result a whole-source utf8.RuneCount would give.
func (c *textCounter) finish() {
	buf := c.carry
	c.carry = nil
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		c.count(r)
		buf = buf[size:]
	}
}

func (c *textCounter) count(r rune) {
	c.chars++
	if unicode.IsSpace(r) {
		c.inWord = false
	} else if !c.inWord {
		c.inWord = true
		c.words++
	}
}
