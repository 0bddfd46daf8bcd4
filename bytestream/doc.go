// Package bytestream adapts files and readers to the chunked stream core.
//
// Sources read fixed-size chunks incrementally, so a file of any size is
// processed with one chunk resident at a time. Analyze, ProcessToFile, and
// CopyToFile drain a byte stream and report Stats: byte and chunk counts
// plus line, word, and character counts whose state carries across chunk
// boundaries, making the totals identical to a whole-file scan no matter
// where the chunks split.
//
// Read and write failures are classified through the error taxonomy and
// transient ones are retried. Cancellation stops the drain between chunks
// and leaves any partially written output in place.
package bytestream
