// Package transform holds the named functions a run request may refer to.
//
// The tool boundary never evaluates caller-supplied code; a request names a
// transform, filter, or reducer and the lookup resolves it against a closed
// set, matched exhaustively. Unknown names fail with INVALID_ARGUMENT and
// the list of valid ones.
//
// Item functions and filters operate on decoded JSON values, so numbers
// arrive as float64 and text as string. Byte functions operate on file
// chunks; the chacha20 cipher keeps keystream position across chunks, so
// one instance must process a stream start to finish.
package transform
