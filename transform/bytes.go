package transform

import (
	"bytes"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// ByteFunc rewrites one chunk of a byte stream.
type ByteFunc func([]byte) ([]byte, error)

// ByteNames lists the valid byte transform names.
var ByteNames = []string{"uppercase", "lowercase", "chacha20"}

// ByteFilter adapts a named filter to a per-chunk predicate for byte
// streams. The chunk's bytes are presented to the filter as a string, so
// text-oriented filters (nonEmpty, minLength:N, alpha, numeric) apply to
// whole chunks.
func ByteFilter(name string) (func([]byte) (bool, error), error) {
	fn, err := Filter(name)
	if err != nil {
		return nil, err
	}
	return func(p []byte) (bool, error) {
		return fn(string(p))
	}, nil
}

// Byte resolves a named byte transform. key is required by chacha20 and
// ignored by the rest.
func Byte(name, key string) (ByteFunc, error) {
	switch name {
	case "uppercase":
		return func(p []byte) ([]byte, error) { return bytes.ToUpper(p), nil }, nil
	case "lowercase":
		return func(p []byte) ([]byte, error) { return bytes.ToLower(p), nil }, nil
	case "chacha20":
		return newChaCha20(key)
	}
	return nil, unknownName("byteTransform", name, ByteNames)
}

// newChaCha20 builds a keystream cipher over the whole stream. The key is
// hashed to the required 32 bytes and the nonce derives deterministically
// from it, so running the same transform twice over a file restores it.
// The returned function is stateful and not safe for concurrent chunks.
func newChaCha20(key string) (ByteFunc, error) {
	if key == "" {
		return nil, apperrors.InvalidArgument("key", "chacha20 requires a key")
	}
	keyBytes := sha256.Sum256([]byte(key))
	nonceBytes := sha256.Sum256(append(keyBytes[:], []byte("/nonce")...))

	cipher, err := chacha20.NewUnauthenticatedCipher(keyBytes[:], nonceBytes[:chacha20.NonceSize])
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return func(p []byte) ([]byte, error) {
		out := make([]byte, len(p))
		cipher.XORKeyStream(out, p)
		return out, nil
	}, nil
}
