package domain

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashURL returns the SHA-1 hex fingerprint used to name downloaded files.
// The same URL always maps to the same file name, so re-mapping a node is idempotent.
func HashURL(url string) string {
	h := sha1.Sum([]byte(url))
	return hex.EncodeToString(h[:])
}

// CalculateFileHash generates the SHA-256 fingerprint of a stream.
// Used to detect whether a cached course tree document changed.
func CalculateFileHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
