// Package fingerprint computes and compares evidence content fingerprints.
// Pure functions, no side effects beyond reading the input.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Algorithm identifies the content-hash algorithm in use. It is part of the
// fingerprint contract: a future migration must change this constant
// explicitly, never silently.
const Algorithm = "sha256"

// Size is the hex-encoded fingerprint length for Algorithm.
const Size = sha256.Size * 2

// Compute returns the lower-hex fingerprint of data.
func Compute(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeReader streams r through the hash. A read failure is surfaced as an
// error; a partial read never produces a fingerprint.
func ComputeReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeFile fingerprints the file at path.
func ComputeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return ComputeReader(f)
}

// Compare reports whether two hex fingerprints denote the same content.
// Hex casing is not significant.
func Compare(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// Truncate shortens a fingerprint for display in alert messages.
func Truncate(fp string, n int) string {
	if len(fp) <= n {
		return fp
	}
	return fp[:n] + "..."
}
