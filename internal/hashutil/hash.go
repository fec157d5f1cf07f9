// Package hashutil provides deterministic content hashing for change
// detection. All hashes are SHA-256. Text and chunk hashes are taken over
// normalized text so that the same logical content hashes identically
// across machines and runs; binary hashes are taken over the raw bytes.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText converts all line endings to "\n" and strips a leading
// UTF-8 byte-order mark, if present. It does not otherwise alter the
// text: trailing whitespace, indentation, and blank lines are preserved.
func NormalizeText(text string) string {
	text = strings.TrimPrefix(text, "\xef\xbb\xbf")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}

// HashText hashes normalized text content. Callers pass raw file
// contents; normalization happens here so callers never hash
// un-normalized text by accident.
func HashText(text string) string {
	return hashBytes([]byte(NormalizeText(text)))
}

// HashBinary hashes raw, un-normalized bytes. Used for binary files,
// where normalization does not apply.
func HashBinary(data []byte) string {
	return hashBytes(data)
}

// HashChunk hashes a chunk's normalized text, optionally scoped by a
// language tag so identical text under different languages hashes
// differently. Pass an empty language to omit the prefix.
func HashChunk(language, text string) string {
	normalized := NormalizeText(text)
	if language == "" {
		return hashBytes([]byte(normalized))
	}
	buf := make([]byte, 0, len(language)+1+len(normalized))
	buf = append(buf, language...)
	buf = append(buf, 0)
	buf = append(buf, normalized...)
	return hashBytes(buf)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
