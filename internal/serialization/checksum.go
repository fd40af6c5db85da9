package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Checksum returns the hex-encoded SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum compares the checksum of data with the one recorded in h.
// Files without a recorded checksum pass.
func VerifyChecksum(h *Header, data []byte) error {
	want, ok := h.Metadata[MetaChecksum]
	if !ok {
		return nil
	}
	if got := Checksum(data); got != want {
		return fmt.Errorf("%w: got %s, header says %s", ErrChecksumMismatch, got, want)
	}
	return nil
}
