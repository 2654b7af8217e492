package pipeline

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"
)

// Hash is a 64-bit average-hash perceptual fingerprint. Its hex string form
// is what the metadata store persists.
type Hash uint64

// Fingerprint computes the perceptual hash of a decoded image.
func Fingerprint(img image.Image) (Hash, error) {
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return 0, fmt.Errorf("average hash: %w", err)
	}
	return Hash(h.GetHash()), nil
}

// ParseHash parses the hex string form produced by String.
func ParseHash(s string) (Hash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return Hash(v), nil
}

// String returns the fixed-width hex form.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Distance returns the Hamming distance between two hashes.
func (h Hash) Distance(other Hash) int {
	return bits.OnesCount64(uint64(h) ^ uint64(other))
}
