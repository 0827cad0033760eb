package hash

import (
	"io"

	"github.com/cespare/xxhash/v2"
)

// Sum64 computes the 64-bit integrity hash of a container's raw bytes.
func Sum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// New64 returns a streaming 64-bit integrity hasher.
func New64() *xxhash.Digest {
	return xxhash.New()
}

// Reader64 hashes everything read from r.
func Reader64(r io.Reader) (uint64, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}
