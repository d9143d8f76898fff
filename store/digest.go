package store

import (
	"encoding/hex"
	"fmt"

	"github.com/taigrr/colorhash"
	"golang.org/x/crypto/sha3"
)

// DigestSize is the width of a content digest in bytes.
const DigestSize = 32

// bucketCount is the number of key buckets blobs are distributed across.
// Buckets keep prefix scans over the blob keyspace evenly sharded.
const bucketCount = 1000

// Digest is the SHA3-256 hash of a blob's content. It identifies the
// current bytes of a file, not the file itself: a digest changes whenever
// the content it covers changes.
type Digest [DigestSize]byte

// DigestOf computes the content digest for the given bytes.
func DigestOf(data []byte) Digest {
	return Digest(sha3.Sum256(data))
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns an abbreviated digest suitable for log output.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:4])
}

// ParseDigest parses the hex rendering produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidDigest, len(raw), DigestSize)
	}
	copy(d[:], raw)
	return d, nil
}

// blobKey builds the storage key for a digest. Keys carry a color-hash
// derived bucket prefix so that blobs spread evenly across the keyspace.
func blobKey(d Digest) []byte {
	hexd := d.String()
	bucket := colorhash.HashString(hexd) % bucketCount
	return []byte(fmt.Sprintf("b/%03d/%s", bucket, hexd))
}

// digestFromKey recovers the digest from a blob key produced by blobKey.
func digestFromKey(key []byte) (Digest, error) {
	if len(key) < DigestSize*2 {
		return Digest{}, fmt.Errorf("%w: key %q too short", ErrInvalidDigest, key)
	}
	return ParseDigest(string(key[len(key)-DigestSize*2:]))
}
