package crypto

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Names of the supported hash algorithms.
const (
	SHA256     = "sha256"
	SHA3256    = "sha3-256"
	Keccak256  = "keccak256"
	Blake2b256 = "blake2b-256"
	Blake3     = "blake3"
)

// HashAlgorithm is a named constructor of hash.Hash. Every node of a network
// must be configured with the same algorithm, since producer ranking and
// candidate hashes are derived from it.
type HashAlgorithm struct {
	Name string
	New  func() hash.Hash
}

var algorithms = map[string]func() hash.Hash{
	SHA256:    sha256.New,
	SHA3256:   sha3.New256,
	Keccak256: sha3.NewLegacyKeccak256,
	Blake2b256: func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails with an oversized key
		return h
	},
	Blake3: func() hash.Hash {
		return blake3.New(32, nil)
	},
}

// LookupHashAlgorithm returns the algorithm registered under name. An empty or
// unknown name is a configuration error.
func LookupHashAlgorithm(name string) (HashAlgorithm, error) {
	if name == "" {
		return HashAlgorithm{}, fmt.Errorf("no hash algorithm configured")
	}
	f, ok := algorithms[name]
	if !ok {
		return HashAlgorithm{}, fmt.Errorf("unknown hash algorithm %q, expected one of %v", name, HashAlgorithmNames())
	}
	return HashAlgorithm{Name: name, New: f}, nil
}

// HashAlgorithmNames lists the registered algorithms in lexicographic order.
func HashAlgorithmNames() []string {
	names := make([]string, 0, len(algorithms))
	for n := range algorithms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sum hashes the concatenation of parts.
func (a HashAlgorithm) Sum(parts ...[]byte) []byte {
	hasher := a.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	return hasher.Sum(nil)
}

// Size is the length in bytes of the digests produced by the algorithm.
func (a HashAlgorithm) Size() int {
	return a.New().Size()
}

// SHA256Sum returns the SHA256 hash of the data.
func SHA256Sum(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}
