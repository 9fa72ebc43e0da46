package storagekey

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes. Keys are twice as long in hex.
const Size = 16

// Resolver derives storage keys, optionally keyed with a secret.
// The zero value is an unkeyed resolver. It is safe for concurrent use.
type Resolver struct {
	key []byte
}

var defaultResolver = &Resolver{}

// New returns a resolver keyed with secret. An empty secret yields an unkeyed resolver.
func New(secret string) *Resolver {
	if secret == "" {
		return &Resolver{}
	}
	key := []byte(secret)
	// blake2b accepts keys of at most 64 bytes.
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Resolver{key: key}
}

// Resolve returns the storage key for id using the unkeyed resolver.
func Resolve(id string) string {
	return defaultResolver.Resolve(id)
}

// Resolve returns the hex encoded digest of id.
func (r *Resolver) Resolve(id string) string {
	var key []byte
	if r != nil {
		key = r.key
	}
	h, err := blake2b.New(Size, key)
	if err != nil {
		// Size is within 1..64 and key length is capped in New.
		panic(err)
	}
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

// ResolveStrict is Resolve that rejects empty input.
func (r *Resolver) ResolveStrict(id string) (string, error) {
	if id == "" {
		return "", ErrEmptyInput
	}
	return r.Resolve(id), nil
}

// Valid reports whether key has the shape produced by Resolve.
func Valid(key string) bool {
	if len(key) != Size*2 {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
