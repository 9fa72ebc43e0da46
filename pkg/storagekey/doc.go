// Package storagekey maps session ids and owner identities to directory names.
//
// Keys are BLAKE2b digests truncated to 16 bytes and hex encoded, so they are
// always 32 lowercase characters, contain no path separators and are stable
// for a given input. Distinct inputs alias only on a 128-bit collision.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionfolder/pkg/storagekey"
//
//	dir := storagekey.Resolve("alice") // unkeyed
//
//	r := storagekey.New("server-side-secret")
//	dir = r.Resolve("alice") // cannot be recomputed without the secret
//
// A keyed Resolver prevents anyone who can list the storage root from
// guessing which folder belongs to which user name.
package storagekey
