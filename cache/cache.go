// Package cache provides the content-addressed response cache that
// short-circuits the pipeline for repeated identical requests.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Entry is one cached render. Entries are created on first successful render
// and only touched afterwards for hit-count and last-access bookkeeping.
type Entry struct {
	Key        string
	Rendered   string
	HitCount   int64
	LastAccess time.Time
}

// Store is the cache contract. Get returns (entry, true) on a hit and
// (zero, false) on a miss; a hit bumps the hit counter and last-access time.
// Put must be atomically visible: a concurrent reader sees either no entry or
// the fully written one.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key, rendered string) error
	Close() error
}

// Key derives the content-addressed cache key from the full semantic identity
// of a request. Fields are length-prefixed so no two distinct requests can
// collapse onto the same byte stream. No normalization: exact-match only.
func Key(instruction, context, mode string) string {
	h := sha256.New()
	for _, field := range []string{instruction, context, mode} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
