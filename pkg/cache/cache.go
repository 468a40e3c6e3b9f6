// Package cache stores persona answers keyed by persona and normalized question.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/roteiro-ai/roteiro/pkg/models"
)

// DefaultTTL is how long an answer stays valid.
const DefaultTTL = 5 * time.Minute

// Cache is a TTL response cache. Expired entries read as absent.
type Cache interface {
	Get(ctx context.Context, persona, question string) (string, bool)
	Put(ctx context.Context, persona, question, response string) error
	Stats(ctx context.Context) (models.CacheStats, error)
	// Clear removes entries. If expiredOnly is true, only expired entries are removed.
	Clear(ctx context.Context, expiredOnly bool) error
	Close() error
}

// Normalize lower-cases the question, trims it and collapses inner whitespace.
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// Key computes the SHA-256 cache key of a persona and question.
func Key(persona, question string) string {
	h := sha256.New()
	h.Write([]byte(persona))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(question)))
	return hex.EncodeToString(h.Sum(nil))
}
