// Package idgen produces unique, lexicographically sortable identifiers.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out new identifiers.
type Generator interface {
	NewID() string
}

// ULID generates monotonic ULIDs. Identifiers created within the same
// millisecond still sort in creation order.
type ULID struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULID returns a ULID generator seeded from crypto/rand.
func NewULID() *ULID {
	return &ULID{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewID returns a new ULID string.
func (g *ULID) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

// Sequence returns prefix-000001, prefix-000002, ... Used for deterministic tests.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence returns a sequence generator with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// NewID returns the next identifier in the sequence.
func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%06d", s.prefix, s.n.Add(1))
}
