// Package idgen provides deployment ID generators.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/svcroute/ports"
	"github.com/google/uuid"
)

// TimeOrdered generates UUIDv7 identifiers, which sort by creation time.
type TimeOrdered struct{}

// New returns a new UUIDv7, falling back to a random UUIDv4 if the
// time-based generator fails.
func (TimeOrdered) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Counter produces "<prefix><n>" identifiers (for tests and the CLI's
// offline resolver).
type Counter struct {
	prefix string
	n      atomic.Uint64
}

// NewCounter creates a counter starting at 1.
func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

// New returns the next identifier.
func (c *Counter) New() string {
	return c.prefix + strconv.FormatUint(c.n.Add(1), 10)
}

var (
	_ ports.IDGenerator = TimeOrdered{}
	_ ports.IDGenerator = (*Counter)(nil)
)
