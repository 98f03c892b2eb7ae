package storage

import (
	"sync/atomic"

	"github.com/luma/parley/protocol"
)

// UserIDGenerator hands out process-wide unique user ids. Ids are
// monotonically increasing from the starting value and are never
// reused. They are not persisted: over an in-memory store a restart
// resets numbering, which is fine because the directory is gone too.
type UserIDGenerator struct {
	next uint32
}

// NewUserIDGenerator returns a generator whose first id is start.
func NewUserIDGenerator(start protocol.UserID) *UserIDGenerator {
	return &UserIDGenerator{next: uint32(start)}
}

// NextID allocates the next id.
func (g *UserIDGenerator) NextID() protocol.UserID {
	return protocol.UserID(atomic.AddUint32(&g.next, 1) - 1)
}
