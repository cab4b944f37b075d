package definition

import (
	"sync"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// SequenceClock is a default, in-memory timestamp oracle: a monotonic
// counter kept per HostId, grounded on the tick-and-compare logical clock in
// sfurman3-chatroom's logical package. It exists only for demo/test wiring —
// spec.md §1 places the real timestamp oracle out of scope as an external
// collaborator, and a clock scoped to a single process cannot itself issue
// cluster-wide unique timestamps; multiple SequenceClock instances across
// real nodes would need to be seeded from disjoint ranges (or a NodeId
// tie-breaker added to SequenceTimestamp) to stay safe, which is exactly
// why production deployments are expected to supply their own types.Clock.
type SequenceClock struct {
	mutex    sync.Mutex
	counters map[types.HostId]uint64
}

func NewSequenceClock() *SequenceClock {
	return &SequenceClock{counters: make(map[types.HostId]uint64)}
}

func (c *SequenceClock) GetTimestamp(hostId types.HostId) types.Timestamp {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.counters[hostId]++
	return types.NewSequenceTimestamp(c.counters[hostId])
}

var _ types.Clock = (*SequenceClock)(nil)
