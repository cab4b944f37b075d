// Package test provides fakes for the external collaborators a Manager
// needs (cluster membership, transport, clock) so its replication and
// anti-entropy behavior can be exercised without a real network.
package test

import (
	"fmt"
	"sync"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// FakeClock hands out a strictly increasing sequence number per HostId, the
// same oracle definition.SequenceClock provides, but with an optional
// starting offset (see NewOffsetFakeClock).
type FakeClock struct {
	mutex    sync.Mutex
	counters map[types.HostId]uint64
	base     uint64
}

func NewFakeClock() *FakeClock {
	return &FakeClock{counters: make(map[types.HostId]uint64)}
}

// NewOffsetFakeClock seeds every counter at offset, so independent clocks on
// different fake nodes don't collide on the same sequence number when a
// fuzzy test wants deterministic ordering between two nodes' writes.
func NewOffsetFakeClock(offset uint64) *FakeClock {
	return &FakeClock{counters: make(map[types.HostId]uint64), base: offset}
}

func (c *FakeClock) GetTimestamp(hostId types.HostId) types.Timestamp {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.counters[hostId]; !ok {
		c.counters[hostId] = c.base
	}
	c.counters[hostId]++
	return types.NewSequenceTimestamp(c.counters[hostId])
}

// FakeBus is a shared in-memory message bus standing in for a real
// transport across every node in a fuzzy test. Each node gets its own
// *FakeTransport bound to the same bus, so Broadcast/Unicast calls from one
// are delivered to the others' subscribed handlers.
type FakeBus struct {
	mutex     sync.Mutex
	nodes     map[types.NodeId]*FakeTransport
	dropRate  float64
	prngState uint64
}

func NewFakeBus() *FakeBus {
	return &FakeBus{nodes: make(map[types.NodeId]*FakeTransport)}
}

// SetDropRate makes the bus drop a fraction of messages, modeling the
// lossy transport spec.md §1 assumes anti-entropy must tolerate. 0 means
// nothing is ever dropped.
func (b *FakeBus) SetDropRate(rate float64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.dropRate = rate
}

func (b *FakeBus) register(t *FakeTransport) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.nodes[t.self] = t
}

func (b *FakeBus) shouldDrop() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.dropRate <= 0 {
		return false
	}
	b.prngState = b.prngState*6364136223846793005 + 1442695040888963407
	frac := float64(b.prngState>>11) / float64(1<<53)
	return frac < b.dropRate
}

func (b *FakeBus) deliver(from types.NodeId, to types.NodeId, subject string, payload []byte) {
	if b.shouldDrop() {
		return
	}
	b.mutex.Lock()
	target, ok := b.nodes[to]
	b.mutex.Unlock()
	if !ok {
		return
	}
	target.handle(from, subject, payload)
}

func (b *FakeBus) broadcast(from types.NodeId, subject string, payload []byte) {
	b.mutex.Lock()
	var targets []*FakeTransport
	for id, t := range b.nodes {
		if id != from {
			targets = append(targets, t)
		}
	}
	b.mutex.Unlock()
	for _, t := range targets {
		if b.shouldDrop() {
			continue
		}
		t.handle(from, subject, payload)
	}
}

// FakeTransport implements types.Transport and types.Unsubscriber against a
// shared FakeBus, the in-process equivalent of the teacher's TCP transport.
type FakeTransport struct {
	self     types.NodeId
	bus      *FakeBus
	mutex    sync.Mutex
	handlers map[string]types.MessageHandler
}

func NewFakeTransport(self types.NodeId, bus *FakeBus) *FakeTransport {
	t := &FakeTransport{self: self, bus: bus, handlers: make(map[string]types.MessageHandler)}
	bus.register(t)
	return t
}

func (t *FakeTransport) AddSubscriber(subject string, handler types.MessageHandler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handlers[subject] = handler
}

func (t *FakeTransport) RemoveSubscriber(subject string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.handlers, subject)
}

func (t *FakeTransport) Broadcast(subject string, payload []byte) error {
	t.bus.broadcast(t.self, subject, payload)
	return nil
}

func (t *FakeTransport) Unicast(peer types.NodeId, subject string, payload []byte) error {
	t.bus.deliver(t.self, peer, subject, payload)
	return nil
}

func (t *FakeTransport) handle(from types.NodeId, subject string, payload []byte) {
	t.mutex.Lock()
	handler, ok := t.handlers[subject]
	t.mutex.Unlock()
	if ok {
		handler(from, subject, payload)
	}
}

var _ types.Transport = (*FakeTransport)(nil)
var _ types.Unsubscriber = (*FakeTransport)(nil)

// FakeCluster is a fixed membership list, the equivalent of the teacher's
// UnityCluster but for the gossip engine's Cluster collaborator.
type FakeCluster struct {
	local types.ControllerNode
	nodes []types.ControllerNode
}

func NewFakeCluster(local types.ControllerNode, all []types.ControllerNode) *FakeCluster {
	return &FakeCluster{local: local, nodes: all}
}

func (c *FakeCluster) LocalNode() types.ControllerNode  { return c.local }
func (c *FakeCluster) Nodes() []types.ControllerNode    { return c.nodes }

var _ types.Cluster = (*FakeCluster)(nil)

// NodeName builds a deterministic NodeId for test fixtures.
func NodeName(prefix string, index int) types.NodeId {
	return types.NodeId(fmt.Sprintf("%s-%d", prefix, index))
}

// NewFakeClusterSet builds a fully-connected set of node/cluster/transport
// fixtures sharing one bus, as the teacher's CreateCluster built a set of
// unities sharing one process.
func NewFakeClusterSet(prefix string, size int) (bus *FakeBus, clusters []*FakeCluster, transports []*FakeTransport) {
	bus = NewFakeBus()
	var all []types.ControllerNode
	for i := 0; i < size; i++ {
		all = append(all, types.ControllerNode{Id: NodeName(prefix, i), Address: fmt.Sprintf("fake://%s-%d", prefix, i)})
	}
	for i := 0; i < size; i++ {
		clusters = append(clusters, NewFakeCluster(all[i], all))
		transports = append(transports, NewFakeTransport(all[i].Id, bus))
	}
	return bus, clusters, transports
}
