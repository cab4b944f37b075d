package core

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// GossipEngine owns the three message handlers and the periodic
// anti-entropy task described in spec.md §4.3-§4.4. Inbound messages are
// enqueued onto one of two pools and handled off the transport callback
// goroutine (spec.md §5): an elastic pool for foreground update/remove
// messages, and a single-worker pool that serializes anti-entropy
// reconciliation and the periodic advertisement send so at most one
// full-state scan runs at a time.
type GossipEngine struct {
	log       types.Logger
	clock     types.Clock
	cluster   types.Cluster
	transport types.Transport
	codec     types.Codec
	store     *HostStore
	metrics   *Metrics
	config    types.Config
	prng      *rand.Rand

	foreground Invoker
	background Invoker

	stopCh   chan struct{}
	tickerWG sync.WaitGroup
}

func NewGossipEngine(cfg types.Config, log types.Logger, clock types.Clock, cluster types.Cluster, transport types.Transport, codec types.Codec, store *HostStore, metrics *Metrics) *GossipEngine {
	return &GossipEngine{
		log:       log,
		clock:     clock,
		cluster:   cluster,
		transport: transport,
		codec:     codec,
		store:     store,
		metrics:   metrics,
		config:    cfg,
		prng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start subscribes the three subjects, spins up the worker pools, and
// schedules the periodic advertisement task (spec.md §5 lifecycle).
func (g *GossipEngine) Start() {
	g.foreground = NewElasticInvoker(g.log)
	g.background = NewSingleWorkerInvoker(g.log, 256)
	g.stopCh = make(chan struct{})

	g.transport.AddSubscriber(types.SubjectHostUpdated, g.onHostUpdated)
	g.transport.AddSubscriber(types.SubjectHostRemoved, g.onHostRemoved)
	g.transport.AddSubscriber(types.SubjectHostAntiEntropyAdvertise, g.onAdvertisement)

	g.tickerWG.Add(1)
	go func() {
		defer g.tickerWG.Done()
		g.runPeriodic()
	}()
}

// Stop unsubscribes (best-effort, if the transport supports it), cancels
// the periodic task, and drains both pools with a bounded grace period
// before giving up (spec.md §5 lifecycle).
func (g *GossipEngine) Stop() {
	if unsub, ok := g.transport.(types.Unsubscriber); ok {
		unsub.RemoveSubscriber(types.SubjectHostUpdated)
		unsub.RemoveSubscriber(types.SubjectHostRemoved)
		unsub.RemoveSubscriber(types.SubjectHostAntiEntropyAdvertise)
	}

	close(g.stopCh)
	g.tickerWG.Wait()

	drained := make(chan struct{})
	go func() {
		g.foreground.Stop()
		g.background.Stop()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(g.config.ExecutorShutdownGrace):
		g.log.Warnf("gossip worker pools did not drain within %s, continuing shutdown", g.config.ExecutorShutdownGrace)
	}
}

func (g *GossipEngine) onHostUpdated(_ types.NodeId, _ string, payload []byte) {
	g.foreground.Spawn(func() { g.processHostUpdated(payload) })
}

func (g *GossipEngine) onHostRemoved(_ types.NodeId, _ string, payload []byte) {
	g.foreground.Spawn(func() { g.processHostRemoved(payload) })
}

func (g *GossipEngine) onAdvertisement(_ types.NodeId, _ string, payload []byte) {
	g.background.Spawn(func() { g.processAdvertisement(payload) })
}

func (g *GossipEngine) processHostUpdated(payload []byte) {
	var msg types.InternalHostEvent
	if err := g.codec.Decode(payload, &msg); err != nil {
		g.log.Warnf("dropping undecodable %s message: %v", types.SubjectHostUpdated, err)
		return
	}
	g.store.ApplyUpdate(msg.ProviderId, msg.HostId, msg.HostDescription, msg.Timestamp)
}

func (g *GossipEngine) processHostRemoved(payload []byte) {
	var msg types.InternalHostRemovedEvent
	if err := g.codec.Decode(payload, &msg); err != nil {
		g.log.Warnf("dropping undecodable %s message: %v", types.SubjectHostRemoved, err)
		return
	}
	g.store.ApplyRemove(msg.HostId, msg.Timestamp)
}

func (g *GossipEngine) processAdvertisement(payload []byte) {
	var ad types.HostAntiEntropyAdvertisement
	if err := g.codec.Decode(payload, &ad); err != nil {
		g.log.Warnf("dropping undecodable %s message: %v", types.SubjectHostAntiEntropyAdvertise, err)
		return
	}
	g.reconcile(ad)
}

// reconcile runs the three scans from spec.md §4.4 against a single
// point-in-time snapshot of the local tables. Any local removal the scans
// decide on reacquires the store's own lock per host (ApplyRemove), rather
// than holding the snapshot lock for the whole reconciliation — the
// alternative spec.md explicitly allows.
func (g *GossipEngine) reconcile(ad types.HostAntiEntropyAdvertisement) {
	live, tombstones := g.store.snapshotForGossip()

	// Scan A — local live hosts against the sender's digest.
	for hostId, entry := range live {
		fragId := types.HostFragmentId{HostId: hostId, ProviderId: entry.providerId}
		rLive, hasLive := ad.Timestamps[fragId]
		rDead, hasDead := ad.Tombstones[hostId]

		var reference types.Timestamp
		present := false
		if hasLive {
			reference = rLive
			present = true
		} else if hasDead {
			reference = rDead
			present = true
		}

		if !present || entry.timestamp.IsNewer(reference) {
			g.pushUpdate(ad.Sender, hostId, entry)
		}
		if hasDead && rDead.IsNewer(entry.timestamp) {
			// The sender knows of a newer remove than our live copy.
			g.store.ApplyRemove(hostId, rDead)
		}
	}

	// Scan B — local tombstones the sender still believes are live
	// ("zombies"): push the remove instead of applying anything locally.
	for hostId, tomb := range tombstones {
		fragId := types.HostFragmentId{HostId: hostId, ProviderId: tomb.Snapshot.ProviderId}
		rLive, hasLive := ad.Timestamps[fragId]
		if hasLive && tomb.Timestamp.IsNewer(rLive) {
			g.pushRemove(ad.Sender, hostId, tomb.Timestamp)
		}
	}

	// Scan C — remote tombstones for hosts we still think are live.
	for hostId, rDead := range ad.Tombstones {
		entry, ok := live[hostId]
		if ok && rDead.IsNewer(entry.timestamp) {
			g.store.ApplyRemove(hostId, rDead)
		}
	}
}

func (g *GossipEngine) pushUpdate(peer types.NodeId, hostId types.HostId, entry hostSnapshotEntry) {
	msg := types.InternalHostEvent{
		ProviderId:      entry.providerId,
		HostId:          hostId,
		HostDescription: entry.descr,
		Timestamp:       entry.timestamp,
	}
	payload, err := g.codec.Encode(msg)
	if err != nil {
		g.log.Errorf("failed encoding anti-entropy push for %s: %v", hostId, err)
		return
	}
	if err := g.transport.Unicast(peer, types.SubjectHostUpdated, payload); err != nil {
		g.log.Debugf("anti-entropy push of %s to %s failed: %v", hostId, peer, err)
		return
	}
	if g.metrics != nil {
		g.metrics.AntiEntropyPush.WithLabelValues("update").Inc()
	}
}

func (g *GossipEngine) pushRemove(peer types.NodeId, hostId types.HostId, t types.Timestamp) {
	msg := types.InternalHostRemovedEvent{HostId: hostId, Timestamp: t}
	payload, err := g.codec.Encode(msg)
	if err != nil {
		g.log.Errorf("failed encoding anti-entropy zombie push for %s: %v", hostId, err)
		return
	}
	if err := g.transport.Unicast(peer, types.SubjectHostRemoved, payload); err != nil {
		g.log.Debugf("anti-entropy zombie push of %s to %s failed: %v", hostId, peer, err)
		return
	}
	if g.metrics != nil {
		g.metrics.AntiEntropyPush.WithLabelValues("remove").Inc()
	}
}

func (g *GossipEngine) runPeriodic() {
	timer := time.NewTimer(g.config.AntiEntropyInitialDelay)
	defer timer.Stop()
	for {
		select {
		case <-g.stopCh:
			return
		case <-timer.C:
			g.background.Spawn(g.safeSendAdvertisement)
			timer.Reset(g.config.AntiEntropyPeriod)
		}
	}
}

// safeSendAdvertisement catches any panic from a single round so the
// periodic schedule is never suppressed (spec.md §7).
func (g *GossipEngine) safeSendAdvertisement() {
	defer func() {
		if r := recover(); r != nil {
			g.log.Errorf("recovered panic in anti-entropy task: %v", r)
		}
	}()
	g.sendAdvertisement()
}

func (g *GossipEngine) sendAdvertisement() {
	local := g.cluster.LocalNode()
	var peers []types.NodeId
	for _, n := range g.cluster.Nodes() {
		if n.Id != local.Id {
			peers = append(peers, n.Id)
		}
	}
	if len(peers) == 0 {
		// Single-node cluster: nothing to gossip with (spec.md §4.4 step 1).
		return
	}

	peer := peers[g.prng.Intn(len(peers))]
	ad := g.store.BuildAdvertisement(local.Id)
	payload, err := g.codec.Encode(ad)
	if err != nil {
		g.log.Errorf("failed encoding anti-entropy advertisement: %v", err)
		return
	}
	if err := g.transport.Unicast(peer, types.SubjectHostAntiEntropyAdvertise, payload); err != nil {
		g.log.Debugf("anti-entropy advertisement to %s failed, skipping round: %v", peer, err)
		return
	}
	if g.metrics != nil {
		g.metrics.AntiEntropyRound.Inc()
	}
}
