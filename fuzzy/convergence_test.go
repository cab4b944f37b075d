// Package fuzzy exercises the gossip engine end-to-end across a handful of
// in-process nodes sharing a fake transport, the way the teacher's own
// fuzzy package drove full unities through a fake cluster rather than a real
// network.
package fuzzy

import (
	"testing"
	"time"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/definition"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/jabolina/go-hostgossip/test"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func fastConfig() types.Config {
	cfg := types.DefaultConfig()
	cfg.AntiEntropyInitialDelay = 10 * time.Millisecond
	cfg.AntiEntropyPeriod = 20 * time.Millisecond
	cfg.ExecutorShutdownGrace = 2 * time.Second
	return cfg
}

func buildManagers(t *testing.T, prefix string, size int) (managers []*hostgossip.Manager, bus *test.FakeBus) {
	bus, clusters, transports := test.NewFakeClusterSet(prefix, size)
	for i := 0; i < size; i++ {
		reg := prometheus.NewRegistry()
		mgr := hostgossip.NewManager(fastConfig(), hostgossip.Deps{
			Logger:     definition.NewDefaultLogger(),
			Clock:      test.NewOffsetFakeClock(uint64(i) * 1_000_000),
			Cluster:    clusters[i],
			Transport:  transports[i],
			Codec:      definition.NewJSONCodec(),
			Registerer: reg,
			Namespace:  "hostgossip_test",
		})
		mgr.Start()
		managers = append(managers, mgr)
	}
	t.Cleanup(func() {
		for _, mgr := range managers {
			mgr.Stop()
		}
	})
	return managers, bus
}

func sampleDescription(cp types.ConnectPoint, ip types.IpAddress) types.HostDescription {
	return types.HostDescription{
		Mac:         types.MacAddress{0x10, 0x20, 0x30, 0x40, 0x50, 0x60},
		Vlan:        100,
		Location:    types.HostLocation{ConnectPoint: cp},
		IpAddresses: map[types.IpAddress]struct{}{ip: {}},
	}
}

func eventuallyAllSee(t *testing.T, managers []*hostgossip.Manager, hostId types.HostId, check func(types.Host, bool) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		allOk := true
		for _, mgr := range managers {
			host, ok := mgr.GetHost(hostId)
			if !check(host, ok) {
				allOk = false
				break
			}
		}
		if allOk {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("nodes did not converge within deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Test_BroadcastConvergesImmediately covers the straightforward add path:
// a local update on one node is broadcast and observed everywhere.
func Test_BroadcastConvergesImmediately(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	managers, _ := buildManagers(t, "add", 3)

	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId := types.NewHostId(types.MacAddress{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}, 100)
	event := managers[0].CreateOrUpdateHost("provider-a", hostId, sampleDescription(cp, "10.0.0.5"))
	require.NotNil(t, event)
	require.Equal(t, types.HostAdded, event.Type)

	eventuallyAllSee(t, managers, hostId, func(h types.Host, ok bool) bool {
		return ok && h.Location.ConnectPoint == cp
	})
}

// Test_AntiEntropyFillsBroadcastGap drops every broadcast so the only path
// to convergence is the periodic anti-entropy advertisement.
func Test_AntiEntropyFillsBroadcastGap(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	managers, bus := buildManagers(t, "gap", 3)
	bus.SetDropRate(1.0)

	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId := types.NewHostId(types.MacAddress{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}, 100)
	managers[0].CreateOrUpdateHost("provider-a", hostId, sampleDescription(cp, "10.0.0.5"))

	// Broadcasts were dropped; the host must still reach the other nodes
	// through anti-entropy once the drop rate is lifted.
	for _, mgr := range managers[1:] {
		_, ok := mgr.GetHost(hostId)
		require.False(t, ok)
	}
	bus.SetDropRate(0)

	eventuallyAllSee(t, managers, hostId, func(h types.Host, ok bool) bool {
		return ok && h.Location.ConnectPoint == cp
	})
}

// Test_RemoteTombstoneCatchesUpLocalLive covers anti-entropy scan C: a node
// that only saw the add, never the remove, must catch up once a peer's
// tombstone reaches it via reconciliation.
func Test_RemoteTombstoneCatchesUpLocalLive(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	managers, bus := buildManagers(t, "zombie", 2)

	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId := types.NewHostId(types.MacAddress{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}, 100)
	managers[0].CreateOrUpdateHost("provider-a", hostId, sampleDescription(cp, "10.0.0.5"))
	eventuallyAllSee(t, managers, hostId, func(h types.Host, ok bool) bool { return ok })

	// Node 0 removes and its broadcast is dropped; node 1 still believes
	// the host is live until anti-entropy informs it of the tombstone.
	bus.SetDropRate(1.0)
	managers[0].RemoveHost(hostId)
	bus.SetDropRate(0)

	eventuallyAllSee(t, managers, hostId, func(h types.Host, ok bool) bool { return !ok })
}

// Test_ConcurrentConflictingMovesConvergeToNewer starts two nodes racing to
// move the same host to different connect points and asserts every node
// settles on whichever move carried the newer timestamp, never a mix. Node
// 1's clock is offset far ahead of node 0's, so its move to cp2 is the newer.
func Test_ConcurrentConflictingMovesConvergeToNewer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	managers, _ := buildManagers(t, "conflict", 2)

	hostId := types.NewHostId(types.MacAddress{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}, 100)
	cpA := types.ConnectPoint{DeviceId: "dA", Port: 1}
	managers[0].CreateOrUpdateHost("provider-a", hostId, sampleDescription(cpA, "10.0.0.5"))
	eventuallyAllSee(t, managers, hostId, func(h types.Host, ok bool) bool { return ok })

	cp1 := types.ConnectPoint{DeviceId: "d1", Port: 1}
	cp2 := types.ConnectPoint{DeviceId: "d2", Port: 2}
	done := make(chan struct{}, 2)
	go func() {
		managers[0].CreateOrUpdateHost("provider-a", hostId, sampleDescription(cp1, "10.0.0.5"))
		done <- struct{}{}
	}()
	go func() {
		managers[1].CreateOrUpdateHost("provider-a", hostId, sampleDescription(cp2, "10.0.0.5"))
		done <- struct{}{}
	}()
	<-done
	<-done

	var winner types.ConnectPoint
	deadline := time.Now().Add(3 * time.Second)
	for {
		h0, ok0 := managers[0].GetHost(hostId)
		h1, ok1 := managers[1].GetHost(hostId)
		if ok0 && ok1 && h0.Location.ConnectPoint == h1.Location.ConnectPoint {
			winner = h0.Location.ConnectPoint
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("nodes disagree on final location: %+v vs %+v", h0, h1)
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, cp2, winner)
}

// Test_StaleResurrectionNeverReappears covers the idempotency guarantee: a
// remove, once observed, cannot be undone by an older update replayed by
// anti-entropy.
func Test_StaleResurrectionNeverReappears(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	managers, _ := buildManagers(t, "stale", 2)

	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId := types.NewHostId(types.MacAddress{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}, 100)
	managers[0].CreateOrUpdateHost("provider-a", hostId, sampleDescription(cp, "10.0.0.5"))
	eventuallyAllSee(t, managers, hostId, func(h types.Host, ok bool) bool { return ok })

	managers[0].RemoveHost(hostId)
	eventuallyAllSee(t, managers, hostId, func(h types.Host, ok bool) bool { return !ok })

	// Give anti-entropy a few more rounds; the removed host must stay gone.
	time.Sleep(100 * time.Millisecond)
	for _, mgr := range managers {
		_, ok := mgr.GetHost(hostId)
		require.False(t, ok)
	}
}
