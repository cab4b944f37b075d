package core

import (
	"testing"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mac(b byte) types.MacAddress {
	return types.MacAddress{0xaa, 0xbb, 0xcc, 0xdd, 0xee, b}
}

func descr(cp types.ConnectPoint, ips ...types.IpAddress) (types.HostId, types.HostDescription) {
	m := mac(0x01)
	id := types.NewHostId(m, 10)
	set := make(map[types.IpAddress]struct{}, len(ips))
	for _, ip := range ips {
		set[ip] = struct{}{}
	}
	return id, types.HostDescription{
		Mac:         m,
		Vlan:        10,
		Location:    types.HostLocation{ConnectPoint: cp},
		IpAddresses: set,
	}
}

func newTestStore(delegate types.HostProviderDelegate) *HostStore {
	return NewHostStore(types.DefaultConfig(), noopLogger{}, nil, delegate)
}

type noopLogger struct{}

func (noopLogger) Info(v ...interface{})                 {}
func (noopLogger) Infof(format string, v ...interface{})  {}
func (noopLogger) Warn(v ...interface{})                  {}
func (noopLogger) Warnf(format string, v ...interface{})  {}
func (noopLogger) Error(v ...interface{})                 {}
func (noopLogger) Errorf(format string, v ...interface{}) {}
func (noopLogger) Debug(v ...interface{})                 {}
func (noopLogger) Debugf(format string, v ...interface{}) {}
func (noopLogger) Fatal(v ...interface{})                 {}
func (noopLogger) Fatalf(format string, v ...interface{}) {}
func (noopLogger) Panic(v ...interface{})                 {}
func (noopLogger) Panicf(format string, v ...interface{}) {}
func (noopLogger) ToggleDebug(value bool) bool            { return value }

var _ types.Logger = noopLogger{}

func TestApplyUpdateCreatesHost(t *testing.T) {
	var events []types.HostEvent
	store := newTestStore(types.HostProviderDelegateFunc(func(e types.HostEvent) { events = append(events, e) }))

	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId, d := descr(cp, "10.0.0.1")

	event := store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(1))
	require.NotNil(t, event)
	assert.Equal(t, types.HostAdded, event.Type)
	require.Len(t, events, 1)

	got, ok := store.GetHost(hostId)
	require.True(t, ok)
	assert.Equal(t, cp, got.Location.ConnectPoint)
	assert.Equal(t, []types.IpAddress{"10.0.0.1"}, got.IpAddresses)
}

func TestApplyUpdateMovesOnNewerLocation(t *testing.T) {
	store := newTestStore(nil)
	cp1 := types.ConnectPoint{DeviceId: "d1", Port: 1}
	cp2 := types.ConnectPoint{DeviceId: "d2", Port: 2}
	hostId, d1 := descr(cp1)
	store.ApplyUpdate("p1", hostId, d1, types.NewSequenceTimestamp(1))

	_, d2 := descr(cp2)
	event := store.ApplyUpdate("p1", hostId, d2, types.NewSequenceTimestamp(2))
	require.NotNil(t, event)
	assert.Equal(t, types.HostMoved, event.Type)
	require.NotNil(t, event.Prev)
	assert.Equal(t, cp1, event.Prev.ConnectPoint)

	connected := store.GetConnectedHosts(cp2)
	require.Len(t, connected, 1)
	assert.Empty(t, store.GetConnectedHosts(cp1))
}

func TestApplyUpdateIgnoresStaleLocation(t *testing.T) {
	store := newTestStore(nil)
	cp1 := types.ConnectPoint{DeviceId: "d1", Port: 1}
	cp2 := types.ConnectPoint{DeviceId: "d2", Port: 2}
	hostId, d1 := descr(cp1)
	store.ApplyUpdate("p1", hostId, d1, types.NewSequenceTimestamp(5))

	_, d2 := descr(cp2)
	event := store.ApplyUpdate("p1", hostId, d2, types.NewSequenceTimestamp(2))
	assert.Nil(t, event, "a stale timestamp must never move the host")

	got, _ := store.GetHost(hostId)
	assert.Equal(t, cp1, got.Location.ConnectPoint)
}

func TestApplyUpdateNoopWhenNothingNew(t *testing.T) {
	store := newTestStore(nil)
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId, d := descr(cp, "10.0.0.1")
	store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(1))

	event := store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(2))
	assert.Nil(t, event, "repeating the same description carries no new information")
}

func TestApplyUpdateMergesNewIpsAndAnnotations(t *testing.T) {
	store := newTestStore(nil)
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId, d := descr(cp, "10.0.0.1")
	store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(1))

	_, d2 := descr(cp, "10.0.0.1", "10.0.0.2")
	d2.Annotations = map[string]string{"source": "arp"}
	event := store.ApplyUpdate("p1", hostId, d2, types.NewSequenceTimestamp(2))
	require.NotNil(t, event)
	assert.Equal(t, types.HostUpdated, event.Type)

	got, _ := store.GetHost(hostId)
	assert.ElementsMatch(t, []types.IpAddress{"10.0.0.1", "10.0.0.2"}, got.IpAddresses)
	assert.Equal(t, "arp", got.Annotations["source"])
}

func TestApplyRemoveThenStaleResurrectionSuppressed(t *testing.T) {
	store := newTestStore(nil)
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId, d := descr(cp)
	store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(5))

	removeEvent := store.ApplyRemove(hostId, types.NewSequenceTimestamp(10))
	require.NotNil(t, removeEvent)
	assert.Equal(t, types.HostRemoved, removeEvent.Type)
	_, ok := store.GetHost(hostId)
	assert.False(t, ok)

	resurrect := store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(6))
	assert.Nil(t, resurrect, "an update older than the tombstone must not resurrect the host")
	_, ok = store.GetHost(hostId)
	assert.False(t, ok)
}

func TestApplyUpdateAfterNewerTombstoneResurrects(t *testing.T) {
	store := newTestStore(nil)
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId, d := descr(cp)
	store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(5))
	store.ApplyRemove(hostId, types.NewSequenceTimestamp(10))

	event := store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(20))
	require.NotNil(t, event)
	assert.Equal(t, types.HostAdded, event.Type)
	_, ok := store.GetHost(hostId)
	assert.True(t, ok)
}

func TestApplyRemoveIdempotentOnTombstone(t *testing.T) {
	store := newTestStore(nil)
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId, d := descr(cp)
	store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(1))
	store.ApplyRemove(hostId, types.NewSequenceTimestamp(2))

	event := store.ApplyRemove(hostId, types.NewSequenceTimestamp(3))
	assert.Nil(t, event, "replaying a remove against an existing tombstone emits nothing")
}

func TestApplyRemoveOnUnknownHostIsNoop(t *testing.T) {
	store := newTestStore(nil)
	hostId := types.NewHostId(mac(0x9), 1)
	event := store.ApplyRemove(hostId, types.NewSequenceTimestamp(1))
	assert.Nil(t, event)
}

func TestBuildAdvertisementCoversLiveAndTombstoned(t *testing.T) {
	store := newTestStore(nil)
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	liveId, d := descr(cp)
	store.ApplyUpdate("p1", liveId, d, types.NewSequenceTimestamp(1))

	removedId := types.NewHostId(mac(0x02), 10)
	_, d2 := descr(cp)
	store.ApplyUpdate("p1", removedId, d2, types.NewSequenceTimestamp(1))
	store.ApplyRemove(removedId, types.NewSequenceTimestamp(2))

	ad := store.BuildAdvertisement("node-a")
	assert.Contains(t, ad.Timestamps, types.HostFragmentId{HostId: liveId, ProviderId: "p1"})
	assert.Contains(t, ad.Tombstones, removedId)
}

func TestClearWipesEverything(t *testing.T) {
	store := newTestStore(nil)
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	hostId, d := descr(cp)
	store.ApplyUpdate("p1", hostId, d, types.NewSequenceTimestamp(1))
	store.ApplyRemove(hostId, types.NewSequenceTimestamp(2))

	store.Clear()
	assert.Empty(t, store.GetHosts())
	ad := store.BuildAdvertisement("node-a")
	assert.Empty(t, ad.Timestamps)
	assert.Empty(t, ad.Tombstones)
}
