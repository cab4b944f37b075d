// Package hostgossip implements a replicated inventory of end-station
// hosts maintained across a cluster of controller nodes using optimistic
// replication with last-writer-wins semantics and a periodic anti-entropy
// protocol. See the core package for the host table and gossip engine; this
// package is the public facade wiring them to the external collaborators
// (clock, cluster, transport, codec) and exposing the operations clients
// call.
package hostgossip

import (
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/core"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/definition"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Manager is the entry point a discovery provider or a query caller talks
// to. It owns the host table, the address-bindings adjunct, and the gossip
// engine, and is the boundary where local mutations get broadcast
// (spec.md §4.3) while peer messages only ever flow through the gossip
// engine's handlers.
type Manager struct {
	config types.Config
	log    types.Logger
	clock  types.Clock

	transport types.Transport
	codec     types.Codec

	store    *core.HostStore
	bindings *core.AddressBindings
	gossip   *core.GossipEngine
	metrics  *core.Metrics
}

// Deps bundles the external collaborators spec.md §6 lists as consumed
// interfaces. Logger and Codec default to a logrus-backed logger and the
// JSON codec respectively when left nil; a nil Registerer disables metrics.
type Deps struct {
	Logger     types.Logger
	Clock      types.Clock
	Cluster    types.Cluster
	Transport  types.Transport
	Codec      types.Codec
	Delegate   types.HostProviderDelegate
	Registerer prometheus.Registerer
	Namespace  string
}

// NewManager wires a Manager from its configuration and collaborators. It
// does not start any goroutines; call Start for that.
func NewManager(cfg types.Config, deps Deps) *Manager {
	log := deps.Logger
	if log == nil {
		log = definition.NewDefaultLogger()
	}
	codec := deps.Codec
	if codec == nil {
		codec = definition.NewJSONCodec()
	}
	namespace := deps.Namespace
	if namespace == "" {
		namespace = "hostgossip"
	}

	var metrics *core.Metrics
	if deps.Registerer != nil {
		metrics = core.NewMetrics(deps.Registerer, namespace)
	}

	store := core.NewHostStore(cfg, log, metrics, deps.Delegate)
	bindings := core.NewAddressBindings()
	gossip := core.NewGossipEngine(cfg, log, deps.Clock, deps.Cluster, deps.Transport, codec, store, metrics)

	return &Manager{
		config:    cfg,
		log:       log,
		clock:     deps.Clock,
		transport: deps.Transport,
		codec:     codec,
		store:     store,
		bindings:  bindings,
		gossip:    gossip,
		metrics:   metrics,
	}
}

// Start subscribes to the transport and schedules the anti-entropy task.
func (m *Manager) Start() {
	m.gossip.Start()
}

// Stop unsubscribes, drains the worker pools, and clears every in-memory
// map (spec.md §5 lifecycle).
func (m *Manager) Stop() {
	m.gossip.Stop()
	m.store.Clear()
	m.bindings.Clear()
}

// CreateOrUpdateHost is the local entry point for a discovery provider
// reporting a host. It obtains a timestamp from the clock, applies the pure
// update algorithm, and — only for this local path — broadcasts the result
// to the rest of the cluster (spec.md §9 "cyclic callback structure").
func (m *Manager) CreateOrUpdateHost(providerId types.ProviderId, hostId types.HostId, descr types.HostDescription) *types.HostEvent {
	t := m.clock.GetTimestamp(hostId)
	event := m.store.ApplyUpdate(providerId, hostId, descr, t)
	if event != nil {
		m.broadcastUpdate(providerId, hostId, descr, t)
	}
	return event
}

// RemoveHost is the local entry point for removing a host.
func (m *Manager) RemoveHost(hostId types.HostId) *types.HostEvent {
	t := m.clock.GetTimestamp(hostId)
	event := m.store.ApplyRemove(hostId, t)
	if event != nil {
		m.broadcastRemove(hostId, t)
	}
	return event
}

func (m *Manager) broadcastUpdate(providerId types.ProviderId, hostId types.HostId, descr types.HostDescription, t types.Timestamp) {
	msg := types.InternalHostEvent{ProviderId: providerId, HostId: hostId, HostDescription: descr, Timestamp: t}
	payload, err := m.codec.Encode(msg)
	if err != nil {
		m.log.Errorf("failed encoding broadcast for %s: %v", hostId, err)
		return
	}
	if err := m.transport.Broadcast(types.SubjectHostUpdated, payload); err != nil {
		// Transport failure is logged and swallowed; convergence is
		// guaranteed by anti-entropy, not broadcast (spec.md §4.3).
		m.log.Debugf("broadcast of %s update failed, anti-entropy will reconcile: %v", hostId, err)
	}
}

func (m *Manager) broadcastRemove(hostId types.HostId, t types.Timestamp) {
	msg := types.InternalHostRemovedEvent{HostId: hostId, Timestamp: t}
	payload, err := m.codec.Encode(msg)
	if err != nil {
		m.log.Errorf("failed encoding remove broadcast for %s: %v", hostId, err)
		return
	}
	if err := m.transport.Broadcast(types.SubjectHostRemoved, payload); err != nil {
		m.log.Debugf("broadcast of %s remove failed, anti-entropy will reconcile: %v", hostId, err)
	}
}

// GetHost returns the live host, if any.
func (m *Manager) GetHost(hostId types.HostId) (types.Host, bool) { return m.store.GetHost(hostId) }

// GetHosts returns a snapshot of every live host.
func (m *Manager) GetHosts() []types.Host { return m.store.GetHosts() }

// GetHostsByVlan returns a snapshot of every live host on vlan.
func (m *Manager) GetHostsByVlan(vlan types.VlanId) []types.Host { return m.store.GetHostsByVlan(vlan) }

// GetHostsByMac returns a snapshot of every live host with the given MAC.
func (m *Manager) GetHostsByMac(mac types.MacAddress) []types.Host { return m.store.GetHostsByMac(mac) }

// GetHostsByIp returns a snapshot of every live host holding ip.
func (m *Manager) GetHostsByIp(ip types.IpAddress) []types.Host { return m.store.GetHostsByIp(ip) }

// GetConnectedHosts returns a snapshot of every live host attached to cp.
func (m *Manager) GetConnectedHosts(cp types.ConnectPoint) []types.Host {
	return m.store.GetConnectedHosts(cp)
}

// GetConnectedHostsByDevice returns a snapshot of every live host attached
// to any port of deviceId.
func (m *Manager) GetConnectedHostsByDevice(deviceId types.DeviceId) []types.Host {
	return m.store.GetConnectedHostsByDevice(deviceId)
}

// UpdateAddressBindings replaces the binding for addr.ConnectPoint
// (spec.md §4.5; local state only, never replicated).
func (m *Manager) UpdateAddressBindings(addr types.PortAddresses) { m.bindings.Update(addr) }

// RemoveAddressBindings deletes the binding for cp, if any.
func (m *Manager) RemoveAddressBindings(cp types.ConnectPoint) { m.bindings.Remove(cp) }

// ClearAddressBindings removes every binding.
func (m *Manager) ClearAddressBindings() { m.bindings.Clear() }

// GetAddressBindings returns a snapshot of every binding.
func (m *Manager) GetAddressBindings() []types.PortAddresses { return m.bindings.GetAll() }

// GetAddressBindingsForPort returns the binding for cp, if any.
func (m *Manager) GetAddressBindingsForPort(cp types.ConnectPoint) (types.PortAddresses, bool) {
	return m.bindings.GetForPort(cp)
}
