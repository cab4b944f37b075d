package core

import (
	"sort"
	"sync"

	"github.com/imdario/mergo"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// storedHost is the internal live-table representation (spec.md §3).
// providerId, hostId, mac and vlan are fixed once created; ipAddresses and
// annotations are replaced by their merge with newer input on an update;
// location is replaced wholesale, paired with the timestamp it was observed at.
type storedHost struct {
	providerId  types.ProviderId
	hostId      types.HostId
	mac         types.MacAddress
	vlan        types.VlanId
	annotations map[string]string
	ipAddresses map[types.IpAddress]struct{}
	location    timestampedLocation
}

type timestampedLocation struct {
	location  types.HostLocation
	timestamp types.Timestamp
}

// hostSnapshotEntry is a point-in-time, lock-free copy of a live host used
// to build anti-entropy advertisements and pushes without holding the store
// mutex across network I/O.
type hostSnapshotEntry struct {
	providerId types.ProviderId
	timestamp  types.Timestamp
	descr      types.HostDescription
}

// HostStore is the replicated host table: the live map, the location
// index, and the tombstone map, all guarded by a single mutex (spec.md §5).
type HostStore struct {
	mutex sync.Mutex

	hosts        map[types.HostId]*storedHost
	locations    map[types.HostLocation]map[types.HostId]struct{}
	removedHosts map[types.HostId]*types.Tombstone

	log      types.Logger
	metrics  *Metrics
	delegate types.HostProviderDelegate
}

func NewHostStore(cfg types.Config, log types.Logger, metrics *Metrics, delegate types.HostProviderDelegate) *HostStore {
	capacity := cfg.HostsExpected
	if capacity <= 0 {
		capacity = 16
	}
	return &HostStore{
		hosts:        make(map[types.HostId]*storedHost, capacity),
		locations:    make(map[types.HostLocation]map[types.HostId]struct{}, capacity),
		removedHosts: make(map[types.HostId]*types.Tombstone, capacity),
		log:          log,
		metrics:      metrics,
		delegate:     delegate,
	}
}

// ApplyUpdate is the pure state-transition function shared by the local
// CreateOrUpdateHost call and the peer update handler (spec.md §4.1, §9
// "cyclic callback structure"). It returns the event produced, or nil if
// the update was stale or a no-op.
func (s *HostStore) ApplyUpdate(providerId types.ProviderId, hostId types.HostId, descr types.HostDescription, t types.Timestamp) *types.HostEvent {
	s.mutex.Lock()

	if tomb, ok := s.removedHosts[hostId]; ok {
		if tomb.Timestamp.IsNewer(t) {
			// Stale resurrection suppressed: the tombstone already
			// dominates this timestamp.
			s.mutex.Unlock()
			return nil
		}
		delete(s.removedHosts, hostId)
	}

	var event *types.HostEvent
	existing, ok := s.hosts[hostId]
	if !ok {
		sh := &storedHost{
			providerId:  providerId,
			hostId:      hostId,
			mac:         descr.Mac,
			vlan:        descr.Vlan,
			annotations: copyAnnotations(descr.Annotations),
			ipAddresses: copyIpSet(descr.IpAddresses),
			location:    timestampedLocation{location: descr.Location, timestamp: t},
		}
		s.hosts[hostId] = sh
		s.indexLocation(hostId, sh.location.location)
		event = &types.HostEvent{Type: types.HostAdded, Subject: s.projectLocked(sh)}
	} else if t.IsNewer(existing.location.timestamp) && descr.Location != existing.location.location {
		prev := existing.location.location
		s.deindexLocation(hostId, prev)
		existing.location = timestampedLocation{location: descr.Location, timestamp: t}
		s.indexLocation(hostId, descr.Location)
		event = &types.HostEvent{Type: types.HostMoved, Subject: s.projectLocked(existing), Prev: &prev}
	} else if isSubsetIp(descr.IpAddresses, existing.ipAddresses) && len(descr.Annotations) == 0 {
		// No new information: neither a move, nor new IPs or annotations.
		event = nil
	} else {
		existing.ipAddresses = unionIp(existing.ipAddresses, descr.IpAddresses)
		existing.annotations = mergeAnnotations(existing.annotations, descr.Annotations)
		event = &types.HostEvent{Type: types.HostUpdated, Subject: s.projectLocked(existing)}
	}

	liveCount, tombCount := len(s.hosts), len(s.removedHosts)
	s.mutex.Unlock()

	s.updateGauges(liveCount, tombCount)
	s.dispatch(event)
	return event
}

// ApplyRemove is the pure state-transition function shared by the local
// RemoveHost call, the peer remove handler, and anti-entropy reconciliation
// (spec.md §4.1 remove algorithm). Calling it for an already-tombstoned key
// keeps the stored tombstone timestamp at the maximum seen, without
// emitting a second event — this is what lets anti-entropy scans A and C
// replay a remove idempotently.
func (s *HostStore) ApplyRemove(hostId types.HostId, t types.Timestamp) *types.HostEvent {
	s.mutex.Lock()

	var event *types.HostEvent
	if sh, ok := s.hosts[hostId]; ok {
		delete(s.hosts, hostId)
		s.deindexLocation(hostId, sh.location.location)
		snapshot := s.projectLocked(sh)
		s.removedHosts[hostId] = &types.Tombstone{Snapshot: snapshot, Timestamp: t}
		event = &types.HostEvent{Type: types.HostRemoved, Subject: snapshot}
	} else if tomb, ok := s.removedHosts[hostId]; ok {
		if t.IsNewer(tomb.Timestamp) {
			tomb.Timestamp = t
		}
	}

	liveCount, tombCount := len(s.hosts), len(s.removedHosts)
	s.mutex.Unlock()

	s.updateGauges(liveCount, tombCount)
	s.dispatch(event)
	return event
}

func (s *HostStore) dispatch(event *types.HostEvent) {
	if event == nil {
		return
	}
	if s.metrics != nil {
		s.metrics.HostEvents.WithLabelValues(event.Type.String()).Inc()
	}
	if s.delegate == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("recovered panic from host delegate on %s for %s: %v", event.Type, event.Subject.HostId, r)
		}
	}()
	s.delegate.HostEvent(*event)
}

func (s *HostStore) updateGauges(live, tomb int) {
	if s.metrics == nil {
		return
	}
	s.metrics.LiveHosts.Set(float64(live))
	s.metrics.TombstonedHosts.Set(float64(tomb))
}

func (s *HostStore) indexLocation(hostId types.HostId, loc types.HostLocation) {
	set, ok := s.locations[loc]
	if !ok {
		set = make(map[types.HostId]struct{})
		s.locations[loc] = set
	}
	set[hostId] = struct{}{}
}

func (s *HostStore) deindexLocation(hostId types.HostId, loc types.HostLocation) {
	set, ok := s.locations[loc]
	if !ok {
		return
	}
	delete(set, hostId)
	if len(set) == 0 {
		delete(s.locations, loc)
	}
}

// projectLocked builds the immutable public Host snapshot. Callers must
// already hold s.mutex.
func (s *HostStore) projectLocked(sh *storedHost) types.Host {
	ips := make([]types.IpAddress, 0, len(sh.ipAddresses))
	for ip := range sh.ipAddresses {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool { return ips[i] < ips[j] })

	annotations := make(map[string]string, len(sh.annotations))
	for k, v := range sh.annotations {
		annotations[k] = v
	}

	return types.Host{
		ProviderId:  sh.providerId,
		HostId:      sh.hostId,
		Mac:         sh.mac,
		Vlan:        sh.vlan,
		Location:    sh.location.location,
		IpAddresses: ips,
		Annotations: annotations,
	}
}

// GetHost returns a snapshot of the live host, if any.
func (s *HostStore) GetHost(hostId types.HostId) (types.Host, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	sh, ok := s.hosts[hostId]
	if !ok {
		return types.Host{}, false
	}
	return s.projectLocked(sh), true
}

// GetHosts returns a snapshot of every live host.
func (s *HostStore) GetHosts() []types.Host {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]types.Host, 0, len(s.hosts))
	for _, sh := range s.hosts {
		out = append(out, s.projectLocked(sh))
	}
	return out
}

// GetHostsByVlan returns a snapshot of every live host on the given VLAN.
func (s *HostStore) GetHostsByVlan(vlan types.VlanId) []types.Host {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var out []types.Host
	for _, sh := range s.hosts {
		if sh.vlan == vlan {
			out = append(out, s.projectLocked(sh))
		}
	}
	return out
}

// GetHostsByMac returns a snapshot of every live host with the given MAC
// (at most one per VLAN, but VLAN is not part of the filter).
func (s *HostStore) GetHostsByMac(mac types.MacAddress) []types.Host {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var out []types.Host
	for _, sh := range s.hosts {
		if sh.mac == mac {
			out = append(out, s.projectLocked(sh))
		}
	}
	return out
}

// GetHostsByIp returns a snapshot of every live host holding the given IP.
func (s *HostStore) GetHostsByIp(ip types.IpAddress) []types.Host {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var out []types.Host
	for _, sh := range s.hosts {
		if _, ok := sh.ipAddresses[ip]; ok {
			out = append(out, s.projectLocked(sh))
		}
	}
	return out
}

// GetConnectedHosts returns a snapshot of every live host attached to cp.
func (s *HostStore) GetConnectedHosts(cp types.ConnectPoint) []types.Host {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	loc := types.HostLocation{ConnectPoint: cp}
	set, ok := s.locations[loc]
	if !ok {
		return nil
	}
	out := make([]types.Host, 0, len(set))
	for hostId := range set {
		out = append(out, s.projectLocked(s.hosts[hostId]))
	}
	return out
}

// GetConnectedHostsByDevice returns a snapshot of every live host attached
// to any port of deviceId. Cardinality is bounded by the device's port
// count, so a full scan of the location index is acceptable (spec.md §4.2).
func (s *HostStore) GetConnectedHostsByDevice(deviceId types.DeviceId) []types.Host {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var out []types.Host
	for loc, set := range s.locations {
		if loc.DeviceId != deviceId {
			continue
		}
		for hostId := range set {
			out = append(out, s.projectLocked(s.hosts[hostId]))
		}
	}
	return out
}

// snapshotForGossip takes a single point-in-time copy of the live and
// tombstone tables for the anti-entropy engine to build an advertisement or
// reconcile one against, without holding the mutex across network I/O.
func (s *HostStore) snapshotForGossip() (map[types.HostId]hostSnapshotEntry, map[types.HostId]types.Tombstone) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	live := make(map[types.HostId]hostSnapshotEntry, len(s.hosts))
	for id, sh := range s.hosts {
		live[id] = hostSnapshotEntry{
			providerId: sh.providerId,
			timestamp:  sh.location.timestamp,
			descr: types.HostDescription{
				Mac:         sh.mac,
				Vlan:        sh.vlan,
				Location:    sh.location.location,
				IpAddresses: copyIpSet(sh.ipAddresses),
				// Annotations are intentionally dropped here: anti-entropy
				// pushes never carry annotations (spec.md §9 open question
				// #3), matching the known lossiness of the original design.
			},
		}
	}

	tombstones := make(map[types.HostId]types.Tombstone, len(s.removedHosts))
	for id, tomb := range s.removedHosts {
		tombstones[id] = *tomb
	}
	return live, tombstones
}

// BuildAdvertisement summarizes every local live host and tombstone into the
// compact digest anti-entropy unicasts to a random peer (spec.md §4.4).
func (s *HostStore) BuildAdvertisement(sender types.NodeId) types.HostAntiEntropyAdvertisement {
	live, tombstones := s.snapshotForGossip()
	ad := types.HostAntiEntropyAdvertisement{
		Sender:     sender,
		Timestamps: make(map[types.HostFragmentId]types.Timestamp, len(live)),
		Tombstones: make(map[types.HostId]types.Timestamp, len(tombstones)),
	}
	for id, entry := range live {
		ad.Timestamps[types.HostFragmentId{HostId: id, ProviderId: entry.providerId}] = entry.timestamp
	}
	for id, tomb := range tombstones {
		ad.Tombstones[id] = tomb.Timestamp
	}
	return ad
}

// Clear wipes the live table, the location index, and the tombstone table.
// Used on Manager shutdown (spec.md §5 lifecycle: "clear all in-memory
// maps").
func (s *HostStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.hosts = make(map[types.HostId]*storedHost)
	s.locations = make(map[types.HostLocation]map[types.HostId]struct{})
	s.removedHosts = make(map[types.HostId]*types.Tombstone)
}

func copyAnnotations(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyIpSet(in map[types.IpAddress]struct{}) map[types.IpAddress]struct{} {
	out := make(map[types.IpAddress]struct{}, len(in))
	for ip := range in {
		out[ip] = struct{}{}
	}
	return out
}

func isSubsetIp(candidate, of map[types.IpAddress]struct{}) bool {
	for ip := range candidate {
		if _, ok := of[ip]; !ok {
			return false
		}
	}
	return true
}

func unionIp(a, b map[types.IpAddress]struct{}) map[types.IpAddress]struct{} {
	out := make(map[types.IpAddress]struct{}, len(a)+len(b))
	for ip := range a {
		out[ip] = struct{}{}
	}
	for ip := range b {
		out[ip] = struct{}{}
	}
	return out
}

// mergeAnnotations combines existing with incoming, letting incoming win on
// key collisions — new information is assumed fresher than old, even though
// annotations themselves carry no timestamp (spec.md §3 non-location fields
// merge set/key-wise, with no stated collision policy). Uses
// github.com/imdario/mergo the way linkerd/linkerd2 merges its own
// configuration maps.
func mergeAnnotations(existing, incoming map[string]string) map[string]string {
	merged := copyAnnotations(existing)
	if len(incoming) == 0 {
		return merged
	}
	_ = mergo.Merge(&merged, incoming, mergo.WithOverride)
	return merged
}
