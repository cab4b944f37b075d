package types

// HostDescription is the input carried by a create/update call, whether it
// originates locally (from an upstream discovery provider) or from a peer's
// wire message.
type HostDescription struct {
	Mac         MacAddress
	Vlan        VlanId
	Location    HostLocation
	IpAddresses map[IpAddress]struct{}
	Annotations map[string]string
}

// Host is the public, immutable projection of a replicated host returned by
// queries. It never aliases internal mutable state — callers get a snapshot.
type Host struct {
	ProviderId  ProviderId
	HostId      HostId
	Mac         MacAddress
	Vlan        VlanId
	Location    HostLocation
	IpAddresses []IpAddress
	Annotations map[string]string
}

// Tombstone is the snapshot kept in the removed-hosts map. The snapshot
// retains the last known host value so anti-entropy can recover the
// providerId when pushing a remove (spec.md §3).
type Tombstone struct {
	Snapshot  Host
	Timestamp Timestamp
}

// HostEventType enumerates the four kinds of event the dispatcher can emit.
type HostEventType int

const (
	HostAdded HostEventType = iota
	HostMoved
	HostUpdated
	HostRemoved
)

func (t HostEventType) String() string {
	switch t {
	case HostAdded:
		return "HOST_ADDED"
	case HostMoved:
		return "HOST_MOVED"
	case HostUpdated:
		return "HOST_UPDATED"
	case HostRemoved:
		return "HOST_REMOVED"
	default:
		return "UNKNOWN"
	}
}

// HostEvent is delivered to the upstream delegate on a real local state
// transition. Prev is only populated for HostMoved, carrying the location
// the host moved away from.
type HostEvent struct {
	Type    HostEventType
	Subject Host
	Prev    *HostLocation
}

// HostProviderDelegate is the upstream collaborator notified of local state
// transitions. It is invoked synchronously by whichever goroutine produced
// the transition (local caller, foreground peer-message worker, or the
// anti-entropy worker); if it panics, the panic is caught by the caller's
// recover and logged, never propagated.
type HostProviderDelegate interface {
	HostEvent(event HostEvent)
}

// HostProviderDelegateFunc adapts a plain function to HostProviderDelegate.
type HostProviderDelegateFunc func(event HostEvent)

func (f HostProviderDelegateFunc) HostEvent(event HostEvent) {
	f(event)
}
