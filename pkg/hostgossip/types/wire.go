package types

import "encoding/json"

// Subjects are the stable transport subject strings used across the
// cluster (spec.md §6).
const (
	SubjectHostUpdated             = "HOST_UPDATED"
	SubjectHostRemoved              = "HOST_REMOVED"
	SubjectHostAntiEntropyAdvertise = "HOST_ANTI_ENTROPY_ADVERTISEMENT"
)

// InternalHostEvent is the full-update wire message broadcast on
// SubjectHostUpdated, and also the message a node pushes directly to a
// single peer when anti-entropy determines that peer is behind.
type InternalHostEvent struct {
	ProviderId      ProviderId
	HostId          HostId
	HostDescription HostDescription
	Timestamp       Timestamp
}

// wire marshaling below pins Timestamp to the concrete SequenceTimestamp,
// since encoding/json cannot allocate an interface value on decode.

type internalHostEventWire struct {
	ProviderId      ProviderId
	HostId          HostId
	HostDescription HostDescription
	Timestamp       SequenceTimestamp
}

func (e InternalHostEvent) MarshalJSON() ([]byte, error) {
	ts, _ := e.Timestamp.(SequenceTimestamp)
	return json.Marshal(internalHostEventWire{
		ProviderId:      e.ProviderId,
		HostId:          e.HostId,
		HostDescription: e.HostDescription,
		Timestamp:       ts,
	})
}

func (e *InternalHostEvent) UnmarshalJSON(data []byte) error {
	var w internalHostEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.ProviderId = w.ProviderId
	e.HostId = w.HostId
	e.HostDescription = w.HostDescription
	e.Timestamp = w.Timestamp
	return nil
}

// InternalHostRemovedEvent is the deletion wire message broadcast on
// SubjectHostRemoved, and also what a node pushes to a peer it has
// determined holds a zombie (spec.md §4.4 scan B).
type InternalHostRemovedEvent struct {
	HostId    HostId
	Timestamp Timestamp
}

type internalHostRemovedEventWire struct {
	HostId    HostId
	Timestamp SequenceTimestamp
}

func (e InternalHostRemovedEvent) MarshalJSON() ([]byte, error) {
	ts, _ := e.Timestamp.(SequenceTimestamp)
	return json.Marshal(internalHostRemovedEventWire{HostId: e.HostId, Timestamp: ts})
}

func (e *InternalHostRemovedEvent) UnmarshalJSON(data []byte) error {
	var w internalHostRemovedEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.HostId = w.HostId
	e.Timestamp = w.Timestamp
	return nil
}

// HostAntiEntropyAdvertisement is the compact digest unicast to a random
// peer by the periodic anti-entropy task.
type HostAntiEntropyAdvertisement struct {
	Sender     NodeId
	Timestamps map[HostFragmentId]Timestamp
	Tombstones map[HostId]Timestamp
}

type hostAntiEntropyAdvertisementWire struct {
	Sender     NodeId
	Timestamps map[HostFragmentId]SequenceTimestamp
	Tombstones map[HostId]SequenceTimestamp
}

func (a HostAntiEntropyAdvertisement) MarshalJSON() ([]byte, error) {
	w := hostAntiEntropyAdvertisementWire{
		Sender:     a.Sender,
		Timestamps: make(map[HostFragmentId]SequenceTimestamp, len(a.Timestamps)),
		Tombstones: make(map[HostId]SequenceTimestamp, len(a.Tombstones)),
	}
	for k, v := range a.Timestamps {
		ts, _ := v.(SequenceTimestamp)
		w.Timestamps[k] = ts
	}
	for k, v := range a.Tombstones {
		ts, _ := v.(SequenceTimestamp)
		w.Tombstones[k] = ts
	}
	return json.Marshal(w)
}

func (a *HostAntiEntropyAdvertisement) UnmarshalJSON(data []byte) error {
	var w hostAntiEntropyAdvertisementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.Sender = w.Sender
	a.Timestamps = make(map[HostFragmentId]Timestamp, len(w.Timestamps))
	a.Tombstones = make(map[HostId]Timestamp, len(w.Tombstones))
	for k, v := range w.Timestamps {
		a.Timestamps[k] = v
	}
	for k, v := range w.Tombstones {
		a.Tombstones[k] = v
	}
	return nil
}
