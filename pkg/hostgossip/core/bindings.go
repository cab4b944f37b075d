package core

import (
	"sync"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// AddressBindings is the adjunct multimap from ConnectPoint to the
// PortAddresses observed there (spec.md §4.5). It is pure local state, not
// replicated, and independently synchronized from HostStore.
type AddressBindings struct {
	mutex sync.RWMutex
	byCP  map[types.ConnectPoint]types.PortAddresses
}

func NewAddressBindings() *AddressBindings {
	return &AddressBindings{byCP: make(map[types.ConnectPoint]types.PortAddresses)}
}

// Update replaces (or creates) the binding for addr.ConnectPoint.
func (b *AddressBindings) Update(addr types.PortAddresses) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.byCP[addr.ConnectPoint] = addr
}

// Remove deletes the binding for cp, if any.
func (b *AddressBindings) Remove(cp types.ConnectPoint) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.byCP, cp)
}

// Clear removes every binding.
func (b *AddressBindings) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.byCP = make(map[types.ConnectPoint]types.PortAddresses)
}

// GetAll returns a snapshot of every binding.
func (b *AddressBindings) GetAll() []types.PortAddresses {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	out := make([]types.PortAddresses, 0, len(b.byCP))
	for _, addr := range b.byCP {
		out = append(out, addr)
	}
	return out
}

// GetForPort returns the binding for cp, if any.
func (b *AddressBindings) GetForPort(cp types.ConnectPoint) (types.PortAddresses, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	addr, ok := b.byCP[cp]
	return addr, ok
}
