package core

import (
	"testing"

	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressBindingsUpdateAndLookup(t *testing.T) {
	b := NewAddressBindings()
	cp := types.ConnectPoint{DeviceId: "d1", Port: 1}
	addr := types.PortAddresses{ConnectPoint: cp, Mac: mac(0x1), IpAddresses: map[types.IpAddress]struct{}{"10.0.0.1": {}}}

	b.Update(addr)
	got, ok := b.GetForPort(cp)
	require.True(t, ok)
	assert.Equal(t, addr.Mac, got.Mac)
	assert.Len(t, b.GetAll(), 1)
}

func TestAddressBindingsRemoveAndClear(t *testing.T) {
	b := NewAddressBindings()
	cp1 := types.ConnectPoint{DeviceId: "d1", Port: 1}
	cp2 := types.ConnectPoint{DeviceId: "d2", Port: 2}
	b.Update(types.PortAddresses{ConnectPoint: cp1})
	b.Update(types.PortAddresses{ConnectPoint: cp2})

	b.Remove(cp1)
	_, ok := b.GetForPort(cp1)
	assert.False(t, ok)
	assert.Len(t, b.GetAll(), 1)

	b.Clear()
	assert.Empty(t, b.GetAll())
}
