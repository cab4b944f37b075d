package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ProviderId identifies the discovery source that reported a host.
type ProviderId string

// NodeId identifies a controller node in the cluster.
type NodeId string

// VlanId identifies a VLAN tag. NoVlan marks an untagged host.
type VlanId uint16

// NoVlan is the sentinel VlanId for untagged hosts.
const NoVlan VlanId = 0xFFFF

// MacAddress is a comparable, hashable wrapper around a hardware address.
type MacAddress [6]byte

func (m MacAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

// MarshalText implements encoding.TextMarshaler so a MacAddress reads as a
// normal "aa:bb:cc:dd:ee:ff" string on the wire instead of a byte array.
func (m MacAddress) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MacAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseMac(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMac builds a MacAddress from its canonical string form.
func ParseMac(s string) (MacAddress, error) {
	var m MacAddress
	hw, err := net.ParseMAC(s)
	if err != nil {
		return m, err
	}
	if len(hw) != 6 {
		return m, fmt.Errorf("hostgossip: unsupported mac length %d", len(hw))
	}
	copy(m[:], hw)
	return m, nil
}

// IpAddress is a comparable, hashable wrapper around a textual IP address.
// Kept as a string (rather than net.IP) so it can be used directly as a map
// key inside sets.
type IpAddress string

// DeviceId identifies a switch/device in the network fabric.
type DeviceId string

// PortNumber identifies a port on a device.
type PortNumber uint32

// ConnectPoint is a (device, port) attachment point.
type ConnectPoint struct {
	DeviceId DeviceId
	Port     PortNumber
}

func (c ConnectPoint) String() string {
	return fmt.Sprintf("%s/%d", c.DeviceId, c.Port)
}

// HostLocation is the connect point a host is currently attached to. It is
// its own type (rather than a bare ConnectPoint alias) so it can grow
// location-specific metadata without disturbing ConnectPoint's other users
// (e.g. address bindings).
type HostLocation struct {
	ConnectPoint
}

// HostId is the opaque, hashable identity of an end-station. In practice it
// is derived from the host's MAC and VLAN, which is exactly what NewHostId
// does, but callers should treat the result as opaque.
type HostId struct {
	Mac  MacAddress
	Vlan VlanId
}

func NewHostId(mac MacAddress, vlan VlanId) HostId {
	return HostId{Mac: mac, Vlan: vlan}
}

func (h HostId) String() string {
	if h.Vlan == NoVlan {
		return h.Mac.String()
	}
	return fmt.Sprintf("%s/%d", h.Mac, h.Vlan)
}

// MarshalText implements encoding.TextMarshaler so HostId can be used
// directly as a JSON object key (map[HostId]Timestamp on the wire).
func (h HostId) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%s|%d", h.Mac, h.Vlan)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HostId) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), "|", 2)
	if len(parts) != 2 {
		return fmt.Errorf("hostgossip: malformed HostId %q", text)
	}
	mac, err := ParseMac(parts[0])
	if err != nil {
		return err
	}
	vlan, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return err
	}
	h.Mac = mac
	h.Vlan = VlanId(vlan)
	return nil
}

// HostFragmentId keys an anti-entropy advertisement entry by both the host
// and the provider that reported it, so that a future multi-provider
// implementation stays wire-compatible (see spec.md §9 open question #2).
type HostFragmentId struct {
	HostId     HostId
	ProviderId ProviderId
}

// MarshalText implements encoding.TextMarshaler so HostFragmentId can be
// used directly as a JSON object key.
func (f HostFragmentId) MarshalText() ([]byte, error) {
	hostText, err := f.HostId.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%s~%s", hostText, f.ProviderId)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *HostFragmentId) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), "~", 2)
	if len(parts) != 2 {
		return fmt.Errorf("hostgossip: malformed HostFragmentId %q", text)
	}
	if err := f.HostId.UnmarshalText([]byte(parts[0])); err != nil {
		return err
	}
	f.ProviderId = ProviderId(parts[1])
	return nil
}
