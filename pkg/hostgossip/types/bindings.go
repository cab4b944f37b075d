package types

// PortAddresses is the set of MAC/IP pairs observed bound to a switch port.
// This is pure local state (spec.md §4.5); it is never replicated.
type PortAddresses struct {
	ConnectPoint ConnectPoint
	Mac          MacAddress
	IpAddresses  map[IpAddress]struct{}
}
