package types

// ControllerNode describes a member of the cluster as seen by the
// (external) membership/discovery collaborator.
type ControllerNode struct {
	Id      NodeId
	Address string
}

// Cluster is the external membership and node-identity collaborator
// (spec.md §1 "cluster membership and node identity discovery").
type Cluster interface {
	LocalNode() ControllerNode
	Nodes() []ControllerNode
}

// MessageHandler is invoked by the transport for every message received on
// a subscribed subject. Handlers must not block the delivering goroutine;
// core handlers enqueue onto an Invoker and return immediately (spec.md §5).
type MessageHandler func(from NodeId, subject string, payload []byte)

// Transport is the external best-effort messaging collaborator. Messages
// may be lost, reordered, or duplicated; the anti-entropy protocol exists
// precisely so the core does not depend on delivery guarantees here.
type Transport interface {
	AddSubscriber(subject string, handler MessageHandler)
	Broadcast(subject string, payload []byte) error
	Unicast(peer NodeId, subject string, payload []byte) error
}

// Unsubscriber is an optional capability a Transport may implement to let
// the engine unsubscribe cleanly on shutdown (spec.md §5 lifecycle). Not
// part of the Transport interface itself since spec.md §6 only specifies
// addSubscriber on the consumed surface.
type Unsubscriber interface {
	RemoveSubscriber(subject string)
}

// Codec is the external symmetric encode/decode collaborator for the wire
// messages in spec.md §6. The codec identity (its encoding format) must
// match across every node in the cluster.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// Logger is the structured-logging surface used throughout the core.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})
	ToggleDebug(value bool) bool
}
