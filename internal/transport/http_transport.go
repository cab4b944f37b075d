// Package transport implements the gossip messaging collaborator over
// plain HTTP, the production stand-in for a real cluster's messaging fabric
// (spec.md §1 "inter-node messaging fabric"). It is intentionally
// best-effort: a failed POST is logged and returned as an error, never
// retried here, the same tolerance anti-entropy is designed to absorb.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
)

// PeerBook resolves a node's address for outbound calls. Production wiring
// uses a flat list from configuration; a real deployment would likely
// resolve this from service discovery instead.
type PeerBook struct {
	mutex sync.RWMutex
	addrs map[types.NodeId]string
}

func NewPeerBook() *PeerBook {
	return &PeerBook{addrs: make(map[types.NodeId]string)}
}

func (p *PeerBook) Set(id types.NodeId, address string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.addrs[id] = address
}

func (p *PeerBook) Snapshot() map[types.NodeId]string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	out := make(map[types.NodeId]string, len(p.addrs))
	for k, v := range p.addrs {
		out[k] = v
	}
	return out
}

func (p *PeerBook) lookup(id types.NodeId) (string, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	addr, ok := p.addrs[id]
	return addr, ok
}

// HTTPTransport implements types.Transport (and types.Unsubscriber) with
// messages sent as HTTP POSTs to /gossip/{subject} and received through a
// gorilla/mux-routed handler registered on the daemon's HTTP server.
type HTTPTransport struct {
	self   types.NodeId
	peers  *PeerBook
	log    types.Logger
	client *http.Client

	mutex    sync.RWMutex
	handlers map[string]types.MessageHandler
}

func NewHTTPTransport(self types.NodeId, peers *PeerBook, log types.Logger) *HTTPTransport {
	return &HTTPTransport{
		self:     self,
		peers:    peers,
		log:      log,
		client:   &http.Client{Timeout: 5 * time.Second},
		handlers: make(map[string]types.MessageHandler),
	}
}

// RegisterRoutes wires the inbound endpoint onto an existing mux.Router, as
// the HTTP query surface already owns the listener.
func (t *HTTPTransport) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/gossip/{subject}", t.handleInbound).Methods(http.MethodPost)
}

func (t *HTTPTransport) handleInbound(w http.ResponseWriter, r *http.Request) {
	subject := mux.Vars(r)["subject"]
	from := types.NodeId(r.Header.Get("X-Hostgossip-From"))

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r.Body); err != nil {
		http.Error(w, "failed reading body", http.StatusBadRequest)
		return
	}

	t.mutex.RLock()
	handler, ok := t.handlers[subject]
	t.mutex.RUnlock()
	if !ok {
		// Unknown subject: ack anyway, the sender has no use for an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	handler(from, subject, buf.Bytes())
	w.WriteHeader(http.StatusNoContent)
}

func (t *HTTPTransport) AddSubscriber(subject string, handler types.MessageHandler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handlers[subject] = handler
}

func (t *HTTPTransport) RemoveSubscriber(subject string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.handlers, subject)
}

func (t *HTTPTransport) Broadcast(subject string, payload []byte) error {
	var firstErr error
	for peer := range t.peers.Snapshot() {
		if err := t.Unicast(peer, subject, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *HTTPTransport) Unicast(peer types.NodeId, subject string, payload []byte) error {
	address, ok := t.peers.lookup(peer)
	if !ok {
		return fmt.Errorf("hostgossip: unknown peer %s", peer)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/gossip/%s", address, subject)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Hostgossip-From", string(t.self))
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Debugf("delivery to %s (%s) failed, anti-entropy will retry: %v", peer, subject, err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hostgossip: peer %s rejected %s with status %d", peer, subject, resp.StatusCode)
	}
	return nil
}

var (
	_ types.Transport    = (*HTTPTransport)(nil)
	_ types.Unsubscriber = (*HTTPTransport)(nil)
)

// StaticCluster is a fixed membership view built from configuration, used
// until the daemon wires a real discovery collaborator.
type StaticCluster struct {
	local types.ControllerNode
	nodes []types.ControllerNode
}

func NewStaticCluster(local types.ControllerNode, nodes []types.ControllerNode) *StaticCluster {
	return &StaticCluster{local: local, nodes: nodes}
}

func (c *StaticCluster) LocalNode() types.ControllerNode { return c.local }
func (c *StaticCluster) Nodes() []types.ControllerNode   { return c.nodes }

var _ types.Cluster = (*StaticCluster)(nil)
