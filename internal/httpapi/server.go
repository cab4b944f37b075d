// Package httpapi exposes a read-only query surface plus a live event
// stream over the replicated host table, in the style of MaxIOFS's
// gorilla/mux-routed console API.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip"
	"github.com/jabolina/go-hostgossip/pkg/hostgossip/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIdHeader = "X-Request-Id"

// requestIdMiddleware stamps every response with a request id, generating
// one with google/uuid when the caller didn't already supply it, so a
// query can be correlated across the log line gorilla/handlers emits.
func requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIdHeader, id)
		next.ServeHTTP(w, r)
	})
}

// EventHub fans HostEvent values out to every connected /events websocket.
// It exists independently of Server and Manager so it can be built first
// and wired as the Manager's delegate before the Manager itself exists.
type EventHub struct {
	log types.Logger

	mutex       sync.Mutex
	subscribers map[chan types.HostEvent]struct{}
}

func NewEventHub(log types.Logger) *EventHub {
	return &EventHub{log: log, subscribers: make(map[chan types.HostEvent]struct{})}
}

// Delegate adapts the hub to types.HostProviderDelegate for Manager wiring.
// Delivery to a subscriber is non-blocking; a slow client drops events
// instead of stalling the store.
func (h *EventHub) Delegate() types.HostProviderDelegate {
	return types.HostProviderDelegateFunc(func(event types.HostEvent) {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		for ch := range h.subscribers {
			select {
			case ch <- event:
			default:
				h.log.Warnf("dropping event for slow /events subscriber")
			}
		}
	})
}

func (h *EventHub) subscribe() chan types.HostEvent {
	ch := make(chan types.HostEvent, 32)
	h.mutex.Lock()
	h.subscribers[ch] = struct{}{}
	h.mutex.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan types.HostEvent) {
	h.mutex.Lock()
	delete(h.subscribers, ch)
	h.mutex.Unlock()
}

// Server serves GET queries against a Manager and streams host events over
// a websocket, alongside the prometheus /metrics endpoint.
type Server struct {
	manager *hostgossip.Manager
	hub     *EventHub
	log     types.Logger
	router  *mux.Router
	upgrade websocket.Upgrader
}

// New builds a Server and registers its routes. RegisterRoutes on the
// caller's transport should be called against the same router if the
// daemon is sharing one listener between gossip and queries.
func New(manager *hostgossip.Manager, hub *EventHub, log types.Logger, metricsPath string) *Server {
	s := &Server{
		manager: manager,
		hub:     hub,
		log:     log,
		router:  mux.NewRouter(),
		upgrade: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	s.routes(metricsPath)
	return s
}

func (s *Server) routes(metricsPath string) {
	s.router.HandleFunc("/hosts", s.handleListHosts).Methods(http.MethodGet)
	s.router.HandleFunc("/hosts/vlan/{vlan}", s.handleHostsByVlan).Methods(http.MethodGet)
	s.router.HandleFunc("/hosts/device/{device}", s.handleHostsByDevice).Methods(http.MethodGet)
	s.router.HandleFunc("/bindings", s.handleBindings).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleEvents)
	s.router.Handle(metricsPath, promhttp.Handler())
}

// Router exposes the underlying mux.Router so a transport can register its
// own inbound endpoint on the same listener.
func (s *Server) Router() *mux.Router { return s.router }

// Handler wraps the router with gorilla/handlers' combined logging
// middleware, the same wrapper MaxIOFS's server applies to its API mux.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(logWriter{s.log}, requestIdMiddleware(s.router))
}

type logWriter struct{ log types.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Debug(string(p))
	return len(p), nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("failed encoding response: %v", err)
	}
}

func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.manager.GetHosts())
}

func (s *Server) handleHostsByVlan(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["vlan"]
	vlan, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		http.Error(w, "invalid vlan", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, s.manager.GetHostsByVlan(types.VlanId(vlan)))
}

func (s *Server) handleHostsByDevice(w http.ResponseWriter, r *http.Request) {
	device := mux.Vars(r)["device"]
	s.writeJSON(w, s.manager.GetConnectedHostsByDevice(types.DeviceId(device)))
}

func (s *Server) handleBindings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.manager.GetAddressBindings())
}

// handleEvents upgrades to a websocket and streams every HostEvent the
// delegate receives until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrade.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}
