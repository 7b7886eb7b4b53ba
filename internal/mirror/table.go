package mirror

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Route is one resolved destination for a source channel.
type Route struct {
	Channel  ChannelID
	Endpoint DeliveryEndpoint
}

// RoutingTable is an immutable pair of channel mapping and resolved
// endpoints. A table can only be constructed when every destination has an
// endpoint.
type RoutingTable struct {
	version   uint64
	builtAt   time.Time
	mapping   ChannelMapping
	endpoints map[ChannelID]DeliveryEndpoint
}

// NewRoutingTable validates and freezes mapping and endpoints. The inputs are
// copied; later changes by the caller are not observed.
func NewRoutingTable(mapping ChannelMapping, endpoints map[ChannelID]DeliveryEndpoint) (*RoutingTable, error) {
	eps := make(map[ChannelID]DeliveryEndpoint, len(endpoints))
	for id, ep := range endpoints {
		eps[id] = ep
	}
	for _, src := range sortedKeys(mapping) {
		dsts := mapping[src]
		if len(dsts) == 0 {
			return nil, fmt.Errorf("%w: source %s has no destinations", ErrIncompleteTable, src)
		}
		for _, dst := range dsts {
			ep, ok := eps[dst]
			if !ok || !ep.HasToken() {
				return nil, fmt.Errorf("%w: destination %s has no endpoint", ErrIncompleteTable, dst)
			}
		}
	}
	return &RoutingTable{
		builtAt:   time.Now().UTC(),
		mapping:   mapping.clone(),
		endpoints: eps,
	}, nil
}

// HasToken reports whether the endpoint can be pushed to.
func (e DeliveryEndpoint) HasToken() bool {
	return Endpoint{ID: e.EndpointID, Token: e.Token}.HasToken()
}

func emptyTable() *RoutingTable {
	return &RoutingTable{
		mapping:   ChannelMapping{},
		endpoints: map[ChannelID]DeliveryEndpoint{},
	}
}

// Version is assigned on install; 0 means the table was never installed.
func (t *RoutingTable) Version() uint64 {
	if t == nil {
		return 0
	}
	return t.version
}

func (t *RoutingTable) BuiltAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.builtAt
}

// Len returns the number of mirrored source channels.
func (t *RoutingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.mapping)
}

// Lookup returns copies of the routes for src, or ErrLookupMiss.
func (t *RoutingTable) Lookup(src ChannelID) ([]Route, error) {
	if t == nil {
		return nil, ErrLookupMiss
	}
	dsts, ok := t.mapping[src]
	if !ok || len(dsts) == 0 {
		return nil, ErrLookupMiss
	}
	routes := make([]Route, 0, len(dsts))
	for _, dst := range dsts {
		ep, ok := t.endpoints[dst]
		if !ok {
			return nil, fmt.Errorf("%w: destination %s has no endpoint", ErrIncompleteTable, dst)
		}
		routes = append(routes, Route{Channel: dst, Endpoint: ep})
	}
	return routes, nil
}

// Mapping returns a copy of the channel mapping.
func (t *RoutingTable) Mapping() ChannelMapping {
	if t == nil {
		return ChannelMapping{}
	}
	return t.mapping.clone()
}

// Endpoint returns the endpoint resolved for a destination channel.
func (t *RoutingTable) Endpoint(dst ChannelID) (DeliveryEndpoint, bool) {
	if t == nil {
		return DeliveryEndpoint{}, false
	}
	ep, ok := t.endpoints[dst]
	return ep, ok
}

// DestinationView is the token-free view of one destination.
type DestinationView struct {
	ChannelID  string `json:"channel_id"`
	EndpointID string `json:"endpoint_id"`
}

// RouteView is the token-free view of one source channel's routes.
type RouteView struct {
	SourceChannelID string            `json:"source_channel_id"`
	Destinations    []DestinationView `json:"destinations"`
}

// Snapshot is a serializable, token-free view of a routing table.
type Snapshot struct {
	Version uint64      `json:"version"`
	BuiltAt time.Time   `json:"built_at"`
	Routes  []RouteView `json:"routes"`
}

func (t *RoutingTable) Snapshot() Snapshot {
	snap := Snapshot{Version: t.Version(), BuiltAt: t.BuiltAt(), Routes: []RouteView{}}
	if t == nil {
		return snap
	}
	for _, src := range sortedKeys(t.mapping) {
		view := RouteView{SourceChannelID: src.String()}
		for _, dst := range t.mapping[src] {
			ep := t.endpoints[dst]
			view.Destinations = append(view.Destinations, DestinationView{
				ChannelID:  dst.String(),
				EndpointID: ep.EndpointID,
			})
		}
		snap.Routes = append(snap.Routes, view)
	}
	return snap
}

// Table holds the installed routing table. Readers take the read lock only
// to load the current pointer; Replace takes the write lock only for the swap.
type Table struct {
	mu      sync.RWMutex
	current *RoutingTable
}

func NewTable() *Table {
	return &Table{current: emptyTable()}
}

// Read returns the installed table. It is never nil.
func (h *Table) Read() *RoutingTable {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Replace installs next as a new version and returns that version.
func (h *Table) Replace(next *RoutingTable) (uint64, error) {
	if next == nil {
		return 0, fmt.Errorf("%w: nil table", ErrIncompleteTable)
	}
	installed := *next
	h.mu.Lock()
	defer h.mu.Unlock()
	installed.version = h.current.version + 1
	h.current = &installed
	return installed.version, nil
}

// Lookup resolves src against the installed table.
func (h *Table) Lookup(src ChannelID) ([]Route, error) {
	return h.Read().Lookup(src)
}

func sortedKeys(m ChannelMapping) []ChannelID {
	keys := make([]ChannelID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
