package ws

import (
	"sort"
	"sync"
)

// Registry tracks live connections and their symbol interest sets. Both
// directions of the index (symbol -> connections, connection -> symbols) are
// mutated together under one mutex so no schedule can observe a half-updated
// pair.
type Registry struct {
	mu       sync.RWMutex
	conns    map[*Conn]struct{}
	bySymbol map[string]map[*Conn]struct{}
	byConn   map[*Conn]map[string]struct{}
}

// Stats is a self-consistent snapshot of registry counters. The per-symbol
// counts can sum to more than TotalConnections because one connection may
// hold several subscriptions.
type Stats struct {
	TotalConnections   int            `json:"total_connections"`
	TotalSubscriptions int            `json:"total_subscriptions"`
	PerSymbol          map[string]int `json:"connections_per_symbol"`
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[*Conn]struct{}),
		bySymbol: make(map[string]map[*Conn]struct{}),
		byConn:   make(map[*Conn]map[string]struct{}),
	}
}

// Add registers a connection with an empty subscription set.
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
	r.byConn[c] = make(map[string]struct{})
}

// Remove unregisters a connection, detaching it from every symbol set it
// belongs to and deleting symbol sets that become empty. Removing an unknown
// connection is a no-op.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return
	}
	delete(r.conns, c)

	for symbol := range r.byConn[c] {
		subs := r.bySymbol[symbol]
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.bySymbol, symbol)
		}
	}
	delete(r.byConn, c)
}

// Subscribe adds a symbol to the connection's interest set. It is idempotent
// and reports whether the connection is registered.
func (r *Registry) Subscribe(c *Conn, symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return false
	}

	subs := r.bySymbol[symbol]
	if subs == nil {
		subs = make(map[*Conn]struct{})
		r.bySymbol[symbol] = subs
	}
	subs[c] = struct{}{}
	r.byConn[c][symbol] = struct{}{}
	return true
}

// Unsubscribe removes a symbol from the connection's interest set, deleting
// the symbol's subscriber set entirely when it becomes empty.
func (r *Registry) Unsubscribe(c *Conn, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if subs, ok := r.bySymbol[symbol]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.bySymbol, symbol)
		}
	}
	if symbols, ok := r.byConn[c]; ok {
		delete(symbols, symbol)
	}
}

// Subscriptions returns the connection's current symbol set, sorted.
func (r *Registry) Subscriptions(c *Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byConn[c]))
	for symbol := range r.byConn[c] {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Subscribers returns a snapshot of the connections subscribed to symbol.
// Broadcast iterates the snapshot, so a connection disconnecting mid-fanout
// cannot disturb delivery to the rest.
func (r *Registry) Subscribers(symbol string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.bySymbol[symbol]))
	for c := range r.bySymbol[symbol] {
		out = append(out, c)
	}
	return out
}

// Connections returns a snapshot of every registered connection.
func (r *Registry) Connections() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Stats computes counters from the current state.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalConnections: len(r.conns),
		PerSymbol:        make(map[string]int, len(r.bySymbol)),
	}
	for symbol, subs := range r.bySymbol {
		stats.PerSymbol[symbol] = len(subs)
		stats.TotalSubscriptions += len(subs)
	}
	return stats
}
