package registry

import (
	"context"
	"qrdine/internal/core/contracts"
	"qrdine/internal/core/domain"
	"sort"
	"sync"
)

type Registry struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client    // conn_id → client
	groups  map[string]map[string]struct{} // group → conn_ids
	joined  map[string]map[string]struct{} // conn_id → groups
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
		groups:  make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

var _ contracts.Registry = (*Registry)(nil)

func (h *Registry) Register(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
}

func (h *Registry) Unregister(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c.ID())
	if cur, ok := h.clients[c.ID()]; ok && cur == c {
		delete(h.clients, c.ID())
	}
}

func (h *Registry) Join(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]struct{})
	}
	h.groups[group][connID] = struct{}{}
	if h.joined[connID] == nil {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][group] = struct{}{}
}

func (h *Registry) Leave(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, group)
}

func (h *Registry) DropConnection(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropLocked(connID)
}

func (h *Registry) MembersOf(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return keys(h.groups[group])
}

func (h *Registry) GroupsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return keys(h.joined[connID])
}

// Emit looks the client up under the read lock and sends outside of it, so a
// slow Send never holds up joins or leaves.
func (h *Registry) Emit(ctx context.Context, connID string, data []byte) error {
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return domain.ErrClientClosed
	}
	return c.Send(ctx, data)
}

func (h *Registry) leaveLocked(connID, group string) {
	if members := h.groups[group]; members != nil {
		delete(members, connID)
		// groups only exist while someone is in them
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if groups := h.joined[connID]; groups != nil {
		delete(groups, group)
		if len(groups) == 0 {
			delete(h.joined, connID)
		}
	}
}

func (h *Registry) dropLocked(connID string) []string {
	left := keys(h.joined[connID])
	for _, g := range left {
		h.leaveLocked(connID, g)
	}
	delete(h.joined, connID)
	return left
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
