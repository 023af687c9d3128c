// Package vnet is an in-process overlay of named mailboxes ("local nodes")
// and forwarders that bridge a local node onto an stcp socket.
package vnet

import (
	"sort"
	"sync"

	"github.com/go-i2p/logger"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// DefaultMaxNodes is the capacity of a registry built with a non-positive size.
const DefaultMaxNodes = 8

// Registry owns the names of a set of local nodes and bounds their number.
// Nodes can only reach nodes of their own registry.
type Registry struct {
	maxNodes int

	mu    sync.Mutex
	nodes map[string]*LocalNode
}

// NewRegistry returns an empty registry holding at most maxNodes nodes.
func NewRegistry(maxNodes int) *Registry {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Registry{
		maxNodes: maxNodes,
		nodes:    make(map[string]*LocalNode, maxNodes),
	}
}

// MaxNodes is the capacity of the registry.
func (r *Registry) MaxNodes() int { return r.maxNodes }

// NewLocalNode registers a node under name. An empty name is replaced by a
// random unused one.
func (r *Registry) NewLocalNode(name string) (*LocalNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		for name == "" || r.nodes[name] != nil {
			name = uuid.NewString()
		}
	}
	if _, ok := r.nodes[name]; ok {
		return nil, oops.Wrapf(ErrChannelObjectExists, "name %q", name)
	}
	if len(r.nodes) >= r.maxNodes {
		return nil, oops.Wrapf(ErrChannelFullSlots, "%d of %d slots used", len(r.nodes), r.maxNodes)
	}

	n := newLocalNode(r, name)
	r.nodes[name] = n
	log.WithFields(logger.Fields{
		"at":    "vnet.Registry.NewLocalNode",
		"name":  name,
		"count": len(r.nodes),
	}).Debug("local_node_registered")
	return n, nil
}

// Lookup returns the open node registered under name.
func (r *Registry) Lookup(name string) (*LocalNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[name]
	return n, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// Len is the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// release frees name if it still belongs to n.
func (r *Registry) release(name string, n *LocalNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nodes[name] == n {
		delete(r.nodes, name)
	}
}
