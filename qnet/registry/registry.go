// Package registry defines the activation registry collaborator (spec.md §6
// "Activation registry — is_eligible(node_id) -> {role in {Light,Full,Super}};
// consulted at cert issuance time only") and an in-memory reference
// implementation.
package registry

import (
	"sync"

	"github.com/qnet-network/qnet-core/ids"
)

// Role is a node's activation tier (spec.md §3 ProducerRound
// "node_type in {Full, Super}").
type Role int

const (
	// RoleUnknown is returned for a node the registry has no record of.
	RoleUnknown Role = iota
	RoleLight
	RoleFull
	RoleSuper
)

func (r Role) String() string {
	switch r {
	case RoleLight:
		return "Light"
	case RoleFull:
		return "Full"
	case RoleSuper:
		return "Super"
	default:
		return "Unknown"
	}
}

// ConsensusCapable reports whether a role may ever be consensus-eligible
// (spec.md §4.4 "iff score >= 70 and it is a Full or Super node").
func (r Role) ConsensusCapable() bool {
	return r == RoleFull || r == RoleSuper
}

// Registry is the activation registry collaborator interface.
type Registry interface {
	// IsEligible returns the node's activated role (spec.md §6
	// "is_eligible(node_id) -> {role}").
	IsEligible(nodeID ids.NodeID) Role
}

// StaticRegistry is an in-memory reference Registry backed by a fixed map,
// suitable for tests and single-process deployments.
type StaticRegistry struct {
	mu    sync.RWMutex
	roles map[ids.NodeID]Role
}

// NewStaticRegistry creates an empty StaticRegistry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{roles: make(map[ids.NodeID]Role)}
}

// Activate records nodeID's role. Called at cert issuance time per the
// collaborator contract (spec.md §6).
func (r *StaticRegistry) Activate(nodeID ids.NodeID, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[nodeID] = role
}

// IsEligible implements Registry.
func (r *StaticRegistry) IsEligible(nodeID ids.NodeID) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[nodeID]
	if !ok {
		return RoleUnknown
	}
	return role
}
