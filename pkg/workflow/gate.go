package workflow

import (
	"context"
	"fmt"

	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/google/uuid"
)

// Gate answers which role types may act in a workflow state. It implements
// rbac.StateGate for the state-aware authorization checks.
type Gate struct {
	store   *Store
	catalog *rbac.Catalog
}

// NewGate creates a gate. catalog may be nil, in which case RoleTypesForState
// is unavailable.
func NewGate(store *Store, catalog *rbac.Catalog) *Gate {
	return &Gate{store: store, catalog: catalog}
}

// listIDForAccess picks the readers or writers list of a state
func listIDForAccess(st *State, access rbac.AccessKind) (uuid.UUID, error) {
	switch access {
	case rbac.AccessRead:
		return st.ReadersListID, nil
	case rbac.AccessWrite:
		return st.WritersListID, nil
	default:
		return uuid.Nil, fmt.Errorf("unknown access kind %q", access)
	}
}

// RoleTypeIDsForState returns the role type ids allowed the given access in
// the state. An unknown state returns rbac.ErrNotFound so the checker can
// fail closed.
func (g *Gate) RoleTypeIDsForState(ctx context.Context, stateID uuid.UUID, access rbac.AccessKind) ([]uuid.UUID, error) {
	st, err := g.store.GetState(ctx, stateID)
	if err != nil {
		return nil, err
	}
	listID, err := listIDForAccess(st, access)
	if err != nil {
		return nil, err
	}
	return g.store.ListRoleTypeIDs(ctx, listID)
}

// RoleTypesForState resolves the allowed role types through the catalog cache
func (g *Gate) RoleTypesForState(ctx context.Context, stateID uuid.UUID, access rbac.AccessKind) ([]*rbac.RoleType, error) {
	ids, err := g.RoleTypeIDsForState(ctx, stateID, access)
	if err != nil {
		return nil, err
	}
	if g.catalog == nil {
		return nil, fmt.Errorf("no role type catalog configured")
	}
	return g.catalog.RoleTypes(ctx, ids)
}
