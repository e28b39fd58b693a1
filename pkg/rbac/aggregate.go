package rbac

import (
	"context"

	"github.com/google/uuid"
)

// AncestorChain returns the group ids from the given group up to the root of
// its mastergroup chain, the group itself first. A missing parent row
// terminates the walk quietly; a cycle or a chain deeper than
// maxAncestorDepth stops at the bound instead of looping.
func (e *Engine) AncestorChain(ctx context.Context, loaders *Loaders, groupID uuid.UUID) ([]uuid.UUID, error) {
	chain := make([]uuid.UUID, 0, 4)
	visited := make(map[uuid.UUID]bool)

	current := groupID
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if visited[current] {
			break
		}
		visited[current] = true

		group, err := loaders.Group(ctx, current)
		if err == ErrNotFound {
			break
		}
		if err != nil {
			return nil, err
		}

		chain = append(chain, group.ID)
		if group.MastergroupID == nil {
			break
		}
		current = *group.MastergroupID
	}

	if e.metrics != nil {
		e.metrics.AncestorWalkDepth.Observe(float64(len(chain)))
	}
	return chain, nil
}

// RolesOnGroup returns the valid roles held on the group or any of its
// ancestors. A role on the faculty counts on every department under it.
// When filterUserID is non-nil only that user's roles are returned.
func (e *Engine) RolesOnGroup(ctx context.Context, loaders *Loaders, groupID uuid.UUID, filterUserID *uuid.UUID) ([]*RoleWithType, error) {
	chain, err := e.AncestorChain(ctx, loaders, groupID)
	if err != nil {
		return nil, err
	}
	return e.store.ListRolesByGroupIDs(ctx, chain, filterUserID)
}

// RolesOnUser returns the valid roles reaching the user through their group
// memberships: for each group the user belongs to, roles on that group and
// all of its ancestors apply. When filterUserID is non-nil only roles held by
// that user are returned, which is how a check asks "what can this principal
// do regarding this user".
func (e *Engine) RolesOnUser(ctx context.Context, loaders *Loaders, userID uuid.UUID, filterUserID *uuid.UUID) ([]*RoleWithType, error) {
	groupIDs, err := e.store.MembershipGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	closure := make([]uuid.UUID, 0, len(groupIDs)*2)
	seen := make(map[uuid.UUID]bool)
	for _, gid := range groupIDs {
		chain, err := e.AncestorChain(ctx, loaders, gid)
		if err != nil {
			return nil, err
		}
		for _, id := range chain {
			if !seen[id] {
				seen[id] = true
				closure = append(closure, id)
			}
		}
	}

	return e.store.ListRolesByGroupIDs(ctx, closure, filterUserID)
}

// RolesOnObject dispatches on the resolved kind of the object.
func (e *Engine) RolesOnObject(ctx context.Context, loaders *Loaders, obj RBACObject, filterUserID *uuid.UUID) ([]*RoleWithType, error) {
	switch obj.Kind {
	case ObjectKindUser:
		return e.RolesOnUser(ctx, loaders, obj.ID, filterUserID)
	case ObjectKindGroup:
		return e.RolesOnGroup(ctx, loaders, obj.ID, filterUserID)
	default:
		return []*RoleWithType{}, nil
	}
}
