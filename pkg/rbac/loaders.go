package rbac

import (
	"context"
	"sync"

	"github.com/campusware/gatekeeper/pkg/contextkeys"
	"github.com/google/uuid"
)

// Loaders memoizes entity lookups for the duration of one request. Results
// are cached by id, including not-found results, so repeated lookups during a
// single authorization decision hit the database at most once. Loaders must
// not be shared across requests.
type Loaders struct {
	store *Store

	mu        sync.Mutex
	users     map[uuid.UUID]userResult
	groups    map[uuid.UUID]groupResult
	roleTypes map[uuid.UUID]roleTypeResult
}

type userResult struct {
	user *User
	err  error
}

type groupResult struct {
	group *Group
	err   error
}

type roleTypeResult struct {
	roleType *RoleType
	err      error
}

// NewLoaders creates per-request loaders backed by the store
func NewLoaders(store *Store) *Loaders {
	return &Loaders{
		store:     store,
		users:     make(map[uuid.UUID]userResult),
		groups:    make(map[uuid.UUID]groupResult),
		roleTypes: make(map[uuid.UUID]roleTypeResult),
	}
}

// User loads a user by id, memoized
func (l *Loaders) User(ctx context.Context, id uuid.UUID) (*User, error) {
	l.mu.Lock()
	if r, ok := l.users[id]; ok {
		l.mu.Unlock()
		return r.user, r.err
	}
	l.mu.Unlock()

	user, err := l.store.GetUser(ctx, id)
	if err == nil || err == ErrNotFound {
		l.mu.Lock()
		l.users[id] = userResult{user: user, err: err}
		l.mu.Unlock()
	}
	return user, err
}

// Group loads a group by id, memoized
func (l *Loaders) Group(ctx context.Context, id uuid.UUID) (*Group, error) {
	l.mu.Lock()
	if r, ok := l.groups[id]; ok {
		l.mu.Unlock()
		return r.group, r.err
	}
	l.mu.Unlock()

	group, err := l.store.GetGroup(ctx, id)
	if err == nil || err == ErrNotFound {
		l.mu.Lock()
		l.groups[id] = groupResult{group: group, err: err}
		l.mu.Unlock()
	}
	return group, err
}

// RoleType loads a role type by id, memoized
func (l *Loaders) RoleType(ctx context.Context, id uuid.UUID) (*RoleType, error) {
	l.mu.Lock()
	if r, ok := l.roleTypes[id]; ok {
		l.mu.Unlock()
		return r.roleType, r.err
	}
	l.mu.Unlock()

	rt, err := l.store.GetRoleType(ctx, id)
	if err == nil || err == ErrNotFound {
		l.mu.Lock()
		l.roleTypes[id] = roleTypeResult{roleType: rt, err: err}
		l.mu.Unlock()
	}
	return rt, err
}

// Prime seeds the group cache, used by tests and by walks that already hold
// the row.
func (l *Loaders) Prime(g *Group) {
	l.mu.Lock()
	l.groups[g.ID] = groupResult{group: g}
	l.mu.Unlock()
}

// RequestContext carries the authenticated principal and the per-request
// loaders through an authorization decision. Principal is nil for anonymous
// requests; every check fails closed in that case.
type RequestContext struct {
	Principal *User
	Loaders   *Loaders
}

// PrincipalID returns the principal's id or nil when anonymous.
func (rc *RequestContext) PrincipalID() *uuid.UUID {
	if rc == nil || rc.Principal == nil {
		return nil
	}
	id := rc.Principal.ID
	return &id
}

// WithRequestContext stores the request context in ctx
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return contextkeys.WithRequestContext(ctx, rc)
}

// FromContext retrieves the request context from ctx, nil if absent
func FromContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(contextkeys.RequestContextKey).(*RequestContext); ok {
		return rc
	}
	return nil
}
