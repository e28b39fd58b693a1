package rbac

import (
	"context"

	"github.com/campusware/gatekeeper/pkg/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxAncestorDepth bounds the mastergroup walk so a corrupted hierarchy can
// never loop or recurse without limit.
const maxAncestorDepth = 32

// Engine resolves authorization objects and aggregates roles across the
// group hierarchy.
type Engine struct {
	store   *Store
	metrics *observability.Metrics
}

// NewEngine creates an engine over the store. Metrics may be nil.
func NewEngine(store *Store, metrics *observability.Metrics) *Engine {
	return &Engine{store: store, metrics: metrics}
}

// Store returns the underlying store.
func (e *Engine) Store() *Store {
	return e.store
}

// Resolve determines whether an id names a user or a group. Both lookups run
// concurrently. An id matching neither table, or matching both, returns
// ErrNotFound; an ambiguous id must never be authorized against the wrong
// entity.
func (e *Engine) Resolve(ctx context.Context, loaders *Loaders, id uuid.UUID) (*RBACObject, error) {
	var user *User
	var group *Group

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := loaders.User(gctx, id)
		if err != nil && err != ErrNotFound {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		gr, err := loaders.Group(gctx, id)
		if err != nil && err != ErrNotFound {
			return err
		}
		group = gr
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch {
	case user != nil && group != nil:
		return nil, ErrNotFound
	case user != nil:
		return &RBACObject{ID: id, Kind: ObjectKindUser}, nil
	case group != nil:
		return &RBACObject{ID: id, Kind: ObjectKindGroup}, nil
	default:
		return nil, ErrNotFound
	}
}
