package rbac

import (
	"context"
	"time"

	"github.com/campusware/gatekeeper/pkg/observability"
	"github.com/google/uuid"
)

// StateGate answers which role types a workflow state admits for a given
// access kind. The workflow package provides the implementation; rbac only
// needs the ids.
type StateGate interface {
	RoleTypeIDsForState(ctx context.Context, stateID uuid.UUID, access AccessKind) ([]uuid.UUID, error)
}

// Checker answers authorization questions. Every path fails closed: a
// missing principal, an unresolvable object or an unknown state denies
// instead of erroring out to the caller as an allow.
type Checker struct {
	engine     *Engine
	gate       StateGate
	adminNames []string
	metrics    *observability.Metrics
}

// NewChecker creates a checker. adminNames are the role type names that
// override every state-free required set; metrics may be nil.
func NewChecker(engine *Engine, gate StateGate, adminNames []string, metrics *observability.Metrics) *Checker {
	return &Checker{
		engine:     engine,
		gate:       gate,
		adminNames: adminNames,
		metrics:    metrics,
	}
}

// Engine returns the underlying engine.
func (c *Checker) Engine() *Engine {
	return c.engine
}

// UserCanWithState reports whether the principal holds a role whose type
// appears on the state's reader or writer list, aggregated over the object's
// group hierarchy.
func (c *Checker) UserCanWithState(ctx context.Context, rc *RequestContext, objectID, stateID uuid.UUID, access AccessKind) (bool, error) {
	start := time.Now()
	allowed, err := c.userCanWithState(ctx, rc, objectID, stateID, access)
	c.observe("state", start, allowed, err)
	return allowed, err
}

func (c *Checker) userCanWithState(ctx context.Context, rc *RequestContext, objectID, stateID uuid.UUID, access AccessKind) (bool, error) {
	principalID := rc.PrincipalID()
	if principalID == nil {
		return false, nil
	}

	obj, err := c.engine.Resolve(ctx, rc.Loaders, objectID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	held, err := c.engine.RolesOnObject(ctx, rc.Loaders, *obj, principalID)
	if err != nil {
		return false, err
	}
	if len(held) == 0 {
		return false, nil
	}

	admitted, err := c.gate.RoleTypeIDsForState(ctx, stateID, access)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	admittedSet := make(map[uuid.UUID]bool, len(admitted))
	for _, id := range admitted {
		admittedSet[id] = true
	}
	for _, role := range held {
		if admittedSet[role.RoleTypeID] {
			return true, nil
		}
	}
	return false, nil
}

// UserCanWithoutState reports whether the principal holds a role whose type
// name is in requiredNames, or any administrator role, aggregated over the
// object's group hierarchy.
func (c *Checker) UserCanWithoutState(ctx context.Context, rc *RequestContext, objectID uuid.UUID, requiredNames []string) (bool, error) {
	start := time.Now()
	allowed, err := c.userCanWithoutState(ctx, rc, objectID, requiredNames)
	c.observe("roles", start, allowed, err)
	return allowed, err
}

func (c *Checker) userCanWithoutState(ctx context.Context, rc *RequestContext, objectID uuid.UUID, requiredNames []string) (bool, error) {
	principalID := rc.PrincipalID()
	if principalID == nil {
		return false, nil
	}

	obj, err := c.engine.Resolve(ctx, rc.Loaders, objectID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	held, err := c.engine.RolesOnObject(ctx, rc.Loaders, *obj, principalID)
	if err != nil {
		return false, err
	}

	required := make(map[string]bool, len(requiredNames))
	for _, name := range requiredNames {
		required[name] = true
	}
	admin := make(map[string]bool, len(c.adminNames))
	for _, name := range c.adminNames {
		admin[name] = true
	}

	for _, role := range held {
		if admin[role.Type.Name] {
			return true, nil
		}
		if required[role.Type.Name] {
			return true, nil
		}
	}
	return false, nil
}

func (c *Checker) observe(check string, start time.Time, allowed bool, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "denied"
	if err != nil {
		outcome = "error"
	} else if allowed {
		outcome = "allowed"
	}
	c.metrics.ChecksTotal.WithLabelValues(check, outcome).Inc()
	c.metrics.CheckDuration.WithLabelValues(check).Observe(time.Since(start).Seconds())
}
