package rbac

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// GuardPolicy configures who may mutate one entity kind. Admin roles may
// change anything; allowed roles may mutate but not touch the restricted
// fields.
type GuardPolicy struct {
	AdminRoles       []string `yaml:"admin_roles"`
	AllowedRoles     []string `yaml:"allowed_roles"`
	RestrictedFields []string `yaml:"restricted_fields"`
}

// Policy is the full mutation guard configuration.
type Policy struct {
	Groups GuardPolicy `yaml:"groups"`
	Users  GuardPolicy `yaml:"users"`
}

// DefaultPolicy returns the built-in guard configuration. Role names are the
// Czech names used throughout the deployment's data.
func DefaultPolicy() *Policy {
	return &Policy{
		Groups: GuardPolicy{
			AdminRoles:       []string{"administrátor"},
			AllowedRoles:     []string{"garant"},
			RestrictedFields: []string{"mastergroup_id", "grouptype_id"},
		},
		Users: GuardPolicy{
			AdminRoles:   []string{"administrátor", "personalista"},
			AllowedRoles: []string{"garant"},
		},
	}
}

// LoadPolicy reads a YAML policy file, falling back to the defaults for any
// section the file leaves empty. An empty path returns the defaults.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	loaded := &Policy{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if len(loaded.Groups.AdminRoles) > 0 || len(loaded.Groups.AllowedRoles) > 0 {
		policy.Groups = loaded.Groups
	}
	if len(loaded.Users.AdminRoles) > 0 || len(loaded.Users.AllowedRoles) > 0 {
		policy.Users = loaded.Users
	}
	return policy, nil
}

// ActorGrant is the outcome of resolving which role lets the principal
// perform a guarded mutation. Restricted grants must not touch the guard's
// restricted fields.
type ActorGrant struct {
	Role       string
	Restricted bool
}

// ResolveActorRole finds the strongest role the principal holds on the
// object under the guard. Admin roles win over allowed roles. Returns
// ErrPermissionDenied when the principal holds neither.
func (c *Checker) ResolveActorRole(ctx context.Context, rc *RequestContext, objectID uuid.UUID, guard GuardPolicy) (*ActorGrant, error) {
	principalID := rc.PrincipalID()
	if principalID == nil {
		return nil, ErrPermissionDenied
	}

	obj, err := c.engine.Resolve(ctx, rc.Loaders, objectID)
	if err == ErrNotFound {
		return nil, ErrPermissionDenied
	}
	if err != nil {
		return nil, err
	}

	held, err := c.engine.RolesOnObject(ctx, rc.Loaders, *obj, principalID)
	if err != nil {
		return nil, err
	}

	admin := make(map[string]bool, len(guard.AdminRoles))
	for _, name := range guard.AdminRoles {
		admin[name] = true
	}
	allowed := make(map[string]bool, len(guard.AllowedRoles))
	for _, name := range guard.AllowedRoles {
		allowed[name] = true
	}

	var grant *ActorGrant
	for _, role := range held {
		if admin[role.Type.Name] {
			return &ActorGrant{Role: role.Type.Name}, nil
		}
		if grant == nil && allowed[role.Type.Name] {
			grant = &ActorGrant{Role: role.Type.Name, Restricted: true}
		}
	}
	if grant == nil {
		return nil, ErrPermissionDenied
	}
	return grant, nil
}

// CheckFieldChanges enforces the guard's restricted fields against the set
// of fields a mutation wants to change. Unrestricted grants pass everything.
func (g GuardPolicy) CheckFieldChanges(grant *ActorGrant, changedFields []string) error {
	if grant == nil {
		return ErrPermissionDenied
	}
	if !grant.Restricted {
		return nil
	}
	restricted := make(map[string]bool, len(g.RestrictedFields))
	for _, f := range g.RestrictedFields {
		restricted[f] = true
	}
	for _, f := range changedFields {
		if restricted[f] {
			return &PolicyViolationError{Role: grant.Role, Field: f}
		}
	}
	return nil
}
