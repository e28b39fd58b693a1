package rbac

import (
	"time"

	"github.com/google/uuid"
)

// AccessKind selects which role type list of a workflow state applies to a
// check.
type AccessKind string

const (
	AccessRead  AccessKind = "read"
	AccessWrite AccessKind = "write"
)

// Valid reports whether the access kind is one of the known values.
func (a AccessKind) Valid() bool {
	return a == AccessRead || a == AccessWrite
}

// RBACObjectKind tags the concrete entity behind an authorization object id.
type RBACObjectKind string

const (
	ObjectKindUser  RBACObjectKind = "user"
	ObjectKindGroup RBACObjectKind = "group"
)

// RBACObject is the resolved identity of an authorization target. An id is
// resolved to exactly one kind at the request boundary; downstream code
// dispatches on Kind instead of probing tables again.
type RBACObject struct {
	ID   uuid.UUID      `json:"id"`
	Kind RBACObjectKind `json:"kind"`
}

// IsUser reports whether the object resolved to a user.
func (o RBACObject) IsUser() bool { return o.Kind == ObjectKindUser }

// IsGroup reports whether the object resolved to a group.
func (o RBACObject) IsGroup() bool { return o.Kind == ObjectKindGroup }

// Entity carries the audit columns shared by every row. Lastchange doubles as
// the compare-and-swap token for updates.
type Entity struct {
	ID         uuid.UUID  `json:"id"`
	Created    time.Time  `json:"created"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`
	Lastchange time.Time  `json:"lastchange"`
	ChangedBy  *uuid.UUID `json:"changed_by,omitempty"`
}

// User is a person known to the system.
type User struct {
	Entity
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
	Valid   bool   `json:"valid"`
}

// FullName returns the display name of the user.
func (u *User) FullName() string {
	return u.Name + " " + u.Surname
}

// Group is an organizational unit. MastergroupID points at the parent group;
// nil marks a root of the hierarchy.
type Group struct {
	Entity
	Name          string     `json:"name"`
	NameEn        string     `json:"name_en"`
	Abbreviation  string     `json:"abbreviation"`
	Email         string     `json:"email"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Valid         bool       `json:"valid"`
	GroupTypeID   *uuid.UUID `json:"group_type_id,omitempty"`
	MastergroupID *uuid.UUID `json:"mastergroup_id,omitempty"`
}

// GroupType classifies groups (faculty, department, and so on).
type GroupType struct {
	Entity
	Name       string     `json:"name"`
	NameEn     string     `json:"name_en"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
}

// GroupCategory groups group types.
type GroupCategory struct {
	Entity
	Name   string `json:"name"`
	NameEn string `json:"name_en"`
}

// RoleCategory groups role types.
type RoleCategory struct {
	Entity
	Name   string `json:"name"`
	NameEn string `json:"name_en"`
}

// RoleType names a kind of role (dean, garant, administrator). Authorization
// rules reference role types, never individual role rows.
type RoleType struct {
	Entity
	Name       string     `json:"name"`
	NameEn     string     `json:"name_en"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
}

// Membership links a user to a group they belong to.
type Membership struct {
	Entity
	UserID    uuid.UUID  `json:"user_id"`
	GroupID   uuid.UUID  `json:"group_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Valid     bool       `json:"valid"`
}

// Role grants a user a role type on a group. RBACObjectID records the object
// the grant is scoped to and always equals the group id on insert.
type Role struct {
	Entity
	UserID       uuid.UUID  `json:"user_id"`
	GroupID      uuid.UUID  `json:"group_id"`
	RoleTypeID   uuid.UUID  `json:"roletype_id"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Valid        bool       `json:"valid"`
	RBACObjectID *uuid.UUID `json:"rbacobject_id,omitempty"`
}

// RoleWithType is a role annotated with its role type row.
type RoleWithType struct {
	Role
	Type RoleType `json:"type"`
}

// MutationResult is the uniform outcome of a mutation. Msg is "ok" on
// success and "fail" when the write was rejected without being an error
// (stale token, duplicate list entry).
type MutationResult struct {
	ID  uuid.UUID `json:"id"`
	Msg string    `json:"msg"`
}

// MsgOK and MsgFail are the two MutationResult messages.
const (
	MsgOK   = "ok"
	MsgFail = "fail"
)

// OkResult builds a success result for the given id.
func OkResult(id uuid.UUID) MutationResult {
	return MutationResult{ID: id, Msg: MsgOK}
}

// FailResult builds a rejection result for the given id.
func FailResult(id uuid.UUID) MutationResult {
	return MutationResult{ID: id, Msg: MsgFail}
}
