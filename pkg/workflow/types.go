package workflow

import (
	"errors"

	"github.com/campusware/gatekeeper/pkg/rbac"
	"github.com/google/uuid"
)

var (
	// ErrDuplicateListEntry is returned when a role type is already on the
	// list. The add is idempotent at the row level; the caller reports the
	// operation as failed without erroring.
	ErrDuplicateListEntry = errors.New("role type already on list")

	// ErrCrossMachineTransition is returned when a transition's source and
	// target states do not both belong to the transition's machine.
	ErrCrossMachineTransition = errors.New("transition states belong to different machines")
)

// ListOwnerState marks role type lists owned by a workflow state.
const ListOwnerState = "state"

// StateMachineCategory groups state machine types.
type StateMachineCategory struct {
	rbac.Entity
	Name   string `json:"name"`
	NameEn string `json:"name_en"`
}

// StateMachineType classifies state machines.
type StateMachineType struct {
	rbac.Entity
	Name       string     `json:"name"`
	NameEn     string     `json:"name_en"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
}

// StateMachine is a named workflow definition.
type StateMachine struct {
	rbac.Entity
	Name   string     `json:"name"`
	NameEn string     `json:"name_en"`
	TypeID *uuid.UUID `json:"type_id,omitempty"`
}

// State belongs to exactly one machine. Order is a display ordering, ties
// resolve by insertion order. ReadersListID and WritersListID are generated
// on insert and never change afterwards.
type State struct {
	rbac.Entity
	Name           string    `json:"name"`
	NameEn         string    `json:"name_en"`
	Order          int       `json:"order"`
	StateMachineID uuid.UUID `json:"statemachine_id"`
	ReadersListID  uuid.UUID `json:"readerslist_id"`
	WritersListID  uuid.UUID `json:"writerslist_id"`
}

// StateTransition connects two states of one machine.
type StateTransition struct {
	rbac.Entity
	Name           string    `json:"name"`
	NameEn         string    `json:"name_en"`
	SourceID       uuid.UUID `json:"source_id"`
	TargetID       uuid.UUID `json:"target_id"`
	StateMachineID uuid.UUID `json:"statemachine_id"`
}

// RoleTypeList is an owned allow-list of role types. Owner kind and access
// identify which side of which state the list belongs to.
type RoleTypeList struct {
	rbac.Entity
	OwnerKind string          `json:"owner_kind"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Access    rbac.AccessKind `json:"access"`
}

// RoleTypeListItem is one entry of a role type list. The (list, role type)
// pair is unique.
type RoleTypeListItem struct {
	rbac.Entity
	ListID     uuid.UUID `json:"list_id"`
	RoleTypeID uuid.UUID `json:"roletype_id"`
}
