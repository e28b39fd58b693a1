package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypeAuthzStateCheck      EventType = "authz.state_check"
	EventTypeAuthzRoleCheck       EventType = "authz.role_check"
	EventTypeAuthzAccessDenied    EventType = "authz.access_denied"
	EventTypeAuthzPolicyViolation EventType = "authz.policy_violation"

	// Data mutation events
	EventTypeDataUserCreate       EventType = "data.user_create"
	EventTypeDataUserUpdate       EventType = "data.user_update"
	EventTypeDataUserDelete       EventType = "data.user_delete"
	EventTypeDataGroupCreate      EventType = "data.group_create"
	EventTypeDataGroupUpdate      EventType = "data.group_update"
	EventTypeDataGroupDelete      EventType = "data.group_delete"
	EventTypeDataRoleCreate       EventType = "data.role_create"
	EventTypeDataRoleUpdate       EventType = "data.role_update"
	EventTypeDataRoleDelete       EventType = "data.role_delete"
	EventTypeDataRoleTypeCreate   EventType = "data.roletype_create"
	EventTypeDataRoleTypeUpdate   EventType = "data.roletype_update"
	EventTypeDataRoleTypeDelete   EventType = "data.roletype_delete"
	EventTypeDataMembershipCreate EventType = "data.membership_create"
	EventTypeDataMembershipDelete EventType = "data.membership_delete"

	// Workflow events
	EventTypeWorkflowMachineCreate    EventType = "workflow.machine_create"
	EventTypeWorkflowMachineUpdate    EventType = "workflow.machine_update"
	EventTypeWorkflowMachineDelete    EventType = "workflow.machine_delete"
	EventTypeWorkflowStateCreate      EventType = "workflow.state_create"
	EventTypeWorkflowStateUpdate      EventType = "workflow.state_update"
	EventTypeWorkflowStateDelete      EventType = "workflow.state_delete"
	EventTypeWorkflowTransitionCreate EventType = "workflow.transition_create"
	EventTypeWorkflowTransitionUpdate EventType = "workflow.transition_update"
	EventTypeWorkflowTransitionDelete EventType = "workflow.transition_delete"
	EventTypeWorkflowListAdd          EventType = "workflow.list_add"
	EventTypeWorkflowListRemove       EventType = "workflow.list_remove"

	// Background job events
	EventTypeJobRoleSweep EventType = "job.role_sweep"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeUser         ResourceType = "user"
	ResourceTypeGroup        ResourceType = "group"
	ResourceTypeRole         ResourceType = "role"
	ResourceTypeRoleType     ResourceType = "roletype"
	ResourceTypeMembership   ResourceType = "membership"
	ResourceTypeState        ResourceType = "state"
	ResourceTypeStateMachine ResourceType = "statemachine"
	ResourceTypeTransition   ResourceType = "transition"
	ResourceTypeRoleTypeList ResourceType = "roletypelist"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	ActorName string     `json:"actor_name,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	ActorID      *uuid.UUID
	EventTypes   []EventType
	Status       *EventStatus
	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}
