package workflow

import (
	"context"
	"database/sql"

	"github.com/campusware/gatekeeper/pkg/rbac"
)

// GetMigrations returns all workflow migrations
func GetMigrations() []rbac.Migration {
	return []rbac.Migration{
		{
			Version:     1,
			Description: "Create state machine classification tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS statemachinecategories (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE TABLE IF NOT EXISTS statemachinetypes (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					category_id UUID REFERENCES statemachinecategories(id) ON DELETE SET NULL,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_statemachinetypes_category_id ON statemachinetypes(category_id);
			`,
		},
		{
			Version:     2,
			Description: "Create state machines table",
			SQL: `
				CREATE TABLE IF NOT EXISTS statemachines (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					type_id UUID REFERENCES statemachinetypes(id) ON DELETE SET NULL,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_statemachines_type_id ON statemachines(type_id);
			`,
		},
		{
			Version:     3,
			Description: "Create role type lists tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roletypelists (
					id UUID PRIMARY KEY,
					owner_kind VARCHAR(32) NOT NULL,
					owner_id UUID NOT NULL,
					access VARCHAR(16) NOT NULL,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_roletypelists_owner ON roletypelists(owner_kind, owner_id);

				CREATE TABLE IF NOT EXISTS roletypelistitems (
					id UUID PRIMARY KEY,
					list_id UUID NOT NULL REFERENCES roletypelists(id) ON DELETE CASCADE,
					roletype_id UUID NOT NULL,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID,
					UNIQUE (list_id, roletype_id)
				);

				CREATE INDEX idx_roletypelistitems_list_id ON roletypelistitems(list_id);
			`,
		},
		{
			Version:     4,
			Description: "Create states table",
			SQL: `
				CREATE TABLE IF NOT EXISTS states (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					ord INT NOT NULL DEFAULT 0,
					statemachine_id UUID NOT NULL REFERENCES statemachines(id) ON DELETE CASCADE,
					readerslist_id UUID NOT NULL REFERENCES roletypelists(id),
					writerslist_id UUID NOT NULL REFERENCES roletypelists(id),
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_states_statemachine_id ON states(statemachine_id);
			`,
		},
		{
			Version:     5,
			Description: "Create state transitions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS statetransitions (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					source_id UUID NOT NULL REFERENCES states(id) ON DELETE CASCADE,
					target_id UUID NOT NULL REFERENCES states(id) ON DELETE CASCADE,
					statemachine_id UUID NOT NULL REFERENCES statemachines(id) ON DELETE CASCADE,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_statetransitions_source_id ON statetransitions(source_id);
				CREATE INDEX idx_statetransitions_statemachine_id ON statetransitions(statemachine_id);
			`,
		},
	}
}

// RunMigrations executes all pending workflow migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return rbac.RunMigrationSet(ctx, db, "workflow_migrations", GetMigrations())
}
