package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					surname VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					valid BOOLEAN NOT NULL DEFAULT TRUE,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_surname ON users(surname);
			`,
		},
		{
			Version:     2,
			Description: "Create group classification tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS groupcategories (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE TABLE IF NOT EXISTS grouptypes (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					category_id UUID REFERENCES groupcategories(id) ON DELETE SET NULL,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_grouptypes_category_id ON grouptypes(category_id);
			`,
		},
		{
			Version:     3,
			Description: "Create groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					abbreviation VARCHAR(32) NOT NULL DEFAULT '',
					email VARCHAR(255) NOT NULL DEFAULT '',
					startdate TIMESTAMP,
					enddate TIMESTAMP,
					valid BOOLEAN NOT NULL DEFAULT TRUE,
					grouptype_id UUID REFERENCES grouptypes(id) ON DELETE SET NULL,
					mastergroup_id UUID REFERENCES groups(id) ON DELETE SET NULL,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_groups_mastergroup_id ON groups(mastergroup_id);
				CREATE INDEX idx_groups_grouptype_id ON groups(grouptype_id);
			`,
		},
		{
			Version:     4,
			Description: "Create role classification tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS rolecategories (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE TABLE IF NOT EXISTS roletypes (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					name_en VARCHAR(255) NOT NULL DEFAULT '',
					category_id UUID REFERENCES rolecategories(id) ON DELETE SET NULL,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_roletypes_name ON roletypes(name);
				CREATE INDEX idx_roletypes_category_id ON roletypes(category_id);
			`,
		},
		{
			Version:     5,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					startdate TIMESTAMP,
					enddate TIMESTAMP,
					valid BOOLEAN NOT NULL DEFAULT TRUE,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_memberships_user_id ON memberships(user_id);
				CREATE INDEX idx_memberships_group_id ON memberships(group_id);
			`,
		},
		{
			Version:     6,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					roletype_id UUID NOT NULL REFERENCES roletypes(id) ON DELETE CASCADE,
					startdate TIMESTAMP,
					enddate TIMESTAMP,
					valid BOOLEAN NOT NULL DEFAULT TRUE,
					rbacobject UUID,
					created TIMESTAMP NOT NULL,
					createdby UUID,
					lastchange TIMESTAMP NOT NULL,
					changedby UUID
				);

				CREATE INDEX idx_roles_user_id ON roles(user_id);
				CREATE INDEX idx_roles_group_id ON roles(group_id);
				CREATE INDEX idx_roles_roletype_id ON roles(roletype_id);
				CREATE INDEX idx_roles_enddate ON roles(enddate);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return RunMigrationSet(ctx, db, "rbac_migrations", GetMigrations())
}

// RunMigrationSet applies the pending migrations from one set, tracking
// applied versions in the named table. Each migration runs in its own
// transaction.
func RunMigrationSet(ctx context.Context, db *sql.DB, trackingTable string, migrations []Migration) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`, trackingTable))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT version FROM %s ORDER BY version", trackingTable))
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range migrations {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (version, description) VALUES ($1, $2)", trackingTable),
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
