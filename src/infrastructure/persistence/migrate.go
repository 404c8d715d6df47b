package persistence

import (
	"context"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/config"
)

// Tables are created on startup when missing. Oracle has no
// CREATE TABLE IF NOT EXISTS so existence is checked in user_tables.
var tableDefinitions = map[string]string{
	"users": `CREATE TABLE users (
		id NUMBER GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY,
		username VARCHAR2(50) NOT NULL UNIQUE,
		email VARCHAR2(100) NOT NULL UNIQUE,
		hashed_password VARCHAR2(255) NOT NULL,
		is_active NUMBER(1) DEFAULT 1 NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	)`,

	"scan_tasks": `CREATE TABLE scan_tasks (
		id NUMBER GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY,
		task_id VARCHAR2(36) NOT NULL UNIQUE,
		job_name VARCHAR2(100) NOT NULL,
		jenkins_build_number NUMBER,
		status VARCHAR2(20) DEFAULT 'pending' NOT NULL,
		triggered_by NUMBER NOT NULL REFERENCES users (id),
		parameters CLOB,
		result CLOB,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP,
		completed_at TIMESTAMP
	)`,

	"websocket_connections": `CREATE TABLE websocket_connections (
		id NUMBER GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY,
		connection_id VARCHAR2(36) NOT NULL UNIQUE,
		user_id NUMBER NOT NULL REFERENCES users (id),
		is_active NUMBER(1) DEFAULT 1 NOT NULL,
		connected_at TIMESTAMP NOT NULL,
		disconnected_at TIMESTAMP
	)`,

	"monitor_tasks": `CREATE TABLE monitor_tasks (
		id NUMBER GENERATED BY DEFAULT ON NULL AS IDENTITY PRIMARY KEY,
		task_id VARCHAR2(36) NOT NULL UNIQUE,
		service_name VARCHAR2(100) NOT NULL,
		job_id VARCHAR2(100) NOT NULL,
		monitor_url VARCHAR2(500) NOT NULL,
		status VARCHAR2(20) DEFAULT 'pending' NOT NULL,
		result CLOB,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP,
		completed_at TIMESTAMP,
		timeout_at TIMESTAMP NOT NULL,
		check_interval NUMBER DEFAULT 30 NOT NULL,
		success_conditions CLOB,
		failure_conditions CLOB,
		assigned_instance VARCHAR2(100),
		last_heartbeat TIMESTAMP,
		retry_count NUMBER DEFAULT 0 NOT NULL,
		max_retries NUMBER DEFAULT 3 NOT NULL
	)`,
}

// creation order matters because of the foreign keys
var tableOrder = []string{"users", "scan_tasks", "websocket_connections", "monitor_tasks"}

func Migrate(db config.DbIface, logger *zerolog.Logger) error {
	for _, table := range tableOrder {
		var count int
		if err := sqlscan.Get(
			context.Background(), db, &count,
			`SELECT count(*) FROM user_tables WHERE table_name = :1`,
			strings.ToUpper(table),
		); err != nil {
			return errors.WithMessagef(err, "While checking for table %q", table)
		}
		if count > 0 {
			continue
		}

		if _, err := db.ExecContext(context.Background(), tableDefinitions[table]); err != nil {
			return errors.WithMessagef(err, "While creating table %q", table)
		}
		logger.Info().Str("table", table).Msg("Created table")
	}
	return nil
}
