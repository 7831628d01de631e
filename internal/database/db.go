package database

import (
	"database/sql"
	"fmt"
	"time"
)

type DB struct {
	conn *sql.DB
}

func NewDB(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

func (db *DB) GetConnection() *sql.DB {
	return db.conn
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// EnsureSchema cria as tabelas do núcleo se ainda não existirem
func (db *DB) EnsureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			seq  BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS medication_schedules (
			schedule_id        BIGINT PRIMARY KEY,
			user_id            BIGINT NOT NULL,
			created_by         BIGINT NOT NULL,
			medication_id      BIGINT NOT NULL,
			container          TEXT NOT NULL DEFAULT 'default',
			date               DATE NOT NULL,
			time               TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'Pending',
			alert_sent         BOOLEAN NOT NULL DEFAULT false,
			status_history     JSONB NOT NULL DEFAULT '[]',
			last_status_update TIMESTAMPTZ,
			adherence_data     JSONB NOT NULL DEFAULT '{}',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_medication_schedules_status
			ON medication_schedules (status)`,
		`CREATE INDEX IF NOT EXISTS idx_medication_schedules_user
			ON medication_schedules (user_id)`,
		// vínculos e usuários são gerenciados por outro serviço; as tabelas
		// existem aqui para leitura e para subir limpo em banco novo
		`CREATE TABLE IF NOT EXISTS caregiver_connections (
			connection_id TEXT PRIMARY KEY,
			caregiver_id  BIGINT NOT NULL,
			elder_id      BIGINT NOT NULL,
			device_id     TEXT NOT NULL DEFAULT '',
			relationship  TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'pending',
			permissions   JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_caregiver_connections_elder
			ON caregiver_connections (elder_id, status)`,
		`CREATE TABLE IF NOT EXISTS users (
			id           BIGINT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL DEFAULT '',
			phone        TEXT NOT NULL DEFAULT '',
			role         INT NOT NULL DEFAULT 2,
			device_token TEXT,
			active       BOOLEAN NOT NULL DEFAULT true
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}
