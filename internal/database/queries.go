package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pillnow/internal/store"
	"pillnow/pkg/models"
)

const scheduleColumns = `
	schedule_id, user_id, created_by, medication_id, container,
	date, time, status, alert_sent, status_history,
	last_status_update, adherence_data, created_at, updated_at
`

// NextSequence faz o incremento atômico do contador da entidade em uma
// única ida ao banco. Seguro sob criadores concorrentes; nunca max+1.
func (db *DB) NextSequence(ctx context.Context, entity string) (int64, error) {
	query := `
		INSERT INTO counters (name, seq) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq
	`

	var seq int64
	if err := db.conn.QueryRowContext(ctx, query, entity).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to increment counter %q: %w", entity, err)
	}
	return seq, nil
}

func (db *DB) Get(ctx context.Context, id int64) (*models.DoseSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM medication_schedules WHERE schedule_id = $1`

	s, err := scanSchedule(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	return s, nil
}

func (db *DB) FindPending(ctx context.Context) ([]models.DoseSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM medication_schedules WHERE status = 'Pending' ORDER BY schedule_id`
	return db.querySchedules(ctx, query)
}

func (db *DB) FindPendingUnalerted(ctx context.Context) ([]models.DoseSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM medication_schedules WHERE status = 'Pending' AND alert_sent = false ORDER BY schedule_id`
	return db.querySchedules(ctx, query)
}

func (db *DB) FindByUser(ctx context.Context, userID int64) ([]models.DoseSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM medication_schedules WHERE user_id = $1 ORDER BY schedule_id`
	return db.querySchedules(ctx, query, userID)
}

func (db *DB) FindAll(ctx context.Context) ([]models.DoseSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM medication_schedules ORDER BY schedule_id`
	return db.querySchedules(ctx, query)
}

func (db *DB) querySchedules(ctx context.Context, query string, args ...interface{}) ([]models.DoseSchedule, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.DoseSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, *s)
	}

	return schedules, rows.Err()
}

func (db *DB) Create(ctx context.Context, s *models.DoseSchedule) error {
	id, err := db.NextSequence(ctx, "scheduleId")
	if err != nil {
		return err
	}
	s.ScheduleID = id

	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Container == "" {
		s.Container = "default"
	}

	return db.upsert(ctx, s)
}

func (db *DB) Save(ctx context.Context, s *models.DoseSchedule) error {
	s.UpdatedAt = time.Now()
	return db.upsert(ctx, s)
}

// upsert grava o registro inteiro, histórico e adesão juntos, em um
// único statement: nada de escrita parcial de histórico.
func (db *DB) upsert(ctx context.Context, s *models.DoseSchedule) error {
	history, err := json.Marshal(s.StatusHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal status history: %w", err)
	}

	adherence, err := json.Marshal(s.AdherenceData)
	if err != nil {
		return fmt.Errorf("failed to marshal adherence data: %w", err)
	}

	query := `
		INSERT INTO medication_schedules (
			schedule_id, user_id, created_by, medication_id, container,
			date, time, status, alert_sent, status_history,
			last_status_update, adherence_data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (schedule_id) DO UPDATE SET
			user_id            = EXCLUDED.user_id,
			created_by         = EXCLUDED.created_by,
			medication_id      = EXCLUDED.medication_id,
			container          = EXCLUDED.container,
			date               = EXCLUDED.date,
			time               = EXCLUDED.time,
			status             = EXCLUDED.status,
			alert_sent         = EXCLUDED.alert_sent,
			status_history     = EXCLUDED.status_history,
			last_status_update = EXCLUDED.last_status_update,
			adherence_data     = EXCLUDED.adherence_data,
			updated_at         = EXCLUDED.updated_at
	`

	var lastUpdate interface{}
	if s.LastStatusUpdate != nil {
		lastUpdate = *s.LastStatusUpdate
	}

	_, err = db.conn.ExecContext(ctx, query,
		s.ScheduleID, s.User, s.CreatedBy, s.Medication, s.Container,
		s.Date, s.Time, string(s.Status), s.AlertSent, history,
		lastUpdate, adherence, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	return nil
}

func (db *DB) Delete(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM medication_schedules WHERE schedule_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (db *DB) MarkAlertSent(ctx context.Context, id int64) error {
	query := `UPDATE medication_schedules SET alert_sent = true, updated_at = NOW() WHERE schedule_id = $1`

	result, err := db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert sent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (db *DB) MarkCaregiverNotified(ctx context.Context, id int64) error {
	query := `
		UPDATE medication_schedules
		SET adherence_data = adherence_data
			|| jsonb_build_object('caregiverNotified', true)
			|| jsonb_build_object('caregiverNotifiedAt', to_char(NOW() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')),
		    updated_at = NOW()
		WHERE schedule_id = $1
	`

	result, err := db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark caregiver notified: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

// ActiveLink busca o vínculo ativo entre um cuidador e um idoso
func (db *DB) ActiveLink(ctx context.Context, caregiverID, elderID int64) (*models.CaregiverConnection, error) {
	query := `
		SELECT connection_id, caregiver_id, elder_id, device_id, relationship, status, permissions
		FROM caregiver_connections
		WHERE caregiver_id = $1 AND elder_id = $2 AND status = 'active'
		LIMIT 1
	`

	c, err := scanConnection(db.conn.QueryRowContext(ctx, query, caregiverID, elderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query caregiver connection: %w", err)
	}
	return c, nil
}

func (db *DB) ActiveByElder(ctx context.Context, elderID int64) ([]models.CaregiverConnection, error) {
	query := `
		SELECT connection_id, caregiver_id, elder_id, device_id, relationship, status, permissions
		FROM caregiver_connections
		WHERE elder_id = $1 AND status = 'active'
	`

	rows, err := db.conn.QueryContext(ctx, query, elderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query caregiver connections: %w", err)
	}
	defer rows.Close()

	var connections []models.CaregiverConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan caregiver connection: %w", err)
		}
		connections = append(connections, *c)
	}

	return connections, rows.Err()
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, name, email, phone, role, device_token, active
		FROM users
		WHERE id = $1
	`

	var u models.User
	var deviceToken sql.NullString
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &deviceToken, &u.Active,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	u.DeviceToken = deviceToken.String
	return &u, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*models.DoseSchedule, error) {
	var s models.DoseSchedule
	var history, adherence []byte
	var lastUpdate sql.NullTime

	err := row.Scan(
		&s.ScheduleID, &s.User, &s.CreatedBy, &s.Medication, &s.Container,
		&s.Date, &s.Time, &s.Status, &s.AlertSent, &history,
		&lastUpdate, &adherence, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastUpdate.Valid {
		t := lastUpdate.Time
		s.LastStatusUpdate = &t
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.StatusHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
		}
	}
	if len(adherence) > 0 {
		if err := json.Unmarshal(adherence, &s.AdherenceData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal adherence data: %w", err)
		}
	}

	return &s, nil
}

func scanConnection(row rowScanner) (*models.CaregiverConnection, error) {
	var c models.CaregiverConnection
	var permissions []byte

	err := row.Scan(
		&c.ConnectionID, &c.Caregiver, &c.Elder, &c.Device,
		&c.Relationship, &c.Status, &permissions,
	)
	if err != nil {
		return nil, err
	}

	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &c.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection permissions: %w", err)
		}
	}

	return &c, nil
}
