package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tessera-ai/tessera/pkg/repository"
)

const saveRecordSQL = `
INSERT INTO workflow_tasks (
	workflow_id, task_id, state, attempt_count,
	started_at, completed_at, error, outputs
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (workflow_id, task_id) DO UPDATE SET
	state = EXCLUDED.state,
	attempt_count = EXCLUDED.attempt_count,
	started_at = EXCLUDED.started_at,
	completed_at = EXCLUDED.completed_at,
	error = EXCLUDED.error,
	outputs = EXCLUDED.outputs`

const loadRecordsSQL = `
SELECT workflow_id, task_id, state, attempt_count,
	started_at, completed_at, error, outputs
FROM workflow_tasks
WHERE workflow_id = $1
ORDER BY task_id`

// PostgresStore persists task records in PostgreSQL, surviving process
// restarts so interrupted runs can resume.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a checkpoint store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, rec TaskRecord) error {
	var outputs any
	if len(rec.Outputs) > 0 {
		outputs = []byte(rec.Outputs)
	}

	err := repository.Exec(
		ctx, s.db, saveRecordSQL,
		rec.WorkflowID, rec.TaskID, string(rec.State), rec.AttemptCount,
		rec.StartedAt, rec.CompletedAt, nullableString(rec.Error), outputs,
	)
	if err != nil {
		return fmt.Errorf("save task record %s/%s: %w", rec.WorkflowID, rec.TaskID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, workflowID uuid.UUID) ([]TaskRecord, error) {
	records, err := repository.QueryMany(
		ctx, s.db, loadRecordsSQL,
		[]any{workflowID},
		scanTaskRecord,
	)
	if err != nil {
		return nil, fmt.Errorf("load task records for %s: %w", workflowID, err)
	}
	return records, nil
}

func scanTaskRecord(s repository.Scanner) (TaskRecord, error) {
	var (
		rec     TaskRecord
		state   string
		errText sql.NullString
		outputs []byte
	)

	if err := s.Scan(
		&rec.WorkflowID, &rec.TaskID, &state, &rec.AttemptCount,
		&rec.StartedAt, &rec.CompletedAt, &errText, &outputs,
	); err != nil {
		return TaskRecord{}, err
	}

	rec.State = State(state)
	if errText.Valid {
		rec.Error = errText.String
	}
	if len(outputs) > 0 {
		rec.Outputs = outputs
	}
	return rec, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
