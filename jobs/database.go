package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"fileconverter/models"
)

// Database mirrors job rows into Postgres so terminal results survive
// process restarts beyond what the Redis record TTL covers.
type Database struct {
	db *sql.DB
}

func NewDatabase(databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) InsertJob(ctx context.Context, job *models.Job) error {
	query := `INSERT INTO conversion_jobs
		(id, target_format, file_count, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.db.ExecContext(ctx, query,
		job.ID, job.TargetFormat, len(job.Inputs),
		string(models.StatePending), 0, job.CreatedAt, job.CreatedAt)
	return err
}

func (d *Database) UpdateStatus(ctx context.Context, jobID string, state models.JobState, lastError string, result *models.JobResult) error {
	query := `UPDATE conversion_jobs SET status = $1, updated_at = $2`
	args := []interface{}{string(state), time.Now()}
	argIndex := 3

	if state == models.StateStarted {
		query += fmt.Sprintf(`, started_at = $%d`, argIndex)
		args = append(args, time.Now())
		argIndex++
	}

	if lastError != "" {
		query += fmt.Sprintf(`, error_message = $%d`, argIndex)
		args = append(args, lastError)
		argIndex++
	}

	if state == models.StateSuccess && result != nil {
		resultJSON, _ := json.Marshal(result)
		query += fmt.Sprintf(`, completed_at = $%d, result_key = $%d, result = $%d`,
			argIndex, argIndex+1, argIndex+2)
		args = append(args, time.Now(), result.Key, resultJSON)
		argIndex += 3
	}

	query += fmt.Sprintf(` WHERE id = $%d`, argIndex)
	args = append(args, jobID)

	_, err := d.db.ExecContext(ctx, query, args...)
	return err
}

func (d *Database) IncrementRetry(ctx context.Context, jobID string) error {
	query := `UPDATE conversion_jobs SET retry_count = retry_count + 1, updated_at = $1 WHERE id = $2`
	_, err := d.db.ExecContext(ctx, query, time.Now(), jobID)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}
