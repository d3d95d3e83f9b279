package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/surveykong/surveykong/internal/model"
)

// Retry tuning for project updates; concurrent stage transitions against
// the same row can deadlock under load.
const (
	updateRetries   = 3
	updateBaseDelay = 50 * time.Millisecond
)

// CreateProject inserts a new project with the given JSONB payload.
func (db *DB) CreateProject(ctx context.Context, data map[string]any) (*model.Project, error) {
	p := model.Project{
		ID:        uuid.New(),
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO projects (id, data, created_at) VALUES ($1, $2, $3)`,
		p.ID, p.Data, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: create project: %w", err)
	}
	return &p, nil
}

// GetProject retrieves a project by ID.
func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	err := db.pool.QueryRow(ctx,
		`SELECT id, data, created_at FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Data, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("storage: get project: %w", err)
	}
	return &p, nil
}

// UpdateProject merges patch into the project's JSONB payload and returns
// the updated row. Fields absent from patch are left untouched, so a stage
// failure writing status and error never clobbers workflow_stage.
func (db *DB) UpdateProject(ctx context.Context, id uuid.UUID, patch map[string]any) (*model.Project, error) {
	var p model.Project
	err := WithRetry(ctx, updateRetries, updateBaseDelay, func() error {
		return db.pool.QueryRow(ctx,
			`UPDATE projects SET data = data || $2 WHERE id = $1
			 RETURNING id, data, created_at`,
			id, patch,
		).Scan(&p.ID, &p.Data, &p.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("storage: update project: %w", err)
	}
	return &p, nil
}

// DeleteProject removes a project and, via cascading foreign keys, its
// stage artifacts.
func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	return nil
}

// ListProjects returns projects newest first.
func (db *DB) ListProjects(ctx context.Context, limit, offset int) ([]model.Project, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, data, created_at FROM projects
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list projects: %w", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Data, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list projects: %w", err)
	}
	return out, nil
}

// CountProjects returns the total number of projects.
func (db *DB) CountProjects(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count projects: %w", err)
	}
	return n, nil
}
