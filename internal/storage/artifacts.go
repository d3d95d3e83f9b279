package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/surveykong/surveykong/internal/model"
)

// stageTable maps a workflow stage to its artifact table. Table names come
// only from this closed switch, never from request input.
func stageTable(stage model.WorkflowStage) (string, error) {
	switch stage {
	case model.StageSpec:
		return "survey_specs", nil
	case model.StageSurvey:
		return "surveys", nil
	case model.StageCohort:
		return "cohorts", nil
	case model.StageOutbound:
		return "outbound_results", nil
	case model.StageAnalysis:
		return "analysis_reports", nil
	default:
		return "", fmt.Errorf("storage: no artifact table for stage %q", stage)
	}
}

// encodePayload renders an arbitrary artifact payload for a JSONB column.
func encodePayload(payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("storage: encode artifact payload: %w", err)
	}
	return b, nil
}

// SaveArtifact stores payload in the artifact table for the given stage,
// keyed by project.
func (db *DB) SaveArtifact(ctx context.Context, stage model.WorkflowStage, projectID uuid.UUID, payload any) (*model.StageArtifact, error) {
	table, err := stageTable(stage)
	if err != nil {
		return nil, err
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	rec := model.StageArtifact{
		ID:        uuid.New(),
		ProjectID: &projectID,
		CreatedAt: time.Now().UTC(),
	}
	err = db.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, project_id, data, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING data`, table),
		rec.ID, rec.ProjectID, raw, rec.CreatedAt,
	).Scan(&rec.Data)
	if err != nil {
		return nil, fmt.Errorf("storage: save %s artifact: %w", table, err)
	}

	db.logger.Debug("saved stage artifact", "table", table, "project_id", projectID, "artifact_id", rec.ID)
	return &rec, nil
}

// GetLatestArtifact returns the most recent artifact of a stage for a
// project, or ErrNotFound.
func (db *DB) GetLatestArtifact(ctx context.Context, stage model.WorkflowStage, projectID uuid.UUID) (*model.StageArtifact, error) {
	table, err := stageTable(stage)
	if err != nil {
		return nil, err
	}

	var rec model.StageArtifact
	err = db.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, project_id, data, created_at FROM %s
		 WHERE project_id = $1 ORDER BY created_at DESC LIMIT 1`, table),
		projectID,
	).Scan(&rec.ID, &rec.ProjectID, &rec.Data, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s artifact for project %s", ErrNotFound, stage, projectID)
		}
		return nil, fmt.Errorf("storage: get latest %s artifact: %w", table, err)
	}
	return &rec, nil
}

// CreateSurveySpec stores a survey specification payload for a project.
func (db *DB) CreateSurveySpec(ctx context.Context, projectID uuid.UUID, payload any) (*model.StageArtifact, error) {
	return db.SaveArtifact(ctx, model.StageSpec, projectID, payload)
}

// GetSurveySpec retrieves a survey spec row by ID.
func (db *DB) GetSurveySpec(ctx context.Context, id uuid.UUID) (*model.StageArtifact, error) {
	var rec model.StageArtifact
	err := db.pool.QueryRow(ctx,
		`SELECT id, project_id, data, created_at FROM survey_specs WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.ProjectID, &rec.Data, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: survey spec %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("storage: get survey spec: %w", err)
	}
	return &rec, nil
}

// UpdateSurveySpec replaces a survey spec row's payload.
func (db *DB) UpdateSurveySpec(ctx context.Context, id uuid.UUID, payload any) (*model.StageArtifact, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	var rec model.StageArtifact
	err = db.pool.QueryRow(ctx,
		`UPDATE survey_specs SET data = $2 WHERE id = $1
		 RETURNING id, project_id, data, created_at`,
		id, raw,
	).Scan(&rec.ID, &rec.ProjectID, &rec.Data, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: survey spec %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("storage: update survey spec: %w", err)
	}
	return &rec, nil
}

// DeleteSurveySpec removes a survey spec row.
func (db *DB) DeleteSurveySpec(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM survey_specs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete survey spec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: survey spec %s", ErrNotFound, id)
	}
	return nil
}

// ListSurveySpecs returns survey specs newest first, optionally filtered by
// project.
func (db *DB) ListSurveySpecs(ctx context.Context, projectID *uuid.UUID, limit, offset int) ([]model.StageArtifact, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if projectID != nil {
		rows, err = db.pool.Query(ctx,
			`SELECT id, project_id, data, created_at FROM survey_specs
			 WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			*projectID, limit, offset,
		)
	} else {
		rows, err = db.pool.Query(ctx,
			`SELECT id, project_id, data, created_at FROM survey_specs
			 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list survey specs: %w", err)
	}
	defer rows.Close()

	var out []model.StageArtifact
	for rows.Next() {
		var rec model.StageArtifact
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.Data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan survey spec: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list survey specs: %w", err)
	}
	return out, nil
}
