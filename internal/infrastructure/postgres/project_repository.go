package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancehub/lancehub/internal/domain/project"
)

// ProjectRepository implements project.Repository.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO projects (project_id, client_id, title, budget, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, p.ProjectID, p.ClientID, p.Title, p.Budget, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, projectID uuid.UUID) (*project.Project, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, project_id, client_id, title, budget, status, created_at, updated_at
		FROM projects WHERE project_id=$1
	`, projectID)
	return scanProject(row)
}

func (r *ProjectRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*project.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, client_id, title, budget, status, created_at, updated_at
		FROM projects WHERE client_id=$1 ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []*project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) SetStatus(ctx context.Context, projectID uuid.UUID, status project.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE projects SET status=$1, updated_at=$2 WHERE project_id=$3
	`, status, time.Now().UTC(), projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return project.ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (*project.Project, error) {
	var p project.Project
	if err := row.Scan(&p.ID, &p.ProjectID, &p.ClientID, &p.Title, &p.Budget, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
