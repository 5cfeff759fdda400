package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"focusQuestAPI/internal/project"
)

const projectSelect = `
	SELECT p.id, p.user_id, p.name, p.slug, p.color, p.description, p.archived,
	       COALESCE((SELECT SUM(ts.duration_seconds) FROM timer_sessions ts
	                 WHERE ts.project_id = p.id AND ts.status = 'completed'), 0)::bigint,
	       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id)::int,
	       p.created_at, p.updated_at
	FROM projects p`

func scanProject(row pgx.Row) (*project.Project, error) {
	p := &project.Project{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Slug,
		&p.Color,
		&p.Description,
		&p.Archived,
		&p.TotalTimeSeconds,
		&p.TaskCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, project.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

type ProjectService struct {
	db           *pgxpool.Pool
	achievements *AchievementService
}

func NewProjectService(db *pgxpool.Pool, achievements *AchievementService) *ProjectService {
	return &ProjectService{db: db, achievements: achievements}
}

func (s *ProjectService) List(ctx context.Context, userID string, includeArchived bool) ([]*project.Project, error) {
	rows, err := s.db.Query(ctx, projectSelect+`
		WHERE p.user_id = $1 AND ($2 OR NOT p.archived)
		ORDER BY p.created_at DESC
	`, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*project.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*project.Project, error) {
	p, err := scanProject(s.db.QueryRow(ctx, projectSelect+` WHERE p.id = $1 AND p.user_id = $2`, projectID, userID))
	if err != nil {
		if errors.Is(err, project.ErrNotFound) || isInvalidUUID(err) {
			return nil, project.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (s *ProjectService) Create(ctx context.Context, userID string, req *project.CreateProjectRequest) (*project.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var projectID string
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		projectSlug, err := uniqueSlug(ctx, tx, userID, req.Name, "")
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO projects (user_id, name, slug, color, description)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, userID, req.Name, projectSlug, req.Color, req.Description).Scan(&projectID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if s.achievements != nil {
		if _, _, err := s.achievements.Sync(ctx, userID); err != nil {
			zap.S().Warnf("Achievement sync failed for %s: %v", userID, err)
		}
	}
	return s.Get(ctx, userID, projectID)
}

func (s *ProjectService) Update(ctx context.Context, userID, projectID string, req *project.UpdateProjectRequest) (*project.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var newSlug *string
		if req.Name != nil {
			projectSlug, err := uniqueSlug(ctx, tx, userID, *req.Name, projectID)
			if err != nil {
				return err
			}
			newSlug = &projectSlug
		}

		tag, err := tx.Exec(ctx, `
			UPDATE projects
			SET name = COALESCE($3, name),
			    slug = COALESCE($4, slug),
			    color = COALESCE($5, color),
			    description = COALESCE($6, description),
			    archived = COALESCE($7, archived),
			    updated_at = NOW()
			WHERE id = $1 AND user_id = $2
		`, projectID, userID, req.Name, newSlug, req.Color, req.Description, req.Archived)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return project.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, project.ErrNotFound) || isInvalidUUID(err) {
			return nil, project.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return s.Get(ctx, userID, projectID)
}

// Delete removes a project. Its tasks and sessions keep existing without it.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return project.ErrNotFound
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return project.ErrNotFound
	}
	return nil
}

// uniqueSlug derives a slug from name that no other project of the user
// holds, adding -2, -3 ... on collision. exceptID is ignored when checking.
func uniqueSlug(ctx context.Context, tx pgx.Tx, userID, name, exceptID string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "project"
	}

	rows, err := tx.Query(ctx, `
		SELECT slug FROM projects
		WHERE user_id = $1 AND (slug = $2 OR slug LIKE $2 || '-%') AND id::text <> $3
	`, userID, base, exceptID)
	if err != nil {
		return "", fmt.Errorf("failed to check slugs: %w", err)
	}
	taken, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", fmt.Errorf("failed to read slugs: %w", err)
	}

	return nextFreeSlug(base, taken), nil
}

func nextFreeSlug(base string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, t := range taken {
		used[strings.ToLower(t)] = true
	}
	if !used[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !used[candidate] {
			return candidate
		}
	}
}

// ensureProjectOwner returns project.ErrNotFound unless the user owns the project.
func ensureProjectOwner(ctx context.Context, db *pgxpool.Pool, userID, projectID string) error {
	var ok bool
	err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id::text = $1 AND user_id = $2)`, projectID, userID).Scan(&ok)
	if err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if !ok {
		return project.ErrNotFound
	}
	return nil
}
