package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"focusQuestAPI/internal/progression"
	"focusQuestAPI/internal/task"
)

const taskColumns = `id, user_id, project_id, title, completed, time_spent_seconds, xp_reward, priority, created_at, completed_at`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.ProjectID,
		&t.Title,
		&t.Completed,
		&t.TimeSpentSeconds,
		&t.XPReward,
		&t.Priority,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, task.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

type TaskService struct {
	db           *pgxpool.Pool
	users        *UserService
	achievements *AchievementService
	now          func() time.Time
}

func NewTaskService(db *pgxpool.Pool, users *UserService, achievements *AchievementService) *TaskService {
	return &TaskService{db: db, users: users, achievements: achievements, now: time.Now}
}

func (s *TaskService) List(ctx context.Context, userID string, filter task.ListFilter) ([]*task.Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		  AND ($2::text IS NULL OR project_id::text = $2)
		  AND ($3::boolean IS NULL OR completed = $3)
		ORDER BY completed, created_at DESC
	`, userID, filter.ProjectID, filter.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) || isInvalidUUID(err) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func (s *TaskService) Create(ctx context.Context, userID string, req *task.CreateTaskRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ProjectID != nil {
		if err := ensureProjectOwner(ctx, s.db, userID, *req.ProjectID); err != nil {
			return nil, err
		}
	}

	t, err := scanTask(s.db.QueryRow(ctx, `
		INSERT INTO tasks (user_id, project_id, title, priority, xp_reward)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+taskColumns,
		userID, req.ProjectID, req.Title, req.Priority, progression.TaskXP(req.Priority)))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// Update edits an open or completed task. The reward follows the priority
// until the task is completed.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, req *task.UpdateTaskRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ProjectID != nil && *req.ProjectID != "" {
		if err := ensureProjectOwner(ctx, s.db, userID, *req.ProjectID); err != nil {
			return nil, err
		}
	}

	var reward *int64
	if req.Priority != nil {
		xp := progression.TaskXP(*req.Priority)
		reward = &xp
	}
	clearProject := req.ProjectID != nil && *req.ProjectID == ""
	projectID := req.ProjectID
	if clearProject {
		projectID = nil
	}

	t, err := scanTask(s.db.QueryRow(ctx, `
		UPDATE tasks
		SET title = COALESCE($3, title),
		    project_id = CASE WHEN $4 THEN NULL ELSE COALESCE($5::uuid, project_id) END,
		    priority = COALESCE($6, priority),
		    xp_reward = CASE WHEN completed THEN xp_reward ELSE COALESCE($7, xp_reward) END
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		taskID, userID, req.Title, clearProject, projectID, req.Priority, reward))
	if err != nil {
		if errors.Is(err, task.ErrNotFound) || isInvalidUUID(err) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return task.ErrNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}
	return nil
}

// Complete marks a task done and pays its reward once. Completing an already
// completed task changes nothing.
func (s *TaskService) Complete(ctx context.Context, userID, taskID string) (*task.CompleteResult, error) {
	result := &task.CompleteResult{}

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2 FOR UPDATE`, taskID, userID))
		if err != nil {
			return err
		}
		result.Task = t
		if t.Completed {
			result.AlreadyCompleted = true
			return nil
		}

		now := s.now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE tasks SET completed = true, completed_at = $2 WHERE id = $1`, t.ID, now); err != nil {
			return fmt.Errorf("failed to complete task: %w", err)
		}
		t.Completed = true
		t.CompletedAt = &now

		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := recordActivity(ctx, tx, u, now); err != nil {
			return err
		}
		levels, err := applyXP(ctx, tx, u, t.XPReward, "task")
		if err != nil {
			return err
		}
		result.XPEarned = t.XPReward
		result.LevelsGained = levels
		return nil
	})
	if err != nil {
		if errors.Is(err, task.ErrNotFound) || isInvalidUUID(err) {
			return nil, task.ErrNotFound
		}
		return nil, err
	}

	if !result.AlreadyCompleted {
		tasksCompletedTotal.Inc()
		s.users.cacheXP(ctx, userID, result.XPEarned)
		if s.achievements != nil {
			if _, _, err := s.achievements.Sync(ctx, userID); err != nil {
				zap.S().Warnf("Achievement sync failed for %s: %v", userID, err)
			}
		}
	}
	return result, nil
}
