package handlers

import (
	"context"
	"encoding/json"

	"focusQuestAPI/internal/achievement"
	"focusQuestAPI/internal/feedback"
	"focusQuestAPI/internal/leaderboard"
	"focusQuestAPI/internal/project"
	"focusQuestAPI/internal/stats"
	"focusQuestAPI/internal/task"
	"focusQuestAPI/internal/timer"
	"focusQuestAPI/internal/user"
	"focusQuestAPI/services"
)

// The handlers depend on these narrow views of the services so they can be
// exercised with in-memory fakes.

type UserManager interface {
	Register(ctx context.Context, req *user.RegisterRequest) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	UpdateProfile(ctx context.Context, userID string, req *user.UpdateProfileRequest) (*user.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs json.RawMessage) (*user.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

type GoogleAuthenticator interface {
	AuthCodeURL(state string) string
	Authenticate(ctx context.Context, code string) (*user.User, error)
}

type TimerManager interface {
	Start(ctx context.Context, userID string, req *timer.StartRequest) (*timer.Session, error)
	Pause(ctx context.Context, userID string) (*timer.Session, error)
	Resume(ctx context.Context, userID string) (*timer.Session, error)
	Stop(ctx context.Context, userID string) (*services.StopResult, error)
	Active(ctx context.Context, userID string) (*timer.Session, error)
	History(ctx context.Context, userID string, limit, offset int) ([]*timer.Session, error)
	Sync(ctx context.Context, userID string, req *timer.SyncRequest) (*timer.SyncResult, error)
}

type TaskManager interface {
	List(ctx context.Context, userID string, filter task.ListFilter) ([]*task.Task, error)
	Get(ctx context.Context, userID, taskID string) (*task.Task, error)
	Create(ctx context.Context, userID string, req *task.CreateTaskRequest) (*task.Task, error)
	Update(ctx context.Context, userID, taskID string, req *task.UpdateTaskRequest) (*task.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
	Complete(ctx context.Context, userID, taskID string) (*task.CompleteResult, error)
}

type ProjectManager interface {
	List(ctx context.Context, userID string, includeArchived bool) ([]*project.Project, error)
	Get(ctx context.Context, userID, projectID string) (*project.Project, error)
	Create(ctx context.Context, userID string, req *project.CreateProjectRequest) (*project.Project, error)
	Update(ctx context.Context, userID, projectID string, req *project.UpdateProjectRequest) (*project.Project, error)
	Delete(ctx context.Context, userID, projectID string) error
}

type LeaderboardReader interface {
	Get(ctx context.Context, period leaderboard.Period, limit int, userID string) (*leaderboard.Leaderboard, error)
	Position(ctx context.Context, period leaderboard.Period, userID string) (*leaderboard.LeaderboardEntry, error)
}

type AnalyticsReader interface {
	Summary(ctx context.Context, userID string) (*stats.Summary, error)
	Daily(ctx context.Context, userID string, days int) ([]stats.DailyStat, error)
	Projects(ctx context.Context, userID string, days int) ([]stats.ProjectStat, error)
}

type AchievementReader interface {
	List(ctx context.Context, userID string) ([]*achievement.AchievementWithStatus, error)
	Skills(ctx context.Context, userID string) ([]*achievement.SkillTreeWithStatus, error)
}

type FeedbackSubmitter interface {
	Submit(ctx context.Context, userID *string, req *feedback.CreateFeedbackRequest) (*feedback.Feedback, error)
}

// Pinger reports store health; *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}
