package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"focusQuestAPI/internal/auth"
	"focusQuestAPI/internal/feedback"
	"focusQuestAPI/internal/leaderboard"
	"focusQuestAPI/internal/project"
	"focusQuestAPI/internal/stats"
	"focusQuestAPI/internal/task"
	"focusQuestAPI/internal/timer"
	"focusQuestAPI/internal/user"
	"focusQuestAPI/middleware"
	"focusQuestAPI/services"
)

const testUserID = "7b1c62a4-54a8-4c52-9a55-0c0d6f2d4d3e"

// newRequest builds a request with a JSON body, the caller's user id in the
// context and optional mux vars.
func newRequest(t *testing.T, method, target string, body interface{}, vars map[string]string) *http.Request {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(middleware.WithUserID(req.Context(), testUserID))
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

type fakeUsers struct {
	users    map[string]*user.User
	password string
	deleted  []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*user.User{}, password: "correct-horse"}
}

func (f *fakeUsers) Register(ctx context.Context, req *user.RegisterRequest) (*user.User, error) {
	for _, u := range f.users {
		if u.Email == req.Email {
			return nil, user.ErrEmailTaken
		}
	}
	u := &user.User{ID: testUserID, Username: req.Username, Email: req.Email, Level: 1}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	for _, u := range f.users {
		if u.Email == email && password == f.password {
			return u, nil
		}
	}
	return nil, auth.ErrInvalidCredentials
}

func (f *fakeUsers) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, userID string, req *user.UpdateProfileRequest) (*user.User, error) {
	u, err := f.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Username != "" {
		u.Username = req.Username
	}
	if req.AvatarURL != "" {
		u.AvatarURL = req.AvatarURL
	}
	return u, nil
}

func (f *fakeUsers) UpdatePreferences(ctx context.Context, userID string, prefs json.RawMessage) (*user.User, error) {
	u, err := f.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Preferences = prefs
	return u, nil
}

func (f *fakeUsers) DeleteUser(ctx context.Context, userID string) error {
	if _, ok := f.users[userID]; !ok {
		return user.ErrNotFound
	}
	delete(f.users, userID)
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakeTimer struct {
	active  *timer.Session
	history []*timer.Session
	synced  *timer.SyncRequest
	err     error
}

func (f *fakeTimer) Start(ctx context.Context, userID string, req *timer.StartRequest) (*timer.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.active != nil {
		return nil, timer.ErrAlreadyRunning
	}
	f.active = &timer.Session{ID: "session-1", UserID: userID, TaskID: req.TaskID, Status: timer.StatusRunning}
	return f.active, nil
}

func (f *fakeTimer) Pause(ctx context.Context, userID string) (*timer.Session, error) {
	if f.active == nil {
		return nil, timer.ErrNoActiveSession
	}
	if f.active.Status != timer.StatusRunning {
		return nil, timer.ErrInvalidTransition
	}
	f.active.Status = timer.StatusPaused
	return f.active, nil
}

func (f *fakeTimer) Resume(ctx context.Context, userID string) (*timer.Session, error) {
	if f.active == nil {
		return nil, timer.ErrNoActiveSession
	}
	if f.active.Status != timer.StatusPaused {
		return nil, timer.ErrInvalidTransition
	}
	f.active.Status = timer.StatusRunning
	return f.active, nil
}

func (f *fakeTimer) Stop(ctx context.Context, userID string) (*services.StopResult, error) {
	if f.active == nil {
		return nil, timer.ErrNoActiveSession
	}
	session := f.active
	session.Status = timer.StatusCompleted
	session.XPEarned = 35
	f.active = nil
	return &services.StopResult{Session: session, XPEarned: 35}, nil
}

func (f *fakeTimer) Active(ctx context.Context, userID string) (*timer.Session, error) {
	if f.active == nil {
		return nil, timer.ErrNoActiveSession
	}
	return f.active, nil
}

func (f *fakeTimer) History(ctx context.Context, userID string, limit, offset int) ([]*timer.Session, error) {
	return f.history, nil
}

func (f *fakeTimer) Sync(ctx context.Context, userID string, req *timer.SyncRequest) (*timer.SyncResult, error) {
	f.synced = req
	return &timer.SyncResult{Stored: len(req.Sessions)}, nil
}

type fakeTasks struct {
	tasks  map[string]*task.Task
	filter task.ListFilter
}

func (f *fakeTasks) List(ctx context.Context, userID string, filter task.ListFilter) ([]*task.Task, error) {
	f.filter = filter
	out := make([]*task.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTasks) Get(ctx context.Context, userID, taskID string) (*task.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, task.ErrNotFound
	}
	return t, nil
}

func (f *fakeTasks) Create(ctx context.Context, userID string, req *task.CreateTaskRequest) (*task.Task, error) {
	t := &task.Task{ID: "task-new", UserID: userID, Title: req.Title, Priority: req.Priority}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeTasks) Update(ctx context.Context, userID, taskID string, req *task.UpdateTaskRequest) (*task.Task, error) {
	t, err := f.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	return t, nil
}

func (f *fakeTasks) Delete(ctx context.Context, userID, taskID string) error {
	if _, err := f.Get(ctx, userID, taskID); err != nil {
		return err
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeTasks) Complete(ctx context.Context, userID, taskID string) (*task.CompleteResult, error) {
	t, err := f.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Completed {
		return &task.CompleteResult{Task: t, AlreadyCompleted: true}, nil
	}
	t.Completed = true
	return &task.CompleteResult{Task: t, XPEarned: 20}, nil
}

type fakeProjects struct {
	projects map[string]*project.Project
	archived bool
}

func (f *fakeProjects) List(ctx context.Context, userID string, includeArchived bool) ([]*project.Project, error) {
	f.archived = includeArchived
	out := make([]*project.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProjects) Get(ctx context.Context, userID, projectID string) (*project.Project, error) {
	p, ok := f.projects[projectID]
	if !ok {
		return nil, project.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) Create(ctx context.Context, userID string, req *project.CreateProjectRequest) (*project.Project, error) {
	p := &project.Project{ID: "project-new", UserID: userID, Name: req.Name, Color: req.Color, Slug: "deep-work"}
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeProjects) Update(ctx context.Context, userID, projectID string, req *project.UpdateProjectRequest) (*project.Project, error) {
	p, err := f.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if req.Archived != nil {
		p.Archived = *req.Archived
	}
	return p, nil
}

func (f *fakeProjects) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := f.Get(ctx, userID, projectID); err != nil {
		return err
	}
	delete(f.projects, projectID)
	return nil
}

type fakeLeaderboard struct {
	period   leaderboard.Period
	limit    int
	position map[leaderboard.Period]*leaderboard.LeaderboardEntry
}

func (f *fakeLeaderboard) Get(ctx context.Context, period leaderboard.Period, limit int, userID string) (*leaderboard.Leaderboard, error) {
	f.period, f.limit = period, limit
	return &leaderboard.Leaderboard{}, nil
}

func (f *fakeLeaderboard) Position(ctx context.Context, period leaderboard.Period, userID string) (*leaderboard.LeaderboardEntry, error) {
	entry, ok := f.position[period]
	if !ok {
		return nil, user.ErrNotFound
	}
	return entry, nil
}

type fakeAnalytics struct {
	days int
}

func (f *fakeAnalytics) Summary(ctx context.Context, userID string) (*stats.Summary, error) {
	return &stats.Summary{}, nil
}

func (f *fakeAnalytics) Daily(ctx context.Context, userID string, days int) ([]stats.DailyStat, error) {
	f.days = days
	return make([]stats.DailyStat, days), nil
}

func (f *fakeAnalytics) Projects(ctx context.Context, userID string, days int) ([]stats.ProjectStat, error) {
	f.days = days
	return []stats.ProjectStat{}, nil
}

type fakeFeedback struct {
	userID *string
	req    *feedback.CreateFeedbackRequest
}

func (f *fakeFeedback) Submit(ctx context.Context, userID *string, req *feedback.CreateFeedbackRequest) (*feedback.Feedback, error) {
	f.userID, f.req = userID, req
	return &feedback.Feedback{ID: "feedback-1", Message: req.Message}, nil
}
