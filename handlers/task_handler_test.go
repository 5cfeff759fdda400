package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusQuestAPI/internal/project"
	"focusQuestAPI/internal/task"
)

func TestTaskHandler_CreateDefaultsPriority(t *testing.T) {
	svc := &fakeTasks{tasks: map[string]*task.Task{}}
	h := NewTaskHandler(svc)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(t, http.MethodPost, "/api/v1/tasks", map[string]string{"title": "  Write report  "}, nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created task.Task
	decodeBody(t, rec, &created)
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, "medium", created.Priority)

	rec = httptest.NewRecorder()
	h.Create(rec, newRequest(t, http.MethodPost, "/api/v1/tasks", map[string]string{"title": "x", "priority": "urgent"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_ListFilters(t *testing.T) {
	svc := &fakeTasks{tasks: map[string]*task.Task{}}
	h := NewTaskHandler(svc)

	rec := httptest.NewRecorder()
	h.List(rec, newRequest(t, http.MethodGet, "/api/v1/tasks?projectId=p-1&completed=false", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.ProjectID)
	require.NotNil(t, svc.filter.Completed)
	assert.Equal(t, "p-1", *svc.filter.ProjectID)
	assert.False(t, *svc.filter.Completed)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.List(rec, newRequest(t, http.MethodGet, "/api/v1/tasks?completed=maybe", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_CompleteIsIdempotent(t *testing.T) {
	svc := &fakeTasks{tasks: map[string]*task.Task{
		"task-1": {ID: "task-1", UserID: testUserID, Title: "Read", Priority: "medium"},
	}}
	h := NewTaskHandler(svc)
	vars := map[string]string{"id": "task-1"}

	rec := httptest.NewRecorder()
	h.Complete(rec, newRequest(t, http.MethodPost, "/api/v1/tasks/task-1/complete", nil, vars))
	require.Equal(t, http.StatusOK, rec.Code)

	var first task.CompleteResult
	decodeBody(t, rec, &first)
	assert.Equal(t, int64(20), first.XPEarned)
	assert.False(t, first.AlreadyCompleted)

	rec = httptest.NewRecorder()
	h.Complete(rec, newRequest(t, http.MethodPost, "/api/v1/tasks/task-1/complete", nil, vars))
	require.Equal(t, http.StatusOK, rec.Code)

	var second task.CompleteResult
	decodeBody(t, rec, &second)
	assert.Zero(t, second.XPEarned)
	assert.True(t, second.AlreadyCompleted)
}

func TestTaskHandler_OtherUsersTasksAreNotFound(t *testing.T) {
	svc := &fakeTasks{tasks: map[string]*task.Task{
		"task-2": {ID: "task-2", UserID: "someone-else"},
	}}
	h := NewTaskHandler(svc)
	vars := map[string]string{"id": "task-2"}

	rec := httptest.NewRecorder()
	h.Get(rec, newRequest(t, http.MethodGet, "/api/v1/tasks/task-2", nil, vars))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Delete(rec, newRequest(t, http.MethodDelete, "/api/v1/tasks/task-2", nil, vars))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, svc.tasks, "task-2")
}

func TestTaskHandler_UpdateAndDelete(t *testing.T) {
	svc := &fakeTasks{tasks: map[string]*task.Task{
		"task-1": {ID: "task-1", UserID: testUserID, Title: "Read"},
	}}
	h := NewTaskHandler(svc)
	vars := map[string]string{"id": "task-1"}

	rec := httptest.NewRecorder()
	h.Update(rec, newRequest(t, http.MethodPut, "/api/v1/tasks/task-1", map[string]string{"title": "Read chapter 3"}, vars))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Read chapter 3", svc.tasks["task-1"].Title)

	rec = httptest.NewRecorder()
	h.Delete(rec, newRequest(t, http.MethodDelete, "/api/v1/tasks/task-1", nil, vars))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, svc.tasks)
}

func TestProjectHandler_CRUD(t *testing.T) {
	svc := &fakeProjects{projects: map[string]*project.Project{}}
	h := NewProjectHandler(svc)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(t, http.MethodPost, "/api/v1/projects", map[string]string{"name": "Deep Work"}, nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created project.Project
	decodeBody(t, rec, &created)
	assert.Equal(t, project.DefaultColor, created.Color)

	rec = httptest.NewRecorder()
	h.Create(rec, newRequest(t, http.MethodPost, "/api/v1/projects", map[string]string{"name": "x", "color": "red"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	vars := map[string]string{"id": created.ID}
	rec = httptest.NewRecorder()
	h.Update(rec, newRequest(t, http.MethodPut, "/api/v1/projects/"+created.ID, map[string]bool{"archived": true}, vars))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.projects[created.ID].Archived)

	rec = httptest.NewRecorder()
	h.List(rec, newRequest(t, http.MethodGet, "/api/v1/projects?archived=true", nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.archived)

	rec = httptest.NewRecorder()
	h.Delete(rec, newRequest(t, http.MethodDelete, "/api/v1/projects/"+created.ID, nil, vars))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, newRequest(t, http.MethodGet, "/api/v1/projects/"+created.ID, nil, vars))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
