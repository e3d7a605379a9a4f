package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/handler"
	"github.com/unclebandit/aidplug-crm/internal/model"
)

// ListTasks returns all tasks. ?view=today|overdue|upcoming selects a date
// window; otherwise ?status=, ?priority= or ?type= filter by that column.
func (c *Controller) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query func(ctx context.Context) ([]model.Task, error)
	switch view := q.Get("view"); view {
	case "":
	case "today":
		query = c.Tasks.Today
	case "overdue":
		query = c.Tasks.Overdue
	case "upcoming":
		query = c.Tasks.Upcoming
	default:
		c.fail(w, r, appErrors.NewValidation("view", "Unknown task view "+view))
		return
	}
	if query == nil {
		switch {
		case q.Get("status") != "":
			query = func(ctx context.Context) ([]model.Task, error) {
				return c.Tasks.ByStatus(ctx, model.TaskStatus(q.Get("status")))
			}
		case q.Get("priority") != "":
			query = func(ctx context.Context) ([]model.Task, error) {
				return c.Tasks.ByPriority(ctx, model.TaskPriority(q.Get("priority")))
			}
		case q.Get("type") != "":
			query = func(ctx context.Context) ([]model.Task, error) {
				return c.Tasks.ByType(ctx, model.TaskType(q.Get("type")))
			}
		}
	}
	listRecords(c, w, r, c.Tasks.Collection, query)
}

func (c *Controller) CreateTask(w http.ResponseWriter, r *http.Request) {
	var in model.TaskInput
	if err := handler.Decode(w, r, &in); err != nil {
		c.fail(w, r, err)
		return
	}
	if err := required("title", "Title", in.Title); err != nil {
		c.fail(w, r, err)
		return
	}
	if in.DueDate == nil || in.DueDate.IsZero() {
		c.fail(w, r, appErrors.NewValidation("due_date", "Due date is required"))
		return
	}
	if in.Status == nil {
		in.Status = model.Ptr(model.TaskPending)
	}
	task, err := c.Tasks.Create(r.Context(), in)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, task)
}

func (c *Controller) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch model.TaskInput
	if err := handler.Decode(w, r, &patch); err != nil {
		c.fail(w, r, err)
		return
	}
	task, err := c.Tasks.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, task)
}

func (c *Controller) DeleteTask(w http.ResponseWriter, r *http.Request) {
	deleteRecord(c, w, r, c.Tasks.Collection)
}

func (c *Controller) ToggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := c.Tasks.ToggleTaskCompletion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, task)
}

func (c *Controller) TaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Tasks.Stats(r.Context())
	if err != nil {
		c.fail(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, stats)
}
