package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// UpcomingDays is the length of the upcoming-tasks window.
const UpcomingDays = 7

var taskSearchColumns = []string{"title", "description"}

// TaskService is the tasks collection.
type TaskService struct {
	*Collection[model.Task]
}

func NewTaskService(tasks repository.CollectionRepositoryInterface[model.Task], opts Options) *TaskService {
	return &TaskService{Collection: NewCollection(tasks, opts)}
}

// ToggleTaskCompletion reads the stored task and flips it between pending
// and completed. A missing task is a *appErrors.NotFoundError.
func (s *TaskService) ToggleTaskCompletion(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	err := s.do(ctx, "toggle", func(ctx context.Context) error {
		cur, err := mustGet(ctx, s.store, id)
		if err != nil {
			return s.fail(err)
		}
		task, err = s.update(ctx, id, model.TaskInput{Status: model.Ptr(cur.Status.Toggled())})
		return err
	})
	return task, err
}

func (s *TaskService) ByStatus(ctx context.Context, status model.TaskStatus) ([]model.Task, error) {
	return s.store.List(ctx, repository.Where(repository.Eq("status", status)))
}

func (s *TaskService) ByPriority(ctx context.Context, p model.TaskPriority) ([]model.Task, error) {
	return s.store.List(ctx, repository.Where(repository.Eq("priority", p)))
}

func (s *TaskService) ByType(ctx context.Context, t model.TaskType) ([]model.Task, error) {
	return s.store.List(ctx, repository.Where(repository.Eq("type", t)))
}

// Today lists tasks due today.
func (s *TaskService) Today(ctx context.Context) ([]model.Task, error) {
	return s.store.List(ctx, todayOpts(s.today()))
}

// Overdue lists unfinished tasks due before today, earliest first.
func (s *TaskService) Overdue(ctx context.Context) ([]model.Task, error) {
	return s.store.List(ctx, overdueOpts(s.today()))
}

// Upcoming lists tasks due from today through the next UpcomingDays days,
// earliest first.
func (s *TaskService) Upcoming(ctx context.Context) ([]model.Task, error) {
	today := s.today()
	return s.store.List(ctx, repository.Where(
		repository.Gte("due_date", today),
		repository.Lte("due_date", today.AddDays(UpcomingDays)),
	).OrderedBy("due_date", true))
}

// Search matches term against title and description.
func (s *TaskService) Search(ctx context.Context, term string) ([]model.Task, error) {
	return search(ctx, s.store, term, taskSearchColumns)
}

func (s *TaskService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx, repository.ListOptions{})
}

// Stats runs the five task counts concurrently.
func (s *TaskService) Stats(ctx context.Context) (model.TaskStats, error) {
	var st model.TaskStats
	today := s.today()
	counts := []struct {
		dst  *int
		opts repository.ListOptions
	}{
		{&st.Total, repository.ListOptions{}},
		{&st.Pending, repository.Where(repository.Eq("status", model.TaskPending))},
		{&st.Completed, repository.Where(repository.Eq("status", model.TaskCompleted))},
		{&st.Overdue, overdueOpts(today)},
		{&st.Today, todayOpts(today)},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		c := c
		g.Go(func() error {
			n, err := s.store.Count(ctx, c.opts)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.TaskStats{}, err
	}
	return st, nil
}

func todayOpts(today model.Date) repository.ListOptions {
	return repository.Where(repository.Eq("due_date", today))
}

func overdueOpts(today model.Date) repository.ListOptions {
	return repository.Where(
		repository.Lt("due_date", today),
		repository.Neq("status", model.TaskCompleted),
	).OrderedBy("due_date", true)
}
