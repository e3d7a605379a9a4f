// Package service holds the domain collections: one in-memory, ordered view
// of each record kind that mirrors confirmed remote mutations.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// State is a snapshot of a collection.
type State[T any] struct {
	Records []T    `json:"records"`
	Loading bool   `json:"loading"`
	Loaded  bool   `json:"loaded"`
	Error   string `json:"error,omitempty"`
}

// Options are the shared dependencies of every collection.
type Options struct {
	// Events receives a queue.RecordEvent after each confirmed mutation. Optional.
	Events queue.Publisher
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Collection is the local list of one table. Every operation runs on a
// single worker goroutine; reads take a snapshot.
type Collection[T repository.Record] struct {
	store  repository.CollectionRepositoryInterface[T]
	events queue.Publisher
	logger *zap.Logger
	now    func() time.Time
	w      *worker

	mu    sync.RWMutex
	state State[T]
}

func NewCollection[T repository.Record](store repository.CollectionRepositoryInterface[T], opts Options) *Collection[T] {
	opts = opts.withDefaults()
	logger := opts.Logger.With(zap.String("table", store.Table()))
	return &Collection[T]{
		store:  store,
		events: opts.Events,
		logger: logger,
		now:    opts.Now,
		w:      newWorker(logger),
		state:  State[T]{Records: []T{}},
	}
}

// Store returns the underlying record store.
func (c *Collection[T]) Store() repository.CollectionRepositoryInterface[T] { return c.store }

// State returns a copy of the current state.
func (c *Collection[T]) State() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.Records = append([]T(nil), c.state.Records...)
	if s.Records == nil {
		s.Records = []T{}
	}
	return s
}

// Records returns a copy of the local list.
func (c *Collection[T]) Records() []T { return c.State().Records }

// Find returns the local record with id.
func (c *Collection[T]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.state.Records, id); i >= 0 {
		return c.state.Records[i], true
	}
	var zero T
	return zero, false
}

// Refresh reloads the full collection, newest first.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	return c.w.submit(ctx, "refresh", func(ctx context.Context) error {
		c.mu.Lock()
		c.state.Loading = true
		c.state.Error = ""
		c.mu.Unlock()

		recs, err := c.store.List(ctx, repository.ListOptions{})

		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.Loading = false
		if err != nil {
			c.state.Error = appErrors.Message(err)
			return err
		}
		if recs == nil {
			recs = []T{}
		}
		c.state.Records = recs
		c.state.Loaded = true
		return nil
	})
}

// Create inserts values and prepends the stored record.
func (c *Collection[T]) Create(ctx context.Context, values any) (T, error) {
	var rec T
	err := c.w.submit(ctx, "create", func(ctx context.Context) error {
		c.clearError()
		var err error
		rec, err = c.store.Insert(ctx, values)
		if err != nil {
			return c.fail(err)
		}
		c.prepend(rec)
		c.publish(queue.OpInsert, rec.RecordID(), rec.OwnerID())
		return nil
	})
	return rec, err
}

// Update applies patch to record id and replaces the local copy.
func (c *Collection[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var rec T
	err := c.w.submit(ctx, "update", func(ctx context.Context) error {
		c.clearError()
		var err error
		rec, err = c.update(ctx, id, patch)
		return err
	})
	return rec, err
}

// update runs on the worker.
func (c *Collection[T]) update(ctx context.Context, id string, patch any) (T, error) {
	rec, err := c.store.Update(ctx, id, patch)
	if err != nil {
		return rec, c.fail(err)
	}
	c.replace(rec)
	c.publish(queue.OpUpdate, rec.RecordID(), rec.OwnerID())
	return rec, nil
}

// Delete removes record id remotely and then locally.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.w.submit(ctx, "delete", func(ctx context.Context) error {
		c.clearError()
		return c.delete(ctx, id)
	})
}

func (c *Collection[T]) delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return c.fail(err)
	}
	owner := c.remove(id)
	c.publish(queue.OpDelete, id, owner)
	return nil
}

// Adopt prepends a record that was stored by another collection's operation.
func (c *Collection[T]) Adopt(ctx context.Context, rec T) error {
	return c.w.submit(ctx, "adopt", func(context.Context) error {
		c.prepend(rec)
		return nil
	})
}

// Reset empties the collection, e.g. after sign-out.
func (c *Collection[T]) Reset(ctx context.Context) error {
	return c.w.submit(ctx, "reset", func(context.Context) error {
		c.mu.Lock()
		c.state = State[T]{Records: []T{}}
		c.mu.Unlock()
		return nil
	})
}

// Close stops the worker. Later operations return ErrClosed.
func (c *Collection[T]) Close() {
	c.w.stop()
}

// do runs fn on the worker with the error handling of a mutation.
func (c *Collection[T]) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return c.w.submit(ctx, name, func(ctx context.Context) error {
		c.clearError()
		return fn(ctx)
	})
}

func (c *Collection[T]) clearError() {
	c.mu.Lock()
	c.state.Error = ""
	c.mu.Unlock()
}

// fail records err in the state and returns it.
func (c *Collection[T]) fail(err error) error {
	c.mu.Lock()
	c.state.Error = appErrors.Message(err)
	c.mu.Unlock()
	return err
}

func (c *Collection[T]) prepend(rec T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.state.Records
	if i := indexOf(recs, rec.RecordID()); i >= 0 {
		recs = append(recs[:i:i], recs[i+1:]...)
	}
	c.state.Records = append([]T{rec}, recs...)
}

func (c *Collection[T]) replace(rec T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.state.Records, rec.RecordID()); i >= 0 {
		recs := append([]T(nil), c.state.Records...)
		recs[i] = rec
		c.state.Records = recs
	}
}

// remove drops id from the local list and returns its owner, if known.
func (c *Collection[T]) remove(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := indexOf(c.state.Records, id)
	if i < 0 {
		return ""
	}
	owner := c.state.Records[i].OwnerID()
	recs := c.state.Records
	c.state.Records = append(recs[:i:i], recs[i+1:]...)
	return owner
}

func (c *Collection[T]) publish(op, id, owner string) {
	c.publishFor(c.store.Table(), op, id, owner)
}

// publishFor announces a change to a record of another table.
func (c *Collection[T]) publishFor(table, op, id, owner string) {
	if c.events == nil {
		return
	}
	ev := queue.RecordEvent{Table: table, Op: op, ID: id, UserID: owner, At: c.now().UTC()}
	if err := c.events.Publish(queue.TopicRecordChanged, ev); err != nil && !errors.Is(err, queue.ErrNoSubscribers) {
		c.logger.Warn("failed to publish record event", zap.String("event_table", table), zap.String("op", op), zap.String("id", id), zap.Error(err))
	}
}

// today is the current calendar date in the clock's location.
func (c *Collection[T]) today() model.Date { return model.DateOf(c.now()) }

func indexOf[T repository.Record](recs []T, id string) int {
	for i, r := range recs {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}
