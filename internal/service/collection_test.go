package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/queue"
	"github.com/unclebandit/aidplug-crm/internal/repository"
	"github.com/unclebandit/aidplug-crm/internal/service"
	"github.com/unclebandit/aidplug-crm/internal/testutil"
)

const owner = "u1"

type env struct {
	clock  *testutil.Clock
	fakes  *testutil.FakeTables
	events *queue.InMemoryQueue
	opts   service.Options
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := testutil.NewClock(time.Date(2024, 6, 8, 9, 0, 0, 0, time.UTC))
	q := queue.NewInMemoryQueue(nil)
	return &env{
		clock:  clock,
		fakes:  testutil.NewFakeTables(repository.StaticPrincipal(owner), clock),
		events: q,
		opts:   service.Options{Events: q, Now: clock.Now},
	}
}

// record collects published record events.
func (e *env) record(t *testing.T) func() []queue.RecordEvent {
	t.Helper()
	var (
		mu  sync.Mutex
		got []queue.RecordEvent
	)
	unsub, err := e.events.Subscribe(queue.TopicRecordChanged, func(p any) error {
		ev, err := queue.DecodeRecordEvent(p)
		if err != nil {
			return err
		}
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(unsub)
	return func() []queue.RecordEvent {
		e.events.Flush()
		mu.Lock()
		defer mu.Unlock()
		return append([]queue.RecordEvent(nil), got...)
	}
}

func ids[T repository.Record](recs []T) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.RecordID()
	}
	return out
}

func TestRefreshLoadsNewestFirst(t *testing.T) {
	e := newEnv(t)
	a := e.fakes.Leads.Seed(owner, model.Lead{FullName: "A"})
	b := e.fakes.Leads.Seed(owner, model.Lead{FullName: "B"})
	e.fakes.Leads.Seed("someone-else", model.Lead{FullName: "C"})

	leads := service.NewCollection[model.Lead](e.fakes.Leads, e.opts)
	defer leads.Close()

	assert.False(t, leads.State().Loaded)
	require.NoError(t, leads.Refresh(context.Background()))

	st := leads.State()
	assert.True(t, st.Loaded)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
	assert.Equal(t, []string{b.ID, a.ID}, ids(st.Records))
}

func TestRefreshFailureKeepsRecords(t *testing.T) {
	e := newEnv(t)
	e.fakes.Tasks.Seed(owner, model.Task{Title: "Call"})
	tasks := service.NewCollection[model.Task](e.fakes.Tasks, e.opts)
	defer tasks.Close()
	ctx := context.Background()
	require.NoError(t, tasks.Refresh(ctx))

	e.fakes.Tasks.ListErr = &appErrors.RemoteError{Op: "list tasks", Status: 500, Message: "connection reset"}
	err := tasks.Refresh(ctx)
	require.Error(t, err)

	st := tasks.State()
	assert.Equal(t, "connection reset", st.Error)
	assert.Len(t, st.Records, 1)
	assert.False(t, st.Loading)

	e.fakes.Tasks.ListErr = nil
	require.NoError(t, tasks.Refresh(ctx))
	assert.Empty(t, tasks.State().Error)
}

func TestCreatePrependsUniqueRecord(t *testing.T) {
	e := newEnv(t)
	events := e.record(t)
	e.fakes.Clients.Seed(owner, model.Client{FullName: "Existing"})
	clients := service.NewCollection[model.Client](e.fakes.Clients, e.opts)
	defer clients.Close()
	ctx := context.Background()
	require.NoError(t, clients.Refresh(ctx))
	before := clients.Records()

	created, err := clients.Create(ctx, model.ClientInput{FullName: model.Ptr("Sara Ahmed")})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, owner, created.UserID)

	after := clients.Records()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, created.ID, after[0].ID)
	assert.Equal(t, before, after[1:])
	for _, c := range before {
		assert.NotEqual(t, created.ID, c.ID)
	}

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, queue.RecordEvent{Table: "clients", Op: queue.OpInsert, ID: created.ID, UserID: owner, At: e.clock.Now()}, got[0])
}

func TestCreateFailureLeavesStateUntouched(t *testing.T) {
	e := newEnv(t)
	events := e.record(t)
	deals := service.NewCollection[model.Deal](e.fakes.Deals, e.opts)
	defer deals.Close()

	e.fakes.Deals.InsertErr = &appErrors.RemoteError{Op: "insert deals", Status: 400, Message: "invalid input syntax"}
	_, err := deals.Create(context.Background(), model.DealInput{Title: model.Ptr("Loan")})
	require.Error(t, err)

	st := deals.State()
	assert.Empty(t, st.Records)
	assert.Equal(t, "invalid input syntax", st.Error)
	assert.Empty(t, events())
}

func TestUpdateChangesExactlyOneRecord(t *testing.T) {
	e := newEnv(t)
	events := e.record(t)
	a := e.fakes.Leads.Seed(owner, model.Lead{FullName: "A", UrgencyLevel: "low"})
	b := e.fakes.Leads.Seed(owner, model.Lead{FullName: "B", UrgencyLevel: "low"})
	c := e.fakes.Leads.Seed(owner, model.Lead{FullName: "C", UrgencyLevel: "low"})
	leads := service.NewCollection[model.Lead](e.fakes.Leads, e.opts)
	defer leads.Close()
	ctx := context.Background()
	require.NoError(t, leads.Refresh(ctx))
	before := leads.Records()

	updated, err := leads.Update(ctx, b.ID, model.LeadInput{UrgencyLevel: model.Ptr("high")})
	require.NoError(t, err)
	assert.Equal(t, "high", updated.UrgencyLevel)
	assert.Equal(t, "B", updated.FullName)
	assert.True(t, updated.UpdatedAt.After(b.UpdatedAt))

	after := leads.Records()
	require.Len(t, after, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(after))
	changed := 0
	for i := range after {
		if after[i].UpdatedAt != before[i].UpdatedAt {
			changed++
			assert.Equal(t, b.ID, after[i].ID)
		}
	}
	assert.Equal(t, 1, changed)

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, queue.OpUpdate, got[0].Op)
}

func TestUpdateMissingRecord(t *testing.T) {
	e := newEnv(t)
	leads := service.NewCollection[model.Lead](e.fakes.Leads, e.opts)
	defer leads.Close()

	_, err := leads.Update(context.Background(), "nope", model.LeadInput{FullName: model.Ptr("X")})
	assert.True(t, appErrors.IsNotFound(err))
	assert.Equal(t, "Lead not found", leads.State().Error)
}

func TestDeleteRemovesExactlyOneRecord(t *testing.T) {
	e := newEnv(t)
	events := e.record(t)
	a := e.fakes.Tasks.Seed(owner, model.Task{Title: "A"})
	b := e.fakes.Tasks.Seed(owner, model.Task{Title: "B"})
	c := e.fakes.Tasks.Seed(owner, model.Task{Title: "C"})
	tasks := service.NewCollection[model.Task](e.fakes.Tasks, e.opts)
	defer tasks.Close()
	ctx := context.Background()
	require.NoError(t, tasks.Refresh(ctx))

	require.NoError(t, tasks.Delete(ctx, b.ID))
	assert.Equal(t, []string{c.ID, a.ID}, ids(tasks.Records()))
	_, ok := tasks.Find(b.ID)
	assert.False(t, ok)

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, queue.RecordEvent{Table: "tasks", Op: queue.OpDelete, ID: b.ID, UserID: owner, At: e.clock.Now()}, got[0])
}

func TestDeleteFailureKeepsRecord(t *testing.T) {
	e := newEnv(t)
	a := e.fakes.Tasks.Seed(owner, model.Task{Title: "A"})
	tasks := service.NewCollection[model.Task](e.fakes.Tasks, e.opts)
	defer tasks.Close()
	ctx := context.Background()
	require.NoError(t, tasks.Refresh(ctx))

	e.fakes.Tasks.DeleteErr = assert.AnError
	require.ErrorIs(t, tasks.Delete(ctx, a.ID), assert.AnError)
	assert.Len(t, tasks.Records(), 1)
	assert.Equal(t, assert.AnError.Error(), tasks.State().Error)
}

func TestOperationsResolveInIssueOrder(t *testing.T) {
	e := newEnv(t)
	tasks := service.NewCollection[model.Task](e.fakes.Tasks, e.opts)
	defer tasks.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	e.fakes.Tasks.Hook = func(op string) {
		if op == "insert" {
			once.Do(func() {
				close(started)
				<-release
			})
		}
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	var first model.Task
	go func() {
		defer wg.Done()
		var err error
		first, err = tasks.Create(ctx, model.TaskInput{Title: model.Ptr("first")})
		assert.NoError(t, err)
	}()
	<-started

	secondDone := make(chan model.Task, 1)
	go func() {
		rec, err := tasks.Create(ctx, model.TaskInput{Title: model.Ptr("second")})
		assert.NoError(t, err)
		secondDone <- rec
	}()

	select {
	case <-secondDone:
		t.Fatal("second create resolved before the first")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	wg.Wait()
	second := <-secondDone

	assert.Equal(t, []string{second.ID, first.ID}, ids(tasks.Records()))
}

func TestAdoptAndReset(t *testing.T) {
	e := newEnv(t)
	deals := service.NewCollection[model.Deal](e.fakes.Deals, e.opts)
	defer deals.Close()
	ctx := context.Background()

	d := model.Deal{ID: "d1", UserID: owner, Title: "Loan"}
	require.NoError(t, deals.Adopt(ctx, d))
	require.NoError(t, deals.Adopt(ctx, d))
	assert.Equal(t, []string{"d1"}, ids(deals.Records()))

	require.NoError(t, deals.Reset(ctx))
	st := deals.State()
	assert.Empty(t, st.Records)
	assert.False(t, st.Loaded)
}

func TestClosedCollection(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e := newEnv(t)
	leads := service.NewCollection[model.Lead](e.fakes.Leads, e.opts)
	leads.Close()
	leads.Close()

	assert.ErrorIs(t, leads.Refresh(context.Background()), service.ErrClosed)
}

func TestCancelledContext(t *testing.T) {
	e := newEnv(t)
	leads := service.NewCollection[model.Lead](e.fakes.Leads, e.opts)
	defer leads.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := leads.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
