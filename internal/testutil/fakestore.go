// Package testutil provides in-memory fakes of the backend contracts.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// FakeTable is an in-memory implementation of
// repository.CollectionRepositoryInterface. Rows are kept in their JSON
// column form so partial patches apply the way a real store would.
type FakeTable[T any] struct {
	mu        sync.RWMutex
	name      string
	owner     string
	principal repository.PrincipalInterface
	rows      []map[string]any
	clock     *Clock
	calls     []string

	// Error injection for testing
	ListErr   error
	GetErr    error
	InsertErr error
	UpdateErr error
	DeleteErr error
	CountErr  error

	// Hook, when set, runs at the start of every call.
	Hook func(op string)
}

var _ repository.CollectionRepositoryInterface[model.Task] = (*FakeTable[model.Task])(nil)

// NewFakeTable creates an empty table scoped to principal.
func NewFakeTable[T any](name string, principal repository.PrincipalInterface, clock *Clock) *FakeTable[T] {
	if clock == nil {
		clock = NewClock(time.Date(2024, 6, 8, 9, 0, 0, 0, time.UTC))
	}
	return &FakeTable[T]{name: name, owner: repository.OwnerColumn(name), principal: principal, clock: clock}
}

// NewFakeTables creates one fake table per collection sharing a clock.
func NewFakeTables(principal repository.PrincipalInterface, clock *Clock) *FakeTables {
	return &FakeTables{
		Profiles: NewFakeTable[model.Profile](repository.TableProfiles, principal, clock),
		Leads:    NewFakeTable[model.Lead](repository.TableLeads, principal, clock),
		Clients:  NewFakeTable[model.Client](repository.TableClients, principal, clock),
		Deals:    NewFakeTable[model.Deal](repository.TableDeals, principal, clock),
		Tasks:    NewFakeTable[model.Task](repository.TableTasks, principal, clock),
	}
}

// FakeTables keeps the concrete fakes so tests can inject errors.
type FakeTables struct {
	Profiles *FakeTable[model.Profile]
	Leads    *FakeTable[model.Lead]
	Clients  *FakeTable[model.Client]
	Deals    *FakeTable[model.Deal]
	Tasks    *FakeTable[model.Task]
}

// Tables returns the fakes as repository.Tables.
func (f *FakeTables) Tables() repository.Tables {
	return repository.Tables{
		Profiles: f.Profiles,
		Leads:    f.Leads,
		Clients:  f.Clients,
		Deals:    f.Deals,
		Tasks:    f.Tasks,
	}
}

func (f *FakeTable[T]) Table() string { return f.name }

// Calls returns the operations performed so far, e.g. "insert", "delete:l1".
func (f *FakeTable[T]) Calls() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.calls...)
}

// Len returns the number of stored rows across all owners.
func (f *FakeTable[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rows)
}

// Seed stores values as-is for ownerID, filling id and timestamps when missing.
func (f *FakeTable[T]) Seed(ownerID string, values any) T {
	row, err := repository.EncodeValues(values)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row[f.owner] = ownerID
	f.stamp(row)
	f.rows = append(f.rows, row)
	rec, err := decode[T](row)
	if err != nil {
		panic(err)
	}
	return rec
}

// Timestamps use a fixed-width layout so they sort as text.
const stampLayout = "2006-01-02T15:04:05.000000Z07:00"

func (f *FakeTable[T]) stamp(row map[string]any) {
	if id, _ := row["id"].(string); id == "" {
		row["id"] = uuid.NewString()
	}
	now := f.clock.Tick().UTC().Format(stampLayout)
	if c, _ := row["created_at"].(string); c == "" || strings.HasPrefix(c, "0001-01-01") {
		row["created_at"] = now
	}
	row["updated_at"] = now
}

func (f *FakeTable[T]) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.Hook != nil {
		f.Hook(call)
	}
}

func (f *FakeTable[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, error) {
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	rows, err := f.matching(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		rec, err := decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *FakeTable[T]) Count(ctx context.Context, opts repository.ListOptions) (int, error) {
	f.record("count")
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	rows, err := f.matching(ctx, opts)
	return len(rows), err
}

func (f *FakeTable[T]) Get(ctx context.Context, id string) (repository.Lookup[T], error) {
	f.record("get:" + id)
	if f.GetErr != nil {
		return repository.Lookup[T]{}, f.GetErr
	}
	uid, err := f.principal.UserID(ctx)
	if err != nil {
		return repository.Lookup[T]{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	i := f.index(id, uid)
	if i < 0 {
		return repository.NotFound[T](), nil
	}
	rec, err := decode[T](f.rows[i])
	if err != nil {
		return repository.Lookup[T]{}, err
	}
	return repository.Found(rec), nil
}

func (f *FakeTable[T]) Insert(ctx context.Context, values any) (T, error) {
	var zero T
	f.record("insert")
	if f.InsertErr != nil {
		return zero, f.InsertErr
	}
	uid, err := f.principal.UserID(ctx)
	if err != nil {
		return zero, err
	}
	row, err := repository.EncodeValues(values)
	if err != nil {
		return zero, err
	}
	repository.StripSystemColumns(row)
	row[f.owner] = uid

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner == "id" && f.index(uid, uid) >= 0 {
		return zero, &appErrors.RemoteError{Op: "insert " + f.name, Status: 409, Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	f.stamp(row)
	f.rows = append(f.rows, row)
	return decode[T](row)
}

func (f *FakeTable[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var zero T
	f.record("update:" + id)
	if f.UpdateErr != nil {
		return zero, f.UpdateErr
	}
	uid, err := f.principal.UserID(ctx)
	if err != nil {
		return zero, err
	}
	values, err := repository.EncodeValues(patch)
	if err != nil {
		return zero, err
	}
	repository.StripSystemColumns(values)

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id, uid)
	if i < 0 {
		return zero, appErrors.NewNotFound(f.name, id)
	}
	row := make(map[string]any, len(f.rows[i])+len(values))
	for k, v := range f.rows[i] {
		row[k] = v
	}
	for k, v := range values {
		row[k] = v
	}
	f.stamp(row)
	f.rows[i] = row
	return decode[T](row)
}

func (f *FakeTable[T]) Delete(ctx context.Context, id string) error {
	f.record("delete:" + id)
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	uid, err := f.principal.UserID(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(id, uid); i >= 0 {
		f.rows = append(f.rows[:i], f.rows[i+1:]...)
	}
	return nil
}

func (f *FakeTable[T]) index(id, uid string) int {
	for i, r := range f.rows {
		if r["id"] == id && r[f.owner] == uid {
			return i
		}
	}
	return -1
}

func (f *FakeTable[T]) matching(ctx context.Context, opts repository.ListOptions) ([]map[string]any, error) {
	uid, err := f.principal.UserID(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	var out []map[string]any
	for _, r := range f.rows {
		if r[f.owner] != uid {
			continue
		}
		ok, err := matches(r, opts)
		if err != nil {
			f.mu.RUnlock()
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	f.mu.RUnlock()

	col := opts.Order()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := text(out[i][col]), text(out[j][col])
		if opts.Ascending {
			return a < b
		}
		return a > b
	})
	return out, nil
}

func matches(r map[string]any, opts repository.ListOptions) (bool, error) {
	for _, flt := range opts.Filters {
		v, present := r[flt.Field]
		if !present || v == nil {
			return false, nil
		}
		got, want := text(v), text(flt.Value)
		var ok bool
		switch flt.Op {
		case repository.OpEq:
			ok = got == want
		case repository.OpNeq:
			ok = got != want
		case repository.OpLt:
			ok = got < want
		case repository.OpLte:
			ok = got <= want
		case repository.OpGte:
			ok = got >= want
		default:
			return false, fmt.Errorf("unsupported operator %q", flt.Op)
		}
		if !ok {
			return false, nil
		}
	}
	if s := opts.Search; s != nil && len(s.Columns) > 0 {
		term := strings.ToLower(s.Term)
		for _, col := range s.Columns {
			if strings.Contains(strings.ToLower(text(r[col])), term) {
				return true, nil
			}
		}
		return false, nil
	}
	return true, nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case model.Date:
		return x.String()
	}
	return fmt.Sprint(v)
}

func decode[T any](row map[string]any) (T, error) {
	var rec T
	b, err := json.Marshal(row)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(b, &rec)
	return rec, err
}

// Clock is a deterministic clock that advances one microsecond per Tick.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current instant without advancing.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Tick advances the clock and returns the new instant.
func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Microsecond)
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
