// Package postgres implements the record store directly on a Postgres
// database holding the same tables the hosted backend exposes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

// DB is the subset of *sqlx.DB used by Table.
type DB interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Table is a Postgres table of T rows, always filtered by the owning principal.
// Rows are scanned into T by its db tags.
type Table[T any] struct {
	db        DB
	name      string
	owner     string
	cols      []string
	principal repository.PrincipalInterface
}

var (
	_ DB                                                     = (*sqlx.DB)(nil)
	_ repository.CollectionRepositoryInterface[model.Client] = (*Table[model.Client])(nil)
)

func NewTable[T any](db DB, name string, principal repository.PrincipalInterface) *Table[T] {
	return &Table[T]{db: db, name: name, owner: repository.OwnerColumn(name), cols: columns[T](), principal: principal}
}

// columns lists the db-tagged fields of T in declaration order.
func columns[T any]() []string {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	cols := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("db"), ",")
		if name != "" && name != "-" {
			cols = append(cols, name)
		}
	}
	return cols
}

// NewTables wires one table per collection on db.
func NewTables(db DB, principal repository.PrincipalInterface) repository.Tables {
	return repository.Tables{
		Profiles: NewTable[model.Profile](db, repository.TableProfiles, principal),
		Leads:    NewTable[model.Lead](db, repository.TableLeads, principal),
		Clients:  NewTable[model.Client](db, repository.TableClients, principal),
		Deals:    NewTable[model.Deal](db, repository.TableDeals, principal),
		Tasks:    NewTable[model.Task](db, repository.TableTasks, principal),
	}
}

func (t *Table[T]) Table() string { return t.name }

func (t *Table[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, error) {
	uid, err := t.principal.UserID(ctx)
	if err != nil {
		return nil, err
	}
	q, args, err := buildSelect(t.name, t.cols, t.owner, uid, opts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := t.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, t.wrap("list", err)
	}
	return out, nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (repository.Lookup[T], error) {
	uid, err := t.principal.UserID(ctx)
	if err != nil {
		return repository.Lookup[T]{}, err
	}
	q, args := buildGet(t.name, t.cols, t.owner, id, uid)
	rec, err := t.one(ctx, "get", q, args)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.NotFound[T](), nil
	}
	if err != nil {
		return repository.Lookup[T]{}, err
	}
	return repository.Found(rec), nil
}

func (t *Table[T]) Insert(ctx context.Context, values any) (T, error) {
	var zero T
	uid, err := t.principal.UserID(ctx)
	if err != nil {
		return zero, err
	}
	cols, err := repository.EncodeValues(values)
	if err != nil {
		return zero, err
	}
	repository.StripSystemColumns(cols)
	cols[t.owner] = uid

	q, args, err := buildInsert(t.name, t.cols, cols)
	if err != nil {
		return zero, err
	}
	return t.one(ctx, "insert", q, args)
}

func (t *Table[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var zero T
	uid, err := t.principal.UserID(ctx)
	if err != nil {
		return zero, err
	}
	cols, err := repository.EncodeValues(patch)
	if err != nil {
		return zero, err
	}
	repository.StripSystemColumns(cols)

	q, args, err := buildUpdate(t.name, t.cols, t.owner, id, uid, cols)
	if err != nil {
		return zero, err
	}
	rec, err := t.one(ctx, "update", q, args)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, appErrors.NewNotFound(t.name, id)
	}
	return rec, err
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	uid, err := t.principal.UserID(ctx)
	if err != nil {
		return err
	}
	q, args := buildDelete(t.name, t.owner, id, uid)
	if _, err := t.db.ExecContext(ctx, q, args...); err != nil {
		return t.wrap("delete", err)
	}
	return nil
}

func (t *Table[T]) Count(ctx context.Context, opts repository.ListOptions) (int, error) {
	uid, err := t.principal.UserID(ctx)
	if err != nil {
		return 0, err
	}
	q, args, err := buildCount(t.name, t.owner, uid, opts)
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, t.wrap("count", err)
	}
	return n, nil
}

// one runs a single-row query. sql.ErrNoRows is returned unwrapped so
// callers can branch on it.
func (t *Table[T]) one(ctx context.Context, op, q string, args []any) (T, error) {
	var rec T
	err := t.db.GetContext(ctx, &rec, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, sql.ErrNoRows
	}
	if err != nil {
		return rec, t.wrap(op, err)
	}
	return rec, nil
}

func (t *Table[T]) wrap(op string, err error) error {
	re := &appErrors.RemoteError{Op: op + " " + t.name, Message: err.Error()}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		re.Code = string(pqErr.Code)
		re.Message = pqErr.Message
	}
	return re
}
