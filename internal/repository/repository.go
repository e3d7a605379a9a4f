// Package repository defines the backend-agnostic record store contracts.
// Services never talk to Supabase or Postgres directly.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
)

// Table names.
const (
	TableProfiles = "profiles"
	TableLeads    = "leads"
	TableClients  = "clients"
	TableDeals    = "deals"
	TableTasks    = "tasks"
)

// Record is implemented by every stored entity.
type Record interface {
	RecordID() string
	OwnerID() string
}

// Lookup is the result of a single-record read. A missing record is
// Found=false with a nil error; a failed read is a non-nil error.
type Lookup[T any] struct {
	Record T
	Found  bool
}

func Found[T any](r T) Lookup[T] { return Lookup[T]{Record: r, Found: true} }

func NotFound[T any]() Lookup[T] { return Lookup[T]{} }

// CollectionRepositoryInterface is the record store for one table, scoped to
// the authenticated principal.
type CollectionRepositoryInterface[T any] interface {
	// Table returns the table name.
	Table() string

	// List returns records matching opts. The zero ListOptions lists everything
	// newest first.
	List(ctx context.Context, opts ListOptions) ([]T, error)

	// Get reads one record by id.
	Get(ctx context.Context, id string) (Lookup[T], error)

	// Insert stores values with the principal as owner and returns the stored record.
	Insert(ctx context.Context, values any) (T, error)

	// Update applies a partial patch and returns the stored record.
	Update(ctx context.Context, id string, patch any) (T, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// Count returns the number of records matching opts.
	Count(ctx context.Context, opts ListOptions) (int, error)
}

// Tables bundles one collection per table.
type Tables struct {
	Profiles CollectionRepositoryInterface[model.Profile]
	Leads    CollectionRepositoryInterface[model.Lead]
	Clients  CollectionRepositoryInterface[model.Client]
	Deals    CollectionRepositoryInterface[model.Deal]
	Tasks    CollectionRepositoryInterface[model.Task]
}

// PrincipalInterface resolves the id of the authenticated user.
type PrincipalInterface interface {
	UserID(ctx context.Context) (string, error)
}

// StaticPrincipal is a fixed principal, used by workers acting on behalf of
// a known user.
type StaticPrincipal string

func (p StaticPrincipal) UserID(context.Context) (string, error) {
	if p == "" {
		return "", appErrors.ErrNotAuthenticated
	}
	return string(p), nil
}

// OwnerColumn returns the column holding the owning principal for table.
func OwnerColumn(table string) string {
	if table == TableProfiles {
		return "id"
	}
	return "user_id"
}

// EncodeValues turns a record, input struct or map into a column map using
// its JSON field names. Nil pointer fields tagged omitempty are left out.
func EncodeValues(values any) (map[string]any, error) {
	if m, ok := values.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode values: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encode values: expected an object: %w", err)
	}
	return out, nil
}

// Immutable columns are stripped from insert and patch payloads.
var systemColumns = []string{"id", "user_id", "created_at", "updated_at"}

// StripSystemColumns removes identity and timestamp columns from a payload.
func StripSystemColumns(values map[string]any) {
	for _, c := range systemColumns {
		delete(values, c)
	}
}
