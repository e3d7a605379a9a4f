package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

const objectMediaType = "application/vnd.pgrst.object+json"

// Table is a PostgREST table holding records of type T. Row-level security
// on the project scopes every read and write to the signed-in user.
type Table[T any] struct {
	c         *Client
	name      string
	principal repository.PrincipalInterface
	now       func() time.Time
}

var (
	_ repository.CollectionRepositoryInterface[model.Lead]    = (*Table[model.Lead])(nil)
	_ repository.CollectionRepositoryInterface[model.Profile] = (*Table[model.Profile])(nil)
)

func NewTable[T any](c *Client, name string, principal repository.PrincipalInterface) *Table[T] {
	return &Table[T]{c: c, name: name, principal: principal, now: time.Now}
}

// NewTables wires one table per collection.
func NewTables(c *Client, principal repository.PrincipalInterface) repository.Tables {
	return repository.Tables{
		Profiles: NewTable[model.Profile](c, repository.TableProfiles, principal),
		Leads:    NewTable[model.Lead](c, repository.TableLeads, principal),
		Clients:  NewTable[model.Client](c, repository.TableClients, principal),
		Deals:    NewTable[model.Deal](c, repository.TableDeals, principal),
		Tasks:    NewTable[model.Task](c, repository.TableTasks, principal),
	}
}

func (t *Table[T]) Table() string { return t.name }

func (t *Table[T]) path() string { return "/rest/v1/" + t.name }

func (t *Table[T]) List(ctx context.Context, opts repository.ListOptions) ([]T, error) {
	q := listQuery(opts)
	dir := "desc"
	if opts.Ascending {
		dir = "asc"
	}
	q.Set("order", opts.Order()+"."+dir)

	resp, err := t.c.do(ctx, request{
		op:     "list " + t.name,
		method: http.MethodGet,
		path:   t.path(),
		query:  q,
	})
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("list %s: decode: %w", t.name, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (repository.Lookup[T], error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)

	resp, err := t.c.do(ctx, request{
		op:     "get " + t.name,
		method: http.MethodGet,
		path:   t.path(),
		query:  q,
		header: http.Header{"Accept": {objectMediaType}},
	})
	if isNoRows(err) {
		return repository.NotFound[T](), nil
	}
	if err != nil {
		return repository.Lookup[T]{}, err
	}
	var rec T
	if err := json.Unmarshal(resp.body, &rec); err != nil {
		return repository.Lookup[T]{}, fmt.Errorf("get %s: decode: %w", t.name, err)
	}
	return repository.Found(rec), nil
}

func (t *Table[T]) Insert(ctx context.Context, values any) (T, error) {
	var zero T
	uid, err := t.principal.UserID(ctx)
	if err != nil {
		return zero, err
	}
	body, err := repository.EncodeValues(values)
	if err != nil {
		return zero, err
	}
	repository.StripSystemColumns(body)
	body[repository.OwnerColumn(t.name)] = uid

	resp, err := t.c.do(ctx, request{
		op:     "insert " + t.name,
		method: http.MethodPost,
		path:   t.path(),
		query:  url.Values{"select": {"*"}},
		body:   body,
		header: http.Header{
			"Prefer": {"return=representation"},
			"Accept": {objectMediaType},
		},
	})
	if err != nil {
		return zero, err
	}
	return decodeOne[T](t.name, resp.body)
}

func (t *Table[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var zero T
	body, err := repository.EncodeValues(patch)
	if err != nil {
		return zero, err
	}
	repository.StripSystemColumns(body)
	body["updated_at"] = t.now().UTC().Format(time.RFC3339Nano)

	resp, err := t.c.do(ctx, request{
		op:     "update " + t.name,
		method: http.MethodPatch,
		path:   t.path(),
		query:  url.Values{"select": {"*"}, "id": {"eq." + id}},
		body:   body,
		header: http.Header{
			"Prefer": {"return=representation"},
			"Accept": {objectMediaType},
		},
	})
	if isNoRows(err) {
		return zero, appErrors.NewNotFound(t.name, id)
	}
	if err != nil {
		return zero, err
	}
	return decodeOne[T](t.name, resp.body)
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	_, err := t.c.do(ctx, request{
		op:     "delete " + t.name,
		method: http.MethodDelete,
		path:   t.path(),
		query:  url.Values{"id": {"eq." + id}},
	})
	return err
}

func (t *Table[T]) Count(ctx context.Context, opts repository.ListOptions) (int, error) {
	resp, err := t.c.do(ctx, request{
		op:     "count " + t.name,
		method: http.MethodHead,
		path:   t.path(),
		query:  listQuery(opts),
		header: http.Header{"Prefer": {"count=exact"}},
	})
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.header.Get("Content-Range"))
}

func decodeOne[T any](table string, body []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("%s: decode: %w", table, err)
	}
	return rec, nil
}

func listQuery(opts repository.ListOptions) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	for _, f := range opts.Filters {
		q.Add(f.Field, string(f.Op)+"."+formatValue(f.Value))
	}
	if s := opts.Search; s != nil && len(s.Columns) > 0 {
		pattern := quote("%" + s.Term + "%")
		parts := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			parts[i] = col + ".ilike." + pattern
		}
		q.Set("or", "("+strings.Join(parts, ",")+")")
	}
	return q
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case model.Date:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// quote wraps a logic-tree value in double quotes so reserved characters
// such as commas and parentheses are taken literally.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// parseContentRange reads the total from "0-9/42" or "*/42".
func parseContentRange(h string) (int, error) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 || i == len(h)-1 {
		return 0, fmt.Errorf("invalid Content-Range %q", h)
	}
	total := h[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("Content-Range %q has no exact count", h)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range %q: %w", h, err)
	}
	return n, nil
}
