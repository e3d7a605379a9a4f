package postgres

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var opSQL = map[repository.Op]string{
	repository.OpEq:  "=",
	repository.OpNeq: "<>",
	repository.OpLt:  "<",
	repository.OpLte: "<=",
	repository.OpGte: ">=",
}

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid column name %q", name)
	}
	return nil
}

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// buildWhere renders the owner scope plus the filters and search of opts.
func buildWhere(owner, uid string, opts repository.ListOptions, a *args) (string, error) {
	conds := []string{"t." + owner + " = " + a.add(uid)}
	for _, f := range opts.Filters {
		if err := checkIdent(f.Field); err != nil {
			return "", err
		}
		op, ok := opSQL[f.Op]
		if !ok {
			return "", fmt.Errorf("unsupported operator %q", f.Op)
		}
		conds = append(conds, fmt.Sprintf("t.%s %s %s", f.Field, op, a.add(sqlValue(f.Value))))
	}
	if s := opts.Search; s != nil && len(s.Columns) > 0 {
		p := a.add(repository.SearchPattern(s.Term))
		ors := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			if err := checkIdent(col); err != nil {
				return "", err
			}
			ors[i] = "t." + col + " ILIKE " + p
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

// projection renders cols qualified by the t alias.
func projection(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = "t." + c
	}
	return strings.Join(out, ", ")
}

func buildSelect(table string, cols []string, owner, uid string, opts repository.ListOptions) (string, []any, error) {
	var a args
	where, err := buildWhere(owner, uid, opts, &a)
	if err != nil {
		return "", nil, err
	}
	order := opts.Order()
	if err := checkIdent(order); err != nil {
		return "", nil, err
	}
	dir := "DESC"
	if opts.Ascending {
		dir = "ASC"
	}
	q := fmt.Sprintf("SELECT %s FROM %s t%s ORDER BY t.%s %s", projection(cols), table, where, order, dir)
	return q, a, nil
}

func buildCount(table, owner, uid string, opts repository.ListOptions) (string, []any, error) {
	var a args
	where, err := buildWhere(owner, uid, opts, &a)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT count(*) FROM %s t%s", table, where), a, nil
}

func buildGet(table string, cols []string, owner, id, uid string) (string, []any) {
	var a args
	q := fmt.Sprintf("SELECT %s FROM %s t WHERE t.id = %s AND t.%s = %s",
		projection(cols), table, a.add(id), owner, a.add(uid))
	return q, a
}

func buildInsert(table string, returning []string, values map[string]any) (string, []any, error) {
	cols, err := sortedColumns(values)
	if err != nil {
		return "", nil, err
	}
	var a args
	ph := make([]string, len(cols))
	for i, c := range cols {
		ph[i] = a.add(sqlValue(values[c]))
	}
	q := fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(cols, ", "), strings.Join(ph, ", "), projection(returning))
	return q, a, nil
}

func buildUpdate(table string, returning []string, owner, id, uid string, values map[string]any) (string, []any, error) {
	cols, err := sortedColumns(values)
	if err != nil {
		return "", nil, err
	}
	var a args
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = "+a.add(sqlValue(values[c])))
	}
	sets = append(sets, "updated_at = now()")
	q := fmt.Sprintf("UPDATE %s AS t SET %s WHERE t.id = %s AND t.%s = %s RETURNING %s",
		table, strings.Join(sets, ", "), a.add(id), owner, a.add(uid), projection(returning))
	return q, a, nil
}

func buildDelete(table, owner, id, uid string) (string, []any) {
	var a args
	q := fmt.Sprintf("DELETE FROM %s AS t WHERE t.id = %s AND t.%s = %s", table, a.add(id), owner, a.add(uid))
	return q, a
}

func sortedColumns(values map[string]any) ([]string, error) {
	cols := make([]string, 0, len(values))
	for c := range values {
		if err := checkIdent(c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

// sqlValue converts decoded JSON and model values into driver parameters.
func sqlValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case model.Date:
		return x.String()
	case time.Time:
		return x
	case []string:
		return pq.StringArray(x)
	case []any:
		strs := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return pq.Array(x)
			}
			strs = append(strs, s)
		}
		return pq.StringArray(strs)
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(b)
	case fmt.Stringer:
		return x.String()
	}
	return v
}
