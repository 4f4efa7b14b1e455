package postgres

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vedran77/tandem/internal/docstore"
)

const selectColumns = "id, fields, created_at, updated_at"

// sqlBuilder accumulates positional arguments while rendering a query.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) path(field string) string {
	if field == docstore.IDField {
		return "to_jsonb(id)"
	}
	return "(fields #> " + b.arg(strings.Split(field, ".")) + "::text[])"
}

func (b *sqlBuilder) jsonArg(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding operand: %w", err)
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

// buildSelect renders q as a SELECT over the documents table.
func buildSelect(q docstore.Query) (string, []any, error) {
	b := &sqlBuilder{}
	var sb strings.Builder
	sb.WriteString("SELECT " + selectColumns + " FROM documents WHERE collection = " + b.arg(q.Collection))

	for _, f := range q.Filters {
		cond, err := b.filter(f)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}

	sb.WriteString(" ORDER BY ")
	for _, o := range q.Orders {
		e := b.path(o.Field)
		dir := "ASC NULLS LAST"
		if o.Desc {
			dir = "DESC NULLS FIRST"
		}
		fmt.Fprintf(&sb, "CASE WHEN jsonb_typeof(%[1]s) = 'number' THEN (%[1]s #>> '{}')::numeric END %[2]s, (%[1]s #>> '{}') COLLATE \"C\" %[2]s, ", e, dir)
	}
	sb.WriteString("id ASC")

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(q.Limit))
	}
	return sb.String(), b.args, nil
}

func (b *sqlBuilder) filter(f docstore.Filter) (string, error) {
	operand := docstore.NormalizeValue(f.Value)
	e := b.path(f.Field)
	present := fmt.Sprintf("COALESCE(jsonb_typeof(%s), 'null') <> 'null'", e)

	switch f.Op {
	case docstore.OpEqual:
		v, err := b.jsonArg(operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s = %s)", present, e, v), nil
	case docstore.OpNotEqual:
		v, err := b.jsonArg(operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s <> %s)", present, e, v), nil
	case docstore.OpArrayContains:
		v, err := b.jsonArg([]any{operand})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND %s @> %s)", e, e, v), nil
	case docstore.OpIn:
		v, err := b.jsonArg(operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s IN (SELECT jsonb_array_elements(%s)))", present, e, v), nil
	case docstore.OpLess, docstore.OpLessEqual, docstore.OpGreater, docstore.OpGreaterEqual:
		return b.rangeFilter(e, f.Op, operand)
	}
	return "", fmt.Errorf("unsupported operator %q", f.Op)
}

func (b *sqlBuilder) rangeFilter(e string, op docstore.Op, operand any) (string, error) {
	switch v := operand.(type) {
	case string:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'string' AND (%s #>> '{}') COLLATE \"C\" %s %s)", e, e, op, b.arg(v)), nil
	case float64:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'number' AND (%s #>> '{}')::numeric %s %s::numeric)", e, e, op, b.arg(v)), nil
	case bool:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'boolean' AND (%s #>> '{}')::boolean %s %s::boolean)", e, e, op, b.arg(v)), nil
	}
	return "", fmt.Errorf("range operator %q needs a string, number or boolean operand", op)
}
