package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in"
)

// PrefixSentinel is appended to a search term to form the exclusive upper
// bound of a prefix range.
const PrefixSentinel = "\uf8ff"

// IDField addresses the document id in filters and orders.
const IDField = "__id__"

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

type Query struct {
	Collection string
	Filters    []Filter
	Orders     []Order
	Limit      int
}

func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Desc: desc})
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// WherePrefix restricts field to strings starting with term.
func (q Query) WherePrefix(field, term string) Query {
	for _, f := range PrefixRange(field, term) {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	return q
}

// PrefixRange returns the pair of range filters matching every string that
// starts with term.
func PrefixRange(field, term string) []Filter {
	return []Filter{
		{Field: field, Op: OpGreaterEqual, Value: term},
		{Field: field, Op: OpLess, Value: term + PrefixSentinel},
	}
}

func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("query: empty collection")
	}
	if q.Limit < 0 {
		return fmt.Errorf("query: negative limit")
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("query: empty filter field")
		}
		switch f.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpArrayContains:
		case OpIn:
			if _, ok := NormalizeValue(f.Value).([]any); !ok {
				return fmt.Errorf("query: %q operand must be a list", f.Op)
			}
		default:
			return fmt.Errorf("query: unsupported operator %q", f.Op)
		}
	}
	for _, o := range q.Orders {
		if o.Field == "" {
			return fmt.Errorf("query: empty order field")
		}
	}
	return nil
}

// Matches reports whether doc satisfies every filter.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Filters {
		if !matchFilter(fieldValue(doc, f.Field), f.Op, NormalizeValue(f.Value)) {
			return false
		}
	}
	return true
}

// Apply filters, orders and limits docs in place of a backend query engine.
// Ties on the requested orders fall back to ascending document id.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			c := compareForOrder(fieldValue(out[i], o.Field), fieldValue(out[j], o.Field))
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchFilter(v any, op Op, operand any) bool {
	switch op {
	case OpEqual:
		return v != nil && Equal(v, operand)
	case OpNotEqual:
		return v != nil && !Equal(v, operand)
	case OpArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if Equal(e, operand) {
				return true
			}
		}
		return false
	case OpIn:
		list, ok := operand.([]any)
		if !ok || v == nil {
			return false
		}
		for _, e := range list {
			if Equal(v, e) {
				return true
			}
		}
		return false
	}

	// Range operators only compare values of the same kind.
	if v == nil || rank(v) != rank(operand) {
		return false
	}
	c := Compare(v, operand)
	switch op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

func fieldValue(doc Document, path string) any {
	if path == IDField {
		return doc.ID
	}
	return lookup(doc.Fields, path)
}

func lookup(fields map[string]any, path string) any {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			if f, isFields := cur.(Fields); isFields {
				m = f
			} else {
				return nil
			}
		}
		cur = m[part]
	}
	return cur
}

// Equal compares two normalized values.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

// Compare orders two normalized values: by kind first, then numbers
// numerically, strings byte-wise, booleans false before true and lists
// element by element.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(x, b.(string))
	case []any:
		y := b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return len(x) - len(y)
	}
	return 0
}

// compareForOrder sorts missing values after present ones.
func compareForOrder(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return Compare(a, b)
}
