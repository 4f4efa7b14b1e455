package mongostore

import (
	"fmt"

	"github.com/vedran77/tandem/internal/docstore"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func field(name string) string {
	if name == docstore.IDField {
		return "id"
	}
	return "fields." + name
}

// buildFilter translates the query filters. Each filter becomes its own
// clause under $and so several conditions on one field do not collide.
func buildFilter(q docstore.Query) (bson.D, error) {
	filter := bson.D{{Key: "collection", Value: q.Collection}}
	if len(q.Filters) == 0 {
		return filter, nil
	}

	clauses := bson.A{}
	for _, f := range q.Filters {
		operand := docstore.NormalizeValue(f.Value)
		var cond any
		switch f.Op {
		case docstore.OpEqual:
			cond = bson.M{"$eq": operand}
		case docstore.OpNotEqual:
			cond = bson.M{"$nin": bson.A{operand, nil}}
		case docstore.OpArrayContains:
			cond = bson.M{"$elemMatch": bson.M{"$eq": operand}}
		case docstore.OpIn:
			list, ok := operand.([]any)
			if !ok {
				return nil, fmt.Errorf("operator %q needs a list", f.Op)
			}
			cond = bson.M{"$in": bson.A(list)}
		case docstore.OpLess:
			cond = bson.M{"$lt": operand}
		case docstore.OpLessEqual:
			cond = bson.M{"$lte": operand}
		case docstore.OpGreater:
			cond = bson.M{"$gt": operand}
		case docstore.OpGreaterEqual:
			cond = bson.M{"$gte": operand}
		default:
			return nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		clauses = append(clauses, bson.M{field(f.Field): cond})
	}
	return append(filter, bson.E{Key: "$and", Value: clauses}), nil
}

func buildSort(q docstore.Query) bson.D {
	sort := bson.D{}
	for _, o := range q.Orders {
		dir := 1
		if o.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: field(o.Field), Value: dir})
	}
	return append(sort, bson.E{Key: "id", Value: 1})
}

// fromBSON converts decoded BSON values back into the JSON-shaped values
// documents carry everywhere else.
func fromBSON(v any) any {
	switch x := v.(type) {
	case bson.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = fromBSON(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = fromBSON(e)
		}
		return m
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromBSON(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromBSON(e)
		}
		return out
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case bson.DateTime:
		return docstore.FormatTime(x.Time())
	case bson.Null:
		return nil
	}
	return v
}
