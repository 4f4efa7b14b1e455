package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/docstore"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestBuildFilter(t *testing.T) {
	q := docstore.NewQuery("sharedEvents").
		Where("members", docstore.OpArrayContains, "u1").
		WherePrefix("title", "din")

	filter, err := buildFilter(q)
	require.NoError(t, err)
	require.Len(t, filter, 2)
	assert.Equal(t, bson.E{Key: "collection", Value: "sharedEvents"}, filter[0])

	clauses := filter[1].Value.(bson.A)
	require.Len(t, clauses, 3)
	assert.Equal(t, bson.M{"fields.members": bson.M{"$elemMatch": bson.M{"$eq": "u1"}}}, clauses[0])
	assert.Equal(t, bson.M{"fields.title": bson.M{"$gte": "din"}}, clauses[1])
	assert.Equal(t, bson.M{"fields.title": bson.M{"$lt": "din" + docstore.PrefixSentinel}}, clauses[2])
}

func TestBuildFilter_NormalizesOperands(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	filter, err := buildFilter(docstore.NewQuery("c").Where("start", docstore.OpGreaterEqual, at).Where("n", docstore.OpIn, []int{1, 2}))
	require.NoError(t, err)

	clauses := filter[1].Value.(bson.A)
	assert.Equal(t, bson.M{"fields.start": bson.M{"$gte": "2024-01-02T03:04:05.000000000Z"}}, clauses[0])
	assert.Equal(t, bson.M{"fields.n": bson.M{"$in": bson.A{float64(1), float64(2)}}}, clauses[1])
}

func TestBuildFilter_NoFilters(t *testing.T) {
	filter, err := buildFilter(docstore.NewQuery("c"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "collection", Value: "c"}}, filter)
}

func TestBuildSort(t *testing.T) {
	s := buildSort(docstore.NewQuery("c").OrderBy("createdAt", true))
	assert.Equal(t, bson.D{{Key: "fields.createdAt", Value: -1}, {Key: "id", Value: 1}}, s)
}

func TestFromBSON(t *testing.T) {
	in := bson.D{
		{Key: "n", Value: int32(3)},
		{Key: "tags", Value: bson.A{"a", int64(2)}},
		{Key: "nested", Value: bson.M{"ok": true}},
	}
	assert.Equal(t, map[string]any{
		"n":      float64(3),
		"tags":   []any{"a", float64(2)},
		"nested": map[string]any{"ok": true},
	}, fromBSON(in))
}

func TestPaths(t *testing.T) {
	p := pathOf("chats/a_b/messages", "m1")
	assert.Equal(t, "chats/a_b/messages/m1", p)
	coll, ok := collectionOf(p)
	require.True(t, ok)
	assert.Equal(t, "chats/a_b/messages", coll)

	_, ok = collectionOf("nopath")
	assert.False(t, ok)
}
