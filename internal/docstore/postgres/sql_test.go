package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/tandem/internal/docstore"
)

func TestBuildSelect_CollectionOnly(t *testing.T) {
	sql, args, err := buildSelect(docstore.NewQuery("users"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1 ORDER BY id ASC", sql)
	assert.Equal(t, []any{"users"}, args)
}

func TestBuildSelect_FiltersOrdersLimit(t *testing.T) {
	q := docstore.NewQuery("sharedGoals").
		Where("members", docstore.OpArrayContains, "u1").
		Where("completed", docstore.OpEqual, false).
		OrderBy("createdAt", true).
		WithLimit(5)

	sql, args, err := buildSelect(q)
	require.NoError(t, err)

	assert.Contains(t, sql, "(jsonb_typeof((fields #> $2::text[])) = 'array' AND (fields #> $2::text[]) @> $3::jsonb)")
	assert.Contains(t, sql, "(fields #> $4::text[]) = $5::jsonb")
	assert.Contains(t, sql, "DESC NULLS FIRST")
	assert.Contains(t, sql, "LIMIT $7")
	assert.Equal(t, []any{
		"sharedGoals",
		[]string{"members"}, `["u1"]`,
		[]string{"completed"}, "false",
		[]string{"createdAt"},
		5,
	}, args)
}

func TestBuildSelect_PrefixRangeUsesBytewiseCollation(t *testing.T) {
	q := docstore.NewQuery("users").WherePrefix("usernameLowercase", "al")
	sql, args, err := buildSelect(q)
	require.NoError(t, err)

	assert.Contains(t, sql, `COLLATE "C" >= $3`)
	assert.Contains(t, sql, `COLLATE "C" < $5`)
	assert.Equal(t, "al", args[2])
	assert.Equal(t, "al"+docstore.PrefixSentinel, args[4])
}

func TestBuildSelect_NormalizesOperands(t *testing.T) {
	q := docstore.NewQuery("events").Where("count", docstore.OpGreater, 3).Where("names", docstore.OpIn, []string{"a"})
	sql, args, err := buildSelect(q)
	require.NoError(t, err)

	assert.Contains(t, sql, "::numeric > $3::numeric")
	assert.Equal(t, float64(3), args[2])
	assert.Contains(t, sql, "IN (SELECT jsonb_array_elements($5::jsonb))")
	assert.Equal(t, `["a"]`, args[4])
}

func TestBuildSelect_RejectsUnorderableRange(t *testing.T) {
	_, _, err := buildSelect(docstore.NewQuery("c").Where("f", docstore.OpLess, []string{"x"}))
	assert.Error(t, err)
}

func TestBuildSelect_IDField(t *testing.T) {
	sql, args, err := buildSelect(docstore.NewQuery("chats").Where(docstore.IDField, docstore.OpEqual, "a_b"))
	require.NoError(t, err)
	assert.Contains(t, sql, "to_jsonb(id) = $2::jsonb")
	assert.Equal(t, []any{"chats", `"a_b"`}, args)
}
