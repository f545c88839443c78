package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	return New(map[string]interface{}{
		"id":        "a1",
		"title":     "on pagination",
		"published": true,
		"views":     float64(41),
		"score":     2.5,
		"tags":      []interface{}{"storage", "sync"},
		"author": map[string]interface{}{
			"name": "alice",
		},
	})
}

func TestAccessorGet(t *testing.T) {
	t.Parallel()

	acc, err := testRecord().Accessor()
	require.NoError(t, err)

	title, ok := acc.GetString("title")
	assert.True(t, ok)
	assert.Equal(t, "on pagination", title)

	name, ok := acc.GetString("author.name")
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	views, ok := acc.GetInt("views")
	assert.True(t, ok)
	assert.Equal(t, int64(41), views)

	score, ok := acc.GetFloat("score")
	assert.True(t, ok)
	assert.Equal(t, 2.5, score)

	published, ok := acc.GetBool("published")
	assert.True(t, ok)
	assert.True(t, published)

	tags, ok := acc.GetStringArray("tags")
	assert.True(t, ok)
	assert.Equal(t, []string{"storage", "sync"}, tags)

	assert.True(t, acc.Exists("author"))
	assert.False(t, acc.Exists("missing"))

	// Type mismatches report not-ok.
	_, ok = acc.GetString("views")
	assert.False(t, ok)
	_, ok = acc.GetInt("title")
	assert.False(t, ok)
	_, ok = acc.GetStringArray("title")
	assert.False(t, ok)
}

func TestAccessorSet(t *testing.T) {
	t.Parallel()

	rec := testRecord()
	acc, err := rec.Accessor()
	require.NoError(t, err)

	require.NoError(t, acc.Set("title", "updated"))
	require.NoError(t, acc.Set("views", 42))
	require.NoError(t, acc.Set("author.name", "bob"))
	require.NoError(t, acc.Set("fresh", "new field"))

	// Writes are synced back into the data map.
	assert.Equal(t, "updated", rec.Data["title"])
	assert.Equal(t, float64(42), rec.Data["views"])
	assert.Equal(t, "bob", rec.Data["author"].(map[string]interface{})["name"])
	assert.Equal(t, "new field", rec.Data["fresh"])

	// Existing fields keep their JSON type.
	assert.Error(t, acc.Set("title", 3))
	assert.Error(t, acc.Set("views", "many"))
	assert.Error(t, acc.Set("published", "yes"))

	// Setting "id" also updates the record's ID.
	require.NoError(t, acc.Set("id", "b2"))
	assert.Equal(t, "b2", rec.ID)
}

func TestAccessorDelete(t *testing.T) {
	t.Parallel()

	rec := testRecord()
	acc, err := rec.Accessor()
	require.NoError(t, err)

	require.NoError(t, acc.Delete("author.name"))
	assert.False(t, acc.Exists("author.name"))
	_, remains := rec.Data["author"].(map[string]interface{})["name"]
	assert.False(t, remains)
}

func TestAccessorNilData(t *testing.T) {
	t.Parallel()

	rec := &Record{}
	acc, err := rec.Accessor()
	require.NoError(t, err)
	require.NoError(t, acc.Set("k", "v"))
	assert.Equal(t, "v", rec.Data["k"])
}
