package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Collection Tests
// =============================================================================

func TestNewCollection(t *testing.T) {
	t.Parallel()

	t.Run("requires a type", func(t *testing.T) {
		c, err := NewCollection("")
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrTypeRequired)
	})

	for _, name := range []string{"contacts", "a", "blogPosts"} {
		t.Run(name, func(t *testing.T) {
			c, err := NewCollection(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestCollection_InsertAssignsIDs(t *testing.T) {
	c, err := NewCollection("contacts")
	require.NoError(t, err)

	first, err := c.Insert(Record{"name": "Link"})
	require.NoError(t, err)
	second, err := c.Insert(Record{"name": "Zelda"})
	require.NoError(t, err)

	assert.Equal(t, "1", first.ID())
	assert.Equal(t, "2", second.ID())
}

func TestCollection_InsertFindRoundTrip(t *testing.T) {
	records := []Record{
		{"name": "Link", "age": 17.0},
		{"id": "99", "name": "Ganon"},
		{"id": 7, "tags": []any{"hero", "swordsman"}},
		{"nested": map[string]any{"city": "Hyrule"}},
	}

	c, err := NewCollection("people")
	require.NoError(t, err)

	for _, r := range records {
		stored, err := c.Insert(r)
		require.NoError(t, err)

		found, ok := c.Find(stored.ID())
		require.True(t, ok)
		assert.Equal(t, stored, found)
		for k, v := range r {
			if k == IDField {
				continue
			}
			assert.Equal(t, v, found[k])
		}
	}
}

func TestCollection_DuplicateIDRejected(t *testing.T) {
	c, err := NewCollection("contacts")
	require.NoError(t, err)

	_, err = c.Insert(Record{"id": "1", "name": "first"})
	require.NoError(t, err)

	_, err = c.Insert(Record{"id": "1", "name": "second"})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "1", conflict.ID)
	assert.Equal(t, 409, conflict.StatusCode())

	// numeric ids normalize to the same key
	_, err = c.Insert(Record{"id": 1.0})
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, 1, c.Len())
}

func TestCollection_ExplicitIDsAdvanceCounter(t *testing.T) {
	c, err := NewCollection("contacts")
	require.NoError(t, err)

	_, err = c.Insert(Record{"id": "3"})
	require.NoError(t, err)
	next, err := c.Insert(Record{})
	require.NoError(t, err)
	assert.Equal(t, "4", next.ID())
}

func TestCollection_StoredRecordsAreIsolated(t *testing.T) {
	c, err := NewCollection("contacts")
	require.NoError(t, err)

	in := Record{"name": "Link", "meta": map[string]any{"level": 1}}
	stored, err := c.Insert(in)
	require.NoError(t, err)

	in["name"] = "mutated"
	stored["name"] = "mutated"
	stored["meta"].(map[string]any)["level"] = 99

	found, _ := c.Find(stored.ID())
	assert.Equal(t, "Link", found["name"])
	assert.Equal(t, 1, found["meta"].(map[string]any)["level"])
}

func TestCollection_FindMiss(t *testing.T) {
	c, _ := NewCollection("contacts")
	rec, ok := c.Find("nope")
	assert.False(t, ok)
	assert.Nil(t, rec)

	_, ok = c.FindBy(func(Record) bool { return true })
	assert.False(t, ok)
}

func TestCollection_FindBy(t *testing.T) {
	c, _ := NewCollection("contacts")
	_, _ = c.InsertMany([]Record{{"name": "a", "n": 1}, {"name": "b", "n": 2}, {"name": "c", "n": 2}})

	rec, ok := c.FindBy(func(r Record) bool { return r["n"] == 2 })
	require.True(t, ok)
	assert.Equal(t, "b", rec["name"])
}

func TestCollection_WhereAndFilter(t *testing.T) {
	c, _ := NewCollection("users")
	_, err := c.InsertMany([]Record{
		{"name": "Shiek", "age": 20.0, "admin": true},
		{"name": "Link", "age": 17.0, "admin": false},
		{"name": "Impa", "age": 80.0, "admin": true},
	})
	require.NoError(t, err)

	admins := c.Where(map[string]any{"admin": true})
	require.Len(t, admins, 2)
	assert.Equal(t, "Shiek", admins[0]["name"])
	assert.Equal(t, "Impa", admins[1]["name"])

	// query strings compare against decoded JSON numbers
	assert.Len(t, c.Where(map[string]any{"age": "17"}), 1)

	adults, err := c.Filter(`age >= 18 && admin`)
	require.NoError(t, err)
	assert.Len(t, adults, 2)

	_, err = c.Filter(`age >=`)
	assert.Error(t, err)
}

func TestCollection_FirstOrInsert(t *testing.T) {
	c, _ := NewCollection("tags")

	first, err := c.FirstOrInsert(map[string]any{"label": "go"})
	require.NoError(t, err)
	again, err := c.FirstOrInsert(map[string]any{"label": "go"})
	require.NoError(t, err)

	assert.Equal(t, first.ID(), again.ID())
	assert.Equal(t, 1, c.Len())
}

func TestCollection_Update(t *testing.T) {
	c, _ := NewCollection("contacts")
	rec, _ := c.Insert(Record{"name": "Link", "age": 17})

	updated, err := c.Update(rec.ID(), Record{"age": 18, "email": nil})
	require.NoError(t, err)
	assert.Equal(t, "Link", updated["name"])
	assert.Equal(t, 18, updated["age"])
	assert.Contains(t, updated, "email")

	_, err = c.Update("missing", Record{"age": 1})
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = c.Update(rec.ID(), Record{"id": "other"})
	assert.ErrorIs(t, err, ErrImmutableID)

	// restating the same id is allowed
	_, err = c.Update(rec.ID(), Record{"id": rec.ID()})
	assert.NoError(t, err)

	// so is a numeric id equal to the stored one, or a null id
	_, err = c.Update(rec.ID(), Record{"id": 1})
	assert.NoError(t, err)
	updated, err = c.Update(rec.ID(), Record{"id": nil, "age": 19})
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), updated.ID())
	assert.Equal(t, 19, updated["age"])
}

func TestCollection_FindMany(t *testing.T) {
	c, _ := NewCollection("contacts")
	for _, name := range []string{"Link", "Zelda", "Ganon"} {
		_, err := c.Insert(Record{"name": name})
		require.NoError(t, err)
	}

	recs := c.FindMany([]string{"3", "missing", "1"})
	require.Len(t, recs, 2)
	assert.Equal(t, "Ganon", recs[0]["name"])
	assert.Equal(t, "Link", recs[1]["name"])

	recs[0]["name"] = "changed"
	stored, _ := c.Find("3")
	assert.Equal(t, "Ganon", stored["name"])

	assert.Empty(t, c.FindMany(nil))
}

func TestCollection_RemovePreservesOrder(t *testing.T) {
	c, _ := NewCollection("letters")
	_, _ = c.InsertMany([]Record{{"v": "a"}, {"v": "b"}, {"v": "c"}, {"v": "d"}})

	c.Remove("2")
	c.Remove("does-not-exist")

	var got []string
	for r := range c.All() {
		got = append(got, r["v"].(string))
	}
	assert.Equal(t, []string{"a", "c", "d"}, got)

	removed := c.RemoveWhere(func(r Record) bool { return r["v"] == "a" || r["v"] == "d" })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCollection_AllIsSnapshot(t *testing.T) {
	c, _ := NewCollection("items")
	first, _ := c.Insert(Record{"v": 1})

	seq := c.All()
	_, _ = c.Insert(Record{"v": 2})
	_, _ = c.Update(first.ID(), Record{"v": 100})

	count := 0
	for r := range seq {
		count++
		assert.Equal(t, 1, r["v"])
	}
	assert.Equal(t, 1, count)

	// restartable
	again := 0
	for range seq {
		again++
	}
	assert.Equal(t, 1, again)
}

func TestCollection_Clear(t *testing.T) {
	c, _ := NewCollection("items")
	_, _ = c.InsertMany([]Record{{}, {}})
	c.Clear()
	assert.Equal(t, 0, c.Len())

	rec, _ := c.Insert(Record{})
	assert.Equal(t, "1", rec.ID())
}

func TestCollection_Replace(t *testing.T) {
	c, _ := NewCollection("items")
	_, _ = c.InsertMany([]Record{{"v": "a", "extra": true}, {"v": "b"}})

	require.NoError(t, c.Replace("1", Record{"v": "z"}))
	recs := c.Records()
	assert.Equal(t, Record{"id": "1", "v": "z"}, recs[0])
	assert.Equal(t, "b", recs[1]["v"])

	var nf *NotFoundError
	assert.True(t, errors.As(c.Replace("9", Record{}), &nf))
}
