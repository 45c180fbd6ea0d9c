package db

import (
	"testing"

	"github.com/getmockd/mirage/internal/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIdentity(t *testing.T) {
	m := CounterIdentity()
	assert.Equal(t, "1", m.Next())
	assert.Equal(t, "2", m.Next())

	m.Set("5")
	assert.Equal(t, "6", m.Next())

	// non-numeric ids are tracked but do not move the cursor
	m.Set("abc")
	assert.Equal(t, "7", m.Next())

	m.Reset()
	assert.Equal(t, "1", m.Next())
}

func TestCounterIdentity_SkipsUsedLowerValues(t *testing.T) {
	m := CounterIdentity()
	m.Set("1")
	m.Set("2")
	assert.Equal(t, "3", m.Next())
}

func TestLetterIdentity(t *testing.T) {
	m := LetterIdentity()
	assert.Equal(t, "a", m.Next())
	assert.Equal(t, "b", m.Next())
	m.Set("z")
	assert.Equal(t, "aa", m.Next())
}

func TestRandomIdentities(t *testing.T) {
	u := UUIDIdentity()
	assert.True(t, id.IsUUID(u.Next()))

	l := ULIDIdentity()
	assert.True(t, id.IsValidULID(l.Next()))
}

func TestIdentityByName(t *testing.T) {
	for _, name := range []string{"", "counter", "letters", "uuid", "ulid"} {
		f, ok := IdentityByName(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, f().Next())
	}
	_, ok := IdentityByName("sequence-of-emoji")
	assert.False(t, ok)
}
