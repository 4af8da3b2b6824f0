package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name string
}

func TestTable_InsertGetRemove(t *testing.T) {
	tab := NewTable[item]("items", 2)

	a, err := tab.Insert(item{name: "a"})
	require.NoError(t, err)
	b, err := tab.Insert(item{name: "b"})
	require.NoError(t, err)

	c, err := tab.Insert(item{name: "c"})
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.True(t, c.IsNil())

	require.NotNil(t, tab.Get(a))
	assert.Equal(t, "a", tab.Get(a).name)

	ptr := tab.Get(b)
	assert.True(t, tab.Remove(b))
	assert.Nil(t, tab.Get(b))
	assert.Equal(t, "", ptr.name, "removed slot is zeroed")
	assert.False(t, tab.Remove(b))
	assert.Nil(t, tab.Get(Invalid))
}

func TestTable_EachInIndexOrder(t *testing.T) {
	tab := NewTable[item]("items", 8)
	var hs []Handle
	for _, n := range []string{"a", "b", "c", "d"} {
		h, err := tab.Insert(item{name: n})
		require.NoError(t, err)
		hs = append(hs, h)
	}
	tab.Remove(hs[1])

	var names []string
	tab.Each(func(h Handle, it *item) bool {
		names = append(names, it.name)
		return true
	})
	assert.Equal(t, []string{"a", "c", "d"}, names)
	assert.Equal(t, uint32(3), tab.Len())

	count := 0
	tab.Each(func(Handle, *item) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
