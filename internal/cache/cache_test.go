package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string
	Year int
}

func TestMemoize(t *testing.T) {
	c, err := OpenInMemory(nil)
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.Enabled())

	calls := 0
	fn := func() (*entry, error) {
		calls++
		return &entry{Name: "The Matrix", Year: 1999}, nil
	}

	v, hit, err := Memoize(c, "imdb.title : tt0133093", time.Hour, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "The Matrix", v.Name)

	v, hit, err = Memoize(c, "imdb.title : tt0133093", time.Hour, fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1999, v.Year)
	assert.Equal(t, 1, calls)
}

func TestMemoize_ErrorNotStored(t *testing.T) {
	c, err := OpenInMemory(nil)
	require.NoError(t, err)
	defer c.Close()

	boom := errors.New("boom")
	_, _, err = Memoize(c, "k", time.Hour, func() (*entry, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	v, hit, err := Memoize(c, "k", time.Hour, func() (*entry, error) { return &entry{Name: "ok"}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v.Name)
}

func TestMemoize_Disabled(t *testing.T) {
	for name, c := range map[string]*Cache{"nil": nil, "empty path": mustOpen(t, "")} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, c.Enabled())
			calls := 0
			for i := 0; i < 2; i++ {
				_, hit, err := Memoize(c, "k", time.Hour, func() (*entry, error) {
					calls++
					return &entry{}, nil
				})
				require.NoError(t, err)
				assert.False(t, hit)
			}
			assert.Equal(t, 2, calls)
			assert.NoError(t, c.Close())
		})
	}
}

func mustOpen(t *testing.T, path string) *Cache {
	t.Helper()
	c, err := Open(path, nil)
	require.NoError(t, err)
	return c
}
