package rolling

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsLastFive(t *testing.T) {
	for n := 0; n <= 12; n++ {
		t.Run(fmt.Sprintf("%d turns", n), func(t *testing.T) {
			c := New(DefaultCapacity)
			var all []string
			for i := 0; i < n; i++ {
				label := fmt.Sprintf("realm-%d", i)
				all = append(all, label)
				c.Append(label)
				assert.LessOrEqual(t, c.Len(), 5)
			}

			want := all
			if len(want) > 5 {
				want = want[len(want)-5:]
			}
			assert.Equal(t, len(want), c.Len())
			if len(want) == 0 {
				assert.Empty(t, c.Snapshot())
			} else {
				assert.Equal(t, want, c.Snapshot())
			}
		})
	}
}

func TestCapacityIsCappedAtFive(t *testing.T) {
	for _, n := range []int{-1, 0, 6, 50} {
		assert.Equal(t, DefaultCapacity, ClampCapacity(n), n)
	}
	assert.Equal(t, 3, ClampCapacity(3))

	c := New(12)
	for i := 0; i < 12; i++ {
		c.Append(fmt.Sprintf("realm-%d", i))
	}
	assert.Equal(t, DefaultCapacity, c.Capacity())
	assert.Equal(t, 5, c.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New(3)
	c.Append("Calm")

	snap := c.Snapshot()
	snap[0] = "mutated"

	assert.Equal(t, []string{"Calm"}, c.Snapshot())
}

func TestOpenTruncatesOversizedStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "s1", []string{"a", "b", "c", "d", "e", "f", "g"}))

	c, err := Open(context.Background(), store, "s1", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "d", "e", "f", "g"}, c.Snapshot())
}

func TestPersistRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	c, err := Open(context.Background(), store, "s1", 5)
	require.NoError(t, err)

	c.Append("Anxiety")
	c.Append("Calm")
	require.NoError(t, c.Persist(context.Background()))

	reopened, err := Open(context.Background(), store, "s1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anxiety", "Calm"}, reopened.Snapshot())
}

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) ([]string, error) {
	return nil, errors.New("down")
}

func (brokenStore) Save(context.Context, string, []string) error {
	return errors.New("down")
}

func TestOpenReturnsUsableContextOnLoadError(t *testing.T) {
	c, err := Open(context.Background(), brokenStore{}, "s1", 5)

	require.Error(t, err)
	require.NotNil(t, c)
	c.Append("Calm")
	assert.Equal(t, 1, c.Len())
	assert.Error(t, c.Persist(context.Background()))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, 5)
	ctx := context.Background()

	labels, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, labels)

	require.NoError(t, store.Save(ctx, "s1", []string{"a", "b"}))
	require.NoError(t, store.Save(ctx, "s1", []string{"b", "c", "d", "e", "f", "g"}))

	labels, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "e", "f", "g"}, labels)

	stored, err := mr.List(KeyPrefix + "s1")
	require.NoError(t, err)
	assert.Len(t, stored, 5)

	require.NoError(t, store.Save(ctx, "s1", nil))
	assert.False(t, mr.Exists(KeyPrefix+"s1"))

	wide := NewRedisStore(rdb, 9)
	require.NoError(t, wide.Save(ctx, "s2", []string{"a", "b", "c", "d", "e", "f", "g"}))
	stored, err = mr.List(KeyPrefix + "s2")
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}
