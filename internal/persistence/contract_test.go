package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepgraph/pkg/api"
)

// runStoreContract exercises the behaviour every ThreadStore shares.
// Thread ids are prefixed so backends with shared state stay isolated.
func runStoreContract(t *testing.T, store ThreadStore, idPrefix string) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown thread loads as nil", func(t *testing.T) {
		got, err := store.Load(ctx, idPrefix+"missing")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("save then load", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		err := store.Save(ctx, &api.ThreadState{
			ThreadID:  idPrefix + "t1",
			Values:    map[string]any{"step1": "hello", "typed": codecSample{Msg: "m", N: 2}},
			UpdatedAt: at,
		})
		require.NoError(t, err)

		got, err := store.Load(ctx, idPrefix+"t1")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, idPrefix+"t1", got.ThreadID)
		require.Equal(t, "hello", got.Values["step1"])
		require.Equal(t, codecSample{Msg: "m", N: 2}, got.Values["typed"])
		require.True(t, got.UpdatedAt.Equal(at), "updated_at %v != %v", got.UpdatedAt, at)
	})

	t.Run("save overwrites", func(t *testing.T) {
		id := idPrefix + "t2"
		require.NoError(t, store.Save(ctx, &api.ThreadState{ThreadID: id, Values: map[string]any{"a": 1}}))
		require.NoError(t, store.Save(ctx, &api.ThreadState{ThreadID: id, Values: map[string]any{"b": 2}}))

		got, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotContains(t, got.Values, "a")
		require.Equal(t, 2, got.Values["b"])
		require.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("empty values round trip", func(t *testing.T) {
		id := idPrefix + "empty"
		require.NoError(t, store.Save(ctx, &api.ThreadState{ThreadID: id}))

		got, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotNil(t, got.Values)
		require.Empty(t, got.Values)
	})

	t.Run("delete", func(t *testing.T) {
		id := idPrefix + "gone"
		require.NoError(t, store.Save(ctx, &api.ThreadState{ThreadID: id, Values: map[string]any{"x": "y"}}))
		require.NoError(t, store.Delete(ctx, id))

		got, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.Nil(t, got)

		require.NoError(t, store.Delete(ctx, id), "deleting twice is allowed")
	})

	t.Run("invalid state rejected", func(t *testing.T) {
		require.True(t, errors.Is(store.Save(ctx, nil), ErrInvalidState))
		require.True(t, errors.Is(store.Save(ctx, &api.ThreadState{}), ErrInvalidState))
	})
}
