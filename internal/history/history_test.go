package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/history.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("   ")
	assert.Error(t, err)
}

func TestRecordAndListMatches(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordResult("match-a", "won", 3))
	require.NoError(t, store.RecordResult("match-b", "lost", 5))

	matches, err := store.RecentMatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byID := map[string]Match{}
	for _, m := range matches {
		byID[m.MatchID] = m
	}
	assert.Equal(t, "won", byID["match-a"].Outcome)
	assert.Equal(t, 3, byID["match-a"].Rounds)
	assert.Equal(t, "lost", byID["match-b"].Outcome)
	assert.False(t, byID["match-a"].EndedAt.IsZero())
}

func TestRecordResult_Overwrites(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.RecordResult("match-a", "won", 2))
	require.NoError(t, store.RecordResult("match-a", "draw", 5))

	matches, err := store.RecentMatches(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "draw", matches[0].Outcome)
	assert.Equal(t, 5, matches[0].Rounds)
}

func TestRoundsOrderedAndScoped(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRound("match-a", 2, 8, 6))
	require.NoError(t, store.RecordRound("match-a", 1, 10, 9))
	require.NoError(t, store.RecordRound("match-b", 1, 4, 4))

	rounds, err := store.Rounds(ctx, "match-a")
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 1, rounds[0].Round)
	assert.Equal(t, 2, rounds[1].Round)
	assert.Equal(t, 10, rounds[0].LocalLives)
	assert.Equal(t, 6, rounds[1].RemoteLives)

	rounds, err = store.Rounds(ctx, "match-missing")
	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestRecentMatches_Limit(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, store.RecordResult(id, "won", 1))
	}
	matches, err := store.RecentMatches(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
