package records

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/minesweeper-engine/internal/mines"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "sqlite-records-")
	require.NoError(t, err)
	f.Close()

	s, err := Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKey(t *testing.T) {
	tests := []struct {
		params mines.GameParams
		want   string
	}{
		{mines.GameParams{Difficulty: mines.Beginner}, "beginner"},
		{mines.GameParams{Difficulty: mines.Intermediate}, "intermediate"},
		{mines.GameParams{Difficulty: mines.Expert}, "expert"},
		{mines.GameParams{Difficulty: mines.Custom, Width: 9, Height: 7, MineCount: 12}, "custom-9x7-12"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, Key(test.params))
	}
}

func TestBestEmpty(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Best("beginner")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmit(t *testing.T) {
	s := setupTestStore(t)
	beginner := mines.GameParams{Difficulty: mines.Beginner}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	improved, err := s.Submit(beginner, 42, at)
	require.NoError(t, err)
	assert.True(t, improved)

	improved, err = s.Submit(beginner, 50, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, improved)

	improved, err = s.Submit(beginner, 42, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, improved)

	improved, err = s.Submit(beginner, 30, at.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, improved)

	best, err := s.Best("beginner")
	require.NoError(t, err)
	assert.Equal(t, 30, best.Seconds)
	assert.True(t, at.Add(2*time.Hour).Equal(best.At))
}

func TestAll(t *testing.T) {
	s := setupTestStore(t)
	at := time.Now()

	_, err := s.Submit(mines.GameParams{Difficulty: mines.Expert}, 300, at)
	require.NoError(t, err)
	_, err = s.Submit(mines.GameParams{Difficulty: mines.Beginner}, 10, at)
	require.NoError(t, err)
	_, err = s.Submit(mines.GameParams{Difficulty: mines.Custom, Width: 5, Height: 5, MineCount: 3}, 7, at)
	require.NoError(t, err)

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 10, all[0].Seconds)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"beginner", "custom-5x5-3", "expert"}, keys)
}
