package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/minesweeper-engine/internal/mines"
	"github.com/vancomm/minesweeper-engine/internal/records"
)

func TestMain(m *testing.M) {
	mines.Log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	os.Exit(m.Run())
}

func setupTerminal(t *testing.T, params mines.GameParams) (*terminal, *bytes.Buffer) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	board, err := mines.New(params,
		mines.WithClock(clock),
		mines.WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	require.NoError(t, err)

	var out bytes.Buffer
	return &terminal{
		board: board,
		clock: clock,
		log:   mines.Log,
		out:   &out,
	}, &out
}

func TestFlagParams(t *testing.T) {
	defer func() { beginner, custom, safe = false, "", true }()

	params, err := flagParams()
	require.NoError(t, err)
	assert.Equal(t, mines.Expert, params.Difficulty)
	assert.True(t, params.FirstClickSafe)

	beginner, safe = true, false
	params, err = flagParams()
	require.NoError(t, err)
	assert.Equal(t, 8, params.Width)
	assert.False(t, params.FirstClickSafe)

	custom = "4 4 16"
	_, err = flagParams()
	assert.ErrorIs(t, err, mines.ErrInvalidConfiguration)
}

func TestExecuteErrors(t *testing.T) {
	term, _ := setupTerminal(t, mines.GameParams{Difficulty: mines.Beginner})

	tests := []struct {
		line string
		want string
	}{
		{"", "empty command"},
		{"x", "unknown command"},
		{"o 1", "invalid number of arguments"},
		{"o a 1", "first argument must be an int"},
		{"f 1 b", "second argument must be an int"},
		{"q 8 8", "invalid square coordinates"},
		{"d nope", "unknown difficulty"},
		{"d custom 3 3", "invalid number of arguments"},
		{"d custom 3 3 9", "invalid configuration"},
	}
	for _, test := range tests {
		err := term.execute(test.line)
		require.Error(t, err, test.line)
		assert.Contains(t, err.Error(), test.want, test.line)
	}
	assert.ErrorIs(t, term.execute("quit"), errQuit)
	assert.Equal(t, 8, term.board.Width())
}

func TestExecuteMoves(t *testing.T) {
	term, out := setupTerminal(t, mines.GameParams{Difficulty: mines.Beginner, FirstClickSafe: true})

	require.NoError(t, term.execute("f 0 0"))
	assert.Equal(t, mines.Flagged, term.board.Cell(0, 0))
	assert.Contains(t, out.String(), "mines 9")

	require.NoError(t, term.execute("q 0 0"))
	assert.Equal(t, mines.Questioned, term.board.Cell(0, 0))

	require.NoError(t, term.execute("d custom 5 4 3"))
	assert.Equal(t, mines.Custom, term.board.Difficulty())
	assert.True(t, term.board.FirstClickSafe())

	require.NoError(t, term.execute("n"))
	assert.Equal(t, mines.Hidden, term.board.Cell(0, 0))
}

func TestWinSubmitsRecord(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sqlite-records-")
	require.NoError(t, err)
	f.Close()
	recs, err := records.Open(f.Name())
	require.NoError(t, err)
	defer recs.Close()

	params := mines.GameParams{Difficulty: mines.Custom, Width: 2, Height: 1, MineCount: 1, FirstClickSafe: true}
	term, out := setupTerminal(t, params)
	term.records = recs
	term.debug = true

	require.NoError(t, term.execute("o 0 0"))
	assert.True(t, term.board.IsWon())
	assert.Contains(t, out.String(), "- * \n")
	assert.Contains(t, out.String(), "you won in 0 seconds")
	assert.Contains(t, out.String(), "new record for custom-2x1-1")

	best, err := recs.Best("custom-2x1-1")
	require.NoError(t, err)
	assert.Equal(t, 0, best.Seconds)
}

func TestLossMessage(t *testing.T) {
	params := mines.GameParams{Difficulty: mines.Custom, Width: 2, Height: 1, MineCount: 1}
	for seed := range uint64(64) {
		board, err := mines.New(params, mines.WithRand(rand.New(rand.NewPCG(seed, 0))))
		require.NoError(t, err)
		var out bytes.Buffer
		term := &terminal{board: board, clock: clockwork.NewFakeClock(), log: mines.Log, out: &out}

		require.NoError(t, term.execute("o 0 0"))
		if term.board.IsWon() {
			continue
		}
		assert.Contains(t, out.String(), "boom! you hit a mine at 0 0")
		assert.Equal(t, mines.MineHit, term.board.Cell(0, 0))
		return
	}
	t.Fatal("no seed put the mine under the first click")
}

func TestLoop(t *testing.T) {
	term, out := setupTerminal(t, mines.GameParams{Difficulty: mines.Beginner})

	lines := make(chan string, 3)
	lines <- "f 1 1"
	lines <- "nope"
	lines <- "quit"
	assert.ErrorIs(t, term.loop(context.Background(), lines), errQuit)
	assert.Contains(t, out.String(), "error: unknown command")

	close(lines)
	assert.ErrorIs(t, term.loop(context.Background(), lines), errQuit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, term.loop(ctx, make(chan string)))
}
