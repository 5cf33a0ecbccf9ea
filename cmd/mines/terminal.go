package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minesweeper-engine/internal/commands"
	"github.com/vancomm/minesweeper-engine/internal/mines"
	"github.com/vancomm/minesweeper-engine/internal/records"
)

// terminal draws a board as text and feeds it commands read from stdin.
type terminal struct {
	board   *mines.Board
	records *records.Store
	clock   clockwork.Clock
	debug   bool
	log     logrus.FieldLogger

	mu         sync.Mutex /* guards out */
	out        io.Writer
	shownMines bool
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// tick is the board's timer listener.
func (t *terminal) tick() {
	t.printf("time %d  mines %d\n", t.board.Time(), t.board.MinesLeft())
}

func (t *terminal) printBoard() {
	s := t.board.Snapshot()
	t.printf("%s  %dx%d  mines %d  time %d\n%s",
		s.Params.Difficulty, s.Params.Width, s.Params.Height,
		s.MinesLeft, s.Time, s.Grid.ToString(s.Params.Width),
	)
}

func (t *terminal) printMines() {
	s := t.board.Snapshot()
	if s.Mines == nil {
		t.printf("mines are laid on the first reveal\n")
		return
	}
	t.printf("%s", s.MinesString())
}

// loop executes lines until ctx is done. It returns errQuit on the quit
// command or at the end of input.
func (t *terminal) loop(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			err := t.execute(line)
			if errors.Is(err, errQuit) {
				return err
			}
			if err != nil {
				t.printf("error: %s\n", err)
			}
		}
	}
}

func (t *terminal) execute(line string) error {
	cmd, err := commands.Parse(line, commandNargs)
	if err != nil {
		return err
	}

	switch cmd.Name {
	case "quit":
		return errQuit
	case "help":
		t.printf("%s", help)
		return nil
	case "debug":
		t.printMines()
		return nil
	case "n":
		t.board.Reset()
		t.shownMines = false
	case "d":
		params, err := commands.ParseParams(t.board.Params(), cmd.Args)
		if err != nil {
			return err
		}
		if err := t.board.SetConfig(params); err != nil {
			return err
		}
		t.shownMines = false
	case "o", "f", "q":
		x, y, err := commands.Position(t.board.Params(), cmd.Args)
		if err != nil {
			return err
		}
		switch cmd.Name {
		case "o":
			t.reveal(x, y)
		case "f":
			t.board.Flag(x, y)
		case "q":
			t.board.Question(x, y)
		}
	}
	t.printBoard()
	return nil
}

func (t *terminal) reveal(x, y int) {
	res := t.board.Reveal(x, y)
	if t.debug && !t.shownMines {
		t.shownMines = true
		t.printMines()
	}
	if !res.Done || len(res.Opened) == 0 {
		return
	}
	if !t.board.IsWon() {
		t.printf("boom! you hit a mine at %d %d\n", x, y)
		return
	}
	seconds := t.board.Time()
	t.printf("you won in %d seconds\n", seconds)
	if t.records == nil {
		return
	}
	ok, err := t.records.Submit(t.board.Params(), seconds, t.clock.Now())
	if err != nil {
		t.log.WithError(err).Error("unable to submit record")
		return
	}
	if ok {
		t.printf("new record for %s!\n", records.Key(t.board.Params()))
	}
}
