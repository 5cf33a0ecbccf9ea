// Package commands parses the text commands shared by the terminal and
// websocket views: "o x y", "f x y", "d custom w h n" and the like.
package commands

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vancomm/minesweeper-engine/internal/mines"
)

var (
	ErrEmpty          = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNargs          = errors.New("invalid number of arguments")
	ErrOutOfBounds    = errors.New("invalid square coordinates")
)

type Command struct {
	Name string
	Args []string
}

// Parse splits line into a command and its arguments. nargs maps known
// commands to their accepted numbers of arguments.
func Parse(line string, nargs map[string][]int) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, ErrEmpty
	}
	n, ok := nargs[parts[0]]
	if !ok {
		return Command{}, ErrUnknownCommand
	}
	if !slices.Contains(n, len(parts)-1) {
		return Command{}, ErrNargs
	}
	return Command{parts[0], parts[1:]}, nil
}

func ParseXY(twoStrings []string) (x int, y int, err error) {
	if len(twoStrings) != 2 {
		err = ErrNargs
		return
	}
	if x, err = strconv.Atoi(twoStrings[0]); err != nil {
		err = errors.New("first argument must be an int")
		return
	}
	if y, err = strconv.Atoi(twoStrings[1]); err != nil {
		err = errors.New("second argument must be an int")
		return
	}
	return
}

// Position reads x, y and checks them against the board size, so the board
// itself never sees an out of range cell.
func Position(p mines.GameParams, args []string) (int, int, error) {
	x, y, err := ParseXY(args)
	if err != nil {
		return 0, 0, err
	}
	if !p.InBounds(x, y) {
		return 0, 0, ErrOutOfBounds
	}
	return x, y, nil
}

// ParseCustom reads a custom board given as "W H N". The result is not
// normalized.
func ParseCustom(s string) (mines.GameParams, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return mines.GameParams{}, fmt.Errorf("custom board must be \"W H N\", got %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return mines.GameParams{}, fmt.Errorf("custom board: %q is not an int", p)
		}
		nums[i] = n
	}
	return mines.GameParams{
		Difficulty: mines.Custom,
		Width:      nums[0],
		Height:     nums[1],
		MineCount:  nums[2],
	}, nil
}

// ParseParams reads the arguments of a difficulty change: a difficulty name,
// followed by width, height and mine count for a custom board.
// FirstClickSafe is carried over from current.
func ParseParams(current mines.GameParams, args []string) (mines.GameParams, error) {
	if len(args) == 0 {
		return current, ErrNargs
	}
	d, err := mines.ParseDifficulty(args[0])
	if err != nil {
		return current, err
	}
	params := mines.GameParams{Difficulty: d}
	if d == mines.Custom {
		if len(args) != 4 {
			return current, fmt.Errorf("%w: custom difficulty needs width, height and mine count", ErrNargs)
		}
		if params, err = ParseCustom(strings.Join(args[1:], " ")); err != nil {
			return current, err
		}
	}
	params.FirstClickSafe = current.FirstClickSafe
	if params, err = params.Normalize(); err != nil {
		return current, err
	}
	return params, nil
}
