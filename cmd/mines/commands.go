package main

import "errors"

var errQuit = errors.New("quit")

// Maps known commands to accepted numbers of arguments
var commandNargs = map[string][]int{
	"o":     {2},
	"f":     {2},
	"q":     {2},
	"n":     {0},
	"d":     {1, 4},
	"debug": {0},
	"help":  {0},
	"quit":  {0},
}

const help = `commands:
  o x y        open a cell (or chord an opened number)
  f x y        toggle a flag
  q x y        toggle a question mark
  n            new game
  d name       change difficulty: beginner, intermediate, expert
  d custom w h n
  debug        show the mines
  quit
`
