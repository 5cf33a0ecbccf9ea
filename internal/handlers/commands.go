package handlers

// commandNargs lists the accepted argument counts of every command.
var commandNargs = map[string][]int{
	"g": {0},    // get state
	"o": {2},    // open
	"f": {2},    // flag
	"q": {2},    // question
	"n": {0},    // new game
	"d": {1, 4}, // difficulty [width height mines]
}
