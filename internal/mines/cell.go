package mines

import (
	"fmt"
	"strconv"
	"strings"
)

type CellStatus int8

const (
	Questioned CellStatus = -3
	Hidden     CellStatus = -2
	Flagged    CellStatus = -1
	// 0-8 for an opened cell with given number of mined neighbors
	MineRevealed CellStatus = 64 // post-game-over
	MineHit      CellStatus = 65
	WrongFlag    CellStatus = 66
)

func (s CellStatus) IsRevealed() bool {
	return 0 <= s && s <= 8
}

func (s CellStatus) String() string {
	switch s {
	case Questioned:
		return "?"
	case Hidden:
		return "."
	case Flagged:
		return "F"
	case MineRevealed:
		return "*"
	case MineHit:
		return "X"
	case WrongFlag:
		return "#"
	case 0:
		return " "
	case 1, 2, 3, 4, 5, 6, 7, 8:
		return strconv.Itoa(int(s))
	default:
		return "!"
	}
}

type Grid []CellStatus

func (g Grid) ToString(width int) string {
	var b strings.Builder
	for y := range len(g) / width {
		for x := range width {
			i := y*width + x
			if i >= len(g) {
				break
			}
			fmt.Fprint(&b, g[i].String()+" ")
		}
		fmt.Fprint(&b, "\n")
	}
	return b.String()
}

// OpenedCell is a cell whose visible status changed as part of a reveal.
type OpenedCell struct {
	X      int        `json:"x"`
	Y      int        `json:"y"`
	Status CellStatus `json:"status"`
}

// Result describes what a reveal did. Done reports whether the game is over,
// either because of this reveal or because it already was.
type Result struct {
	Done   bool
	Opened []OpenedCell
}
