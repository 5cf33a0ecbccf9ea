package mines

import (
	"fmt"
	"strings"
)

// Snapshot is a copy of the whole board state, ground truth included.
type Snapshot struct {
	Params    GameParams `json:"params"`
	Grid      Grid       `json:"grid"`
	Mines     []bool     `json:"mines,omitempty"`
	Done      bool       `json:"done"`
	Won       bool       `json:"won"`
	MinesLeft int        `json:"mines_left"`
	Time      int        `json:"time"`
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	var mines []bool
	if b.mines != nil {
		mines = append(mines, b.mines...)
	}
	return Snapshot{
		Params:    b.params,
		Grid:      append(Grid(nil), b.grid...),
		Mines:     mines,
		Done:      b.done,
		Won:       b.won(),
		MinesLeft: b.minesLeft,
		Time:      b.time(),
	}
}

// MinesString renders the mine layout with "*" for mines, or an empty string
// when no mines have been laid yet.
func (s Snapshot) MinesString() string {
	if s.Mines == nil {
		return ""
	}
	var b strings.Builder
	for y := range s.Params.Height {
		for x := range s.Params.Width {
			ch := "- "
			if s.Mines[y*s.Params.Width+x] {
				ch = "* "
			}
			fmt.Fprint(&b, ch)
		}
		fmt.Fprint(&b, "\n")
	}
	return b.String()
}
