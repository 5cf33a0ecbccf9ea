package mines

import (
	"hash/maphash"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Board is a single minesweeper session. Mines are laid on the first reveal,
// so the first cell opened can be kept safe.
//
// Board is safe for concurrent use. Timer listeners are called from a
// background goroutine and must not call Reset, SetConfig or Reveal.
type Board struct {
	mu sync.Mutex

	params    GameParams
	mines     []bool /* nil until the first reveal */
	grid      Grid   /* player knowledge */
	done      bool
	minesLeft int

	start     time.Time
	finalTime int
	stopped   bool

	listeners []listener
	nextID    ListenerID
	ticker    *ticker
	retired   []*ticker

	rnd   *rand.Rand
	clock clockwork.Clock
	log   logrus.FieldLogger
}

type Option func(*Board)

func WithRand(r *rand.Rand) Option {
	return func(b *Board) { b.rnd = r }
}

func WithClock(c clockwork.Clock) Option {
	return func(b *Board) { b.clock = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Board) { b.log = l }
}

func New(params GameParams, opts ...Option) (*Board, error) {
	params, err := params.Normalize()
	if err != nil {
		return nil, err
	}
	b := &Board{params: params}
	for _, opt := range opts {
		opt(b)
	}
	if b.rnd == nil {
		b.rnd = rand.New(rand.NewPCG(
			new(maphash.Hash).Sum64(), new(maphash.Hash).Sum64(),
		))
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	if b.log == nil {
		b.log = Log
	}
	b.reset()
	return b, nil
}

// unlock releases the board and then waits for tickers stopped while it was
// held, so their goroutines can still take the lock on their way out.
func (b *Board) unlock() {
	retired := b.retired
	b.retired = nil
	b.mu.Unlock()
	for _, t := range retired {
		<-t.done
	}
}

// SetConfig validates params and starts a new game with them. On error the
// board is left untouched.
func (b *Board) SetConfig(params GameParams) error {
	params, err := params.Normalize()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.unlock()
	b.params = params
	b.reset()
	b.log.WithField("params", params.String()).Debug("board reconfigured")
	return nil
}

func (b *Board) Reset() {
	b.mu.Lock()
	defer b.unlock()
	b.reset()
}

func (b *Board) reset() {
	b.mines = nil
	b.grid = make(Grid, b.params.Width*b.params.Height)
	for i := range b.grid {
		b.grid[i] = Hidden
	}
	b.done = false
	b.minesLeft = b.params.MineCount
	b.start = time.Time{}
	b.finalTime = 0
	b.stopped = false
	b.retire(b.stopScheduler())
}

func (b *Board) mustInBounds(x, y int) {
	if !b.params.InBounds(x, y) {
		panic(OutOfBoundsError{x, y, b.params.Width, b.params.Height})
	}
}

// Reveal opens the cell at x, y. Opening a number whose flagged neighbors
// match it opens all its other hidden neighbors (a chord).
//
// Panics with [OutOfBoundsError] if x, y is outside the board.
func (b *Board) Reveal(x, y int) Result {
	b.mu.Lock()
	defer b.unlock()

	b.mustInBounds(x, y)
	i := y*b.params.Width + x

	if b.mines == nil {
		safe := -1
		if b.params.FirstClickSafe {
			safe = i
		}
		b.mines = b.params.layMines(safe, b.rnd)
		b.log.WithFields(logrus.Fields{
			"x": x, "y": y, "safe": b.params.FirstClickSafe,
		}).Debug("mines laid")
	}
	if b.start.IsZero() {
		b.startTimer()
	}

	if b.done {
		return Result{Done: true}
	}

	switch s := b.grid[i]; {
	case s == Hidden || s == Questioned:
		if b.mines[i] {
			return Result{Done: true, Opened: b.explode(i)}
		}
		opened := b.open(i)
		return Result{Done: b.done, Opened: opened}
	case s.IsRevealed():
		return b.chord(i)
	default:
		return Result{}
	}
}

// open reveals the safe cell i and floods through neighbors of zero cells.
// A cell is only pushed while Hidden and leaves that state when pushed, so
// none is visited twice.
func (b *Board) open(i int) []OpenedCell {
	w := b.params.Width
	b.grid[i] = b.countMines(i)
	opened := []OpenedCell{{i % w, i / w, b.grid[i]}}

	todo := []int{i}
	for len(todo) > 0 {
		j := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if b.grid[j] != 0 {
			continue
		}
		for _, k := range b.neighbors(j) {
			if b.grid[k] != Hidden {
				continue
			}
			b.grid[k] = b.countMines(k)
			opened = append(opened, OpenedCell{k % w, k / w, b.grid[k]})
			todo = append(todo, k)
		}
	}

	if b.won() {
		opened = append(opened, b.win()...)
	}
	return opened
}

func (b *Board) chord(i int) Result {
	if int(b.grid[i]) != b.countFlags(i) {
		return Result{}
	}
	var opened []OpenedCell
	for _, j := range b.neighbors(i) {
		if b.done {
			break
		}
		if b.grid[j] != Hidden {
			continue
		}
		if b.mines[j] {
			opened = append(opened, b.explode(j)...)
			break
		}
		opened = append(opened, b.open(j)...)
	}
	return Result{Done: b.done, Opened: opened}
}

// explode ends the game on the mine at i: unmarked mines are shown and wrong
// flags crossed out. Correct flags stay.
func (b *Board) explode(i int) []OpenedCell {
	b.stopTimer()
	w := b.params.Width
	opened := []OpenedCell{{i % w, i / w, MineHit}}
	for j, mine := range b.mines {
		if j == i {
			continue
		}
		s := b.grid[j]
		if mine && (s == Hidden || s == Questioned) {
			opened = append(opened, OpenedCell{j % w, j / w, MineRevealed})
		} else if !mine && s == Flagged {
			opened = append(opened, OpenedCell{j % w, j / w, WrongFlag})
		}
	}
	for _, c := range opened {
		b.grid[c.Y*w+c.X] = c.Status
	}
	b.done = true
	b.log.WithFields(logrus.Fields{
		"x": i % w, "y": i / w, "time": b.finalTime,
	}).Debug("mine hit")
	return opened
}

// win flags every mine left unflagged.
func (b *Board) win() []OpenedCell {
	b.done = true
	b.stopTimer()
	w := b.params.Width
	var flagged []OpenedCell
	for j, mine := range b.mines {
		if mine && b.grid[j] != Flagged {
			b.grid[j] = Flagged
			b.minesLeft--
			flagged = append(flagged, OpenedCell{j % w, j / w, Flagged})
		}
	}
	b.log.WithField("time", b.finalTime).Debug("game won")
	return flagged
}

// won reports whether exactly the mines are left unopened.
func (b *Board) won() bool {
	covered := 0
	for _, s := range b.grid {
		if !s.IsRevealed() {
			covered++
		}
	}
	return covered == b.params.MineCount
}

func (b *Board) neighbors(i int) []int {
	w, h := b.params.Width, b.params.Height
	x, y := i%w, i/w
	ns := make([]int, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			xx, yy := x+dx, y+dy
			if 0 <= xx && xx < w && 0 <= yy && yy < h {
				ns = append(ns, yy*w+xx)
			}
		}
	}
	return ns
}

func (b *Board) countMines(i int) CellStatus {
	n := 0
	for _, j := range b.neighbors(i) {
		if b.mines[j] {
			n++
		}
	}
	return CellStatus(n)
}

func (b *Board) countFlags(i int) int {
	n := 0
	for _, j := range b.neighbors(i) {
		if b.grid[j] == Flagged {
			n++
		}
	}
	return n
}

// Flag toggles a flag on the cell. It returns false and changes nothing if
// the game is over or the cell is not covered.
func (b *Board) Flag(x, y int) bool {
	b.mu.Lock()
	defer b.unlock()

	b.mustInBounds(x, y)
	if b.done {
		return false
	}
	i := y*b.params.Width + x
	switch b.grid[i] {
	case Hidden, Questioned:
		b.grid[i] = Flagged
		b.minesLeft--
	case Flagged:
		b.grid[i] = Hidden
		b.minesLeft++
	default:
		return false
	}
	return true
}

// Question cycles the cell through a question mark: a hidden or flagged cell
// gets one, a questioned cell goes back to hidden.
func (b *Board) Question(x, y int) bool {
	b.mu.Lock()
	defer b.unlock()

	b.mustInBounds(x, y)
	if b.done {
		return false
	}
	i := y*b.params.Width + x
	switch b.grid[i] {
	case Hidden:
		b.grid[i] = Questioned
	case Flagged:
		b.grid[i] = Questioned
		b.minesLeft++
	case Questioned:
		b.grid[i] = Hidden
	default:
		return false
	}
	return true
}

// IsWon reports whether every safe cell has been opened.
func (b *Board) IsWon() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.won()
}

func (b *Board) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// MinesLeft is the mine count minus placed flags. It goes negative when the
// player places more flags than there are mines.
func (b *Board) MinesLeft() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.minesLeft
}

func (b *Board) Params() GameParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

func (b *Board) MineCount() int { return b.Params().MineCount }
func (b *Board) Width() int { return b.Params().Width }
func (b *Board) Height() int { return b.Params().Height }
func (b *Board) Difficulty() Difficulty { return b.Params().Difficulty }
func (b *Board) FirstClickSafe() bool { return b.Params().FirstClickSafe }

func (b *Board) InBounds(x, y int) bool {
	return b.Params().InBounds(x, y)
}

func (b *Board) Cell(x, y int) CellStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustInBounds(x, y)
	return b.grid[y*b.params.Width+x]
}
