package mines

import (
	"fmt"
	"strings"
)

type Difficulty int

const (
	Beginner Difficulty = iota
	Intermediate
	Expert
	Custom
)

var difficultyNames = map[Difficulty]string{
	Beginner:     "beginner",
	Intermediate: "intermediate",
	Expert:       "expert",
	Custom:       "custom",
}

func (d Difficulty) String() string {
	if name, ok := difficultyNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Difficulty(%d)", int(d))
}

func (d Difficulty) Valid() bool {
	_, ok := difficultyNames[d]
	return ok
}

func ParseDifficulty(s string) (Difficulty, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, name := range difficultyNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidConfiguration, s)
}

// [Difficulty] implements [encoding.TextMarshaler]
func (d Difficulty) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %d", ErrInvalidConfiguration, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(text []byte) error {
	v, err := ParseDifficulty(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

type GameParams struct {
	Difficulty     Difficulty `json:"difficulty"`
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	MineCount      int        `json:"mine_count"`
	FirstClickSafe bool       `json:"first_click_safe"`
}

var presets = map[Difficulty]GameParams{
	Beginner:     {Difficulty: Beginner, Width: 8, Height: 8, MineCount: 10},
	Intermediate: {Difficulty: Intermediate, Width: 16, Height: 16, MineCount: 40},
	Expert:       {Difficulty: Expert, Width: 30, Height: 16, MineCount: 99},
}

// Preset returns the fixed dimensions of a preset difficulty. FirstClickSafe
// is left unset.
func Preset(d Difficulty) (GameParams, bool) {
	p, ok := presets[d]
	return p, ok
}

func DefaultParams() GameParams {
	p := presets[Intermediate]
	p.FirstClickSafe = true
	return p
}

// MaxSide bounds the width and height of a custom board.
const MaxSide = 1000

// Normalize validates p and, for preset difficulties, replaces the dimensions
// with the preset ones.
func (p GameParams) Normalize() (GameParams, error) {
	if preset, ok := presets[p.Difficulty]; ok {
		preset.FirstClickSafe = p.FirstClickSafe
		return preset, nil
	}
	if p.Difficulty != Custom {
		return p, &ConfigError{p, fmt.Sprintf("unknown difficulty %d", int(p.Difficulty))}
	}
	if p.Width <= 0 || p.Height <= 0 {
		return p, &ConfigError{p, fmt.Sprintf("bad board size %dx%d", p.Width, p.Height)}
	}
	if p.Width > MaxSide || p.Height > MaxSide {
		return p, &ConfigError{p, fmt.Sprintf(
			"board size %dx%d exceeds %dx%d", p.Width, p.Height, MaxSide, MaxSide,
		)}
	}
	if !(0 < p.MineCount && p.MineCount < p.Width*p.Height) {
		return p, &ConfigError{p, fmt.Sprintf(
			"mine count %d must be between 0 and %d exclusive",
			p.MineCount, p.Width*p.Height,
		)}
	}
	return p, nil
}

func (p GameParams) Unpack() (int, int, int, bool) {
	return p.Width, p.Height, p.MineCount, p.FirstClickSafe
}

func (p GameParams) InBounds(x, y int) bool {
	return 0 <= x && x < p.Width && 0 <= y && y < p.Height
}

func (p GameParams) String() string {
	return fmt.Sprintf("%s %dx%d(%d)", p.Difficulty, p.Width, p.Height, p.MineCount)
}
