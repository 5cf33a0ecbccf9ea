package handlers

import (
	"github.com/samber/lo"

	"github.com/vancomm/minesweeper-engine/internal/mines"
)

type ConnectDTO struct {
	Difficulty     string `schema:"difficulty"`
	Width          int    `schema:"width"`
	Height         int    `schema:"height"`
	MineCount      int    `schema:"mine_count"`
	FirstClickSafe *bool  `schema:"first_click_safe"`
	Token          string `schema:"token"`
}

// Params fills whatever the query left out from defaults.
func (dto ConnectDTO) Params(defaults mines.GameParams) (mines.GameParams, error) {
	params := defaults
	if dto.Difficulty != "" {
		d, err := mines.ParseDifficulty(dto.Difficulty)
		if err != nil {
			return params, err
		}
		params.Difficulty = d
		params.Width, params.Height, params.MineCount = dto.Width, dto.Height, dto.MineCount
	}
	if dto.FirstClickSafe != nil {
		params.FirstClickSafe = *dto.FirstClickSafe
	}
	return params.Normalize()
}

const (
	msgSession = "session"
	msgState   = "state"
	msgResult  = "result"
	msgCell    = "cell"
	msgTime    = "time"
	msgError   = "error"
)

type StateMessage struct {
	Type           string           `json:"type"`
	Token          string           `json:"token,omitempty"`
	Difficulty     mines.Difficulty `json:"difficulty"`
	Width          int              `json:"width"`
	Height         int              `json:"height"`
	MineCount      int              `json:"mine_count"`
	FirstClickSafe bool             `json:"first_click_safe"`
	MinesLeft      int              `json:"mines_left"`
	Time           int              `json:"time"`
	Done           bool             `json:"done"`
	Won            bool             `json:"won"`
	Grid           mines.Grid       `json:"grid"`
}

func NewStateMessage(typ string, s mines.Snapshot) StateMessage {
	return StateMessage{
		Type:           typ,
		Difficulty:     s.Params.Difficulty,
		Width:          s.Params.Width,
		Height:         s.Params.Height,
		MineCount:      s.Params.MineCount,
		FirstClickSafe: s.Params.FirstClickSafe,
		MinesLeft:      s.MinesLeft,
		Time:           s.Time,
		Done:           s.Done,
		Won:            s.Won,
		Grid:           s.Grid,
	}
}

type CellDTO struct {
	X      int              `json:"x"`
	Y      int              `json:"y"`
	Status mines.CellStatus `json:"status"`
	Label  string           `json:"label"`
}

type ResultMessage struct {
	Type      string    `json:"type"`
	Done      bool      `json:"done"`
	Won       bool      `json:"won"`
	Opened    []CellDTO `json:"opened"`
	MinesLeft int       `json:"mines_left"`
	Time      int       `json:"time"`
	Record    bool      `json:"record,omitempty"`
}

func NewResultMessage(res mines.Result, won bool, minesLeft, time int) ResultMessage {
	return ResultMessage{
		Type: msgResult,
		Done: res.Done,
		Won:  won,
		Opened: lo.Map(res.Opened, func(c mines.OpenedCell, _ int) CellDTO {
			return CellDTO{c.X, c.Y, c.Status, c.Status.String()}
		}),
		MinesLeft: minesLeft,
		Time:      time,
	}
}

// CellMessage reports a flag or question mark change.
type CellMessage struct {
	Type      string           `json:"type"`
	X         int              `json:"x"`
	Y         int              `json:"y"`
	Status    mines.CellStatus `json:"status"`
	Label     string           `json:"label"`
	Changed   bool             `json:"changed"`
	MinesLeft int              `json:"mines_left"`
}

type TimeMessage struct {
	Type string `json:"type"`
	Time int    `json:"time"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
