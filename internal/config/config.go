package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vancomm/minesweeper-engine/internal/mines"
)

type Duration struct{ time.Duration }

// [Duration] implements [json.Marshaler]
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil

	default:
		return errors.New("invalid duration")
	}
}

type GameConfig struct {
	Difficulty     string `json:"difficulty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	MineCount      int    `json:"mine_count"`
	FirstClickSafe bool   `json:"first_click_safe"`
}

func (g GameConfig) Params() (mines.GameParams, error) {
	d, err := mines.ParseDifficulty(g.Difficulty)
	if err != nil {
		return mines.GameParams{}, err
	}
	return mines.GameParams{
		Difficulty:     d,
		Width:          g.Width,
		Height:         g.Height,
		MineCount:      g.MineCount,
		FirstClickSafe: g.FirstClickSafe,
	}.Normalize()
}

// LogConfig configures logging. An empty Level means debug in development and
// info in production.
type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type SessionConfig struct {
	Secret        string   `json:"secret"`
	TokenLifetime Duration `json:"token_lifetime"`
	IdleTimeout   Duration `json:"idle_timeout"`
	SweepInterval Duration `json:"sweep_interval"`
}

type WebSocketConfig struct {
	WriteTimeout   Duration `json:"write_timeout"`
	MovesPerSecond float64  `json:"moves_per_second"`
	MoveBurst      int      `json:"move_burst"`
	AllowedOrigins []string `json:"allowed_origins"`
	ReadLimitBytes int64    `json:"read_limit_bytes"`
}

type Config struct {
	Mode        string          `json:"mode"`
	Addr        string          `json:"addr"`
	RecordsPath string          `json:"records_path"`
	Game        GameConfig      `json:"game"`
	Log         LogConfig       `json:"log"`
	Session     SessionConfig   `json:"session"`
	WebSocket   WebSocketConfig `json:"websocket"`
}

func Default() Config {
	return Config{
		Mode: "development",
		Addr: ":8080",
		Game: GameConfig{
			Difficulty:     mines.Expert.String(),
			FirstClickSafe: true,
		},
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Session: SessionConfig{
			TokenLifetime: Duration{24 * time.Hour},
			IdleTimeout:   Duration{30 * time.Minute},
			SweepInterval: Duration{time.Minute},
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:   Duration{5 * time.Second},
			MovesPerSecond: 20,
			MoveBurst:      40,
			ReadLimitBytes: 4096,
		},
	}
}

// ReadConfig reads a JSON config file over config. Keys missing from the file
// keep their current values.
func ReadConfig(path string, config *Config) error {
	if b, err := os.ReadFile(path); err != nil {
		return err
	} else {
		return json.Unmarshal(b, config)
	}
}

// Load returns the defaults overlaid with the file at path (if path is not
// empty) and then with the environment.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		if err := ReadConfig(path, &config); err != nil {
			return nil, fmt.Errorf("unable to read config %s: %w", path, err)
		}
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) ApplyEnv() error {
	if mode, ok := os.LookupEnv("MINES_MODE"); ok {
		c.Mode = mode
	}
	if addr, ok := os.LookupEnv("MINES_ADDR"); ok {
		c.Addr = addr
	}
	if path, ok := os.LookupEnv("MINES_RECORDS_PATH"); ok {
		c.RecordsPath = path
	}
	if level, ok := os.LookupEnv("MINES_LOG_LEVEL"); ok {
		if _, err := logrus.ParseLevel(level); err != nil {
			return fmt.Errorf("invalid MINES_LOG_LEVEL: %w", err)
		}
		c.Log.Level = level
	}
	if file, ok := os.LookupEnv("MINES_LOG_FILE"); ok {
		c.Log.File = file
	}
	secret, err := loadSecret()
	if err != nil {
		return err
	}
	if secret != "" {
		c.Session.Secret = secret
	}
	return nil
}

func loadSecret() (string, error) {
	secret, ok := os.LookupEnv("MINES_SESSION_SECRET")
	if ok {
		return secret, nil
	}

	secretFile, ok := os.LookupEnv("MINES_SESSION_SECRET_FILE")
	if !ok {
		return "", nil
	}

	data, err := os.ReadFile(secretFile)
	if err != nil {
		return "", fmt.Errorf("unable to read from secret file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func (c Config) Fields() logrus.Fields {
	return map[string]any{
		"mode":                  c.Mode,
		"addr":                  c.Addr,
		"records_path":          c.RecordsPath,
		"game_difficulty":       c.Game.Difficulty,
		"game_first_click_safe": c.Game.FirstClickSafe,
		"log_level":             c.Log.Level,
		"log_file":              c.Log.File,
		"session_secret_set":    c.Session.Secret != "",
		"session_idle_timeout":  c.Session.IdleTimeout.String(),
		"ws_moves_per_second":   c.WebSocket.MovesPerSecond,
	}
}

func (c Config) Production() bool {
	return c.Mode == "production"
}

func (c Config) Development() bool {
	return c.Mode != "production"
}
