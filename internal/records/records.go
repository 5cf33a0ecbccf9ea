package records

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"github.com/vancomm/minesweeper-engine/internal/mines"
)

var ErrNotFound = errors.New("record not found")

type Record struct {
	Key     string    `json:"key"`
	Seconds int       `json:"seconds"`
	At      time.Time `json:"at"`
}

// Store keeps the best time for every board setup.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Key names the board setup a record belongs to. Custom boards are keyed by
// their size and mine count.
func Key(p mines.GameParams) string {
	if p.Difficulty == mines.Custom {
		return fmt.Sprintf("custom-%dx%d-%d", p.Width, p.Height, p.MineCount)
	}
	return p.Difficulty.String()
}

// Open opens or creates the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open records db: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) (*Store, error) {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS records (
	key		TEXT PRIMARY KEY,
	value	BLOB
);`)
	if err != nil {
		return nil, fmt.Errorf("unable to create records table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Best returns the record for key, or [ErrNotFound].
func (s *Store) Best(key string) (Record, error) {
	var v []uint8
	err := s.db.QueryRow(`SELECT value FROM records WHERE key = ?;`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	} else if err != nil {
		return Record{}, err
	}
	return decode(v)
}

// Submit stores seconds as the record for params if it beats the current one.
func (s *Store) Submit(params mines.GameParams, seconds int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(params)
	best, err := s.Best(key)
	if err == nil && best.Seconds <= seconds {
		return false, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(Record{key, seconds, at.UTC()}); err != nil {
		return false, err
	}
	_, err = s.db.Exec(`
INSERT INTO records (key, value)
VALUES(?, ?)
ON CONFLICT(key)
DO UPDATE SET value=excluded.value;`,
		key, buf.Bytes())
	if err != nil {
		return false, err
	}
	return true, nil
}

// All returns every record sorted by key.
func (s *Store) All() ([]Record, error) {
	rows, err := s.db.Query(`SELECT value FROM records;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values [][]uint8
	for rows.Next() {
		var v []uint8
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(values))
	for _, v := range values {
		r, err := decode(v)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})
	return records, nil
}

// Keys returns the keys of all records, sorted.
func (s *Store) Keys() ([]string, error) {
	records, err := s.All()
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(r Record, _ int) string { return r.Key }), nil
}

func decode(v []uint8) (Record, error) {
	var r Record
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&r); err != nil {
		return Record{}, fmt.Errorf("invalid record: %w", err)
	}
	return r, nil
}
