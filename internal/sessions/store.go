package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minesweeper-engine/internal/mines"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID    uuid.UUID
	Board *mines.Board

	lastUsed time.Time
	conns    int /* live connections, guarded by the store */
}

type BoardFactory func(mines.GameParams) (*mines.Board, error)

// Store keeps live boards in memory until they sit unused for longer than the
// idle timeout.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	newBoard BoardFactory
	clock    clockwork.Clock
	idle     time.Duration
	log      logrus.FieldLogger
}

func NewStore(
	newBoard BoardFactory,
	clock clockwork.Clock,
	idle time.Duration,
	log logrus.FieldLogger,
) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		newBoard: newBoard,
		clock:    clock,
		idle:     idle,
		log:      log,
	}
}

func (s *Store) Create(params mines.GameParams) (*Session, error) {
	board, err := s.newBoard(params)
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:       uuid.New(),
		Board:    board,
		lastUsed: s.clock.Now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session": session.ID,
		"params":  board.Params().String(),
	}).Debug("session created")
	return session, nil
}

// Get returns the session and marks it as used.
func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	session.lastUsed = s.clock.Now()
	return session, nil
}

// Touch marks the session as used, if it still exists.
func (s *Store) Touch(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.lastUsed = s.clock.Now()
	}
}

// Attach marks the session as in use by a live connection until the matching
// Detach. Attached sessions are never swept.
func (s *Store) Attach(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.conns++
	session.lastUsed = s.clock.Now()
	return nil
}

// Detach undoes Attach. The idle timeout counts from here.
func (s *Store) Detach(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok && session.conns > 0 {
		session.conns--
		session.lastUsed = s.clock.Now()
	}
}

func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		// stops the board's timer
		session.Board.Reset()
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops detached sessions idle for longer than the idle timeout and
// returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	var stale []*Session
	for id, session := range s.sessions {
		if session.conns == 0 && now.Sub(session.lastUsed) > s.idle {
			stale = append(stale, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range stale {
		session.Board.Reset()
		s.log.WithField("session", session.ID).Debug("session expired")
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if n := s.Sweep(); n > 0 {
				s.log.WithField("count", n).Info("expired idle sessions")
			}
		}
	}
}
