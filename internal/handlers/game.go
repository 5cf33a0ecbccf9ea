package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vancomm/minesweeper-engine/internal/commands"
	"github.com/vancomm/minesweeper-engine/internal/config"
	"github.com/vancomm/minesweeper-engine/internal/mines"
	"github.com/vancomm/minesweeper-engine/internal/records"
	"github.com/vancomm/minesweeper-engine/internal/sessions"
)

var errTooManyMoves = errors.New("too many moves, slow down")

type GameHandler struct {
	log      logrus.FieldLogger
	sessions *sessions.Store
	tokens   *sessions.Tokens
	records  *records.Store /* nil disables records */
	ws       config.WebSocketConfig
	defaults mines.GameParams
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	decoder  *schema.Decoder
}

func NewGameHandler(
	log logrus.FieldLogger,
	store *sessions.Store,
	tokens *sessions.Tokens,
	recs *records.Store,
	ws config.WebSocketConfig,
	defaults mines.GameParams,
	clock clockwork.Clock,
) *GameHandler {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)

	g := &GameHandler{
		log:      log,
		sessions: store,
		tokens:   tokens,
		records:  recs,
		ws:       ws,
		defaults: defaults,
		clock:    clock,
		decoder:  dec,
	}
	g.upgrader = websocket.Upgrader{CheckOrigin: g.checkOrigin}
	return g
}

func (g *GameHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || len(g.ws.AllowedOrigins) == 0 ||
		slices.Contains(g.ws.AllowedOrigins, origin)
}

// ConnectWS resumes the session named by the token query parameter or starts
// a new one, then serves text commands over a websocket.
func (g *GameHandler) ConnectWS(w http.ResponseWriter, r *http.Request) {
	var dto ConnectDTO
	if err := g.decoder.Decode(&dto, r.URL.Query()); err != nil {
		sendError(w, g.log, http.StatusBadRequest, err)
		return
	}

	session, status, err := g.session(dto)
	if err != nil {
		sendError(w, g.log, status, err)
		return
	}
	token, err := g.tokens.Sign(session.ID)
	if err != nil {
		g.log.WithError(err).Error("unable to sign session token")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := g.sessions.Attach(session.ID); err != nil {
		sendError(w, g.log, http.StatusNotFound, err)
		return
	}
	defer g.sessions.Detach(session.ID)

	conn, err := g.upgrader.Upgrade(w, r, nil) // headers sent here
	if err != nil {
		g.log.WithError(err).Error("unable to upgrade")
		return
	}
	defer conn.Close()

	c := &gameConn{
		GameHandler: g,
		conn:        conn,
		session:     session,
		limiter:     rate.NewLimiter(rate.Limit(g.ws.MovesPerSecond), g.ws.MoveBurst),
		log:         g.log.WithField("session", session.ID),
	}
	c.log.Debug("established WS connection")

	err = c.run(token)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.log.WithError(err).Warn("error in ws loop")
	}
	c.log.Debug("closed WS connection")
}

func (g *GameHandler) session(dto ConnectDTO) (*sessions.Session, int, error) {
	if dto.Token != "" {
		id, err := g.tokens.Parse(dto.Token)
		if err != nil {
			return nil, http.StatusUnauthorized, err
		}
		session, err := g.sessions.Get(id)
		if err != nil {
			return nil, http.StatusNotFound, err
		}
		return session, 0, nil
	}
	params, err := dto.Params(g.defaults)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	session, err := g.sessions.Create(params)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return session, 0, nil
}

// Records lists the best time of every board setup.
func (g *GameHandler) Records(w http.ResponseWriter, r *http.Request) {
	if g.records == nil {
		sendJSONOrLog(w, g.log, []records.Record{})
		return
	}
	all, err := g.records.All()
	if err != nil {
		g.log.WithError(err).Error("unable to fetch records")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if all == nil {
		all = []records.Record{}
	}
	sendJSONOrLog(w, g.log, all)
}

type gameConn struct {
	*GameHandler
	conn    *websocket.Conn
	session *sessions.Session
	limiter *rate.Limiter
	log     logrus.FieldLogger

	writeMu sync.Mutex
}

// send is called both from the read loop and from the board's timer.
func (c *gameConn) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.ws.WriteTimeout.Duration > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.ws.WriteTimeout.Duration))
	}
	return c.conn.WriteJSON(v)
}

func (c *gameConn) sendError(err error) error {
	return c.send(ErrorMessage{msgError, err.Error()})
}

func (c *gameConn) run(token string) error {
	board := c.session.Board

	state := NewStateMessage(msgSession, board.Snapshot())
	state.Token = token
	if err := c.send(state); err != nil {
		return err
	}

	id := board.AddListener(func() {
		if err := c.send(TimeMessage{msgTime, board.Time()}); err != nil {
			c.log.WithError(err).Debug("unable to send time")
		}
	})
	defer board.RemoveListener(id)

	if c.ws.ReadLimitBytes > 0 {
		c.conn.SetReadLimit(c.ws.ReadLimitBytes)
	}
	for {
		mt, buf, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			return nil
		}
		c.sessions.Touch(c.session.ID)

		message := strings.TrimSpace(string(buf))
		for _, line := range strings.Split(message, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !c.limiter.Allow() {
				if err := c.sendError(errTooManyMoves); err != nil {
					return err
				}
				continue
			}
			reply, err := c.execute(line)
			if err != nil {
				reply = ErrorMessage{msgError, err.Error()}
			}
			if err := c.send(reply); err != nil {
				return err
			}
		}
	}
}

func (c *gameConn) execute(line string) (reply any, err error) {
	// another connection to the session may shrink the board between the
	// bounds check and the move
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(mines.OutOfBoundsError); !ok {
				panic(r)
			}
			reply, err = nil, commands.ErrOutOfBounds
		}
	}()

	cmd, err := commands.Parse(line, commandNargs)
	if err != nil {
		return nil, err
	}
	board := c.session.Board

	switch cmd.Name {
	case "g":
		return NewStateMessage(msgState, board.Snapshot()), nil
	case "o":
		x, y, err := commands.Position(board.Params(), cmd.Args)
		if err != nil {
			return nil, err
		}
		res := board.Reveal(x, y)
		won := board.IsWon()
		msg := NewResultMessage(res, won, board.MinesLeft(), board.Time())
		if res.Done && won && len(res.Opened) > 0 {
			msg.Record = c.submit(board.Params(), msg.Time)
		}
		return msg, nil
	case "f", "q":
		x, y, err := commands.Position(board.Params(), cmd.Args)
		if err != nil {
			return nil, err
		}
		var changed bool
		if cmd.Name == "f" {
			changed = board.Flag(x, y)
		} else {
			changed = board.Question(x, y)
		}
		status := board.Cell(x, y)
		return CellMessage{
			Type:      msgCell,
			X:         x,
			Y:         y,
			Status:    status,
			Label:     status.String(),
			Changed:   changed,
			MinesLeft: board.MinesLeft(),
		}, nil
	case "n":
		board.Reset()
		return NewStateMessage(msgState, board.Snapshot()), nil
	case "d":
		params, err := commands.ParseParams(board.Params(), cmd.Args)
		if err != nil {
			return nil, err
		}
		if err := board.SetConfig(params); err != nil {
			return nil, err
		}
		return NewStateMessage(msgState, board.Snapshot()), nil
	}
	return nil, fmt.Errorf("%w: %s", commands.ErrUnknownCommand, cmd.Name)
}

// submit stores a winning time and reports whether it is a new record.
func (c *gameConn) submit(params mines.GameParams, seconds int) bool {
	if c.records == nil {
		return false
	}
	ok, err := c.records.Submit(params, seconds, c.clock.Now())
	if err != nil {
		c.log.WithError(err).Error("unable to submit record")
		return false
	}
	if ok {
		c.log.WithFields(logrus.Fields{
			"key":     records.Key(params),
			"seconds": seconds,
		}).Info("new record")
	}
	return ok
}

