package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vancomm/minesweeper-engine/internal/config"
	"github.com/vancomm/minesweeper-engine/internal/handlers"
	"github.com/vancomm/minesweeper-engine/internal/middleware"
	"github.com/vancomm/minesweeper-engine/internal/mines"
	"github.com/vancomm/minesweeper-engine/internal/records"
	"github.com/vancomm/minesweeper-engine/internal/sessions"
)

type App struct {
	log      *logrus.Logger
	config   *config.Config
	router   *http.ServeMux
	clock    clockwork.Clock
	sessions *sessions.Store
	tokens   *sessions.Tokens
	records  *records.Store
	defaults mines.GameParams
}

// New builds the application. recs may be nil, in which case won games are
// not recorded.
func New(
	log *logrus.Logger,
	c *config.Config,
	recs *records.Store,
	clock clockwork.Clock,
) (*App, error) {
	defaults, err := c.Game.Params()
	if err != nil {
		return nil, err
	}
	tokens, err := sessions.NewTokens(
		[]byte(c.Session.Secret), c.Session.TokenLifetime.Duration, clock,
	)
	if err != nil {
		return nil, err
	}
	boardLog := log.WithField("component", "board")
	store := sessions.NewStore(
		func(p mines.GameParams) (*mines.Board, error) {
			return mines.New(p, mines.WithClock(clock), mines.WithLogger(boardLog))
		},
		clock,
		c.Session.IdleTimeout.Duration,
		log.WithField("component", "sessions"),
	)

	a := &App{
		log:      log,
		config:   c,
		router:   http.NewServeMux(),
		clock:    clock,
		sessions: store,
		tokens:   tokens,
		records:  recs,
		defaults: defaults,
	}
	a.loadRoutes()
	return a, nil
}

func (a *App) loadRoutes() {
	game := handlers.NewGameHandler(
		a.log.WithField("component", "game"),
		a.sessions, a.tokens, a.records,
		a.config.WebSocket, a.defaults, a.clock,
	)

	a.router.HandleFunc("GET /game/connect", game.ConnectWS)
	a.router.HandleFunc("GET /records", game.Records)
}

func (a *App) Handler() http.Handler {
	return middleware.Wrap(
		a.router,
		middleware.Cors(a.config.WebSocket.AllowedOrigins),
		middleware.Logging(a.log),
	)
}

// Start serves until ctx is done or the listener fails.
func (a *App) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    a.config.Addr,
		Handler: a.Handler(),
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	a.log.Infof("ready to serve @ %s", a.config.Addr)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gCtx.Done()
		sCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(sCtx)
	})
	g.Go(func() error {
		return a.sessions.Run(gCtx, a.config.Session.SweepInterval.Duration)
	})
	return g.Wait()
}
