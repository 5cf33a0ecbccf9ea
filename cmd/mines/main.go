package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vancomm/minesweeper-engine/internal/commands"
	"github.com/vancomm/minesweeper-engine/internal/config"
	"github.com/vancomm/minesweeper-engine/internal/logging"
	"github.com/vancomm/minesweeper-engine/internal/mines"
	"github.com/vancomm/minesweeper-engine/internal/records"
)

var (
	log = logrus.New()

	beginner     bool
	intermediate bool
	expert       bool
	custom       string
	safe         bool
	debug        bool
	configPath   string
	recordsPath  string
)

func init() {
	flag.BoolVar(&beginner, "beginner", false, "8x8 board with 10 mines")
	flag.BoolVar(&intermediate, "intermediate", false, "16x16 board with 40 mines")
	flag.BoolVar(&expert, "expert", false, "30x16 board with 99 mines (default)")
	flag.StringVar(&custom, "custom", "", "custom board as \"W H N\"")
	flag.BoolVar(&safe, "safe", true, "never lose on the first click")
	flag.BoolVar(&debug, "debug", false, "show the mines and log at debug level")

	const usage = "config file path"
	flag.StringVar(&configPath, "config", "", usage)
	flag.StringVar(&configPath, "c", "", usage+" (shorthand)")
	flag.StringVar(&recordsPath, "records", "", "sqlite file to keep best times in")
}

func flagParams() (mines.GameParams, error) {
	var params mines.GameParams
	switch {
	case custom != "":
		var err error
		if params, err = commands.ParseCustom(custom); err != nil {
			return params, err
		}
	case beginner:
		params.Difficulty = mines.Beginner
	case intermediate:
		params.Difficulty = mines.Intermediate
	default:
		params.Difficulty = mines.Expert
	}
	params.FirstClickSafe = safe
	return params.Normalize()
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Error("unable to read input")
	}
}

func main() {
	mainCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if debug {
		cfg.Log.Level = logrus.DebugLevel.String()
	} else if cfg.Log.Level == "" {
		cfg.Log.Level = logrus.WarnLevel.String()
	}
	if recordsPath != "" {
		cfg.RecordsPath = recordsPath
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatal("unable to set up logging: ", err)
	}
	log = logger
	mines.Log = logger
	log.WithFields(cfg.Fields()).Debug("config")

	params, err := flagParams()
	if err != nil {
		log.Fatal(err)
	}

	var recs *records.Store
	if cfg.RecordsPath != "" {
		recs, err = records.Open(cfg.RecordsPath)
		if err != nil {
			log.Fatal(err)
		}
		defer recs.Close()
	}

	clock := clockwork.NewRealClock()
	board, err := mines.New(params, mines.WithClock(clock))
	if err != nil {
		log.Fatal(err)
	}

	term := &terminal{
		board:   board,
		records: recs,
		clock:   clock,
		debug:   debug,
		log:     log,
		out:     os.Stdout,
	}
	id := board.AddListener(term.tick)
	defer board.RemoveListener(id)

	term.printf("%s", help)
	term.printBoard()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	g, gCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		return term.loop(gCtx, lines)
	})
	g.Go(func() error {
		<-gCtx.Done()
		if mainCtx.Err() != nil {
			fmt.Fprintln(os.Stdout)
		}
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		log.Printf("exit reason: %s\n", err)
	}
}
