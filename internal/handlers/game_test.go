package handlers

import (
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/minesweeper-engine/internal/config"
	"github.com/vancomm/minesweeper-engine/internal/mines"
	"github.com/vancomm/minesweeper-engine/internal/records"
	"github.com/vancomm/minesweeper-engine/internal/sessions"
)

func TestMain(m *testing.M) {
	mines.Log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	os.Exit(m.Run())
}

var testWS = config.WebSocketConfig{
	WriteTimeout:   config.Duration{Duration: 5 * time.Second},
	MovesPerSecond: 100,
	MoveBurst:      100,
	ReadLimitBytes: 4096,
}

type testServer struct {
	*httptest.Server
	clock    clockwork.FakeClock
	records  *records.Store
	sessions *sessions.Store
	logs     *logtest.Hook
}

func setupTestServer(t *testing.T, ws config.WebSocketConfig) *testServer {
	t.Helper()
	clock := clockwork.NewFakeClock()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)
	hook := logtest.NewLocal(log)

	factory := func(p mines.GameParams) (*mines.Board, error) {
		return mines.New(p,
			mines.WithClock(clock),
			mines.WithLogger(log),
			mines.WithRand(rand.New(rand.NewPCG(1, 2))),
		)
	}
	store := sessions.NewStore(factory, clock, time.Hour, log)
	tokens, err := sessions.NewTokens([]byte("test secret"), time.Hour, clock)
	require.NoError(t, err)

	f, err := os.CreateTemp(t.TempDir(), "sqlite-records-")
	require.NoError(t, err)
	f.Close()
	recs, err := records.Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { recs.Close() })

	h := NewGameHandler(log, store, tokens, recs, ws, mines.DefaultParams(), clock)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /game/connect", h.ConnectWS)
	mux.HandleFunc("GET /records", h.Records)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{srv, clock, recs, store, hook}
}

func (s *testServer) dial(t *testing.T, query url.Values) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/game/connect?" + query.Encode()
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func (s *testServer) connect(t *testing.T, query url.Values) (*websocket.Conn, StateMessage) {
	t.Helper()
	conn, _, err := s.dial(t, query)
	require.NoError(t, err)
	return conn, read[StateMessage](t, conn, msgSession)
}

func custom(w, h, n int) url.Values {
	return url.Values{
		"difficulty":       {"custom"},
		"width":            {strconv.Itoa(w)},
		"height":           {strconv.Itoa(h)},
		"mine_count":       {strconv.Itoa(n)},
		"first_click_safe": {"true"},
	}
}

func read[T any](t *testing.T, conn *websocket.Conn, typ string) T {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, buf, err := conn.ReadMessage()
	require.NoError(t, err)

	var header struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(buf, &header))
	require.Equal(t, typ, header.Type, string(buf))

	var v T
	require.NoError(t, json.Unmarshal(buf, &v))
	return v
}

func write(t *testing.T, conn *websocket.Conn, line string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(line)))
}

func TestConnectNewSession(t *testing.T) {
	s := setupTestServer(t, testWS)

	_, state := s.connect(t, url.Values{"difficulty": {"beginner"}})
	assert.NotEmpty(t, state.Token)
	assert.Equal(t, mines.Beginner, state.Difficulty)
	assert.Equal(t, 8, state.Width)
	assert.Equal(t, 8, state.Height)
	assert.Equal(t, 10, state.MinesLeft)
	assert.True(t, state.FirstClickSafe)
	assert.False(t, state.Done)
	assert.Len(t, state.Grid, 64)

	_, state = s.connect(t, url.Values{})
	assert.Equal(t, mines.Intermediate, state.Difficulty)
}

func TestConnectBadParams(t *testing.T) {
	s := setupTestServer(t, testWS)

	for _, query := range []url.Values{
		{"difficulty": {"impossible"}},
		custom(1, 1, 1),
		{"width": {"wide"}},
	} {
		_, resp, err := s.dial(t, query)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query.Encode())
	}
}

func TestWinSubmitsRecord(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, _ := s.connect(t, custom(2, 1, 1))

	write(t, conn, "o 0 0")
	res := read[ResultMessage](t, conn, msgResult)
	assert.True(t, res.Done)
	assert.True(t, res.Won)
	assert.True(t, res.Record)
	assert.Equal(t, 0, res.MinesLeft)
	assert.Contains(t, res.Opened, CellDTO{0, 0, 1, "1"})

	resp, err := http.Get(s.URL + "/records")
	require.NoError(t, err)
	defer resp.Body.Close()
	var recs []records.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "custom-2x1-1", recs[0].Key)
	assert.Equal(t, 0, recs[0].Seconds)
}

func TestTimeMessages(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, _ := s.connect(t, custom(3, 1, 1))

	write(t, conn, "o 1 0")
	res := read[ResultMessage](t, conn, msgResult)
	require.False(t, res.Done)
	assert.Equal(t, []CellDTO{{1, 0, 1, "1"}}, res.Opened)

	s.clock.BlockUntil(1)
	s.clock.Advance(time.Second)
	assert.Equal(t, 1, read[TimeMessage](t, conn, msgTime).Time)

	s.clock.BlockUntil(1)
	s.clock.Advance(time.Second)
	assert.Equal(t, 2, read[TimeMessage](t, conn, msgTime).Time)
}

func TestCommandErrors(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, _ := s.connect(t, url.Values{"difficulty": {"beginner"}})

	tests := []struct {
		line string
		want string
	}{
		{"x", "unknown command"},
		{"o 1", "invalid number of arguments"},
		{"d custom 1 2", "invalid number of arguments"},
		{"o a 0", "first argument must be an int"},
		{"f 0 b", "second argument must be an int"},
		{"o 8 0", "invalid square coordinates"},
		{"q -1 0", "invalid square coordinates"},
		{"d nope", "unknown difficulty"},
		{"d custom 2 2 4", "invalid configuration"},
	}
	for _, test := range tests {
		write(t, conn, test.line)
		msg := read[ErrorMessage](t, conn, msgError)
		assert.Contains(t, msg.Error, test.want, test.line)
	}

	write(t, conn, "g")
	state := read[StateMessage](t, conn, msgState)
	assert.Equal(t, 8, state.Width, "errors leave the board alone")
}

func TestFlagAndQuestion(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, _ := s.connect(t, url.Values{"difficulty": {"beginner"}})

	write(t, conn, "f 0 0")
	cell := read[CellMessage](t, conn, msgCell)
	assert.Equal(t, mines.Flagged, cell.Status)
	assert.Equal(t, "F", cell.Label)
	assert.True(t, cell.Changed)
	assert.Equal(t, 9, cell.MinesLeft)

	write(t, conn, "o 0 0")
	res := read[ResultMessage](t, conn, msgResult)
	assert.False(t, res.Done)
	assert.Empty(t, res.Opened)

	write(t, conn, "q 0 0")
	cell = read[CellMessage](t, conn, msgCell)
	assert.Equal(t, mines.Questioned, cell.Status)
	assert.Equal(t, 10, cell.MinesLeft)
}

func TestReconfigure(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, _ := s.connect(t, url.Values{"difficulty": {"beginner"}})

	write(t, conn, "d custom 5 4 3")
	state := read[StateMessage](t, conn, msgState)
	assert.Equal(t, mines.Custom, state.Difficulty)
	assert.Equal(t, 5, state.Width)
	assert.Equal(t, 4, state.Height)
	assert.Equal(t, 3, state.MineCount)
	assert.True(t, state.FirstClickSafe)

	write(t, conn, "o 0 0\nn")
	read[ResultMessage](t, conn, msgResult)
	state = read[StateMessage](t, conn, msgState)
	assert.Equal(t, 5, state.Width)
	assert.False(t, state.Done)
	assert.Equal(t, 0, state.Time)
	for _, c := range state.Grid {
		assert.Equal(t, mines.Hidden, c)
	}

	write(t, conn, "d expert")
	state = read[StateMessage](t, conn, msgState)
	assert.Equal(t, 30, state.Width)
	assert.Equal(t, 99, state.MinesLeft)
}

func TestResumeByToken(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, state := s.connect(t, url.Values{"difficulty": {"beginner"}})

	write(t, conn, "f 2 1")
	read[CellMessage](t, conn, msgCell)
	conn.Close()

	_, resumed := s.connect(t, url.Values{"token": {state.Token}})
	assert.Equal(t, mines.Flagged, resumed.Grid[1*8+2])
	assert.Equal(t, 9, resumed.MinesLeft)

	_, resp, err := s.dial(t, url.Values{"token": {state.Token + "x"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	ws := testWS
	ws.MovesPerSecond = 0.001
	ws.MoveBurst = 2
	s := setupTestServer(t, ws)
	conn, _ := s.connect(t, url.Values{"difficulty": {"beginner"}})

	write(t, conn, "g\ng\ng")
	read[StateMessage](t, conn, msgState)
	read[StateMessage](t, conn, msgState)
	msg := read[ErrorMessage](t, conn, msgError)
	assert.Equal(t, errTooManyMoves.Error(), msg.Error)
}

func TestRecordsEmpty(t *testing.T) {
	s := setupTestServer(t, testWS)

	resp, err := http.Get(s.URL + "/records")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var recs []records.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	assert.Empty(t, recs)
}

func TestConnectedSessionNotSwept(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, _ := s.connect(t, url.Values{"difficulty": {"beginner"}})

	write(t, conn, "f 0 0")
	read[CellMessage](t, conn, msgCell)

	s.clock.Advance(2 * time.Hour)
	assert.Equal(t, 0, s.sessions.Sweep())

	write(t, conn, "g")
	state := read[StateMessage](t, conn, msgState)
	assert.Equal(t, mines.Flagged, state.Grid[0])

	conn.Close()
	assert.Eventually(t, func() bool {
		s.clock.Advance(2 * time.Hour)
		s.sessions.Sweep()
		return s.sessions.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconfigureLogsOnce(t *testing.T) {
	s := setupTestServer(t, testWS)
	conn, _ := s.connect(t, url.Values{"difficulty": {"beginner"}})

	write(t, conn, "d expert")
	read[StateMessage](t, conn, msgState)

	n := 0
	for _, e := range s.logs.AllEntries() {
		if e.Message == "board reconfigured" {
			n++
		}
	}
	assert.Equal(t, 1, n)
}
