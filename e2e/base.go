package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gookit/color"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"tribehub/api"
	"tribehub/auth"
	"tribehub/cache"
	"tribehub/pubsub"
	"tribehub/repositories"
	"tribehub/runtime"
	"tribehub/services"
	"tribehub/ws"
)

const expectTimeout = 3 * time.Second

// BaseRealtimeSuite boots the full stack in-process: badger in a temp dir,
// the in-memory bus, the websocket endpoint and the HTTP API behind one
// test server. Scenarios talk to it exactly the way clients do.
type BaseRealtimeSuite struct {
	suite.Suite
	Config Config
	server *httptest.Server
	db     *badger.DB
}

func (s *BaseRealtimeSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	log := slog.Default()
	s.db, err = badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	kv := repositories.NewKV(s.db, log)
	queue := repositories.NewQueueRepository(s.db, log)
	records := repositories.NewNotificationRepository(s.db, log)

	registry := runtime.NewRegistry()
	verifier := auth.NewVerifier(s.Config.JWTSecret)
	admission := auth.NewAdmission(verifier, log)
	router := runtime.NewRouter(log, registry, pubsub.NewMemoryBus(), kv, admission)
	notifications := services.NewNotificationService(log, records, queue, kv, registry)

	m := mux.NewRouter()
	m.Handle("/ws", ws.NewServer(log, router, admission, 64))
	api.Routes(m, cache.New(kv, log), api.NewHandlers(log, kv, notifications), verifier)

	s.server = httptest.NewServer(m)
}

func (s *BaseRealtimeSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Banner prints a colorized step header in logs, matching the scenario flow.
func (s *BaseRealtimeSuite) Banner(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Token signs a bearer token for the given identity with the suite secret.
func (s *BaseRealtimeSuite) Token(identity string) string {
	claims := auth.CustomClaims{
		UserID: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Config.JWTSecret))
	s.Require().NoError(err)
	return token
}

// Dial opens a websocket session; an empty token connects anonymously.
func (s *BaseRealtimeSuite) Dial(token string) *wsSession {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return &wsSession{suite: s, conn: conn}
}

// Post sends a JSON body to an API route and returns status and body.
func (s *BaseRealtimeSuite) Post(path, token string, body any) (int, []byte) {
	return s.request(http.MethodPost, path, token, body)
}

// Put sends a JSON body to an API route and returns status and body.
func (s *BaseRealtimeSuite) Put(path, token string, body any) (int, []byte) {
	return s.request(http.MethodPut, path, token, body)
}

// Get fetches an API route and returns status and body.
func (s *BaseRealtimeSuite) Get(path, token string) (int, []byte) {
	return s.request(http.MethodGet, path, token, nil)
}

func (s *BaseRealtimeSuite) request(method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if s.Config.DebugJSON {
		s.T().Logf("HTTP %s %s [%d]\n%s", method, path, resp.StatusCode, responseBody)
	}
	return resp.StatusCode, responseBody
}

// wsSession is one connected websocket client in a scenario.
type wsSession struct {
	suite *BaseRealtimeSuite
	conn  *websocket.Conn
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (w *wsSession) Send(event string, payload any) {
	data, err := json.Marshal(payload)
	w.suite.Require().NoError(err)
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	w.suite.Require().NoError(err)
	w.suite.Require().NoError(w.conn.WriteMessage(websocket.TextMessage, frame))
}

// Expect reads frames until one with the given event name arrives and
// returns its payload. Unrelated frames in between (presence chatter from
// other scenario actors) are skipped, not failed on.
func (w *wsSession) Expect(event string) json.RawMessage {
	deadline := time.Now().Add(expectTimeout)
	for {
		w.suite.Require().NoError(w.conn.SetReadDeadline(deadline))
		_, raw, err := w.conn.ReadMessage()
		w.suite.Require().NoError(err, "timed out waiting for %q", event)

		var env envelope
		w.suite.Require().NoError(json.Unmarshal(raw, &env))
		if w.suite.Config.DebugJSON {
			w.suite.T().Logf("WS <- %s %s", env.Event, env.Data)
		}
		if env.Event == event {
			return env.Data
		}
	}
}

// ExpectNone asserts that no frame with the given event name arrives within
// the grace period.
func (w *wsSession) ExpectNone(event string, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for {
		_ = w.conn.SetReadDeadline(deadline)
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			return // deadline passed without the forbidden frame
		}
		var env envelope
		w.suite.Require().NoError(json.Unmarshal(raw, &env))
		w.suite.Require().NotEqual(event, env.Event, "received a frame that must not arrive")
	}
}

func (w *wsSession) Close() {
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = w.conn.Close()
}
