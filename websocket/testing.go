package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadspace/models"
	"github.com/aukilabs/quadspace/protocol"
	"github.com/aukilabs/quadspace/quads"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Creates a testing environment to unit test handlers against a live server.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*websocket.Conn, *websocket.Conn, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newConn := func() *websocket.Conn {
		config, err := websocket.NewConfig(
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
		)
		if err != nil {
			t.Fatalf("error initializing web socket: %s", err)
		}

		config.Header.Set("User-Agent", "ted")
		config.Header.Set(HeaderClientID, uuid.NewString())

		conn, err := websocket.DialConfig(config)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}

		return conn
	}

	clientA := newConn()
	clientB := newConn()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

func newTestHandler() func() Handler {
	sessionStore := &models.SessionStore{
		ServerID: "ted",
	}
	return func() Handler {
		var h Handler = &RealtimeHandler{
			ClientSyncClockInterval: time.Millisecond * 250,
			ClientIdleTimeout:       time.Minute,
			FrameDuration:           time.Millisecond * 50,
			Sessions:                sessionStore,
			Grid: quads.Options{
				NumRows:        3,
				NumCols:        3,
				QuadrantWidth:  10,
				QuadrantHeight: 10,
				GroupNames:     []string{"solid", "character"},
			},
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://quadspace-test.com")
		return h
	}
}

// scenario scripts an exchange over a client connection. Steps run in order;
// receive steps skip messages until the filters match.
type scenario struct {
	conn  *websocket.Conn
	steps []func(context.Context) error
}

type msgFilter func(protocol.Msg) bool

func newScenario(conn *websocket.Conn) *scenario {
	return &scenario{conn: conn}
}

func filterByType(t protocol.MsgType) msgFilter {
	return func(msg protocol.Msg) bool {
		return msg.Type == t
	}
}

func (s *scenario) Send(t protocol.MsgType, payload any) *scenario {
	s.steps = append(s.steps, func(ctx context.Context) error {
		msg, err := protocol.MsgFrom(t, payload)
		if err != nil {
			return err
		}

		b, err := json.Marshal(msg)
		if err != nil {
			return errors.New("encoding message failed").Wrap(err)
		}
		return websocket.Message.Send(s.conn, string(b))
	})
	return s
}

func (s *scenario) Receive(filter msgFilter, handle ...func(protocol.Msg) error) *scenario {
	s.steps = append(s.steps, func(ctx context.Context) error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if deadline, ok := ctx.Deadline(); ok {
				s.conn.SetReadDeadline(deadline)
			}

			var raw []byte
			if err := websocket.Message.Receive(s.conn, &raw); err != nil {
				return errors.New("receiving message failed").Wrap(err)
			}

			var msg protocol.Msg
			if err := json.Unmarshal(raw, &msg); err != nil {
				return errors.New("decoding message failed").Wrap(err)
			}

			if !filter(msg) {
				continue
			}

			for _, h := range handle {
				if err := h(msg); err != nil {
					return err
				}
			}
			return nil
		}
	})
	return s
}

func (s *scenario) Run(ctx context.Context) error {
	for _, step := range s.steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}
