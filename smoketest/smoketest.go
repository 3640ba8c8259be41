// Package smoketest drives a quadspace server through a scripted realtime
// scenario and reports whether every step behaved.
package smoketest

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadspace/protocol"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const defaultTimeout = time.Second * 30

// Request is the body accepted by the smoke test endpoint.
type Request struct {
	// The endpoint to test. Defaults to the server's own endpoint.
	Endpoint string `json:"endpoint,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// StepResult reports one scripted step.
type StepResult struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Results is the outcome of a full smoke test run.
type Results struct {
	Endpoint  string        `json:"endpoint"`
	OK        bool          `json:"ok"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Steps     []StepResult  `json:"steps"`
}

type Options struct {
	// The endpoint tested when the request does not name one.
	Endpoint string

	UserAgent string

	// Receives the results once a run completes.
	SendResult func(context.Context, Results) error
}

// HandleSmokeTest launches a smoke test run in the background and returns
// immediately. Results are delivered through Options.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		endpoint := req.Endpoint
		if endpoint == "" {
			endpoint = opts.Endpoint
		}
		timeout := req.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}

		go func() {
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res := Run(runCtx, endpoint, opts.UserAgent)
			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("endpoint", endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run executes the scripted scenario against the given endpoint.
func Run(ctx context.Context, endpoint, userAgent string) Results {
	res := Results{
		Endpoint:  endpoint,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		res.Duration = time.Since(res.StartedAt)
	}()

	client, err := dial(ctx, endpoint, userAgent)
	if err != nil {
		res.Steps = append(res.Steps, StepResult{
			Name:  "connect",
			Error: err.Error(),
		})
		return res
	}
	defer client.Close()
	res.Steps = append(res.Steps, StepResult{Name: "connect", OK: true})

	var thingID uint32
	steps := []struct {
		name string
		run  func() error
	}{
		{
			name: "ping",
			run: func() error {
				var resp protocol.PingResponse
				return client.roundTrip(ctx,
					protocol.MsgTypePingRequest, protocol.PingRequest{RequestID: client.nextRequestID()},
					protocol.MsgTypePingResponse, &resp)
			},
		},
		{
			name: "session_join",
			run: func() error {
				var resp protocol.SessionJoinResponse
				if err := client.roundTrip(ctx,
					protocol.MsgTypeSessionJoinRequest, protocol.SessionJoinRequest{RequestID: client.nextRequestID()},
					protocol.MsgTypeSessionJoinResponse, &resp); err != nil {
					return err
				}
				if resp.SessionID == "" || resp.ParticipantID == 0 {
					return errors.New("join response is incomplete")
				}
				if len(resp.GroupNames) == 0 {
					return errors.New("no groups registered")
				}
				client.groupName = resp.GroupNames[0]
				return nil
			},
		},
		{
			name: "thing_upsert",
			run: func() error {
				var resp protocol.ThingUpsertResponse
				if err := client.roundTrip(ctx,
					protocol.MsgTypeThingUpsertRequest, protocol.ThingUpsertRequest{
						RequestID: client.nextRequestID(),
						Thing: protocol.ThingState{
							GroupType: client.groupName,
							Top:       1,
							Right:     9,
							Bottom:    9,
							Left:      1,
						},
					},
					protocol.MsgTypeThingUpsertResponse, &resp); err != nil {
					return err
				}
				if resp.ThingID == 0 {
					return errors.New("no thing id assigned")
				}
				if resp.NumQuadrants == 0 {
					return errors.New("thing landed in no quadrant")
				}
				thingID = resp.ThingID
				return nil
			},
		},
		{
			name: "membership_get",
			run: func() error {
				var resp protocol.MembershipGetResponse
				if err := client.roundTrip(ctx,
					protocol.MsgTypeMembershipGetRequest, protocol.MembershipGetRequest{
						RequestID: client.nextRequestID(),
						ThingID:   thingID,
					},
					protocol.MsgTypeMembershipGetResponse, &resp); err != nil {
					return err
				}
				if len(resp.Quadrants) == 0 {
					return errors.New("membership is empty")
				}
				return nil
			},
		},
		{
			name: "grid_shift",
			run: func() error {
				var resp protocol.GridShiftResponse
				return client.roundTrip(ctx,
					protocol.MsgTypeGridShiftRequest, protocol.GridShiftRequest{
						RequestID: client.nextRequestID(),
						DX:        3,
					},
					protocol.MsgTypeGridShiftResponse, &resp)
			},
		},
		{
			name: "debug_info",
			run: func() error {
				var resp protocol.DebugInfoResponse
				if err := client.roundTrip(ctx,
					protocol.MsgTypeDebugInfoRequest, protocol.DebugInfoRequest{RequestID: client.nextRequestID()},
					protocol.MsgTypeDebugInfoResponse, &resp); err != nil {
					return err
				}
				if resp.NumRows == 0 || resp.NumCols == 0 {
					return errors.New("grid is empty")
				}
				return nil
			},
		},
		{
			name: "session_leave",
			run: func() error {
				var resp protocol.SessionLeaveResponse
				return client.roundTrip(ctx,
					protocol.MsgTypeSessionLeaveRequest, protocol.SessionLeaveRequest{RequestID: client.nextRequestID()},
					protocol.MsgTypeSessionLeaveResponse, &resp)
			},
		},
	}

	res.OK = true
	for _, step := range steps {
		start := time.Now()
		err := step.run()

		sr := StepResult{
			Name:     step.name,
			OK:       err == nil,
			Duration: time.Since(start),
		}
		if err != nil {
			sr.Error = err.Error()
			res.OK = false
		}
		res.Steps = append(res.Steps, sr)

		if err != nil {
			break
		}
	}
	return res
}

type client struct {
	conn      *websocket.Conn
	requestID uint32
	groupName string
}

func dial(ctx context.Context, endpoint, userAgent string) (*client, error) {
	wsEndpoint := strings.ReplaceAll(endpoint, "http://", "ws://")
	wsEndpoint = strings.ReplaceAll(wsEndpoint, "https://", "wss://")

	config, err := websocket.NewConfig(wsEndpoint, endpoint)
	if err != nil {
		return nil, errors.New("initializing websocket config failed").Wrap(err)
	}
	if userAgent != "" {
		config.Header.Set("User-Agent", userAgent)
	}

	if deadline, ok := ctx.Deadline(); ok {
		config.Dialer = &net.Dialer{Deadline: deadline}
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, errors.New("dialing websocket failed").
			WithTag("endpoint", wsEndpoint).
			Wrap(err)
	}
	return &client{conn: conn}, nil
}

func (c *client) Close() {
	c.conn.Close()
}

func (c *client) nextRequestID() uint32 {
	c.requestID++
	return c.requestID
}

// roundTrip sends a request and waits for the matching response type,
// skipping unrelated traffic such as sync clocks and broadcasts. An error
// message received in the meantime fails the round trip.
func (c *client) roundTrip(ctx context.Context, reqType protocol.MsgType, req any, respType protocol.MsgType, resp any) error {
	msg, err := protocol.MsgFrom(reqType, req)
	if err != nil {
		return err
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.New("encoding request failed").Wrap(err)
	}
	if err := websocket.Message.Send(c.conn, string(b)); err != nil {
		return errors.New("sending request failed").Wrap(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if deadline, ok := ctx.Deadline(); ok {
			c.conn.SetReadDeadline(deadline)
		}

		var raw []byte
		if err := websocket.Message.Receive(c.conn, &raw); err != nil {
			return errors.New("receiving response failed").Wrap(err)
		}

		var in protocol.Msg
		if err := json.Unmarshal(raw, &in); err != nil {
			return errors.New("decoding response failed").Wrap(err)
		}

		switch in.Type {
		case respType:
			return in.DataTo(resp)

		case protocol.MsgTypeError:
			var errResp protocol.ErrorResponse
			in.DataTo(&errResp)
			return errors.New("server returned an error").
				WithTag("code", errResp.Code).
				WithTag("reason", errResp.Reason)
		}
	}
}
