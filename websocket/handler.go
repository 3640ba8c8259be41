package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadspace/models"
	"github.com/aukilabs/quadspace/protocol"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 512
	recvChanSize = 512
)

// Handler represents a quadspace connection handler.
type Handler interface {
	// Handles a ping request.
	HandlePing(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a request to join or create a session.
	HandleSessionJoin(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request to leave the current session.
	HandleSessionLeave(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a request to create or update a tracked thing.
	HandleThingUpsert(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request to stop tracking a thing.
	HandleThingRemove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request to pan the session grid.
	HandleGridShift(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request to rebuild the session grid from scratch.
	HandleGridReset(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request for a thing's current quadrant membership.
	HandleMembershipGet(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Handles a request for a grid snapshot.
	HandleDebugInfo(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error

	// Sends a sync clock message to the client.
	SendSyncClock(ctx context.Context, send protocol.ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() protocol.Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() protocol.Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The interval between each sync clock message sent to the connected
	// client.
	SyncClockInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the session store.
	GetSessions() *models.SessionStore

	// The currently joined session.
	CurrentSession() *models.Session

	// The current participant.
	CurrentParticipant() *models.Participant

	// Get ClientID
	GetClientID() string
}

// Handle serves the connection with the given handler until the client
// disconnects or the context is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The quadspace handler.
	Handler Handler

	sendChan       chan protocol.Msg
	recvChan       chan protocol.Msg
	sender         protocol.Sender
	receiver       protocol.Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan protocol.Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.recvChan = make(chan protocol.Msg, recvChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	syncClockTicker := time.NewTicker(h.Handler.SyncClockInterval())
	defer syncClockTicker.Stop()

	var responder = responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case <-syncClockTicker.C:
			if err := h.Handler.SendSyncClock(ctx, responder); err != nil {
				h.disconnect(errors.New("sending sync clock failed").Wrap(err))
			}

		case msg := <-h.recvChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(t protocol.MsgType, payload any) {
	msg, err := protocol.MsgFrom(t, payload)
	if err != nil {
		return
	}
	h.sendChan <- msg
}

func (h *handler) sendMsg(msg protocol.Msg) {
	h.sendChan <- msg
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case h.recvChan <- msg:

			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg protocol.Msg, responder protocol.ResponseSender) error {
	switch msg.Type {
	case protocol.MsgTypePingRequest:
		return h.Handler.HandlePing(ctx, responder, msg)

	case protocol.MsgTypeSessionJoinRequest:
		return h.Handler.HandleSessionJoin(ctx, responder, msg)

	case protocol.MsgTypeSessionLeaveRequest:
		return h.Handler.HandleSessionLeave(ctx, responder, msg)

	case protocol.MsgTypeThingUpsertRequest:
		return h.Handler.HandleThingUpsert(ctx, responder, msg)

	case protocol.MsgTypeThingRemoveRequest:
		return h.Handler.HandleThingRemove(ctx, responder, msg)

	case protocol.MsgTypeGridShiftRequest:
		return h.Handler.HandleGridShift(ctx, responder, msg)

	case protocol.MsgTypeGridResetRequest:
		return h.Handler.HandleGridReset(ctx, responder, msg)

	case protocol.MsgTypeMembershipGetRequest:
		return h.Handler.HandleMembershipGet(ctx, responder, msg)

	case protocol.MsgTypeDebugInfoRequest:
		return h.Handler.HandleDebugInfo(ctx, responder, msg)

	default:
		responder.Send(protocol.MsgTypeError, protocol.ErrorResponse{
			Code:   protocol.ErrTypeBadRequest,
			Reason: "unknown message type: " + msg.TypeString(),
		})
		return nil
	}
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send    func(protocol.MsgType, any)
	sendMsg func(protocol.Msg)
}

func (r responseSender) Send(t protocol.MsgType, payload any) {
	r.send(t, payload)
}

func (r responseSender) SendMsg(msg protocol.Msg) {
	r.sendMsg(msg)
}
