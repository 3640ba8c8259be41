package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadspace/protocol"
	"golang.org/x/net/websocket"
)

// HandlerWithLogs decorates the handler with structured logging. Message
// traffic is aggregated and logged as a summary at the given interval to
// keep chatty connections readable.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	sessionID     string
	sessionUUID   string
	participantID uint32
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	logs.WithTag("client_id", h.GetClientID()).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleSessionJoin(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	if err := h.Handler.HandleSessionJoin(ctx, respond, msg); err != nil {
		return err
	}

	if h.CurrentParticipant() == nil {
		var req protocol.SessionJoinRequest
		// Parsing already succeeded in the wrapped handler.
		msg.DataTo(&req)

		logs.WithTag("client_id", h.GetClientID()).
			WithTag("session_id", req.SessionID).
			WithTag("request_id", req.RequestID).
			Info("participant failed to join a session")
		return nil
	}

	h.sessionID = h.GetSessions().GlobalSessionID(h.CurrentSession().ID)
	h.sessionUUID = h.CurrentSession().SessionUUID
	h.participantID = h.CurrentParticipant().ID

	logs.WithTag("client_id", h.GetClientID()).
		WithTag("session_id", h.sessionID).
		WithTag("session_uuid", h.sessionUUID).
		WithTag("participant_id", h.participantID).
		Info("participant joined a session")
	return nil
}

func (h *handlerWithLogs) HandleSessionLeave(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	if err := h.Handler.HandleSessionLeave(ctx, respond, msg); err != nil {
		return err
	}

	if h.CurrentParticipant() == nil && h.participantID != 0 {
		logs.WithTag("client_id", h.GetClientID()).
			WithTag("session_id", h.sessionID).
			WithTag("session_uuid", h.sessionUUID).
			WithTag("participant_id", h.participantID).
			Info("participant left a session")
	}
	return nil
}

func (h *handlerWithLogs) HandleThingUpsert(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	h.countMsg(msg)
	return h.Handler.HandleThingUpsert(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleThingRemove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	h.countMsg(msg)
	return h.Handler.HandleThingRemove(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleGridShift(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	h.countMsg(msg)
	return h.Handler.HandleGridShift(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleGridReset(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	h.countMsg(msg)
	return h.Handler.HandleGridReset(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleMembershipGet(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	h.countMsg(msg)
	return h.Handler.HandleMembershipGet(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleDebugInfo(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	h.countMsg(msg)
	return h.Handler.HandleDebugInfo(ctx, respond, msg)
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	logs.WithTag("client_id", h.GetClientID()).
		WithTag("session_id", h.sessionID).
		WithTag("session_uuid", h.sessionUUID).
		WithTag("participant_id", h.participantID).
		WithTag("reason", err).
		Info("client disconnected")
}

func (h *handlerWithLogs) Close() {
	h.closeSummaryWorker()
	h.Handler.Close()
}

func (h *handlerWithLogs) countMsg(msg protocol.Msg) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msg.TypeString()]++
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	logs.WithTag("client_id", h.GetClientID()).
		WithTag("session_id", h.sessionID).
		WithTag("session_uuid", h.sessionUUID).
		WithTag("participant_id", h.participantID).
		WithTag("received_msgs", h.counter).
		Info("connection summary")

	h.counter = make(map[string]int)
}
