// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/pkg/authentication"
)

// subscribeRequest is the only frame clients send: join or leave a room.
type subscribeRequest struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

type subscribeResponse struct {
	Action string `json:"action"`
	Room   string `json:"room"`
	OK     bool   `json:"ok"`
}

type API struct {
	hub        *Hub
	authorizer RoomAuthorizerInterface
	upgrader   websocket.Upgrader

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func (a *API) RegisterEndpoints(mux chi.Router) {
	mux.Get("/api/v0/ws", a.handleWebsocket)
}

func (a *API) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "notifications.API.handleWebsocket")
	defer span.End()

	userID, ok := authentication.GetUserID(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		a.logger.Debugf("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(userID, conn)

	// Every connection follows its own user room, membership and assignment
	// events reach the user without an explicit subscribe.
	a.hub.Subscribe(c, UserRoom(userID))

	go c.writePump()
	a.readPump(c)
}

// readPump consumes subscribe/unsubscribe frames until the connection drops,
// then cleans up the hub registration.
func (a *API) readPump(c *client) {
	defer func() {
		a.hub.Unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req subscribeRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Debugf("websocket read failed: %v", err)
			}
			return
		}

		switch req.Action {
		case "subscribe":
			// The connection outlives the upgrade request, so authorization
			// runs on a fresh context rather than the request's.
			granted := a.authorizer.Authorize(context.Background(), c.userID, req.Room)
			if granted {
				a.hub.Subscribe(c, req.Room)
			}
			a.reply(c, req, granted)
		case "unsubscribe":
			a.hub.Unsubscribe(c, req.Room)
			a.reply(c, req, true)
		default:
			a.reply(c, req, false)
		}
	}
}

func (a *API) reply(c *client, req subscribeRequest, ok bool) {
	payload, err := json.Marshal(subscribeResponse{Action: req.Action, Room: req.Room, OK: ok})
	if err != nil {
		return
	}

	c.trySend(payload)
}

func NewAPI(hub *Hub, authorizer RoomAuthorizerInterface, tracer tracing.TracingInterface, monitor monitoring.MonitorInterface, logger logging.LoggerInterface) *API {
	a := new(API)

	a.hub = hub
	a.authorizer = authorizer
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Cross-origin policy is enforced by the CORS middleware upstream.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	a.tracer = tracer
	a.monitor = monitor
	a.logger = logger

	return a
}
