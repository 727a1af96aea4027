// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeridianIDE/MeridianCore/services/model/subscription"
)

// ===== WEBSOCKET BINDING =====

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The server sits behind the editor's own transport; origin policy
	// is enforced there.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// wsFrame is a client-to-server control frame.
type wsFrame struct {
	Action  string            `json:"action"`
	Payload *SubscribePayload `json:"payload,omitempty"`

	// SubscriptionID targets an unsubscribe.
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// wsClient serializes writes to one socket. Event callbacks and control
// replies race otherwise.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

// WebSocket handles GET /v1/model/subscriptions/ws.
//
// Description:
//
//	Upgrades the connection, assigns the client an id, and serves
//	subscribe/unsubscribe frames. Change events flow to the client as
//	{"type":"event", ...} messages. When the socket closes, every
//	subscription the client created is removed.
func (h *Handlers) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{conn: conn}
	clientID := uuid.New().String()

	defer func() {
		removed := h.server.ClientDisconnected(clientID)
		conn.Close()
		h.logger.Info("websocket client disconnected",
			slog.String("client_id", clientID),
			slog.Int("subscriptions_removed", removed))
	}()

	if err := client.sendJSON(gin.H{"type": "connected", "clientId": clientID}); err != nil {
		return
	}
	h.logger.Info("websocket client connected", slog.String("client_id", clientID))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed",
					slog.String("client_id", clientID),
					slog.String("error", err.Error()))
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			client.sendJSON(gin.H{"type": "error", "error": "malformed frame", "code": "INVALID_FRAME"})
			continue
		}

		switch frame.Action {
		case "subscribe":
			h.wsSubscribe(client, clientID, frame.Payload)
		case "unsubscribe":
			h.wsUnsubscribe(client, frame.SubscriptionID)
		case "ping":
			client.sendJSON(gin.H{"type": "pong"})
		default:
			client.sendJSON(gin.H{"type": "error", "error": "unknown action: " + frame.Action, "code": "INVALID_FRAME"})
		}
	}
}

// wsSubscribe creates a subscription whose callback streams events onto
// the socket.
func (h *Handlers) wsSubscribe(client *wsClient, clientID string, payload *SubscribePayload) {
	if payload == nil || payload.URI == "" {
		client.sendJSON(gin.H{"type": "error", "error": "subscribe requires payload.uri", "code": "INVALID_FRAME"})
		return
	}

	cb := func(ev subscription.Event) {
		if err := client.sendJSON(gin.H{"type": "event", "event": ev}); err != nil {
			h.logger.Warn("event write failed",
				slog.String("client_id", clientID),
				slog.String("uri", ev.URI),
				slog.String("error", err.Error()))
		}
	}

	handle, err := h.server.Subscribe(payload.URI, cb, payload.toOptions(clientID))
	if err != nil {
		client.sendJSON(gin.H{"type": "error", "error": err.Error(), "code": "INVALID_URI"})
		return
	}
	client.sendJSON(gin.H{
		"type":           "subscribed",
		"subscriptionId": handle.ID(),
		"uri":            handle.URI(),
	})
}

// wsUnsubscribe removes one subscription by id.
func (h *Handlers) wsUnsubscribe(client *wsClient, subscriptionID string) {
	if subscriptionID == "" {
		client.sendJSON(gin.H{"type": "error", "error": "unsubscribe requires subscriptionId", "code": "INVALID_FRAME"})
		return
	}
	if err := h.server.Unsubscribe(subscriptionID); err != nil {
		client.sendJSON(gin.H{"type": "error", "error": err.Error(), "code": "SUBSCRIPTION_NOT_FOUND"})
		return
	}
	client.sendJSON(gin.H{"type": "unsubscribed", "subscriptionId": subscriptionID})
}
