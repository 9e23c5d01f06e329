// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/middleware"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/room"
	"github.com/podiumhq/podium/internal/store"
	"github.com/sirupsen/logrus"
)

// DebateWSHandler upgrades to a websocket on /debate/ws/{debateID},
// authenticates the caller, joins them to the debate's room, and runs
// the read/write pumps until the connection drops.
func DebateWSHandler(logger *logrus.Logger, rs *room.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/debate/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing debate_id", http.StatusBadRequest)
			return
		}
		debateID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid debate_id", http.StatusBadRequest)
			return
		}

		// Resolve the session before the upgrade so a new guest
		// cookie can still be set on the handshake response.
		userID, err := EnsureSession(w, r)
		if err != nil {
			http.Error(w, "session error", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"debate"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "debate" {
			c.Close(BadSubprotocolError, "client must speak the debate subprotocol")
			return
		}

		rm, err := rs.GetOrLoad(r.Context(), debateID)
		if errors.Is(err, store.ErrNotFound) {
			c.Close(InvalidDebateIDError, "debate does not exist")
			return
		}
		if err != nil {
			logger.Warnf("loading debate %s: %v", debateID, err)
			c.Close(websocket.StatusInternalError, "failed to load debate")
			return
		}

		user := guestUser(userID)
		ctx, cancel := context.WithCancel(r.Context())
		conn := &room.SessionConn{
			SessionID: uuid.New(),
			UserID:    user.ID,
			Username:  user.Username,
			Cancel:    cancel,
			OutChan:   make(chan map[string]interface{}, 16),
		}

		inviteCode := r.URL.Query().Get("invite_code")
		if err := rm.Join(ctx, conn, inviteCode); err != nil {
			switch {
			case errors.Is(err, room.ErrDebateFull):
				c.Close(DebateFullError, "debate is full")
			case errors.Is(err, room.ErrBadInviteCode):
				c.Close(InviteCodeError, "invite code required")
			default:
				logger.Warnf("join failed for user %s on debate %s: %v", userID, debateID, err)
				c.Close(websocket.StatusPolicyViolation, "join rejected")
			}
			cancel()
			return
		}

		logger.Infof("User %v (%s) connected to debate %v", userID, remoteAddr, debateID)

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, rm, conn, logger)

		rm.Leave(conn)
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, nil)
	}
}

// guestUser derives the ephemeral identity minted at the edge. Durable
// profiles live in the external identity service.
func guestUser(userID uuid.UUID) models.User {
	return models.User{
		ID:          userID,
		Username:    "Guest_" + userID.String()[:4],
		IsEphemeral: true,
	}
}

// readPump drains inbound messages until the connection closes. Room
// methods do their own locking; the pump never holds room state across
// a network read.
func readPump(ctx context.Context, c *websocket.Conn, rm *room.Room, conn *room.SessionConn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("Debate %s: websocket closed normally for user %v", rm.DebateID(), conn.UserID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("Debate %s: read error for user %v: %v", rm.DebateID(), conn.UserID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg, &packet); err != nil {
			conn.WriteError("Invalid JSON format")
			continue
		}

		handleDebateMessage(ctx, packet.Type, packet.Text, rm, conn, logger)
		if packet.Type == "leave" {
			return
		}
	}
}

// handleDebateMessage maps one inbound packet to a room operation and
// reports authorization or transition failures back to the sender
// only.
func handleDebateMessage(ctx context.Context, action, text string, rm *room.Room, conn *room.SessionConn, logger *logrus.Logger) {
	var err error
	switch action {
	case "argument":
		if strings.TrimSpace(text) == "" {
			conn.WriteError("Argument text is empty")
			return
		}
		_, err = rm.SubmitArgument(ctx, conn.UserID, text)
	case "typing":
		rm.Typing(conn)
	case "stop-typing":
		rm.StopTyping(conn)
	case "request-finalization":
		err = rm.RequestFinalization(ctx, conn.UserID)
	case "approve-finalization":
		err = rm.ApproveFinalization(ctx, conn.UserID)
	case "reject-finalization":
		err = rm.RejectFinalization(ctx, conn.UserID)
	case "leave":
		// readPump exits after this handler; Leave runs there.
	default:
		conn.WriteError("Unknown action type: " + action)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, room.ErrNotParticipant):
			conn.WriteError("You are not a participant in this debate")
		case errors.Is(err, room.ErrInvalidTransition):
			conn.WriteError("Action not valid in the debate's current state")
		default:
			logger.Warnf("Debate %s: action '%s' from user %v failed: %v", rm.DebateID(), action, conn.UserID, err)
			conn.WriteError("Action failed, please retry")
		}
	}
}

// writePump serializes outbound messages and keeps the connection
// alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *room.SessionConn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for user %v: %v", conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for user %v: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping to user %v failed, assuming disconnect: %v", conn.UserID, err)
				return
			}
		}
	}
}
