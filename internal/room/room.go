package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/analysis"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/store"
	"github.com/sirupsen/logrus"
)

// Event names delivered over the wire. Kept literal for client
// compatibility.
const (
	EventParticipantJoined     = "participant-joined"
	EventParticipantLeft       = "participant-left"
	EventUserTyping            = "user-typing"
	EventUserStoppedTyping     = "user-stopped-typing"
	EventArgumentAdded         = "argument-added"
	EventFinalizationRequested = "finalization-requested"
	EventFinalizationApproved  = "finalization-approved"
	EventFinalizationRejected  = "finalization-rejected"
	EventDebateFinalized       = "debate-finalized"
)

var (
	// ErrNotParticipant rejects protocol actions from non-members.
	ErrNotParticipant = errors.New("room: not a debate participant")
	// ErrInvalidTransition rejects actions outside their valid status.
	ErrInvalidTransition = errors.New("room: invalid state transition")
	// ErrDebateFull rejects joins beyond the participant cap.
	ErrDebateFull = errors.New("room: debate is full")
	// ErrBadInviteCode rejects private-debate joins with a wrong code.
	ErrBadInviteCode = errors.New("room: invite code mismatch")
)

// SessionConn is one live connection subscribed to a room. OutChan is
// drained by the session's write pump; Write drops rather than blocks
// so a slow client cannot stall room mutations.
type SessionConn struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	Username  string
	Cancel    func()
	OutChan   chan map[string]interface{}

	mu     sync.Mutex
	closed bool
}

// Write pushes a message onto the session's OutChan non-blockingly.
// Sends and close serialize on the conn mutex, so a broadcaster racing
// the session's removal drops the message instead of hitting a closed
// channel.
func (c *SessionConn) Write(msg map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.OutChan <- msg:
	default:
	}
}

// close shuts the session's outbound side exactly once and wakes its
// write pump. No sender can be inside Write when the channel closes.
func (c *SessionConn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.OutChan)
	if c.Cancel != nil {
		c.Cancel()
	}
}

// WriteError sends an error envelope to this session only.
func (c *SessionConn) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// Room owns all mutable state for one debate: membership, live
// sessions, the finalization sets, and the argument sequence counter.
// Every mutation is serialized by mu; rooms for different debates
// proceed fully in parallel.
type Room struct {
	mu sync.Mutex

	debate   *models.Debate
	sessions map[uuid.UUID]*SessionConn
	byUser   map[uuid.UUID]map[uuid.UUID]*SessionConn

	requested map[uuid.UUID]bool
	approved  map[uuid.UUID]bool
	epoch     int

	nextSeq int

	store    store.Store
	pipeline *analysis.Pipeline
	logger   *logrus.Logger

	// OnEmpty fires after the last session leaves, letting the store
	// evict the room. The debate itself is never deleted.
	OnEmpty func(debateID uuid.UUID)

	// OnFinalized fires once with the persisted Result, after the
	// debate-finalized broadcast. Used for the archive queue.
	OnFinalized func(result *models.Result)
}

// NewRoom wraps a debate in live coordination state. nextSeq must be
// the count of already-persisted arguments.
func NewRoom(debate *models.Debate, st store.Store, pipeline *analysis.Pipeline, logger *logrus.Logger, nextSeq int) *Room {
	return &Room{
		debate:    debate,
		sessions:  make(map[uuid.UUID]*SessionConn),
		byUser:    make(map[uuid.UUID]map[uuid.UUID]*SessionConn),
		requested: make(map[uuid.UUID]bool),
		approved:  make(map[uuid.UUID]bool),
		store:     st,
		pipeline:  pipeline,
		logger:    logger,
		nextSeq:   nextSeq,
	}
}

// DebateID returns the room's debate identifier.
func (r *Room) DebateID() uuid.UUID {
	return r.debate.ID
}

// Snapshot returns a copy of the debate record for read-only use.
func (r *Room) Snapshot() models.Debate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotUnsafe()
}

func (r *Room) snapshotUnsafe() models.Debate {
	cp := *r.debate
	cp.Participants = append([]uuid.UUID(nil), r.debate.Participants...)
	return cp
}

// Join subscribes a session to the room, adding its user to the
// participant set on first join. Idempotent per session. Private
// debates require the invite code only for users not yet in the
// participant set; existing participants may reconnect freely.
func (r *Room) Join(ctx context.Context, conn *SessionConn, inviteCode string) error {
	r.mu.Lock()

	if _, exists := r.sessions[conn.SessionID]; exists {
		r.mu.Unlock()
		return nil
	}

	isMember := r.debate.IsParticipant(conn.UserID)
	activated := false
	if !isMember {
		if r.debate.Status == models.StatusFinalized {
			r.mu.Unlock()
			return fmt.Errorf("%w: debate is finalized", ErrInvalidTransition)
		}
		if len(r.debate.Participants) >= models.MaxParticipants {
			r.mu.Unlock()
			return ErrDebateFull
		}
		if r.debate.InviteCode != "" && r.debate.InviteCode != inviteCode {
			r.mu.Unlock()
			return ErrBadInviteCode
		}
		r.debate.Participants = append(r.debate.Participants, conn.UserID)
		if r.debate.Status == models.StatusOpen && len(r.debate.Participants) == models.MaxParticipants {
			r.debate.Status = models.StatusActive
			activated = true
		}
	}

	r.sessions[conn.SessionID] = conn
	if r.byUser[conn.UserID] == nil {
		r.byUser[conn.UserID] = make(map[uuid.UUID]*SessionConn)
	}
	r.byUser[conn.UserID][conn.SessionID] = conn

	snapshot := r.snapshotUnsafe()
	r.mu.Unlock()

	if !isMember {
		if err := r.store.SaveDebate(ctx, &snapshot); err != nil {
			// Undo the membership mutation so the room never holds a
			// participant the store does not: a failed joiner must not
			// occupy a slot or count toward finalization consensus.
			r.mu.Lock()
			r.removeParticipantUnsafe(conn.UserID)
			if activated {
				r.debate.Status = models.StatusOpen
			}
			r.removeSessionUnsafe(conn.SessionID)
			r.mu.Unlock()
			return fmt.Errorf("persist debate %s on join: %w", snapshot.ID, err)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"debate_id": snapshot.ID,
		"user_id":   conn.UserID,
		"session":   conn.SessionID,
	}).Info("participant joined room")

	r.Broadcast(EventParticipantJoined, map[string]interface{}{
		"user_id":  conn.UserID.String(),
		"username": conn.Username,
	}, conn.SessionID)

	conn.Write(r.statePayload(conn.UserID))
	return nil
}

// Leave unsubscribes a session and announces the departure. The user
// stays in the debate's participant set; finalization requests and
// approvals from disconnected participants remain valid.
func (r *Room) Leave(conn *SessionConn) {
	r.mu.Lock()
	if _, exists := r.sessions[conn.SessionID]; !exists {
		r.mu.Unlock()
		return
	}
	r.removeSessionUnsafe(conn.SessionID)
	empty := len(r.sessions) == 0
	onEmpty := r.OnEmpty
	debateID := r.debate.ID
	r.mu.Unlock()

	r.Broadcast(EventParticipantLeft, map[string]interface{}{
		"user_id":  conn.UserID.String(),
		"username": conn.Username,
	}, uuid.Nil)

	if empty && onEmpty != nil {
		onEmpty(debateID)
	}
}

func (r *Room) removeParticipantUnsafe(userID uuid.UUID) {
	for i, p := range r.debate.Participants {
		if p == userID {
			r.debate.Participants = append(r.debate.Participants[:i], r.debate.Participants[i+1:]...)
			return
		}
	}
}

func (r *Room) removeSessionUnsafe(sessionID uuid.UUID) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	if set := r.byUser[conn.UserID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
	conn.close()
}

// Broadcast fans an event out to every session in the room except
// excludeSession (uuid.Nil excludes nobody). Delivery is best-effort:
// messages to slow or gone sessions are dropped.
func (r *Room) Broadcast(event string, payload map[string]interface{}, excludeSession uuid.UUID) {
	msg := eventMessage(event, payload)
	r.mu.Lock()
	conns := make([]*SessionConn, 0, len(r.sessions))
	for id, conn := range r.sessions {
		if id == excludeSession {
			continue
		}
		conns = append(conns, conn)
	}
	r.mu.Unlock()
	for _, conn := range conns {
		conn.Write(msg)
	}
}

// SendTo delivers directly to every live session of one participant.
// No-op when the participant has no active session.
func (r *Room) SendTo(userID uuid.UUID, event string, payload map[string]interface{}) {
	msg := eventMessage(event, payload)
	r.mu.Lock()
	conns := make([]*SessionConn, 0, len(r.byUser[userID]))
	for _, conn := range r.byUser[userID] {
		conns = append(conns, conn)
	}
	r.mu.Unlock()
	for _, conn := range conns {
		conn.Write(msg)
	}
}

// Typing relays a typing signal. Carries no durable state; rate
// limiting is the caller's concern.
func (r *Room) Typing(conn *SessionConn) {
	r.Broadcast(EventUserTyping, map[string]interface{}{
		"user_id":  conn.UserID.String(),
		"username": conn.Username,
	}, conn.SessionID)
}

// StopTyping relays the end of a typing signal.
func (r *Room) StopTyping(conn *SessionConn) {
	r.Broadcast(EventUserStoppedTyping, map[string]interface{}{
		"user_id":  conn.UserID.String(),
		"username": conn.Username,
	}, conn.SessionID)
}

// SubmitArgument validates membership, assigns the next sequence
// number, persists the argument, and announces it to the room.
func (r *Room) SubmitArgument(ctx context.Context, userID uuid.UUID, text string) (*models.Argument, error) {
	r.mu.Lock()
	if !r.debate.IsParticipant(userID) {
		r.mu.Unlock()
		return nil, ErrNotParticipant
	}
	if r.debate.Status == models.StatusFinalized {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: debate is finalized", ErrInvalidTransition)
	}
	arg := &models.Argument{
		DebateID:    r.debate.ID,
		AuthorID:    userID,
		Text:        text,
		Seq:         r.nextSeq,
		SubmittedAt: time.Now().UTC(),
	}
	r.nextSeq++
	r.mu.Unlock()

	if err := r.store.AppendArgument(ctx, arg); err != nil {
		return nil, fmt.Errorf("persist argument %d for debate %s: %w", arg.Seq, arg.DebateID, err)
	}

	r.Broadcast(EventArgumentAdded, map[string]interface{}{
		"author_id":    arg.AuthorID.String(),
		"text":         arg.Text,
		"seq":          arg.Seq,
		"submitted_at": arg.SubmittedAt.Unix(),
	}, uuid.Nil)
	return arg, nil
}

// statePayload is the private room snapshot sent to a session on join.
func (r *Room) statePayload(userID uuid.UUID) map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	participants := make([]string, 0, len(r.debate.Participants))
	for _, p := range r.debate.Participants {
		participants = append(participants, p.String())
	}
	return map[string]interface{}{
		"type":         "room-state",
		"debate_id":    r.debate.ID.String(),
		"topic":        r.debate.Topic,
		"status":       string(r.debate.Status),
		"participants": participants,
		"your_id":      userID.String(),
	}
}

func eventMessage(event string, payload map[string]interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = event
	return msg
}
