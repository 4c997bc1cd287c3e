/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Seednode/wordrace/internal/obslog"
	"github.com/Seednode/wordrace/internal/scoring"
)

const finishTimeout = 10 * time.Second

// Options are the tunables of a Hub.
type Options struct {
	QuestionCount int
	TimeLimits    map[GameType]time.Duration
	Grace         time.Duration
}

// DefaultOptions mirrors the command-line defaults.
func DefaultOptions() Options {
	return Options{
		QuestionCount: 5,
		TimeLimits: map[GameType]time.Duration{
			WordRace: 60 * time.Second,
			Quiz:     90 * time.Second,
		},
		Grace: 20 * time.Second,
	}
}

// Deps are the collaborators of a Hub. Profiles and Recorder may be nil.
type Deps struct {
	Registry  *Registry
	Questions QuestionSource
	Profiles  ProfileStore
	Recorder  ResultRecorder
	Messages  Messages
}

// Stats is a point-in-time summary for the stats endpoint and log job.
type Stats struct {
	Connected int `json:"connected"`
	Waiting   int `json:"waiting"`
	Sessions  int `json:"sessions"`
}

// Hub implements the client-facing operations on top of the registry, queue
// and directory.
type Hub struct {
	opts Options
	deps Deps

	registry  *Registry
	directory *Directory
	queue     *Queue

	mu  sync.Mutex
	ctx context.Context

	sessions sync.WaitGroup
	finishes sync.WaitGroup
}

func NewHub(opts Options, deps Deps) *Hub {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}

	h := &Hub{
		opts:      opts,
		deps:      deps,
		registry:  deps.Registry,
		directory: NewDirectory(),
		ctx:       context.Background(),
	}

	h.queue = NewQueue(QueueOptions{
		Notifier:  h.registry,
		Messages:  deps.Messages,
		InSession: h.inSession,
		OnMatch:   h.startSession,
	})

	return h
}

// Start runs the queue partitions. Sessions started afterwards are aborted
// when ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	h.queue.Start(ctx)
}

// Wait blocks until the queue, every session and every finish hook have
// returned.
func (h *Hub) Wait() {
	h.queue.Wait()
	h.sessions.Wait()
	h.finishes.Wait()
}

func (h *Hub) Registry() *Registry { return h.registry }

func (h *Hub) Directory() *Directory { return h.directory }

func (h *Hub) Queue() *Queue { return h.queue }

// Connect resolves the player's profile and makes peer their live
// connection. A previous connection for the same player is closed. When the
// profile store fails the player connects with the given name and no XP.
func (h *Hub) Connect(ctx context.Context, id, name string, peer Peer) Player {
	p := Player{ID: id, Name: name}

	if h.deps.Profiles != nil {
		resolved, err := h.deps.Profiles.Ensure(ctx, id, name)
		if err != nil {
			obslog.L().Warn("profile_lookup_failed",
				zap.String("player_id", id),
				zap.Error(err),
			)
		} else {
			p = resolved
		}
	}

	if prev := h.registry.Attach(p, peer); prev != nil {
		obslog.L().Debug("connection_superseded", zap.String("player_id", id))
		_ = prev.Close()
	}

	h.registry.Notify(id, ConnectedMessage{
		Type:     EventConnected,
		PlayerID: p.ID,
		Username: p.Name,
		XP:       p.XP,
	})

	obslog.L().Info("player_connected",
		zap.String("player_id", p.ID),
		zap.String("username", p.Name),
	)

	return p
}

// Join queues the player for a match.
func (h *Hub) Join(ctx context.Context, playerID, gameType, level string) error {
	gt, err := ParseGameType(gameType)
	if err != nil {
		return err
	}

	lvl, err := scoring.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}

	if h.inSession(playerID) {
		return ErrAlreadyInSession
	}

	p, ok := h.registry.Player(playerID)
	if !ok {
		return ErrNotAuthenticated
	}

	h.registry.Touch(playerID)

	return h.queue.Enqueue(ctx, MatchRequest{
		Ticket:     uuid.NewString(),
		Player:     p,
		GameType:   gt,
		Level:      lvl,
		EnqueuedAt: time.Now(),
	})
}

// Leave withdraws the player from the queue or their session and always
// acknowledges with leftChallenge.
func (h *Hub) Leave(ctx context.Context, playerID string) error {
	h.registry.Touch(playerID)

	if _, err := h.queue.Dequeue(ctx, playerID); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}

	if s, ok := h.session(playerID); ok {
		if err := s.Leave(ctx, playerID, DepartureLeft); err != nil {
			return err
		}
	}

	h.registry.Notify(playerID, LeftMessage{
		Type:    EventLeftChallenge,
		Message: h.text("session.left", nil),
	})

	return nil
}

// Submit routes an answer to the player's session. roomID must be the room
// the player is bound to.
func (h *Hub) Submit(ctx context.Context, playerID, roomID, questionID, answer string, elapsed time.Duration) error {
	h.registry.Touch(playerID)

	s, ok := h.directory.Get(roomID)
	if !ok {
		return ErrUnknownRoom
	}

	if bound, ok := h.registry.Room(playerID); !ok || bound != roomID || !s.Has(playerID) {
		return ErrUnknownRoom
	}

	return s.Submit(ctx, playerID, questionID, answer, elapsed)
}

// Disconnect handles a closed connection. A superseded peer changes nothing;
// otherwise the player leaves the queue and their session before the
// connection is dropped from the registry.
func (h *Hub) Disconnect(ctx context.Context, playerID string, peer Peer) {
	if !h.registry.IsCurrent(playerID, peer) {
		return
	}

	if _, err := h.queue.Dequeue(ctx, playerID); err != nil && !errors.Is(err, ErrClosed) {
		obslog.L().Warn("dequeue_failed", zap.String("player_id", playerID), zap.Error(err))
	}

	if s, ok := h.session(playerID); ok {
		if err := s.Leave(ctx, playerID, DepartureDisconnected); err != nil {
			obslog.L().Warn("session_leave_failed",
				zap.String("player_id", playerID),
				zap.String("room_id", s.ID()),
				zap.Error(err),
			)
		}
	}

	h.registry.Detach(playerID, peer)

	obslog.L().Info("player_disconnected", zap.String("player_id", playerID))
}

// ReapIdle closes connections idle since cutoff that are neither queued nor
// playing. It returns how many were closed.
func (h *Hub) ReapIdle(cutoff time.Time) int {
	n := 0

	for id, peer := range h.registry.Idle(cutoff) {
		if h.queue.Queued(id) || h.inSession(id) {
			continue
		}

		_ = peer.Close()
		n++
	}

	return n
}

func (h *Hub) Stats() Stats {
	return Stats{
		Connected: h.registry.Len(),
		Waiting:   h.queue.Waiting(),
		Sessions:  h.directory.Len(),
	}
}

// RoomPlayer is one side of a running room, counts only.
type RoomPlayer struct {
	Username string `json:"username"`
	Answered int    `json:"answered"`
	Correct  int    `json:"correct"`
	Finished bool   `json:"finished"`
}

// RoomSummary describes a running session for the rooms endpoint.
type RoomSummary struct {
	RoomID   string       `json:"roomId"`
	GameType GameType     `json:"gameType"`
	State    string       `json:"state"`
	Players  []RoomPlayer `json:"players"`
	Deadline time.Time    `json:"deadline"`
}

// Rooms lists the running sessions. Sessions that finish while the list is
// built are left out.
func (h *Hub) Rooms(ctx context.Context) ([]RoomSummary, error) {
	sessions := h.directory.All()
	out := make([]RoomSummary, 0, len(sessions))

	for _, s := range sessions {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if snap.State == StateFinished {
			continue
		}

		players := s.Players()
		rs := RoomSummary{
			RoomID:   s.ID(),
			GameType: s.GameType(),
			State:    snap.State.String(),
			Players:  make([]RoomPlayer, 0, len(players)),
			Deadline: snap.Deadline,
		}
		for i, p := range players {
			rs.Players = append(rs.Players, RoomPlayer{
				Username: p.Name,
				Answered: snap.Progress[i].Attempted,
				Correct:  snap.Progress[i].Correct,
				Finished: snap.Progress[i].Finished,
			})
		}

		out = append(out, rs)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })

	return out, nil
}

func (h *Hub) inSession(playerID string) bool {
	_, ok := h.session(playerID)
	return ok
}

func (h *Hub) session(playerID string) (*Session, bool) {
	room, ok := h.registry.Room(playerID)
	if !ok {
		return nil, false
	}

	s, ok := h.directory.Get(room)
	if !ok || s.State() == StateFinished {
		return nil, false
	}

	return s, true
}

// startSession is the queue's match callback.
func (h *Hub) startSession(first, second MatchRequest) {
	h.mu.Lock()
	ctx := h.ctx
	h.mu.Unlock()

	log := obslog.L().With(
		zap.String("game_type", string(first.GameType)),
		zap.String("player_a", first.Player.ID),
		zap.String("player_b", second.Player.ID),
	)

	level := scoring.Lower(first.Level, second.Level)

	qctx, cancel := context.WithTimeout(ctx, finishTimeout)
	questions, err := h.deps.Questions.Questions(qctx, first.GameType, level, h.opts.QuestionCount)
	cancel()
	if err == nil && len(questions) == 0 {
		err = ErrNoQuestions
	}
	if err != nil {
		log.Error("session_questions_failed", zap.Error(err))
		h.failMatch(first, second)
		return
	}

	roomID := first.Ticket
	if roomID == "" || h.directory.Has(roomID) {
		roomID = uuid.NewString()
	}

	s, err := NewSession(SessionConfig{
		ID:        roomID,
		GameType:  first.GameType,
		Level:     level,
		Players:   [2]Player{first.Player, second.Player},
		Questions: questions,
		TimeLimit: h.timeLimit(first.GameType),
		Grace:     h.opts.Grace,
		Notifier:  h.registry,
		Messages:  h.deps.Messages,
		OnFinish:  h.finishSession,
	})
	if err == nil {
		err = h.directory.Add(roomID, s)
	}
	if err != nil {
		log.Error("session_create_failed", zap.Error(err))
		h.failMatch(first, second)
		return
	}

	h.registry.Bind(first.Player.ID, roomID)
	h.registry.Bind(second.Player.ID, roomID)

	log.Info("session_started",
		zap.String("room_id", roomID),
		zap.String("level", string(level)),
		zap.Int("questions", len(questions)),
	)

	h.sessions.Add(1)
	go func() {
		defer h.sessions.Done()
		s.Run(ctx)
	}()
}

func (h *Hub) failMatch(reqs ...MatchRequest) {
	msg := ErrorMessage{
		Type:    EventError,
		Code:    "BadRequest",
		Message: h.text("session.failed", nil),
	}

	for _, r := range reqs {
		h.registry.Notify(r.Player.ID, msg)
	}
}

// finishSession runs on the session goroutine. Cleanup is synchronous; XP and
// the ledger are written in the background.
func (h *Hub) finishSession(s *Session, o Outcome) {
	h.directory.Remove(s.ID(), s)
	for _, p := range s.Players() {
		h.registry.Unbind(p.ID, s.ID())
	}

	fields := []zap.Field{
		zap.String("room_id", o.RoomID),
		zap.String("game_type", string(o.GameType)),
		zap.String("reason", string(o.Reason)),
	}
	if w, ok := o.Winner(); ok {
		fields = append(fields, zap.String("winner", w.Player.ID))
	}
	obslog.L().Info("session_finished", fields...)

	if h.deps.Profiles == nil && h.deps.Recorder == nil {
		return
	}

	h.finishes.Add(1)
	go func() {
		defer h.finishes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
		defer cancel()

		h.award(ctx, o)
		h.record(ctx, o)
	}()
}

func (h *Hub) award(ctx context.Context, o Outcome) {
	if h.deps.Profiles == nil {
		return
	}

	reason := fmt.Sprintf("%s:%s:%s", o.GameType, o.Reason, o.RoomID)

	for _, r := range o.Results {
		if r.XP <= 0 {
			continue
		}

		total, err := h.deps.Profiles.AddXP(ctx, r.Player.ID, r.XP, reason)
		if err != nil {
			obslog.L().Error("xp_award_failed",
				zap.String("room_id", o.RoomID),
				zap.String("player_id", r.Player.ID),
				zap.Int("xp", r.XP),
				zap.Error(err),
			)
			continue
		}

		obslog.L().Debug("xp_awarded",
			zap.String("player_id", r.Player.ID),
			zap.Int("xp", r.XP),
			zap.Int("total", total),
		)
	}
}

func (h *Hub) record(ctx context.Context, o Outcome) {
	if h.deps.Recorder == nil {
		return
	}

	if err := h.deps.Recorder.Record(ctx, o); err != nil {
		obslog.L().Error("result_record_failed",
			zap.String("room_id", o.RoomID),
			zap.Error(err),
		)
	}
}

func (h *Hub) timeLimit(gt GameType) time.Duration {
	if d, ok := h.opts.TimeLimits[gt]; ok && d > 0 {
		return d
	}

	return DefaultOptions().TimeLimits[gt]
}

func (h *Hub) text(key string, data any) string {
	if h.deps.Messages == nil {
		return key
	}

	return h.deps.Messages.Text(key, data)
}

// ErrorEvent builds the error event for err, with the catalog's text for
// its code.
func (h *Hub) ErrorEvent(err error) ErrorMessage {
	code := Code(err)

	return ErrorMessage{
		Type:    EventError,
		Code:    code,
		Message: h.text("errors."+code, nil),
	}
}
