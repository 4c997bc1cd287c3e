/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/Seednode/wordrace/internal/scoring"
)

// SessionConfig fixes everything about a session before it starts.
type SessionConfig struct {
	ID        string
	GameType  GameType
	Level     scoring.Level
	Players   [2]Player
	Questions []Question
	TimeLimit time.Duration
	Grace     time.Duration

	Notifier Notifier
	Messages Messages

	// OnFinish runs on the session goroutine after the result events are
	// sent and before Done is closed.
	OnFinish func(s *Session, o Outcome)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	State    State
	Progress [2]Progress
	Deadline time.Time
}

type submitCmd struct {
	playerID   string
	questionID string
	answer     string
	elapsed    time.Duration
	reply      chan error
}

type leaveCmd struct {
	playerID string
	reason   Departure
	reply    chan error
}

type snapshotCmd struct {
	reply chan Snapshot
}

// Session is one two-player match. All mutable state belongs to the goroutine
// running Run; other goroutines talk to it through the inbox.
type Session struct {
	cfg       SessionConfig
	questions json.RawMessage

	inbox chan any
	done  chan struct{}
	state atomic.Int32

	progress  [2]Progress
	startedAt time.Time
	deadline  time.Time
	outcome   Outcome
	finished  bool
	left      [2]Departure

	now func() time.Time
}

func NewSession(cfg SessionConfig) (*Session, error) {
	switch {
	case cfg.ID == "":
		return nil, errors.New("session id is empty")
	case cfg.Players[0].ID == "" || cfg.Players[1].ID == "":
		return nil, errors.New("session needs two players")
	case cfg.Players[0].ID == cfg.Players[1].ID:
		return nil, errors.New("a player cannot be matched against themselves")
	case len(cfg.Questions) == 0:
		return nil, ErrNoQuestions
	case cfg.TimeLimit <= 0:
		return nil, errors.New("session time limit must be positive")
	}

	questions, err := json.Marshal(cfg.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}

	s := &Session{
		cfg:       cfg,
		questions: questions,
		inbox:     make(chan any),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	s.state.Store(int32(StateWaiting))

	return s, nil
}

func (s *Session) ID() string { return s.cfg.ID }

func (s *Session) GameType() GameType { return s.cfg.GameType }

func (s *Session) Players() [2]Player { return s.cfg.Players }

// State is safe to call from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session has finished and cleaned up.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outcome is valid after Done is closed.
func (s *Session) Outcome() Outcome {
	<-s.done
	return s.outcome
}

// Has reports whether playerID is one of the two players.
func (s *Session) Has(playerID string) bool {
	return s.seat(playerID) >= 0
}

func (s *Session) seat(playerID string) int {
	for i, p := range s.cfg.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// Submit hands one answer to the session and waits for it to be processed.
func (s *Session) Submit(ctx context.Context, playerID, questionID, answer string, elapsed time.Duration) error {
	reply := make(chan error, 1)

	if err := s.send(ctx, submitCmd{
		playerID:   playerID,
		questionID: questionID,
		answer:     answer,
		elapsed:    elapsed,
		reply:      reply,
	}); err != nil {
		return err
	}

	return <-reply
}

// Leave removes playerID from a running session, which ends it. Once Leave
// returns the session is finished, out of the directory and unbound. Leaving
// a finished session is a no-op.
func (s *Session) Leave(ctx context.Context, playerID string, reason Departure) error {
	reply := make(chan error, 1)

	if err := s.send(ctx, leaveCmd{playerID: playerID, reason: reason, reply: reply}); err != nil {
		if errors.Is(err, ErrUnknownRoom) {
			return nil
		}
		return err
	}

	if err := <-reply; err != nil {
		return err
	}

	<-s.done

	return nil
}

// Snapshot returns the current state and progress. After the session has
// finished it returns the final values.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)

	if err := s.send(ctx, snapshotCmd{reply: reply}); err != nil {
		if errors.Is(err, ErrUnknownRoom) {
			return Snapshot{State: StateFinished, Progress: s.progress, Deadline: s.deadline}, nil
		}
		return Snapshot{}, err
	}

	return <-reply, nil
}

func (s *Session) send(ctx context.Context, cmd any) error {
	select {
	case <-s.done:
		return ErrUnknownRoom
	default:
	}

	select {
	case s.inbox <- cmd:
		return nil
	case <-s.done:
		return ErrUnknownRoom
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run plays the session to completion. Cancelling ctx aborts it.
func (s *Session) Run(ctx context.Context) {
	s.startedAt = s.now()
	s.deadline = s.startedAt.Add(s.cfg.TimeLimit)
	s.state.Store(int32(StatePlaying))

	s.broadcastStart()

	deadline := time.NewTimer(s.cfg.TimeLimit)
	defer deadline.Stop()

	var grace *time.Timer
	var graceC <-chan time.Time
	defer func() {
		if grace != nil {
			grace.Stop()
		}
	}()

	for !s.finished {
		select {
		case <-ctx.Done():
			s.forceFinish()
			s.finalize(ReasonAborted, -1)

		case <-deadline.C:
			s.forceFinish()
			s.finalize(ReasonTimeExpired, -1)

		case <-graceC:
			s.forceFinish()
			s.finalize(ReasonGraceExpired, -1)

		case cmd := <-s.inbox:
			switch c := cmd.(type) {
			case submitCmd:
				err := s.submit(c)
				c.reply <- err

				// Rejected submissions leave the timers alone.
				if err != nil || s.finished || s.cfg.Grace <= 0 || s.progress[0].Finished == s.progress[1].Finished {
					break
				}

				// Exactly one player is done. The first finish starts the
				// grace timer; any later accepted submission by the other
				// player restarts it.
				if grace == nil {
					grace = time.NewTimer(s.cfg.Grace)
					graceC = grace.C
				} else if seat := s.seat(c.playerID); seat >= 0 && !s.progress[seat].Finished {
					grace.Reset(s.cfg.Grace)
				}

			case leaveCmd:
				seat := s.seat(c.playerID)
				if seat < 0 {
					c.reply <- ErrUnknownRoom
					break
				}
				c.reply <- nil
				s.left[seat] = c.reason
				s.finalize(ReasonDeparted, seat)

			case snapshotCmd:
				c.reply <- Snapshot{State: s.State(), Progress: s.progress, Deadline: s.deadline}
			}
		}
	}
}

func (s *Session) submit(c submitCmd) error {
	seat := s.seat(c.playerID)
	if seat < 0 {
		return ErrUnknownRoom
	}

	p := &s.progress[seat]
	if p.Finished || p.Index >= len(s.cfg.Questions) {
		return ErrStaleSubmission
	}

	q := s.cfg.Questions[p.Index]
	if c.questionID != q.ID {
		return ErrStaleSubmission
	}

	ev := s.cfg.GameType.Evaluate(q, c.answer)

	p.Attempted++
	if ev.Correct {
		p.Correct++
	}
	p.Score += ev.Score
	p.Index++
	if c.elapsed > 0 {
		p.ReportedElapsed += c.elapsed
	}

	s.notify(c.playerID, AnswerResultMessage{
		Type:       EventAnswerResult,
		RoomID:     s.cfg.ID,
		QuestionID: q.ID,
		Correct:    ev.Correct,
		Passed:     ev.Passed,
		Score:      ev.Score,
		Expected:   q.Answer,
	})

	s.broadcast(ProgressMessage{
		Type:         EventProgress,
		RoomID:       s.cfg.ID,
		Username:     s.cfg.Players[seat].Name,
		WordsTyped:   p.Attempted,
		CorrectWords: p.Correct,
		TotalWords:   len(s.cfg.Questions),
	})

	if p.Index < len(s.cfg.Questions) {
		return nil
	}

	s.markFinished(seat, s.now())

	if s.progress[0].Finished && s.progress[1].Finished {
		s.finalize(ReasonCompleted, -1)
	}

	return nil
}

func (s *Session) markFinished(seat int, at time.Time) {
	p := &s.progress[seat]
	p.Finished = true
	p.FinishedAt = at
	p.XP = scoring.XP(s.cfg.Level, p.Correct, len(s.cfg.Questions), s.secondsUsed(at), s.cfg.TimeLimit.Seconds())

	s.broadcast(PlayerFinishedMessage{
		Type:         EventPlayerFinished,
		RoomID:       s.cfg.ID,
		Username:     s.cfg.Players[seat].Name,
		Score:        p.Score,
		WordsTyped:   p.Attempted,
		CorrectWords: p.Correct,
		XP:           p.XP,
		Time:         math.Round(s.secondsUsed(at)*100) / 100,
	})
}

func (s *Session) forceFinish() {
	at := s.now()
	for i := range s.progress {
		if s.progress[i].Finished {
			continue
		}
		p := &s.progress[i]
		p.Finished = true
		p.FinishedAt = at
		p.XP = scoring.XP(s.cfg.Level, p.Correct, len(s.cfg.Questions), s.secondsUsed(at), s.cfg.TimeLimit.Seconds())
	}
}

func (s *Session) secondsUsed(at time.Time) float64 {
	used := at.Sub(s.startedAt).Seconds()
	return math.Min(math.Max(used, 0), s.cfg.TimeLimit.Seconds())
}

// finalize is the only way into StateFinished. departed is the seat that
// left, or -1.
func (s *Session) finalize(reason Reason, departed int) {
	if s.finished {
		return
	}
	s.finished = true
	s.state.Store(int32(StateFinished))

	total := len(s.cfg.Questions)
	var results [2]Result
	for i, p := range s.progress {
		results[i] = Result{
			Player:  s.cfg.Players[i],
			Score:   p.Score,
			Correct: p.Correct,
			Total:   total,
			XP:      p.XP,
		}
	}

	if departed >= 0 {
		stay := 1 - departed
		results[departed].XP = 0
		results[departed].Departed = true
		results[stay].XP = scoring.FullCompletionXP(s.cfg.Level)
		results[stay].IsWinner = true

		for i := range s.progress {
			s.progress[i].XP = results[i].XP
		}
	} else if w := s.winner(); w >= 0 {
		results[w].IsWinner = true
	}

	s.outcome = Outcome{
		RoomID:     s.cfg.ID,
		GameType:   s.cfg.GameType,
		Level:      s.cfg.Level,
		Reason:     reason,
		Results:    results,
		StartedAt:  s.startedAt,
		FinishedAt: s.now(),
	}

	msg := s.resultMessage(reason, results)

	if departed >= 0 {
		stay := s.cfg.Players[1-departed].ID
		s.notify(stay, OpponentLeftMessage{
			Type:     EventOpponentLeft,
			RoomID:   s.cfg.ID,
			Reason:   s.departure(departed),
			WinnerXP: results[1-departed].XP,
		})
		s.notify(stay, msg)
	} else {
		s.broadcast(msg)
	}

	if s.cfg.OnFinish != nil {
		s.cfg.OnFinish(s, s.outcome)
	}

	close(s.done)
}

// winner applies the score rule, then the earlier server finish time.
func (s *Session) winner() int {
	a, b := s.progress[0], s.progress[1]

	switch {
	case a.Score > b.Score:
		return 0
	case b.Score > a.Score:
		return 1
	case a.FinishedAt.Before(b.FinishedAt):
		return 0
	case b.FinishedAt.Before(a.FinishedAt):
		return 1
	}

	return -1
}

func (s *Session) departure(seat int) Departure {
	if s.left[seat] != "" {
		return s.left[seat]
	}
	return DepartureDisconnected
}

func (s *Session) resultMessage(reason Reason, results [2]Result) ResultMessage {
	users := make([]ResultUser, 0, len(results))
	winner := ""
	for _, r := range results {
		users = append(users, ResultUser{
			Username:     r.Player.Name,
			Score:        r.Score,
			CorrectWords: r.Correct,
			XP:           r.XP,
			IsWinner:     r.IsWinner,
		})
		if r.IsWinner {
			winner = r.Player.Name
		}
	}

	key := "session.result." + string(reason)
	if winner == "" && (reason == ReasonCompleted || reason == ReasonGraceExpired || reason == ReasonTimeExpired) {
		key = "session.result.draw"
	}

	return ResultMessage{
		Type:     s.cfg.GameType.ResultEvent(),
		RoomID:   s.cfg.ID,
		Users:    users,
		GameType: s.cfg.GameType,
		Reason:   reason,
		Message:  s.text(key, map[string]any{"Winner": winner}),
	}
}

func (s *Session) broadcastStart() {
	users := []Player{s.cfg.Players[0], s.cfg.Players[1]}
	seconds := int(math.Round(s.cfg.TimeLimit.Seconds()))

	msg := StartMessage{
		Type:      s.cfg.GameType.StartEvent(),
		RoomID:    s.cfg.ID,
		Users:     users,
		Questions: s.questions,
		TimeLimit: seconds,
		GameType:  s.cfg.GameType,
		Level:     string(s.cfg.Level),
		Message: s.text("session.start."+string(s.cfg.GameType), map[string]any{
			"Count":   len(s.cfg.Questions),
			"Seconds": seconds,
		}),
	}

	s.broadcast(msg)
}

func (s *Session) broadcast(msg any) {
	for _, p := range s.cfg.Players {
		s.notify(p.ID, msg)
	}
}

func (s *Session) notify(id string, msg any) {
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Notify(id, msg)
	}
}

func (s *Session) text(key string, data any) string {
	if s.cfg.Messages == nil {
		return key
	}

	return s.cfg.Messages.Text(key, data)
}
