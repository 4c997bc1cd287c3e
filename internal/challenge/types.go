/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package challenge implements the two-player word race and quiz engine:
// the connection registry, the matchmaking queue, the per-room session state
// machine and the hub that wires them together.
package challenge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/wordrace/internal/scoring"
)

// GameType selects the rules of a challenge.
type GameType string

const (
	WordRace GameType = "wordRace"
	Quiz     GameType = "quiz"
)

// GameTypes lists every supported game type; each gets its own queue
// partition.
var GameTypes = []GameType{WordRace, Quiz}

// ParseGameType accepts the wire names case-insensitively.
func ParseGameType(s string) (GameType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wordrace", "word_race", "word-race":
		return WordRace, nil
	case "quiz":
		return Quiz, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownGameType, s)
}

// StartEvent is the event name that opens a session of this type.
func (g GameType) StartEvent() string {
	if g == Quiz {
		return EventQuizStart
	}
	return EventWordRaceStart
}

// ResultEvent is the event name that closes a session of this type.
func (g GameType) ResultEvent() string {
	if g == Quiz {
		return EventQuizResult
	}
	return EventWordRaceResult
}

// Evaluate judges one answer under this game type's rules.
func (g GameType) Evaluate(q Question, answer string) scoring.Evaluation {
	if g == Quiz {
		return scoring.EvaluateQuiz(q.accepted(), answer)
	}
	return scoring.EvaluateWord(q.accepted(), answer)
}

// Player is a resolved identity. It does not change while a session runs.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"username"`
	XP   int    `json:"xp"`
}

// MatchRequest is a pending join. Ticket doubles as the room id when this
// request is the older half of a pairing.
type MatchRequest struct {
	Ticket     string
	Player     Player
	GameType   GameType
	Level      scoring.Level
	EnqueuedAt time.Time
}

// Question is one item of a session. Answer and Accepted never leave the
// server.
type Question struct {
	ID          string   `json:"id" yaml:"id"`
	Prompt      string   `json:"prompt" yaml:"prompt"`
	Answer      string   `json:"-" yaml:"answer"`
	Accepted    []string `json:"-" yaml:"accepted,omitempty"`
	Translation string   `json:"translation,omitempty" yaml:"translation,omitempty"`
	Hints       []string `json:"hints,omitempty" yaml:"hints,omitempty"`
}

func (q Question) accepted() []string {
	out := make([]string, 0, 1+len(q.Accepted))
	if q.Answer != "" {
		out = append(out, q.Answer)
	}
	return append(out, q.Accepted...)
}

// State is the lifecycle label of a session.
type State int

const (
	StateWaiting State = iota
	StatePlaying
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reason records why a session finished.
type Reason string

const (
	ReasonCompleted    Reason = "completed"
	ReasonGraceExpired Reason = "graceExpired"
	ReasonTimeExpired  Reason = "timeExpired"
	ReasonDeparted     Reason = "departed"
	ReasonAborted      Reason = "aborted"
)

// Departure distinguishes a closed connection from an explicit leave.
type Departure string

const (
	DepartureDisconnected Departure = "disconnected"
	DepartureLeft         Departure = "left"
)

// Progress is one player's running tally inside a session.
type Progress struct {
	Attempted  int
	Correct    int
	Index      int
	Finished   bool
	FinishedAt time.Time
	Score      int
	XP         int

	// ReportedElapsed sums the client's timeSpent values. It is never used to
	// end a session or to compute XP.
	ReportedElapsed time.Duration
}

// Result is a player's final line in a session.
type Result struct {
	Player   Player
	Score    int
	Correct  int
	Total    int
	XP       int
	IsWinner bool
	Departed bool
}

// Outcome is everything a finished session hands to its collaborators.
type Outcome struct {
	RoomID     string
	GameType   GameType
	Level      scoring.Level
	Reason     Reason
	Results    [2]Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Winner returns the winning result, if any.
func (o Outcome) Winner() (Result, bool) {
	for _, r := range o.Results {
		if r.IsWinner {
			return r, true
		}
	}
	return Result{}, false
}

// Notifier delivers an event to a player's live connection, if any. It must
// not block.
type Notifier interface {
	Notify(playerID string, msg any)
}

// Messages renders user-facing text.
type Messages interface {
	Text(key string, data any) string
}

// ProfileStore is the external profile and XP store.
type ProfileStore interface {
	Ensure(ctx context.Context, id, name string) (Player, error)
	AddXP(ctx context.Context, id string, amount int, reason string) (int, error)
}

// QuestionSource supplies the fixed question sequence of a new session.
type QuestionSource interface {
	Questions(ctx context.Context, gameType GameType, level scoring.Level, n int) ([]Question, error)
}

// ResultRecorder persists finished sessions.
type ResultRecorder interface {
	Record(ctx context.Context, o Outcome) error
}
