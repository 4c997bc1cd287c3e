/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import "encoding/json"

// Event names, client to server.
const (
	EventJoin   = "joinChallenge"
	EventLeave  = "leaveChallenge"
	EventSubmit = "submitAnswer"
)

// Event names, server to client.
const (
	EventConnected      = "connected"
	EventWaiting        = "waitingForOpponent"
	EventWaitingUpdate  = "waitingUpdate"
	EventWordRaceStart  = "wordRaceStart"
	EventQuizStart      = "quizStart"
	EventAnswerResult   = "answerResult"
	EventProgress       = "playerProgressUpdate"
	EventPlayerFinished = "playerFinished"
	EventWordRaceResult = "wordRaceResult"
	EventQuizResult     = "quizResult"
	EventOpponentLeft   = "opponentLeft"
	EventLeftChallenge  = "leftChallenge"
	EventError          = "error"
)

// ClientMessage is every event a client may send; unused fields stay empty.
type ClientMessage struct {
	Type       string  `json:"type"`
	PlayerID   string  `json:"playerId,omitempty"`   // joinChallenge
	GameType   string  `json:"gameType,omitempty"`   // joinChallenge
	Level      string  `json:"level,omitempty"`      // joinChallenge
	RoomID     string  `json:"roomId,omitempty"`     // submitAnswer
	QuestionID string  `json:"questionId,omitempty"` // submitAnswer
	Answer     string  `json:"answer,omitempty"`     // submitAnswer (quiz)
	TypedWord  string  `json:"typedWord,omitempty"`  // submitAnswer (wordRace)
	TimeSpent  float64 `json:"timeSpent,omitempty"`  // submitAnswer, seconds, advisory
}

// Submitted returns whichever answer field the client filled in.
func (m ClientMessage) Submitted() string {
	if m.Answer != "" {
		return m.Answer
	}
	return m.TypedWord
}

// ConnectedMessage greets a freshly attached connection.
type ConnectedMessage struct {
	Type     string `json:"type"` // "connected"
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
}

// WaitingMessage is sent once when a join request is queued.
type WaitingMessage struct {
	Type         string   `json:"type"` // "waitingForOpponent"
	RoomID       string   `json:"roomId"`
	WaitingCount int      `json:"waitingCount"` // others waiting, all game types
	GameType     GameType `json:"gameType"`
	Message      string   `json:"message"`
}

// WaitingUpdateMessage refreshes the waiting count whenever the queue changes.
type WaitingUpdateMessage struct {
	Type         string `json:"type"` // "waitingUpdate"
	WaitingCount int    `json:"waitingCount"`
	Message      string `json:"message"`
}

// StartMessage opens a session. Questions is encoded once per session so
// both players receive the same bytes.
type StartMessage struct {
	Type      string          `json:"type"` // "wordRaceStart" or "quizStart"
	RoomID    string          `json:"roomId"`
	Users     []Player        `json:"users"`
	Questions json.RawMessage `json:"questions"`
	TimeLimit int             `json:"timeLimit"` // seconds
	GameType  GameType        `json:"gameType"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
}

// AnswerResultMessage tells the submitter how their answer was judged.
type AnswerResultMessage struct {
	Type       string `json:"type"` // "answerResult"
	RoomID     string `json:"roomId"`
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"` // score of at least 90
	Passed     bool   `json:"passed"`  // score of at least 70
	Score      int    `json:"score"`
	Expected   string `json:"expected"`
}

// ProgressMessage carries counts only, never answers.
type ProgressMessage struct {
	Type         string `json:"type"` // "playerProgressUpdate"
	RoomID       string `json:"roomId"`
	Username     string `json:"username"`
	WordsTyped   int    `json:"wordsTyped"`
	CorrectWords int    `json:"correctWords"`
	TotalWords   int    `json:"totalWords"`
}

// PlayerFinishedMessage is broadcast when one player reaches the end.
type PlayerFinishedMessage struct {
	Type         string  `json:"type"` // "playerFinished"
	RoomID       string  `json:"roomId"`
	Username     string  `json:"username"`
	Score        int     `json:"score"`
	WordsTyped   int     `json:"wordsTyped"`
	CorrectWords int     `json:"correctWords"`
	XP           int     `json:"xp"`
	Time         float64 `json:"time"` // seconds, server clock
}

// ResultUser is one line of a result table.
type ResultUser struct {
	Username     string `json:"username"`
	Score        int    `json:"score"`
	CorrectWords int    `json:"correctWords"`
	XP           int    `json:"xp"`
	IsWinner     bool   `json:"isWinner"`
}

// ResultMessage closes a session.
type ResultMessage struct {
	Type     string       `json:"type"` // "wordRaceResult" or "quizResult"
	RoomID   string       `json:"roomId"`
	Users    []ResultUser `json:"users"`
	GameType GameType     `json:"gameType"`
	Reason   Reason       `json:"reason"`
	Message  string       `json:"message"`
}

// OpponentLeftMessage tells the remaining player they won by departure.
type OpponentLeftMessage struct {
	Type     string    `json:"type"` // "opponentLeft"
	RoomID   string    `json:"roomId"`
	Reason   Departure `json:"reason"`
	WinnerXP int       `json:"winnerXp"`
}

// LeftMessage acknowledges leaveChallenge.
type LeftMessage struct {
	Type    string `json:"type"` // "leftChallenge"
	Message string `json:"message"`
}

// ErrorMessage reports a recoverable problem to one connection.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}
