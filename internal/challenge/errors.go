/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import "errors"

// Errors reported to the originating connection. None of them change
// session state.
var (
	ErrAlreadyQueued    = errors.New("player already has a pending match request")
	ErrAlreadyInSession = errors.New("player is already in an active session")
	ErrStaleSubmission  = errors.New("submission is not for the current question")
	ErrUnknownRoom      = errors.New("room does not exist or is no longer active")
	ErrNotAuthenticated = errors.New("event is not authenticated as that player")
	ErrUnknownGameType  = errors.New("unknown game type")
	ErrNoQuestions      = errors.New("no questions available")
	ErrRoomExists       = errors.New("room id already in use")
	ErrClosed           = errors.New("challenge hub is shut down")
)

// Code maps an error to the short code sent in error events.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyQueued):
		return "AlreadyQueued"
	case errors.Is(err, ErrAlreadyInSession):
		return "AlreadyInSession"
	case errors.Is(err, ErrStaleSubmission):
		return "StaleSubmission"
	case errors.Is(err, ErrUnknownRoom):
		return "UnknownRoom"
	case errors.Is(err, ErrNotAuthenticated):
		return "NotAuthenticated"
	default:
		return "BadRequest"
	}
}
