/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/Seednode/wordrace/internal/auth"
	"github.com/Seednode/wordrace/internal/challenge"
	"github.com/Seednode/wordrace/internal/ledger"
	"github.com/Seednode/wordrace/internal/obslog"
	"github.com/Seednode/wordrace/internal/profile"
)

const (
	historyTimeout = 5 * time.Second
	maxMatches     = 100
)

type xpLog interface {
	History(ctx context.Context, id string) ([]profile.Grant, error)
}

type matchLog interface {
	History(ctx context.Context, playerID string, limit int) ([]ledger.MatchRecord, error)
}

// history is where the history route reads from. Either side may be nil.
type history struct {
	xp      xpLog
	matches matchLog
}

type matchView struct {
	RoomID     string    `json:"roomId"`
	GameType   string    `json:"gameType"`
	Level      string    `json:"level"`
	Reason     string    `json:"reason"`
	Result     string    `json:"result"`
	OpponentID string    `json:"opponentId"`
	Score      int       `json:"score"`
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	XP         int       `json:"xp"`
	FinishedAt time.Time `json:"finishedAt"`
}

type historyResponse struct {
	PlayerID string          `json:"playerId"`
	XP       []profile.Grant `json:"xp"`
	Matches  []matchView     `json:"matches"`
}

func matchViews(rows []ledger.MatchRecord) []matchView {
	out := make([]matchView, 0, len(rows))
	for _, r := range rows {
		out = append(out, matchView{
			RoomID:     r.RoomID,
			GameType:   r.GameType,
			Level:      r.Level,
			Reason:     r.Reason,
			Result:     r.Result,
			OpponentID: r.OpponentID,
			Score:      r.Score,
			Correct:    r.Correct,
			Total:      r.Total,
			XP:         r.XPEarned,
			FinishedAt: r.FinishedAt,
		})
	}

	return out
}

// serveHistory returns the caller's own XP grants and, with a database,
// their recent matches.
func serveHistory(cfg *Config, verifier *auth.Verifier, hist history, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, status, err := identify(w, r, verifier)
		if err != nil {
			http.Error(w, http.StatusText(status), status)
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxMatches {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			limit = n
		}

		ctx, cancel := context.WithTimeout(r.Context(), historyTimeout)
		defer cancel()

		resp := historyResponse{
			PlayerID: id.PlayerID,
			XP:       []profile.Grant{},
			Matches:  []matchView{},
		}

		if hist.xp != nil {
			grants, err := hist.xp.History(ctx, id.PlayerID)
			if err != nil {
				obslog.L().Error("xp_history_failed", zap.String("player_id", id.PlayerID), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			resp.XP = append(resp.XP, grants...)
		}

		if hist.matches != nil {
			rows, err := hist.matches.History(ctx, id.PlayerID, limit)
			if err != nil {
				obslog.L().Error("match_history_failed", zap.String("player_id", id.PlayerID), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			resp.Matches = matchViews(rows)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			errs <- err
		}
	}
}

func serveRooms(cfg *Config, hub *challenge.Hub, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), historyTimeout)
		defer cancel()

		rooms, err := hub.Rooms(ctx)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(rooms); err != nil {
			errs <- err
		}
	}
}
