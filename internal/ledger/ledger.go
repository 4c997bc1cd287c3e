/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ledger persists finished sessions to Postgres.
package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Seednode/wordrace/internal/challenge"
)

// Results a player can have in a match.
const (
	ResultWin        = "win"
	ResultLoss       = "loss"
	ResultDraw       = "draw"
	ResultIncomplete = "incomplete"
)

// MatchRecord is one player's line of one finished session.
type MatchRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RoomID     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_match_player"`
	PlayerID   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_match_player;index"`
	Username   string    `gorm:"type:varchar(128)"`
	OpponentID string    `gorm:"type:varchar(128)"`
	GameType   string    `gorm:"type:varchar(16);not null"`
	Level      string    `gorm:"type:varchar(2);not null"`
	Reason     string    `gorm:"type:varchar(16);not null"`
	Result     string    `gorm:"type:varchar(16);not null;check:result IN ('win','loss','draw','incomplete')"`
	Score      int       `gorm:"not null;default:0"`
	Correct    int       `gorm:"not null;default:0"`
	Total      int       `gorm:"not null;default:0"`
	XPEarned   int       `gorm:"not null;default:0"`
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
}

func (MatchRecord) TableName() string { return "match_records" }

// Open connects to Postgres. The returned handle is shared by the ledger and
// the question store.
func Open(dsn string, verbose bool) (*gorm.DB, error) {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return db, nil
}

// Ledger is a challenge.ResultRecorder backed by gorm.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Migrate(ctx context.Context) error {
	if err := l.db.WithContext(ctx).AutoMigrate(&MatchRecord{}); err != nil {
		return fmt.Errorf("migrate match records: %w", err)
	}

	return nil
}

// Record writes both players' rows in one transaction.
func (l *Ledger) Record(ctx context.Context, o challenge.Outcome) error {
	rows := Records(o)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("record room %s: %w", o.RoomID, err)
	}

	return nil
}

// History returns a player's most recent matches, newest first.
func (l *Ledger) History(ctx context.Context, playerID string, limit int) ([]MatchRecord, error) {
	var rows []MatchRecord

	err := historyQuery(l.db.WithContext(ctx), playerID, limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", playerID, err)
	}

	return rows, nil
}

func historyQuery(tx *gorm.DB, playerID string, limit int) *gorm.DB {
	if limit <= 0 {
		limit = 20
	}

	return tx.Model(&MatchRecord{}).
		Where("player_id = ?", playerID).
		Order("finished_at DESC").
		Limit(limit)
}

// Records flattens an outcome into one row per player.
func Records(o challenge.Outcome) []MatchRecord {
	_, decided := o.Winner()

	rows := make([]MatchRecord, 0, len(o.Results))
	for i, r := range o.Results {
		opp := o.Results[1-i]

		result := ResultLoss
		switch {
		case r.Departed:
			result = ResultIncomplete
		case r.IsWinner:
			result = ResultWin
		case !decided:
			result = ResultDraw
		}

		rows = append(rows, MatchRecord{
			RoomID:     o.RoomID,
			PlayerID:   r.Player.ID,
			Username:   r.Player.Name,
			OpponentID: opp.Player.ID,
			GameType:   string(o.GameType),
			Level:      string(o.Level),
			Reason:     string(o.Reason),
			Result:     result,
			Score:      r.Score,
			Correct:    r.Correct,
			Total:      r.Total,
			XPEarned:   r.XP,
			StartedAt:  o.StartedAt,
			FinishedAt: o.FinishedAt,
		})
	}

	return rows
}
