/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package content

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Seednode/wordrace/internal/challenge"
	"github.com/Seednode/wordrace/internal/scoring"
)

// QuestionRecord is one row of the questions table.
type QuestionRecord struct {
	ID          string   `gorm:"primaryKey;type:varchar(64)"`
	GameType    string   `gorm:"type:varchar(16);not null;index:idx_questions_pool"`
	Level       string   `gorm:"type:varchar(2);not null;index:idx_questions_pool"`
	Prompt      string   `gorm:"not null"`
	Answer      string   `gorm:"not null"`
	Accepted    []string `gorm:"serializer:json"`
	Translation string
	Hints       []string `gorm:"serializer:json"`
	Active      bool     `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (QuestionRecord) TableName() string { return "questions" }

func (r QuestionRecord) question() challenge.Question {
	return challenge.Question{
		ID:          r.ID,
		Prompt:      r.Prompt,
		Answer:      r.Answer,
		Accepted:    r.Accepted,
		Translation: r.Translation,
		Hints:       r.Hints,
	}
}

func recordFor(it Item) QuestionRecord {
	return QuestionRecord{
		ID:          it.Question.ID,
		GameType:    string(it.GameType),
		Level:       string(it.Level),
		Prompt:      it.Question.Prompt,
		Answer:      it.Question.Answer,
		Accepted:    it.Question.Accepted,
		Translation: it.Question.Translation,
		Hints:       it.Question.Hints,
		Active:      true,
	}
}

// Store reads questions from Postgres.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the questions table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&QuestionRecord{}); err != nil {
		return fmt.Errorf("migrate questions: %w", err)
	}

	return nil
}

// Seed inserts every bank item whose id is not in the table yet. Existing
// rows are left alone so edits made in the database survive restarts.
func (s *Store) Seed(ctx context.Context, bank *Bank) (int64, error) {
	items := bank.Items()
	if len(items) == 0 {
		return 0, nil
	}

	rows := make([]QuestionRecord, 0, len(items))
	for _, it := range items {
		rows = append(rows, recordFor(it))
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("seed questions: %w", res.Error)
	}

	return res.RowsAffected, nil
}

// Questions implements challenge.QuestionSource.
func (s *Store) Questions(ctx context.Context, gameType challenge.GameType, level scoring.Level, n int) ([]challenge.Question, error) {
	if n <= 0 {
		return nil, fmt.Errorf("question count %d: %w", n, challenge.ErrNoQuestions)
	}

	var out []challenge.Question
	for _, l := range FallbackLevels(level) {
		if len(out) >= n {
			break
		}

		var rows []QuestionRecord
		if err := poolQuery(s.db.WithContext(ctx), gameType, l, n-len(out)).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load %s/%s questions: %w", gameType, l, err)
		}

		for _, r := range rows {
			out = append(out, r.question())
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", gameType, level, challenge.ErrNoQuestions)
	}

	return out, nil
}

func poolQuery(tx *gorm.DB, gameType challenge.GameType, level scoring.Level, limit int) *gorm.DB {
	return tx.Model(&QuestionRecord{}).
		Where("game_type = ? AND level = ? AND active", string(gameType), string(level)).
		Order("RANDOM()").
		Limit(limit)
}
