/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Seednode/wordrace/internal/challenge"
	"github.com/Seednode/wordrace/internal/scoring"
)

func TestDefaultBankCoversEveryPool(t *testing.T) {
	b, err := DefaultBank()
	if err != nil {
		t.Fatalf("default bank: %v", err)
	}

	for _, gt := range challenge.GameTypes {
		for _, l := range scoring.Levels {
			if b.Len(gt, l) < 5 {
				t.Fatalf("%s/%s has only %d questions", gt, l, b.Len(gt, l))
			}
		}
	}
}

func TestBankQuestionsAreDistinctAndAnswerable(t *testing.T) {
	b, err := DefaultBank()
	if err != nil {
		t.Fatal(err)
	}
	b.Seed(42)

	qs, err := b.Questions(context.Background(), challenge.WordRace, scoring.A1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(qs))
	}

	seen := make(map[string]bool)
	for _, q := range qs {
		if seen[q.ID] {
			t.Fatalf("duplicate question %q", q.ID)
		}
		seen[q.ID] = true

		if !strings.HasPrefix(q.ID, "wr-a1-") {
			t.Fatalf("question %q is not from the A1 word race pool", q.ID)
		}
		if ev := challenge.WordRace.Evaluate(q, q.Answer); !ev.Correct {
			t.Fatalf("question %q does not accept its own answer", q.ID)
		}
	}
}

func TestBankFallsBackToEasierLevels(t *testing.T) {
	b, err := ParseBank([]byte(`
quiz:
  A1:
    - {id: a, prompt: p, answer: eins}
    - {id: b, prompt: p, answer: zwei}
  B1:
    - {id: c, prompt: p, answer: drei}
`))
	if err != nil {
		t.Fatal(err)
	}

	qs, err := b.Questions(context.Background(), challenge.Quiz, scoring.B1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 3 || qs[0].ID != "c" {
		t.Fatalf("expected the B1 item first and then A1, got %+v", qs)
	}

	if _, err := b.Questions(context.Background(), challenge.WordRace, scoring.A1, 5); !errors.Is(err, challenge.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions for an empty pool, got %v", err)
	}
}

func TestParseBankRejectsBadContent(t *testing.T) {
	cases := map[string]string{
		"duplicate id": "quiz:\n  A1:\n    - {id: x, answer: a}\n    - {id: x, answer: b}\n",
		"no answer":    "quiz:\n  A1:\n    - {id: x, prompt: p}\n",
		"bad level":    "quiz:\n  Z1:\n    - {id: x, answer: a}\n",
		"bad type":     "chess:\n  A1:\n    - {id: x, answer: a}\n",
	}

	for name, src := range cases {
		if _, err := ParseBank([]byte(src)); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}

func TestFallbackLevels(t *testing.T) {
	got := FallbackLevels(scoring.B2)
	want := []scoring.Level{scoring.B2, scoring.B1, scoring.A2, scoring.A1}

	if len(got) != len(want) {
		t.Fatalf("FallbackLevels(B2) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FallbackLevels(B2) = %v", got)
		}
	}
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=wordrace dbname=wordrace sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	return db
}

func TestPoolQuery(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []QuestionRecord
		return poolQuery(tx, challenge.Quiz, scoring.B1, 3).Find(&rows)
	})

	for _, want := range []string{`FROM "questions"`, "game_type = 'quiz'", "level = 'B1'", "RANDOM()", "LIMIT 3"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("query %q is missing %q", sql, want)
		}
	}
}

func TestRecordRoundTrip(t *testing.T) {
	it := Item{
		GameType: challenge.WordRace,
		Level:    scoring.A2,
		Question: challenge.Question{ID: "x", Prompt: "the key", Answer: "der Schlüssel", Accepted: []string{"Schlüssel"}},
	}

	rec := recordFor(it)
	if rec.GameType != "wordRace" || rec.Level != "A2" || !rec.Active {
		t.Fatalf("unexpected record: %+v", rec)
	}

	q := rec.question()
	if q.ID != "x" || q.Answer != "der Schlüssel" || len(q.Accepted) != 1 {
		t.Fatalf("unexpected question: %+v", q)
	}
}
