/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package content supplies the question sequences of new sessions, from the
// built-in YAML bank or from Postgres.
package content

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/Seednode/wordrace/internal/challenge"
	"github.com/Seednode/wordrace/internal/scoring"
)

//go:embed bank.yaml
var defaultBank []byte

// Item is a question with the pool it belongs to.
type Item struct {
	GameType challenge.GameType
	Level    scoring.Level
	Question challenge.Question
}

type pools map[challenge.GameType]map[scoring.Level][]challenge.Question

// Bank is an in-memory question source.
type Bank struct {
	pools pools

	mu  sync.Mutex
	rng *rand.Rand
}

// DefaultBank loads the built-in content.
func DefaultBank() (*Bank, error) {
	return ParseBank(defaultBank)
}

// LoadBank reads a bank from a YAML file laid out like the built-in one.
func LoadBank(path string) (*Bank, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}

	return ParseBank(b)
}

// ParseBank decodes and validates a YAML bank.
func ParseBank(b []byte) (*Bank, error) {
	var raw map[string]map[string][]challenge.Question
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	p := make(pools)
	seen := make(map[string]bool)

	for rawType, levels := range raw {
		gt, err := challenge.ParseGameType(rawType)
		if err != nil {
			return nil, err
		}

		if p[gt] == nil {
			p[gt] = make(map[scoring.Level][]challenge.Question)
		}

		for rawLevel, qs := range levels {
			level, err := scoring.ParseLevel(rawLevel)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", gt, err)
			}

			for _, q := range qs {
				q.ID = strings.TrimSpace(q.ID)
				switch {
				case q.ID == "":
					return nil, fmt.Errorf("%s/%s: question without id", gt, level)
				case seen[q.ID]:
					return nil, fmt.Errorf("%s/%s: duplicate question id %q", gt, level, q.ID)
				case strings.TrimSpace(q.Answer) == "":
					return nil, fmt.Errorf("%s/%s: question %q has no answer", gt, level, q.ID)
				}
				seen[q.ID] = true

				p[gt][level] = append(p[gt][level], q)
			}
		}
	}

	return &Bank{
		pools: p,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// Seed makes selection deterministic.
func (b *Bank) Seed(seed uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rng = rand.New(rand.NewPCG(seed, seed))
}

// Questions picks up to n distinct questions at level. When the level is
// short, the next easier levels fill the gap.
func (b *Bank) Questions(ctx context.Context, gameType challenge.GameType, level scoring.Level, n int) ([]challenge.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("question count %d: %w", n, challenge.ErrNoQuestions)
	}

	var out []challenge.Question
	for _, l := range FallbackLevels(level) {
		if len(out) >= n {
			break
		}
		out = append(out, b.pick(b.pools[gameType][l], n-len(out))...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", gameType, level, challenge.ErrNoQuestions)
	}

	return out, nil
}

func (b *Bank) pick(pool []challenge.Question, n int) []challenge.Question {
	if len(pool) == 0 || n <= 0 {
		return nil
	}

	b.mu.Lock()
	idx := b.rng.Perm(len(pool))
	b.mu.Unlock()

	out := make([]challenge.Question, 0, min(n, len(pool)))
	for _, i := range idx[:min(n, len(pool))] {
		q := pool[i]
		q.Accepted = append([]string(nil), q.Accepted...)
		q.Hints = append([]string(nil), q.Hints...)
		out = append(out, q)
	}

	return out
}

// Len returns the size of one pool.
func (b *Bank) Len(gameType challenge.GameType, level scoring.Level) int {
	return len(b.pools[gameType][level])
}

// Items lists every question in a stable order.
func (b *Bank) Items() []Item {
	var out []Item
	for _, gt := range challenge.GameTypes {
		for _, l := range scoring.Levels {
			for _, q := range b.pools[gt][l] {
				out = append(out, Item{GameType: gt, Level: l, Question: q})
			}
		}
	}

	return out
}

// FallbackLevels returns level followed by every easier level, hardest first.
func FallbackLevels(level scoring.Level) []scoring.Level {
	rank := level.Rank()
	if rank < 0 {
		return []scoring.Level{scoring.A1}
	}

	out := make([]scoring.Level, 0, rank+1)
	for i := rank; i >= 0; i-- {
		out = append(out, scoring.Levels[i])
	}

	return out
}
